package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/tokengate/internal/metrics"
	"github.com/osvaldoandrade/tokengate/internal/ratelimit"
)

const failedAuthScope = "failed_auth"

// RateLimitFailedAuth throttles clients whose tokens keep getting rejected.
// It must run before AuthMiddleware: it checks the client's bucket, lets
// the chain run, and charges one token when authentication failed.
func RateLimitFailedAuth(lim ratelimit.Limiter, bucket ratelimit.Bucket, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		if lim == nil || !bucket.Enabled() {
			c.Next()
			return
		}

		subject := c.ClientIP()
		dec, err := lim.Peek(c.Request.Context(), failedAuthScope, subject, bucket)
		if err != nil {
			// Fail open to avoid turning Redis hiccups into outages.
			loggerFor(c, logger).Warn("rate limit check failed", "scope", failedAuthScope, "err", err)
			c.Next()
			return
		}
		if !dec.Allowed {
			retryAfterSeconds := int(dec.RetryAfter.Seconds())
			if retryAfterSeconds <= 0 {
				retryAfterSeconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
			metrics.RateLimitedTotal.WithLabelValues(failedAuthScope).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate limit exceeded",
				"retryAfterSeconds": retryAfterSeconds,
			})
			return
		}

		c.Next()

		if c.GetString(ctxAuthFailure) == "" {
			return
		}
		if _, err := lim.Allow(c.Request.Context(), failedAuthScope, subject, bucket); err != nil {
			loggerFor(c, logger).Warn("rate limit charge failed", "scope", failedAuthScope, "err", err)
		}
	}
}
