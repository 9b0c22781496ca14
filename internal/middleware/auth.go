package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/tokengate/internal/metrics"
	"github.com/osvaldoandrade/tokengate/pkg/auth"
)

const (
	ctxPrincipal   = "principal"
	ctxAuthFailure = "auth_failure_reason"
)

type principalKey struct{}

// AuthMiddleware authenticates the bearer token on every request. All
// failures produce the same 401 response; the reason is only logged.
func AuthMiddleware(authenticator auth.Authenticator, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		principal, err := authenticateBearer(c.Request.Context(), authenticator, c.GetHeader("Authorization"))
		if err != nil {
			reason := auth.ReasonOf(err)
			if reason == "" {
				reason = auth.ReasonMalformedToken
			}
			metrics.ObserveAuth(string(reason), time.Since(start))
			loggerFor(c, logger).Info("authentication rejected",
				"reason", reason,
				"err", err,
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
			)
			c.Set(ctxAuthFailure, string(reason))
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		metrics.ObserveAuth("", time.Since(start))

		c.Set(ctxPrincipal, principal)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), principalKey{}, principal))
		c.Next()
	}
}

func authenticateBearer(ctx context.Context, authenticator auth.Authenticator, authHeader string) (auth.Principal, error) {
	token := bearerToken(authHeader)
	if token == "" {
		return auth.Principal{}, &auth.AuthenticationError{Reason: auth.ReasonMalformedToken, Err: errMissingBearer}
	}
	return authenticator.Authenticate(ctx, token)
}

// PrincipalFromContext returns the principal attached by AuthMiddleware.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

// GetPrincipal returns the principal stored on the gin context, falling
// back to the request context.
func GetPrincipal(c *gin.Context) (auth.Principal, bool) {
	if v, ok := c.Get(ctxPrincipal); ok {
		if p, ok := v.(auth.Principal); ok {
			return p, true
		}
	}
	if c.Request == nil {
		return auth.Principal{}, false
	}
	return PrincipalFromContext(c.Request.Context())
}

func bearerToken(authHeader string) string {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
