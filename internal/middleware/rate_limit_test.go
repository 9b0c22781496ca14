package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/osvaldoandrade/tokengate/internal/ratelimit"
	"github.com/osvaldoandrade/tokengate/pkg/auth"
)

// mockLimiter implements ratelimit.Limiter for testing
type mockLimiter struct {
	decision ratelimit.Decision
	err      error
	charged  int
}

func (m *mockLimiter) Allow(ctx context.Context, scope string, subject string, bucket ratelimit.Bucket) (ratelimit.Decision, error) {
	m.charged++
	return m.decision, m.err
}

func (m *mockLimiter) Peek(ctx context.Context, scope string, subject string, bucket ratelimit.Bucket) (ratelimit.Decision, error) {
	return m.decision, m.err
}

func TestRateLimitFailedAuth_DisabledBucket(t *testing.T) {
	limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: false}}

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/v1/me", nil)

	RateLimitFailedAuth(limiter, ratelimit.Bucket{}, quietLogger())(ctx)

	if ctx.IsAborted() {
		t.Fatal("expected request to pass through for disabled bucket")
	}
}

func TestRateLimitFailedAuth_Blocked(t *testing.T) {
	limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: false, RetryAfter: 30 * time.Second}}

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/v1/me", nil)

	RateLimitFailedAuth(limiter, ratelimit.Bucket{RequestsPerMinute: 10, BurstSize: 5}, quietLogger())(ctx)

	if !ctx.IsAborted() || rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "30" {
		t.Errorf("expected Retry-After 30, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimitFailedAuth_FailsOpen(t *testing.T) {
	limiter := &mockLimiter{err: errors.New("redis down")}

	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/v1/me", nil)

	RateLimitFailedAuth(limiter, ratelimit.Bucket{RequestsPerMinute: 10, BurstSize: 5}, quietLogger())(ctx)

	if ctx.IsAborted() {
		t.Fatal("expected fail open on limiter error")
	}
}

func TestRateLimitFailedAuth_ChargesOnlyFailures(t *testing.T) {
	bucket := ratelimit.Bucket{RequestsPerMinute: 1, BurstSize: 2}
	limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: true}}

	r := gin.New()
	r.GET("/ok", RateLimitFailedAuth(limiter, bucket, quietLogger()), AuthMiddleware(stubAuthenticator{}, quietLogger()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/fail", RateLimitFailedAuth(limiter, bucket, quietLogger()), AuthMiddleware(stubAuthenticator{err: &auth.AuthenticationError{Reason: auth.ReasonExpired}}, quietLogger()))

	for _, path := range []string{"/ok", "/ok", "/fail"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer t")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	if limiter.charged != 1 {
		t.Fatalf("expected exactly one charge, got %d", limiter.charged)
	}
}

func TestRateLimitFailedAuth_RedisBlocksRepeatedFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	lim := ratelimit.NewTokenBucketLimiter(rdb)
	bucket := ratelimit.Bucket{RequestsPerMinute: 1, BurstSize: 2}

	r := gin.New()
	r.GET("/v1/me",
		RateLimitFailedAuth(lim, bucket, quietLogger()),
		AuthMiddleware(stubAuthenticator{err: &auth.AuthenticationError{Reason: auth.ReasonInvalidSignature}}, quietLogger()),
	)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	want := []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, codes)
		}
	}
}
