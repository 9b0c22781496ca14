package bench

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/osvaldoandrade/tokengate/internal/testutil"
	"github.com/osvaldoandrade/tokengate/pkg/app"
	"github.com/osvaldoandrade/tokengate/pkg/auth"
	"github.com/osvaldoandrade/tokengate/pkg/auth/certs"
	_ "github.com/osvaldoandrade/tokengate/pkg/auth/jwks" // Register http(s) fetcher.
	"github.com/osvaldoandrade/tokengate/pkg/config"
)

const (
	benchIssuer   = "https://login.bench.local"
	benchAudience = "api://bench"
)

func benchValidationConfig(metadataAddress string) auth.ValidationConfig {
	return auth.ValidationConfig{
		ValidIssuers:           []string{benchIssuer},
		ValidAudiences:         []string{benchAudience},
		MetadataAddress:        metadataAddress,
		RefreshIntervalMinutes: 60,
		ClaimTypePriority:      []string{"oid", "sub"},
	}
}

func benchToken(key *testutil.SigningKey) string {
	now := time.Now()
	return key.Sign(jwt.MapClaims{
		"iss": benchIssuer,
		"aud": benchAudience,
		"exp": now.Add(time.Hour).Unix(),
		"nbf": now.Add(-time.Minute).Unix(),
		"sub": "bench-user",
	})
}

func newBenchApp(b *testing.B, key *testutil.SigningKey) *app.Application {
	b.Helper()
	gin.SetMode(gin.ReleaseMode)

	issuer := testutil.NewIssuer(key)
	b.Cleanup(issuer.Close)

	cfg := &config.Config{
		Env:       "dev",
		LogLevel:  "error",
		LogFormat: "json",
		Auth:      benchValidationConfig(issuer.KeysURL()),

		// Benchmarks keep rate limiting disabled.
		RateLimit: config.RateLimitConfig{},
	}

	a, err := app.NewApplication(cfg, app.WithLogOutput(io.Discard))
	if err != nil {
		b.Fatalf("app init: %v", err)
	}
	app.SetupMappings(a)
	if err := a.Start(context.Background()); err != nil {
		b.Fatalf("app start: %v", err)
	}
	b.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func BenchmarkHTTP_WhoAmI(b *testing.B) {
	key := testutil.NewRSAKey("bench-rsa")
	a := newBenchApp(b, key)
	token := benchToken(key)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		a.Engine.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			b.Fatalf("status %d body=%s", w.Code, w.Body.String())
		}
	}
}

func BenchmarkPipeline_Authenticate(b *testing.B) {
	for _, tc := range []struct {
		name string
		key  *testutil.SigningKey
	}{
		{"RS256", testutil.NewRSAKey("bench-rsa")},
		{"ES256", testutil.NewECKey("bench-ec")},
	} {
		b.Run(tc.name, func(b *testing.B) {
			cache := certs.NewCache()
			cert := certs.FromX509(tc.key.Certificate, tc.key.KeyID)
			cache.Replace(certs.NewSet([]certs.Certificate{cert}, time.Now()))

			p, err := auth.NewPipeline(benchValidationConfig("https://login.bench.local/keys"), cache)
			if err != nil {
				b.Fatalf("NewPipeline: %v", err)
			}
			token := benchToken(tc.key)
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if _, err := p.Authenticate(ctx, token); err != nil {
						b.Fatalf("Authenticate: %v", err)
					}
				}
			})
		})
	}
}
