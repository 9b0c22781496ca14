package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/osvaldoandrade/tokengate/internal/metrics"
	"github.com/osvaldoandrade/tokengate/internal/middleware"
	"github.com/osvaldoandrade/tokengate/internal/providers"
	"github.com/osvaldoandrade/tokengate/internal/ratelimit"
	"github.com/osvaldoandrade/tokengate/internal/tracing"
	"github.com/osvaldoandrade/tokengate/pkg/auth"
	"github.com/osvaldoandrade/tokengate/pkg/auth/certs"
	"github.com/osvaldoandrade/tokengate/pkg/config"

	"github.com/gin-gonic/gin"
)

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Logger          *slog.Logger
	Cache           *certs.Cache
	Refresher       *certs.Refresher
	Authenticator   auth.Authenticator
	RateLimiter     ratelimit.Limiter
	TracingShutdown func(context.Context) error

	fetcher     certs.Fetcher
	redisClient *redis.Client
	logOutput   io.Writer
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithFetcher replaces the fetcher selected from the metadata address scheme.
func WithFetcher(f certs.Fetcher) ApplicationOption {
	return func(app *Application) error {
		app.fetcher = f
		return nil
	}
}

// WithAuthenticator sets a custom authenticator
func WithAuthenticator(a auth.Authenticator) ApplicationOption {
	return func(app *Application) error {
		app.Authenticator = a
		return nil
	}
}

// WithRateLimiter sets a custom failed-authentication limiter
func WithRateLimiter(l ratelimit.Limiter) ApplicationOption {
	return func(app *Application) error {
		app.RateLimiter = l
		return nil
	}
}

// WithLogOutput redirects logs, mainly for tests.
func WithLogOutput(w io.Writer) ApplicationOption {
	return func(app *Application) error {
		app.logOutput = w
		return nil
	}
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := new(slog.LevelVar)
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", "tokengate", "env", cfg.Env)
}

// NewApplication wires the certificate cache, refresher, authentication
// pipeline and HTTP engine. Nothing is fetched until Start.
func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}

	app := &Application{Config: cfg, Cache: certs.NewCache()}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	logger := NewLogger(cfg, app.logOutput)
	slog.SetDefault(logger)
	app.Logger = logger

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}
	app.TracingShutdown = shutdown

	if app.fetcher == nil {
		f, err := certs.NewFetcher(cfg.Auth.MetadataAddress, certs.FetcherOptions{Timeout: cfg.Auth.FetchTimeout()})
		if err != nil {
			return nil, err
		}
		app.fetcher = f
	}
	app.Refresher = certs.NewRefresher(
		app.fetcher,
		app.Cache,
		cfg.Auth.RefreshInterval(),
		cfg.Auth.FetchTimeout(),
		logger.With("component", "cert_refresher"),
		certs.WithObserver(metrics.RefreshObserver{}),
	)

	if app.Authenticator == nil {
		pipeline, err := auth.NewPipeline(cfg.Auth, app.Cache)
		if err != nil {
			return nil, err
		}
		app.Authenticator = pipeline
	}

	if app.RateLimiter == nil && cfg.RateLimit.Enabled() {
		app.redisClient = providers.NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword)
		app.RateLimiter = ratelimit.NewTokenBucketLimiter(app.redisClient)
	}

	metrics.RegisterCacheCollector(app.Cache)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.TracingMiddleware(cfg.Tracing.ServiceName),
	)
	app.Engine = engine

	return app, nil
}

// Start performs the first certificate fetch and schedules refreshes.
// An unreachable Redis is logged; the limiter fails open.
func (a *Application) Start(ctx context.Context) error {
	if a.redisClient != nil {
		if err := providers.Ping(ctx, a.redisClient, 2*time.Second); err != nil {
			a.Logger.Warn("redis unreachable; failed-auth rate limiting will fail open", "addr", a.Config.RedisAddr, "err", err)
		}
	}
	return a.Refresher.Start(ctx)
}

// Shutdown stops background work and flushes traces.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Refresher.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.TracingShutdown != nil {
		if err := a.TracingShutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
