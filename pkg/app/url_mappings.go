package app

import (
	"github.com/osvaldoandrade/tokengate/internal/controllers"
	"github.com/osvaldoandrade/tokengate/internal/middleware"
	"github.com/osvaldoandrade/tokengate/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	health := controllers.NewHealthController(app.Cache)
	app.Engine.GET("/healthz", health.Live)
	app.Engine.GET("/readyz", health.Ready)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	bucket := ratelimit.Bucket{
		RequestsPerMinute: app.Config.RateLimit.FailedAuthPerMinute,
		BurstSize:         app.Config.RateLimit.FailedAuthBurst,
	}
	v1 := app.Engine.Group("/v1",
		middleware.RateLimitFailedAuth(app.RateLimiter, bucket, app.Logger),
		middleware.AuthMiddleware(app.Authenticator, app.Logger),
	)
	{
		v1.GET("/me", controllers.NewWhoAmIController().Handle)
	}
}
