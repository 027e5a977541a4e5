package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Yulian302/lfusys-services-handshake/auth/handlers"
	"github.com/Yulian302/lfusys-services-handshake/health"
	"github.com/Yulian302/lfusys-services-handshake/logging"
	"github.com/Yulian302/lfusys-services-handshake/middleware"
	"github.com/Yulian302/lfusys-services-handshake/ratelimit"
	"github.com/Yulian302/lfusys-services-handshake/responses"
	"github.com/Yulian302/lfusys-services-handshake/routers"
	"github.com/Yulian302/lfusys-services-handshake/tracing"
)

func BuildRouter(app *App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	applyCors(r, app)
	applyTracing(r, app)
	applyLogging(r, app)
	applyRateLimiting(r, app)

	registerRoutes(r, app, app.Services)

	return r
}

func applyCors(r *gin.Engine, app *App) {
	origins := strings.Split(app.Config.CorsConfig.Origins, ",")
	r.Use(cors.New(
		cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
			AllowCredentials: true,
		},
	))
}

func applyLogging(r *gin.Engine, app *App) {
	r.Use(logging.LoggerMiddleware(app.Logger))
}

func applyRateLimiting(r *gin.Engine, app *App) {
	rateLimiter := ratelimit.NewRedisRateLimiter(app.Redis)
	r.Use(middleware.RateLimiterMiddleware(rateLimiter, app.Config.RateLimitConfig.Limit, app.Config.RateLimitConfig.Window))
}

func applyTracing(r *gin.Engine, app *App) {
	if !app.Config.Tracing {
		return
	}

	tp, err := tracing.StartTracing(context.Background(), app.Config.ServiceName)
	if err != nil {
		app.Logger.Error("failed to start tracing, continuing without it", slog.Any("err", err))
		return
	}

	app.TracerProvider = tp
	r.Use(otelgin.Middleware(app.Config.ServiceName))
}

func registerRoutes(r *gin.Engine, app *App, s *Services) {
	r.GET("/test", func(ctx *gin.Context) {
		responses.JSONSuccess(ctx, "ok")
	})

	health.RegisterHealthRoutes(
		health.NewHealthHandler(
			s.Stores.state,
			s.Stores.users,
		),
		r,
	)

	cfg := app.Config
	cookies := handlers.CookieConfig{
		Secure:     cfg.IsProd(),
		AccessTTL:  cfg.JWTConfig.AccessTTL,
		RefreshTTL: cfg.JWTConfig.RefreshTTL,
	}

	routers.RegisterAuthRoutes(
		handlers.NewOAuthHandler(handlers.OAuthConfig{
			AppOrigin:        cfg.AppOrigin,
			FrontendURL:      cfg.FrontendURL,
			LoginURL:         cfg.LoginURL,
			Providers:        s.Registry.Names(),
			FallbackProvider: cfg.OAuthConfig.FallbackProvider,
			Cookies:          cookies,
		}, s.Auth, s.Bus, s.Stores.state),
		handlers.NewSessionHandler(s.Auth, cookies),
		cfg.JWTConfig.SecretKey,
		r,
	)
}
