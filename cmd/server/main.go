package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trailsocial/engagement/internal/config"
	"github.com/trailsocial/engagement/internal/container"
	"github.com/trailsocial/engagement/internal/handlers"
	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/metrics"
	"github.com/trailsocial/engagement/internal/middleware"
	"github.com/trailsocial/engagement/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Initialize(logger.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
		JSON:  cfg.Log.JSON,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== Trail engagement service starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("database_driver", cfg.Database.Driver),
	)

	tp, err := telemetry.InitTracer(cfg.Telemetry, cfg.Environment)
	if err != nil {
		logger.Log.Warn("Tracing disabled", zap.Error(err))
	}

	metrics.Initialize()

	app, err := container.Build(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to build service", zap.Error(err))
	}
	if tp != nil {
		app.OnCleanup(tp.Shutdown)
	}

	// Content tables belong to the CRUD service in production.
	if err := app.Migrate(cfg.Database.Driver == "sqlite"); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	if cfg.Telemetry.Enabled {
		r.Use(middleware.TracingMiddleware(cfg.Telemetry.ServiceName))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.OptionalAuth(app.TokenValidator()))

	resolver := app.Resolver()
	counter := app.WindowCounter()
	viewLimit := middleware.ViewRateLimitConfig(cfg.RateLimit.Views, cfg.RateLimit.Window)
	viewLimit.KeyFunc = middleware.ClientKey(resolver)
	clapLimit := middleware.ClapRateLimitConfig(cfg.RateLimit.Claps, cfg.RateLimit.Window)
	clapLimit.KeyFunc = middleware.ClientKey(resolver)

	app.Handlers().RegisterRoutes(r, handlers.RouteOptions{
		ViewLimit: middleware.RateLimit(viewLimit, counter),
		ClapLimit: middleware.RateLimit(clapLimit, counter),
		Redis:     app.HealthPinger(),
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Engagement service listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := app.Cleanup(ctx); err != nil {
		logger.Log.Warn("Cleanup incomplete", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}
