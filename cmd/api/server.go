package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/api/handlers"
	"github.com/rights-monitor/backend/internal/metrics"
	"github.com/rights-monitor/backend/internal/middleware/ratelimit"
	"github.com/rights-monitor/backend/internal/middleware/security"
	"github.com/rights-monitor/backend/internal/middleware/validation"
	appLogger "github.com/rights-monitor/backend/pkg/logger"
)

func runServe(configPath string) error {
	cfg, err := setup(configPath)
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	appLogger.Info("Starting rights monitor API server")

	d, err := build(cfg)
	if err != nil {
		appLogger.Error("Failed to initialize", zap.Error(err))
		return err
	}
	defer d.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Client-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
		Logger:          appLogger.GetLogger(),
	}))

	newsHandler := handlers.NewNewsHandler(d.orchestrator, d.db)
	batchHandler := handlers.NewBatchHandler(d.processor)
	healthHandler := handlers.NewHealthHandler(d.supervisor, d.cachePinger())
	analysisHandler := handlers.NewAnalysisHandler(d.db)
	cacheHandler := handlers.NewCacheHandler(d.cache)
	wsHandler := handlers.NewWebSocketHandler(d.orchestrator, 15*time.Second)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Post("/news/process", newsHandler.Process)
	api.Post("/news/details", newsHandler.Details)
	api.Get("/news/process/ws", handlers.Upgrade, websocket.New(wsHandler.HandleProcess))
	api.Get("/rights", newsHandler.Rights)

	api.Get("/analysis", analysisHandler.List)
	api.Get("/analysis-right", analysisHandler.ListRights)

	api.Post("/batches", batchHandler.CreateBatch)
	api.Get("/batches/:id", batchHandler.GetBatch)

	api.Delete("/cache", cacheHandler.Invalidate)

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		appLogger.Error("Server failed to start", zap.Error(err))
		return err
	case <-quit:
	}

	appLogger.Info("Server shutting down gracefully...")
	if err := app.Shutdown(); err != nil {
		appLogger.Warn("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")

	return nil
}
