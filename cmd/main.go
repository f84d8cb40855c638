package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lab-dashboard/internal/app"
	"lab-dashboard/internal/config"
	"lab-dashboard/internal/logger"
	"lab-dashboard/internal/telemetry"
	"lab-dashboard/middleware"
	"lab-dashboard/routes"
	"lab-dashboard/services"

	"github.com/gin-gonic/gin"
)

const serviceName = "lab-dashboard"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.OTelEnabled {
		shutdown, err := telemetry.InitTracer(serviceName, cfg.OTelEndpoint, cfg.OTelSampleRatio)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	a, err := app.New(cfg, app.Options{Metrics: metrics, UseQueue: true})
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}
	defer a.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	if cfg.OTelEnabled {
		router.Use(middleware.TracingMiddleware(serviceName))
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))

	deps := routes.Deps{
		Chat:        a.Chat,
		Documents:   a.Documents,
		Exporter:    a.Exporter,
		Summarizer:  a.Summarizer,
		Health:      a.Health,
		MaxFileSize: cfg.MaxFileSize,
	}
	if a.Redis != nil {
		deps.RateLimit = middleware.RateLimitMiddleware(a.Redis, cfg.RateLimitReqs, time.Duration(cfg.RateLimitWindow)*time.Second)
	}
	routes.SetupRoutes(router, deps)

	// Gradual vectorization of documents that slipped past the upload path
	if a.Gemini != nil && cfg.VectorEnsureInterval > 0 {
		scheduler := services.NewScheduler(a.Documents, cfg.VectorEnsureBatch)
		if err := scheduler.ScheduleEnsure(cfg.VectorEnsureInterval); err != nil {
			logger.Error("Failed to schedule vector ensure job", "error", err)
		} else {
			scheduler.Start()
			defer scheduler.Stop()
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "backends", a.Repository.Backends())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
