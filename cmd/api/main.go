package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/crudgate/internal/api"
	"github.com/timmy/crudgate/internal/api/middleware"
	"github.com/timmy/crudgate/internal/config"
	"github.com/timmy/crudgate/internal/correlation"
	"github.com/timmy/crudgate/internal/httpclient"
	"github.com/timmy/crudgate/internal/logger"
	"github.com/timmy/crudgate/internal/masking"
	"github.com/timmy/crudgate/internal/metrics"
	"github.com/timmy/crudgate/internal/repository"
	"github.com/timmy/crudgate/internal/service"
	"github.com/timmy/crudgate/internal/sink"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.NewFromEnv(cfg.Logging.EnvConfig())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to access database handle")
	}
	defer sqlDB.Close()

	logRepo := repository.NewLogRepository(db)

	// Log pipeline
	m := metrics.New()
	masker := masking.New(cfg.Masking.Options(), masking.WithFallbackHook(m.MaskingFallback))
	factory := correlation.NewFactory()

	sinks := []sink.Sink{sink.NewLoggerSink(appLogger)}
	if cfg.Logging.PersistLogs {
		sinks = append(sinks, sink.NewDBSink(logRepo))
	}

	logService := service.NewLogService(masker, sink.NewMulti(sinks...), factory, m, appLogger, &service.LogServiceConfig{
		Layer:         cfg.Server.Layer,
		SlowThreshold: time.Duration(cfg.Logging.SlowMs) * time.Millisecond,
	})

	upstream := httpclient.New(&httpclient.Config{
		BaseURL:      cfg.Upstream.BaseURL,
		Timeout:      cfg.Upstream.Timeout,
		RetryCount:   cfg.Upstream.RetryCount,
		RetryWait:    cfg.Upstream.RetryWait,
		RetryMaxWait: cfg.Upstream.RetryMaxWait,
	}, logService, appLogger)
	if cfg.Upstream.BaseURL == "" {
		appLogger.Warn("Upstream base URL not configured, forwarding disabled")
	}

	appLogger.WithFields(logger.Fields{
		"host":           factory.Host().Name,
		"masking_fields": len(masker.Fields()),
		"persist_logs":   cfg.Logging.PersistLogs,
	}).Info("Log pipeline ready")

	// Setup router
	router := api.SetupRouter(&api.Dependencies{
		Factory:  factory,
		Logs:     logService,
		Query:    service.NewLogQueryService(logRepo),
		Upstream: upstream,
		Metrics:  m,
		DB:       sqlDB,
	}, &api.RouterConfig{
		Mode:         cfg.Server.Mode,
		MaxBodyBytes: cfg.Logging.MaxBodyBytes,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
