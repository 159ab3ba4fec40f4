// Package main provides the entry point for the examprep statistics worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"examprep/internal/config"
	"examprep/internal/di"
	"examprep/internal/observability"
	contextutils "examprep/internal/utils"
	"examprep/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// fatalIfErr logs the error with context and panics with a consistent message
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	panic(msg + ": " + err.Error())
}

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	tp, mp, logger, err := observability.SetupObservabilityWithLevel(&cfg.OpenTelemetry, worker.ServiceName, observability.ParseLevel(cfg.Server.LogLevel))
	if err != nil {
		panic("Failed to initialize observability: " + err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.WorkerShutdownTimeout)
		defer cancel()
		observability.ShutdownProviders(shutdownCtx, tp, mp, logger)
	}()

	logger.Info(ctx, "Starting examprep worker", map[string]interface{}{
		"port":             cfg.Server.WorkerPort,
		"refresh_enabled":  cfg.Statistics.RefreshEnabled,
		"refresh_interval": cfg.Statistics.RefreshInterval.String(),
		"db_url":           contextutils.MaskDSN(cfg.Database.URL),
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		fatalIfErr(ctx, logger, "Failed to initialize services", err, nil)
	}
	defer func() {
		if err := container.Shutdown(context.Background()); err != nil {
			logger.Warn(ctx, "Warning: failed to shut down services", map[string]interface{}{"error": err.Error()})
		}
	}()

	statisticsService, err := container.GetStatisticsService()
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to get statistics service", err, nil)
	}

	workerInstance := worker.NewWorker(statisticsService, "default", cfg, logger)
	if err := workerInstance.Start(ctx); err != nil {
		fatalIfErr(ctx, logger, "Failed to start worker", err, nil)
	}

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.WorkerPort,
		Handler:           workerInstance.Handler(),
		ReadHeaderTimeout: config.DefaultHTTPTimeout,
	}

	go func() {
		logger.Info(ctx, "Worker server starting", map[string]interface{}{"port": cfg.Server.WorkerPort})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatalIfErr(ctx, logger, "Failed to start worker server", err, map[string]interface{}{"port": cfg.Server.WorkerPort})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Worker server shutting down", map[string]interface{}{"service": worker.ServiceName})

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, config.WorkerShutdownTimeout)
	defer shutdownCancel()

	if err := workerInstance.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Warning: failed to shutdown worker", map[string]interface{}{"error": err.Error(), "service": worker.ServiceName})
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Worker server forced to shutdown", err, map[string]interface{}{"service": worker.ServiceName})
	}

	logger.Info(ctx, "Worker server exited", map[string]interface{}{"service": worker.ServiceName})
}
