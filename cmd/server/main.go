// Package main provides the entry point for the examprep HTTP server.
// It loads configuration, wires services through the DI container and serves the API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"examprep/internal/config"
	"examprep/internal/di"
	"examprep/internal/handlers"
	"examprep/internal/observability"
	contextutils "examprep/internal/utils"

	"github.com/joho/godotenv"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	server    *http.Server
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	recordService, err := container.GetRecordService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get record service")
	}

	mistakeService, err := container.GetMistakeService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get mistake service")
	}

	statisticsService, err := container.GetStatisticsService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get statistics service")
	}

	exportService, err := container.GetExportService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get export service")
	}

	cfg := container.GetConfig()
	router := handlers.NewRouter(cfg, recordService, mistakeService, statisticsService, exportService, container.GetLogger())

	return &Application{
		container: container,
		server: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: config.DefaultHTTPTimeout,
		},
	}, nil
}

// Run serves HTTP until the server is shut down or fails
func (a *Application) Run() error {
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return contextutils.WrapError(err, "server failed")
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and releases the container
func (a *Application) Shutdown(ctx context.Context) error {
	serverErr := a.server.Shutdown(ctx)
	containerErr := a.container.Shutdown(ctx)
	return errors.Join(serverErr, containerErr)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// .env is optional
	_ = godotenv.Load()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tp, mp, logger, err := observability.SetupObservabilityWithLevel(&cfg.OpenTelemetry, handlers.ServiceName, observability.ParseLevel(cfg.Server.LogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer shutdownCancel()
		observability.ShutdownProviders(shutdownCtx, tp, mp, logger)
	}()

	logger.Info(ctx, "Starting examprep server", map[string]interface{}{
		"port":            cfg.Server.Port,
		"logLevel":        cfg.Server.LogLevel,
		"storage_backend": cfg.Storage.Backend,
		"db_url":          contextutils.MaskDSN(cfg.Database.URL),
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		_ = container.Shutdown(ctx)
		os.Exit(1)
	}

	appErr := make(chan error, 1)
	go func() {
		appErr <- app.Run()
	}()

	select {
	case <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", nil)
	case err := <-appErr:
		if err != nil {
			logger.Error(ctx, "Application failed", err, nil)
			_ = container.Shutdown(ctx)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during application shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(ctx, "Shutdown completed successfully", nil)
}
