// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"sync"

	"examprep/internal/config"
	"examprep/internal/observability"
	"examprep/internal/services"
	"examprep/internal/storage"
	contextutils "examprep/internal/utils"
)

// Service names registered in the container
const (
	ServiceRecords    = "records"
	ServiceStatistics = "statistics"
	ServiceMistakes   = "mistakes"
	ServiceExport     = "export"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetRecordService() (services.RecordServiceInterface, error)
	GetStatisticsService() (services.StatisticsServiceInterface, error)
	GetMistakeService() (services.MistakeServiceInterface, error)
	GetExportService() (services.ExportServiceInterface, error)
	GetStore() storage.KeyValueStore
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	backend       *storage.Backend
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize opens storage and sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	backend, err := storage.Open(ctx, sc.cfg, sc.logger)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to open %s storage", sc.cfg.Storage.Backend)
	}
	sc.backend = backend
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return backend.Close()
	})

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return err
	}

	if err := sc.startupServices(ctx); err != nil {
		// Cleanup on failure
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to startup services")
	}

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetRecordService returns the attempt record store
func (sc *ServiceContainer) GetRecordService() (services.RecordServiceInterface, error) {
	return GetServiceAs[services.RecordServiceInterface](sc, ServiceRecords)
}

// GetStatisticsService returns the statistics cache
func (sc *ServiceContainer) GetStatisticsService() (services.StatisticsServiceInterface, error) {
	return GetServiceAs[services.StatisticsServiceInterface](sc, ServiceStatistics)
}

// GetMistakeService returns the mistake service
func (sc *ServiceContainer) GetMistakeService() (services.MistakeServiceInterface, error) {
	return GetServiceAs[services.MistakeServiceInterface](sc, ServiceMistakes)
}

// GetExportService returns the export service
func (sc *ServiceContainer) GetExportService() (services.ExportServiceInterface, error) {
	return GetServiceAs[services.ExportServiceInterface](sc, ServiceExport)
}

// GetStore returns the key-value store, or nil before Initialize
func (sc *ServiceContainer) GetStore() storage.KeyValueStore {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sc.backend == nil {
		return nil
	}
	return sc.backend.Store
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// startupServices starts all services that implement a Startup method
func (sc *ServiceContainer) startupServices(ctx context.Context) error {
	for name, service := range sc.services {
		if lifecycleService, ok := service.(interface{ Startup(context.Context) error }); ok {
			sc.logger.Info(ctx, "Starting service", map[string]interface{}{"service": name})
			if err := lifecycleService.Startup(ctx); err != nil {
				return contextutils.WrapErrorf(err, "failed to startup service %s", name)
			}
			sc.logger.Info(ctx, "Service started successfully", map[string]interface{}{"service": name})
		}
	}
	return nil
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	for name := range sc.services {
		if lifecycleService, ok := sc.services[name].(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errors = append(errors, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			}
		}
	}

	// Shutdown in reverse order of initialization
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	metrics, err := observability.NewDomainMetrics()
	if err != nil {
		// Metrics are optional; the services accept a nil recorder
		sc.logger.Warn(ctx, "Domain metrics unavailable", map[string]interface{}{"error": err.Error()})
		metrics = nil
	}

	store := sc.backend.Store
	recordLog := services.NewRecordLog(store, sc.cfg.Storage.RecordsKey)

	statisticsService := services.NewStatisticsService(store, recordLog, sc.cfg.Storage.StatsKeyPrefix,
		services.StatisticsOptionsFromConfig(sc.cfg.Statistics), metrics, sc.logger)
	sc.services[ServiceStatistics] = statisticsService

	// Record service notifies the statistics cache on every save and delete
	recordService := services.NewRecordService(recordLog, statisticsService, metrics, sc.logger)
	sc.services[ServiceRecords] = recordService

	var statusRepo services.MistakeStatusRepository
	if sc.backend.DB != nil {
		statusRepo = services.NewSQLMistakeStatusRepository(sc.backend.DB, sc.logger)
	} else {
		statusRepo = services.NewMemoryMistakeStatusRepository()
	}
	mistakeService := services.NewMistakeService(recordService, statusRepo, sc.logger)
	sc.services[ServiceMistakes] = mistakeService

	exportService := services.NewExportService(recordService, mistakeService, statisticsService,
		sc.cfg.Server.MaxImportRecords, metrics, sc.logger)
	sc.services[ServiceExport] = exportService

	return nil
}
