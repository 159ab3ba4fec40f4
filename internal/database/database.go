// Package database provides database connection and migration functionality.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"examprep/internal/config"
	"examprep/internal/observability"
	contextutils "examprep/internal/utils"

	"github.com/jmoiron/sqlx"

	// Database drivers for database/sql
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// OpenTelemetry SQL instrumentation
	"go.nhat.io/otelsql"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

//go:embed migrations/postgres/*.sql migrations/sqlite3/*.sql
var migrationsFS embed.FS

// Manager handles database operations with proper logging
type Manager struct {
	logger *observability.Logger
}

var (
	otelDriverMu    sync.Mutex
	otelDriverNames = map[string]string{}
)

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger) *Manager {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Manager{
		logger: logger,
	}
}

// DefaultDatabaseConfig returns the default pool settings for a driver
func DefaultDatabaseConfig(driver, databaseURL string) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:          driver,
		URL:             databaseURL,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: config.DatabaseConnMaxLifetime,
	}
}

// InitDB initializes and returns a database connection with migrations applied
func (dm *Manager) InitDB(ctx context.Context, cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "InitDB",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
		attribute.String("db.system", cfg.Driver),
		attribute.Bool("migrations.enabled", true),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
		attribute.String("db.conn_max_lifetime", cfg.ConnMaxLifetime.String()),
	)
	defer observability.FinishSpan(span, &err)

	db, err := dm.InitDBWithoutMigrations(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := dm.RunMigrations(ctx, db, cfg.Driver); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after migration failure", closeErr)
		}
		return nil, err
	}

	return db, nil
}

// extractDatabaseName extracts the database name from a PostgreSQL URL or SQLite DSN
func extractDatabaseName(databaseURL string) string {
	if strings.Contains(databaseURL, ":memory:") || strings.Contains(databaseURL, "mode=memory") {
		return "memory"
	}

	if u, err := url.Parse(databaseURL); err == nil {
		if u.Scheme == "file" && u.Opaque != "" {
			return strings.TrimSuffix(filepath.Base(u.Opaque), filepath.Ext(u.Opaque))
		}
		if dbName := strings.TrimPrefix(u.Path, "/"); dbName != "" && u.Scheme != "" {
			return dbName
		}
	}

	// Plain sqlite file path
	if path := strings.SplitN(databaseURL, "?", 2)[0]; path != "" {
		base := filepath.Base(path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}

	return "examprep"
}

// instrumentedDriver registers the otelsql wrapper for a base driver once per process
func instrumentedDriver(driver, dbName string) (string, error) {
	otelDriverMu.Lock()
	defer otelDriverMu.Unlock()

	if name, ok := otelDriverNames[driver]; ok {
		return name, nil
	}

	system := semconv.DBSystemPostgreSQL
	if driver == config.DriverSQLite {
		system = semconv.DBSystemSqlite
	}

	name, err := otelsql.Register(driver,
		otelsql.WithDatabaseName(dbName),
		otelsql.TraceQueryWithArgs(),
		otelsql.WithSystem(system),
		otelsql.TraceRowsAffected(),
	)
	if err != nil {
		return "", err
	}
	otelDriverNames[driver] = name
	return name, nil
}

// InitDBWithoutMigrations initializes and returns a database connection without running migrations
func (dm *Manager) InitDBWithoutMigrations(ctx context.Context, cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "InitDBWithoutMigrations",
		attribute.String("db.system", cfg.Driver),
		attribute.String("database.url", contextutils.MaskDSN(cfg.URL)),
	)
	defer observability.FinishSpan(span, &err)

	switch cfg.Driver {
	case config.DriverPostgres, config.DriverSQLite:
	default:
		return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityError,
			"unsupported database driver", cfg.Driver)
	}

	driverName, err := instrumentedDriver(cfg.Driver, extractDatabaseName(cfg.URL))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to register otelsql driver")
	}

	db, err := sql.Open(driverName, cfg.URL)
	if err != nil {
		return nil, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeDatabaseConnection, contextutils.SeverityError,
			"failed to open database connection", contextutils.MaskDSN(cfg.URL), err)
	}

	// SQLite allows a single writer; in-memory databases also exist per connection
	if cfg.Driver == config.DriverSQLite {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 && cfg.Driver != config.DriverSQLite {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.DatabasePingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return nil, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeDatabaseConnection, contextutils.SeverityError,
			"failed to ping database", contextutils.MaskDSN(cfg.URL), err)
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"driver":            cfg.Driver,
		"url":               contextutils.MaskDSN(cfg.URL),
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})

	return db, nil
}

// RunMigrations applies the embedded migrations for the driver's dialect
func (dm *Manager) RunMigrations(ctx context.Context, db *sql.DB, driver string) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "RunMigrations",
		attribute.String("db.system", driver),
		attribute.String("migration.type", "golang_migrate"),
	)
	defer observability.FinishSpan(span, &err)

	dm.logger.Info(ctx, "Starting database migrations...", map[string]interface{}{"driver": driver})

	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to open embedded migrations for %s", driver)
	}

	var (
		target  migratedb.Driver
		release func()
	)
	switch driver {
	case config.DriverPostgres:
		// A dedicated connection keeps migrate from closing the shared pool
		conn, connErr := db.Conn(ctx)
		if connErr != nil {
			_ = src.Close()
			return contextutils.WrapError(connErr, "failed to acquire migration connection")
		}
		target, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
		release = func() {
			if closeErr := target.Close(); closeErr != nil {
				dm.logger.Error(ctx, "Error closing migration connection", closeErr)
			}
		}
		if err != nil {
			_ = conn.Close()
		}
	case config.DriverSQLite:
		// sqlite3 instances close the pool on Close, so only the source is released
		target, err = sqlite3.WithInstance(db, &sqlite3.Config{})
		release = func() {}
	default:
		err = contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityError, "unsupported database driver", driver)
	}
	if err != nil {
		_ = src.Close()
		return contextutils.WrapError(err, "failed to initialize golang-migrate driver")
	}
	defer release()
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Error closing migration source", closeErr)
		}
	}()

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return contextutils.WrapError(err, "failed to initialize golang-migrate")
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return contextutils.NewAppErrorWithCause(contextutils.ErrorCodeDatabaseQuery, contextutils.SeverityError,
			"golang-migrate up failed", err.Error(), err)
	}

	version, dirty, verr := m.Version()
	if verr == nil {
		span.SetAttributes(attribute.Int("migration.version", int(version)), attribute.Bool("migration.dirty", dirty))
	}

	if errors.Is(err, migrate.ErrNoChange) {
		dm.logger.Info(ctx, "No new golang-migrate migrations to apply.")
	} else {
		dm.logger.Info(ctx, "golang-migrate migrations applied successfully.", map[string]interface{}{"version": version})
	}
	return nil
}

// NewSQLX wraps an open connection for sqlx with the bind style of the driver
func NewSQLX(db *sql.DB, driver string) *sqlx.DB {
	return sqlx.NewDb(db, driver)
}
