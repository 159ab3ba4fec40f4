// Package storage provides the key-value persistence the record log and the
// statistics cache are written to.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"examprep/internal/config"
	"examprep/internal/database"
	"examprep/internal/observability"
	contextutils "examprep/internal/utils"

	"github.com/jmoiron/sqlx"
)

// ErrKeyNotFound is returned by Get when nothing is stored under a key
var ErrKeyNotFound = contextutils.NewAppError(
	contextutils.ErrorCodeRecordNotFound,
	contextutils.SeverityInfo,
	"Key not found",
	"",
)

// KeyValueStore holds opaque values under string keys. A Put replaces the whole value.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys starting with prefix, in ascending order
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// GetJSON decodes the value under key into dst. A value that does not decode is
// reported as ErrStorageCorrupt.
func GetJSON(ctx context.Context, store KeyValueStore, key string, dst interface{}) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeStorageCorrupt,
			contextutils.SeverityWarn,
			"Stored value is corrupt",
			fmt.Sprintf("key %q", key),
			err,
		)
	}
	return nil
}

// PutJSON encodes value and stores it under key
func PutJSON(ctx context.Context, store KeyValueStore, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to encode value for key %s", key)
	}
	return store.Put(ctx, key, data)
}

// IsNotFound reports whether err means the key is absent
func IsNotFound(err error) bool {
	return contextutils.GetErrorCode(err) == contextutils.ErrorCodeRecordNotFound
}

// Backend is an opened storage backend. DB is nil for the memory backend.
type Backend struct {
	Store KeyValueStore
	DB    *sqlx.DB
	close func() error
}

// Close releases the database connection, if any
func (b *Backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// Open builds the backend selected by cfg.Storage.Backend
func Open(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Backend, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMemory, "":
		return &Backend{Store: NewMemoryStore()}, nil
	case config.StorageBackendSQL:
		dm := database.NewManager(logger)
		db, err := dm.InitDB(ctx, cfg.Database)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to initialize storage database")
		}
		sqlxDB := database.NewSQLX(db, cfg.Database.Driver)
		return &Backend{
			Store: NewSQLStore(sqlxDB, logger),
			DB:    sqlxDB,
			close: db.Close,
		}, nil
	default:
		return nil, contextutils.NewAppError(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityFatal,
			"Unsupported storage backend",
			cfg.Storage.Backend,
		)
	}
}
