package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"examprep/internal/observability"
	contextutils "examprep/internal/utils"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

// SQLStore is a KeyValueStore backed by the kv_store table
type SQLStore struct {
	db     *sqlx.DB
	logger *observability.Logger
}

// NewSQLStore creates a store over an open database with migrations applied
func NewSQLStore(db *sqlx.DB, logger *observability.Logger) *SQLStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &SQLStore{db: db, logger: logger}
}

// Get returns the value under key
func (s *SQLStore) Get(ctx context.Context, key string) (result0 []byte, err error) {
	ctx, span := observability.TraceStorageFunction(ctx, "Get", observability.AttributeStorageKey(key))
	defer observability.FinishSpan(span, &err)

	var value string
	err = s.db.GetContext(ctx, &value, s.db.Rebind(`SELECT store_value FROM kv_store WHERE store_key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("storage.found", false))
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to read key %s: %v", key, err)
	}

	span.SetAttributes(attribute.Bool("storage.found", true), attribute.Int("storage.value_size", len(value)))
	return []byte(value), nil
}

// Put upserts value under key
func (s *SQLStore) Put(ctx context.Context, key string, value []byte) (err error) {
	ctx, span := observability.TraceStorageFunction(ctx, "Put",
		observability.AttributeStorageKey(key),
		attribute.Int("storage.value_size", len(value)),
	)
	defer observability.FinishSpan(span, &err)

	query := s.db.Rebind(`
		INSERT INTO kv_store (store_key, store_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (store_key)
		DO UPDATE SET store_value = excluded.store_value, updated_at = excluded.updated_at
	`)

	if _, err = s.db.ExecContext(ctx, query, key, string(value), time.Now().UTC()); err != nil {
		s.logger.Error(ctx, "Failed to write storage key", err, map[string]interface{}{"key": key})
		return contextutils.WrapErrorf(contextutils.ErrStorageWrite, "failed to write key %s: %v", key, err)
	}
	return nil
}

// Delete removes key
func (s *SQLStore) Delete(ctx context.Context, key string) (err error) {
	ctx, span := observability.TraceStorageFunction(ctx, "Delete", observability.AttributeStorageKey(key))
	defer observability.FinishSpan(span, &err)

	if _, err = s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM kv_store WHERE store_key = ?`), key); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrStorageWrite, "failed to delete key %s: %v", key, err)
	}
	return nil
}

// Keys lists keys starting with prefix
func (s *SQLStore) Keys(ctx context.Context, prefix string) (result0 []string, err error) {
	ctx, span := observability.TraceStorageFunction(ctx, "Keys", attribute.String("storage.prefix", prefix))
	defer observability.FinishSpan(span, &err)

	keys := []string{}
	query := s.db.Rebind(`SELECT store_key FROM kv_store WHERE store_key LIKE ? ESCAPE '\' ORDER BY store_key`)
	if err = s.db.SelectContext(ctx, &keys, query, escapeLike(prefix)+"%"); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list keys with prefix %s: %v", prefix, err)
	}

	span.SetAttributes(observability.AttributeCount(len(keys)))
	return keys, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
