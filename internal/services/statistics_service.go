package services

import (
	"context"
	"strings"
	"sync"

	"examprep/internal/config"
	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/storage"
	contextutils "examprep/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// StatisticsServiceInterface defines the interface for the statistics cache
type StatisticsServiceInterface interface {
	GetStatistics(ctx context.Context, userID string) (*models.UserStatistics, error)
	Update(ctx context.Context, record *models.AttemptRecord) error
	Invalidate(ctx context.Context, userID string) error
	Recompute(ctx context.Context, userID string) (*models.UserStatistics, error)
	RefreshAll(ctx context.Context) (int, error)
}

// Reasons passed to the recompute counter
const (
	recomputeCacheMiss = "cache_miss"
	recomputeCorrupt   = "corrupt"
	recomputeManual    = "manual"
	recomputeScheduled = "scheduled"
)

// StatisticsService keeps one cached UserStatistics per user, patched on every
// save and fully recomputed when the cache is missing or unreadable
type StatisticsService struct {
	mu        sync.Mutex
	store     storage.KeyValueStore
	log       *RecordLog
	keyPrefix string
	opts      StatisticsOptions
	metrics   *observability.DomainMetrics
	logger    *observability.Logger
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(store storage.KeyValueStore, log *RecordLog, keyPrefix string, opts StatisticsOptions, metrics *observability.DomainMetrics, logger *observability.Logger) *StatisticsService {
	if store == nil {
		panic("store cannot be nil")
	}
	if log == nil {
		panic("record log cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if keyPrefix == "" {
		keyPrefix = config.DefaultStatsKeyPrefix
	}
	return &StatisticsService{
		store:     store,
		log:       log,
		keyPrefix: keyPrefix,
		opts:      opts.withDefaults(),
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *StatisticsService) key(userID string) string {
	return s.keyPrefix + userID
}

// loadCached returns the cached statistics, or a non-nil error carrying
// ErrorCodeRecordNotFound or ErrorCodeStorageCorrupt
func (s *StatisticsService) loadCached(ctx context.Context, userID string) (*models.UserStatistics, error) {
	var stats models.UserStatistics
	if err := storage.GetJSON(ctx, s.store, s.key(userID), &stats); err != nil {
		return nil, err
	}
	stats.EnsureCollections()
	return &stats, nil
}

// recompute rebuilds a user's statistics from the record log and caches them.
// A user without records is not cached and any stale entry is dropped.
// Callers hold s.mu.
func (s *StatisticsService) recompute(ctx context.Context, userID, reason string) *models.UserStatistics {
	records, err := s.log.Load(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Recomputing statistics from a partially readable record log", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	stats := CalculateStatistics(records, userID, s.opts)
	if !hasRecordsFor(records, userID) {
		if derr := s.store.Delete(ctx, s.key(userID)); derr != nil {
			s.logger.Warn(ctx, "Failed to drop cached statistics", map[string]interface{}{"user_id": userID, "error": derr.Error()})
		}
	} else if perr := storage.PutJSON(ctx, s.store, s.key(userID), stats); perr != nil {
		s.logger.Error(ctx, "Failed to cache recomputed statistics", perr, map[string]interface{}{"user_id": userID})
	}

	s.metrics.StatisticsRecomputed(ctx, reason)
	s.logger.Debug(ctx, "Recomputed statistics", map[string]interface{}{
		"user_id":         userID,
		"reason":          reason,
		"total_exercises": stats.TotalExercises,
	})
	return stats
}

// GetStatistics returns the cached statistics, recomputing them when the cache is
// missing or corrupt. A user without records gets zero-valued statistics.
func (s *StatisticsService) GetStatistics(ctx context.Context, userID string) (result0 *models.UserStatistics, err error) {
	ctx, span := observability.TraceStatisticsFunction(ctx, "GetStatistics", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if userID == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "userId is required for statistics")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stats, cerr := s.loadCached(ctx, userID)
	if cerr == nil {
		span.SetAttributes(attribute.Bool("statistics.cached", true))
		return stats, nil
	}

	reason := recomputeCacheMiss
	if !storage.IsNotFound(cerr) {
		reason = recomputeCorrupt
		s.logger.Warn(ctx, "Cached statistics unreadable, recomputing", map[string]interface{}{
			"user_id": userID,
			"error":   cerr.Error(),
		})
	}
	span.SetAttributes(attribute.Bool("statistics.cached", false), attribute.String("statistics.recompute_reason", reason))
	return s.recompute(ctx, userID, reason), nil
}

// Update folds a newly saved record into its owner's cached statistics. Without a
// usable cache the statistics are recomputed from the log, which already holds the
// record, so it is not applied a second time. The same holds when a concurrent read
// rebuilt the cache between the save and this call.
func (s *StatisticsService) Update(ctx context.Context, record *models.AttemptRecord) (err error) {
	if record == nil {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "record is required")
	}
	ctx, span := observability.TraceStatisticsFunction(ctx, "Update",
		observability.AttributeUserID(record.UserID),
		observability.AttributeRecordID(record.ID),
		observability.AttributeRecordType(record.Type),
	)
	defer observability.FinishSpan(span, &err)

	if !record.Type.IsScored() {
		span.SetAttributes(attribute.Bool("statistics.skipped", true))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stats, cerr := s.loadCached(ctx, record.UserID)
	if cerr != nil {
		reason := recomputeCacheMiss
		if !storage.IsNotFound(cerr) {
			reason = recomputeCorrupt
		}
		s.recompute(ctx, record.UserID, reason)
		return nil
	}

	if !ApplyRecord(stats, record, s.opts) {
		span.SetAttributes(attribute.Bool("statistics.already_counted", true))
		return nil
	}
	if err = storage.PutJSON(ctx, s.store, s.key(record.UserID), stats); err != nil {
		return contextutils.WrapErrorf(err, "failed to cache statistics for user %s", record.UserID)
	}
	s.metrics.StatisticsUpdated(ctx)
	return nil
}

// Invalidate drops a user's cached statistics
func (s *StatisticsService) Invalidate(ctx context.Context, userID string) (err error) {
	ctx, span := observability.TraceStatisticsFunction(ctx, "Invalidate", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx, s.key(userID))
}

// Recompute rebuilds a user's statistics, topic rankings included
func (s *StatisticsService) Recompute(ctx context.Context, userID string) (result0 *models.UserStatistics, err error) {
	ctx, span := observability.TraceStatisticsFunction(ctx, "Recompute", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if userID == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "userId is required for statistics")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recompute(ctx, userID, recomputeManual), nil
}

// RefreshAll recomputes statistics for every user with records or a cached entry
// and returns how many users were refreshed
func (s *StatisticsService) RefreshAll(ctx context.Context) (result0 int, err error) {
	ctx, span := observability.TraceStatisticsFunction(ctx, "RefreshAll")
	defer observability.FinishSpan(span, &err)

	users := map[string]struct{}{}
	records, lerr := s.log.Load(ctx)
	if lerr != nil {
		s.logger.Warn(ctx, "Record log partially readable during refresh", map[string]interface{}{"error": lerr.Error()})
	}
	for _, r := range records {
		if r.UserID != "" {
			users[r.UserID] = struct{}{}
		}
	}

	keys, err := s.store.Keys(ctx, s.keyPrefix)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to list cached statistics")
	}
	for _, k := range keys {
		if id := strings.TrimPrefix(k, s.keyPrefix); id != "" {
			users[id] = struct{}{}
		}
	}

	for userID := range users {
		if ctx.Err() != nil {
			return 0, contextutils.WrapError(ctx.Err(), "statistics refresh interrupted")
		}
		s.mu.Lock()
		s.recompute(ctx, userID, recomputeScheduled)
		s.mu.Unlock()
	}

	span.SetAttributes(observability.AttributeCount(len(users)))
	s.logger.Info(ctx, "Refreshed statistics", map[string]interface{}{"users": len(users)})
	return len(users), nil
}

func hasRecordsFor(records []models.AttemptRecord, userID string) bool {
	for i := range records {
		if records[i].UserID == userID {
			return true
		}
	}
	return false
}
