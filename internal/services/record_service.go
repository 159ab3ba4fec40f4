package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"examprep/internal/models"
	"examprep/internal/observability"
	contextutils "examprep/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// RecordServiceInterface defines the interface for the attempt record store
type RecordServiceInterface interface {
	Save(ctx context.Context, record *models.AttemptRecord) (*models.AttemptRecord, error)
	List(ctx context.Context, userID string) []models.AttemptRecord
	Get(ctx context.Context, id string) (*models.AttemptRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
	ImportRecords(ctx context.Context, records []models.AttemptRecord) (imported, skipped int, err error)
	UserIDs(ctx context.Context) []string
}

// StatisticsUpdater is notified when the record log changes
type StatisticsUpdater interface {
	Update(ctx context.Context, record *models.AttemptRecord) error
	Invalidate(ctx context.Context, userID string) error
}

// RecordService stores attempt records as one collection, most recent first.
//
// Writers in this process are serialized by mu. Writers in other processes sharing
// the same store are not coordinated: each mutation rewrites the whole collection,
// so concurrent saves from two processes can drop one of the records.
type RecordService struct {
	mu      sync.Mutex
	log     *RecordLog
	stats   StatisticsUpdater
	metrics *observability.DomainMetrics
	logger  *observability.Logger
	now     func() time.Time
}

// NewRecordService creates a new record service. stats may be nil when no
// statistics cache is kept.
func NewRecordService(log *RecordLog, stats StatisticsUpdater, metrics *observability.DomainMetrics, logger *observability.Logger) *RecordService {
	if log == nil {
		panic("record log cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &RecordService{
		log:     log,
		stats:   stats,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// SetStatisticsUpdater wires the statistics cache after construction
func (s *RecordService) SetStatisticsUpdater(stats StatisticsUpdater) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

// load returns the collection, treating unreadable storage as empty
func (s *RecordService) load(ctx context.Context) []models.AttemptRecord {
	records, err := s.log.Load(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Record collection could not be fully read", map[string]interface{}{
			"key":       s.log.Key(),
			"error":     err.Error(),
			"recovered": len(records),
		})
	}
	return records
}

// Save validates and stores a new record. A missing userId yields a nil record and
// an ErrMissingRequired error. Statistics are updated afterwards; their failures are
// only logged.
func (s *RecordService) Save(ctx context.Context, record *models.AttemptRecord) (result0 *models.AttemptRecord, err error) {
	ctx, span := observability.TraceRecordFunction(ctx, "Save")
	defer observability.FinishSpan(span, &err)

	if record == nil || record.UserID == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "userId is required to save a record")
	}

	rec := *record
	rec.Normalize()
	if err = rec.Validate(); err != nil {
		return nil, err
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}
	span.SetAttributes(
		observability.AttributeUserID(rec.UserID),
		observability.AttributeRecordID(rec.ID),
		observability.AttributeRecordType(rec.Type),
		observability.AttributeExerciseID(rec.ExerciseID),
	)

	s.mu.Lock()
	records := s.load(ctx)
	for _, existing := range records {
		if existing.ID == rec.ID {
			s.mu.Unlock()
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordExists, "record %s already exists", rec.ID)
		}
	}
	records = append([]models.AttemptRecord{rec}, records...)
	err = s.log.Store(ctx, records)
	stats := s.stats
	s.mu.Unlock()

	if err != nil {
		return nil, contextutils.WrapError(err, "failed to persist record collection")
	}

	s.metrics.RecordSaved(ctx, string(rec.Type))
	s.logger.Info(ctx, "Saved attempt record", map[string]interface{}{
		"record_id":   rec.ID,
		"user_id":     rec.UserID,
		"exercise_id": rec.ExerciseID,
		"type":        string(rec.Type),
	})

	if stats != nil {
		if uerr := stats.Update(ctx, &rec); uerr != nil {
			s.logger.Error(ctx, "Failed to update statistics after save", uerr, map[string]interface{}{
				"record_id": rec.ID,
				"user_id":   rec.UserID,
			})
		}
	}

	return &rec, nil
}

// List returns every record, or only those owned by userID when it is not empty.
// The result is never nil.
func (s *RecordService) List(ctx context.Context, userID string) []models.AttemptRecord {
	ctx, span := observability.TraceRecordFunction(ctx, "List", observability.AttributeUserID(userID))
	defer span.End()

	records := filterByUser(s.load(ctx), userID)
	span.SetAttributes(observability.AttributeCount(len(records)))
	return records
}

// Get returns the record with id, or ErrRecordNotFound
func (s *RecordService) Get(ctx context.Context, id string) (result0 *models.AttemptRecord, err error) {
	ctx, span := observability.TraceRecordFunction(ctx, "Get", observability.AttributeRecordID(id))
	defer observability.FinishSpan(span, &err)

	for _, r := range s.load(ctx) {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "record %s not found", id)
}

// Delete removes the record with id and reports whether anything was removed.
// The owner's statistics cache is dropped so the next read recomputes it.
func (s *RecordService) Delete(ctx context.Context, id string) (result0 bool, err error) {
	ctx, span := observability.TraceRecordFunction(ctx, "Delete", observability.AttributeRecordID(id))
	defer observability.FinishSpan(span, &err)

	s.mu.Lock()
	records := s.load(ctx)
	idx := -1
	for i, r := range records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		span.SetAttributes(attribute.Bool("record.removed", false))
		return false, nil
	}

	removed := records[idx]
	records = append(records[:idx], records[idx+1:]...)
	err = s.log.Store(ctx, records)
	stats := s.stats
	s.mu.Unlock()

	if err != nil {
		return false, contextutils.WrapError(err, "failed to persist record collection")
	}

	span.SetAttributes(attribute.Bool("record.removed", true), observability.AttributeUserID(removed.UserID))
	s.metrics.RecordDeleted(ctx)
	s.logger.Info(ctx, "Deleted attempt record", map[string]interface{}{
		"record_id": id,
		"user_id":   removed.UserID,
	})

	if stats != nil {
		if ierr := stats.Invalidate(ctx, removed.UserID); ierr != nil {
			s.logger.Error(ctx, "Failed to invalidate statistics after delete", ierr, map[string]interface{}{
				"user_id": removed.UserID,
			})
		}
	}
	return true, nil
}

// ImportRecords merges already validated records into the collection with a single
// rewrite. Records whose id is already stored are skipped; records without an id or
// timestamp get one. The statistics cache is not touched.
func (s *RecordService) ImportRecords(ctx context.Context, records []models.AttemptRecord) (imported, skipped int, err error) {
	ctx, span := observability.TraceRecordFunction(ctx, "ImportRecords", observability.AttributeCount(len(records)))
	defer observability.FinishSpan(span, &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.load(ctx)
	seen := make(map[string]struct{}, len(existing)+len(records))
	for _, r := range existing {
		seen[r.ID] = struct{}{}
	}

	now := s.now().UTC()
	added := make([]models.AttemptRecord, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.New().String()
		} else if _, ok := seen[r.ID]; ok {
			skipped++
			continue
		}
		if r.Timestamp.IsZero() {
			r.Timestamp = now
		}
		seen[r.ID] = struct{}{}
		added = append(added, r)
	}

	if len(added) == 0 {
		return 0, skipped, nil
	}

	merged := append(added, existing...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})

	if err = s.log.Store(ctx, merged); err != nil {
		return 0, skipped, contextutils.WrapError(err, "failed to persist imported records")
	}

	span.SetAttributes(attribute.Int("import.imported", len(added)), attribute.Int("import.skipped", skipped))
	return len(added), skipped, nil
}

// UserIDs returns the distinct owners in the record log, sorted
func (s *RecordService) UserIDs(ctx context.Context) []string {
	set := map[string]struct{}{}
	for _, r := range s.load(ctx) {
		if r.UserID != "" {
			set[r.UserID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
