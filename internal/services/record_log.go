package services

import (
	"context"
	"encoding/json"
	"time"

	"examprep/internal/models"
	"examprep/internal/storage"
	contextutils "examprep/internal/utils"
)

// storedRecord is the persisted shape of an attempt record. Older entries carry
// their creation time as "date" instead of "timestamp".
type storedRecord struct {
	models.AttemptRecord
	Date *time.Time `json:"date,omitempty"`
}

// decodeRecord parses one persisted record and normalizes it
func decodeRecord(data []byte) (models.AttemptRecord, error) {
	var sr storedRecord
	if err := json.Unmarshal(data, &sr); err != nil {
		return models.AttemptRecord{}, err
	}
	rec := sr.AttemptRecord
	if rec.Timestamp.IsZero() && sr.Date != nil {
		rec.Timestamp = *sr.Date
	}
	rec.Normalize()
	return rec, nil
}

// RecordLog reads and rewrites the full attempt collection held under one key
type RecordLog struct {
	store storage.KeyValueStore
	key   string
}

// NewRecordLog creates a record log over store
func NewRecordLog(store storage.KeyValueStore, key string) *RecordLog {
	if store == nil {
		panic("store cannot be nil")
	}
	return &RecordLog{store: store, key: key}
}

// Key returns the storage key of the collection
func (l *RecordLog) Key() string {
	return l.key
}

// Load returns the collection, most recent first. A missing collection is empty.
// Entries that fail to decode are dropped and reported through the error, which
// carries ErrorCodeStorageCorrupt; the decodable entries are still returned.
func (l *RecordLog) Load(ctx context.Context) ([]models.AttemptRecord, error) {
	data, err := l.store.Get(ctx, l.key)
	if storage.IsNotFound(err) {
		return []models.AttemptRecord{}, nil
	}
	if err != nil {
		return []models.AttemptRecord{}, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []models.AttemptRecord{}, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeStorageCorrupt,
			contextutils.SeverityWarn,
			"Record collection is corrupt",
			l.key,
			err,
		)
	}

	records := make([]models.AttemptRecord, 0, len(raw))
	dropped := 0
	for _, item := range raw {
		rec, err := decodeRecord(item)
		if err != nil {
			dropped++
			continue
		}
		records = append(records, rec)
	}

	if dropped > 0 {
		return records, contextutils.WrapErrorf(contextutils.ErrStorageCorrupt,
			"dropped %d undecodable records from %s", dropped, l.key)
	}
	return records, nil
}

// Store rewrites the whole collection
func (l *RecordLog) Store(ctx context.Context, records []models.AttemptRecord) error {
	if records == nil {
		records = []models.AttemptRecord{}
	}
	return storage.PutJSON(ctx, l.store, l.key, records)
}

// filterByUser returns the records owned by userID; an empty userID keeps everything
func filterByUser(records []models.AttemptRecord, userID string) []models.AttemptRecord {
	if userID == "" {
		return records
	}
	out := make([]models.AttemptRecord, 0, len(records))
	for _, r := range records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}
