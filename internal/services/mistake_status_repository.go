package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"examprep/internal/models"
	"examprep/internal/observability"
	contextutils "examprep/internal/utils"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

// MistakeStatusRepository persists the review state users attach to mistakes
type MistakeStatusRepository interface {
	// ListForUser returns every status row of a user
	ListForUser(ctx context.Context, userID string) ([]models.MistakeStatus, error)
	SetResolved(ctx context.Context, userID, questionID string, resolved bool) error
	SetNotes(ctx context.Context, userID, questionID, notes string) error
	// Dismiss hides the mistake until the question is missed again
	Dismiss(ctx context.Context, userID, questionID string, at time.Time) error
}

// SQLMistakeStatusRepository stores statuses in the mistake_status table
type SQLMistakeStatusRepository struct {
	db     *sqlx.DB
	logger *observability.Logger
}

// NewSQLMistakeStatusRepository creates a repository over an open database
func NewSQLMistakeStatusRepository(db *sqlx.DB, logger *observability.Logger) *SQLMistakeStatusRepository {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &SQLMistakeStatusRepository{db: db, logger: logger}
}

// ListForUser returns every status row of a user
func (r *SQLMistakeStatusRepository) ListForUser(ctx context.Context, userID string) (result0 []models.MistakeStatus, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_mistake_status", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	query := r.db.Rebind(`
		SELECT user_id, question_id, resolved, notes, dismissed_at, updated_at
		FROM mistake_status
		WHERE user_id = ?
		ORDER BY question_id
	`)

	statuses := []models.MistakeStatus{}
	if err = r.db.SelectContext(ctx, &statuses, query, userID); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list mistake status for user %s: %v", userID, err)
	}

	span.SetAttributes(observability.AttributeCount(len(statuses)))
	return statuses, nil
}

// SetResolved marks a mistake as resolved or unresolved
func (r *SQLMistakeStatusRepository) SetResolved(ctx context.Context, userID, questionID string, resolved bool) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "set_mistake_resolved",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
		attribute.Bool("mistake.resolved", resolved),
	)
	defer observability.FinishSpan(span, &err)

	query := r.db.Rebind(`
		INSERT INTO mistake_status (user_id, question_id, resolved, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, question_id)
		DO UPDATE SET resolved = excluded.resolved, updated_at = excluded.updated_at
	`)
	if _, err = r.db.ExecContext(ctx, query, userID, questionID, resolved, time.Now().UTC()); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to set resolved for %s/%s: %v", userID, questionID, err)
	}
	return nil
}

// SetNotes replaces the notes of a mistake
func (r *SQLMistakeStatusRepository) SetNotes(ctx context.Context, userID, questionID, notes string) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "set_mistake_notes",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
		attribute.Int("mistake.notes_length", len(notes)),
	)
	defer observability.FinishSpan(span, &err)

	query := r.db.Rebind(`
		INSERT INTO mistake_status (user_id, question_id, notes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, question_id)
		DO UPDATE SET notes = excluded.notes, updated_at = excluded.updated_at
	`)
	if _, err = r.db.ExecContext(ctx, query, userID, questionID, notes, time.Now().UTC()); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to set notes for %s/%s: %v", userID, questionID, err)
	}
	return nil
}

// Dismiss records when the user dismissed a mistake
func (r *SQLMistakeStatusRepository) Dismiss(ctx context.Context, userID, questionID string, at time.Time) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "dismiss_mistake",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	query := r.db.Rebind(`
		INSERT INTO mistake_status (user_id, question_id, dismissed_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, question_id)
		DO UPDATE SET dismissed_at = excluded.dismissed_at, updated_at = excluded.updated_at
	`)
	if _, err = r.db.ExecContext(ctx, query, userID, questionID, at.UTC(), time.Now().UTC()); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to dismiss %s/%s: %v", userID, questionID, err)
	}
	return nil
}

// MemoryMistakeStatusRepository keeps statuses in process memory
type MemoryMistakeStatusRepository struct {
	mu       sync.RWMutex
	statuses map[string]map[string]models.MistakeStatus
}

// NewMemoryMistakeStatusRepository creates an empty repository
func NewMemoryMistakeStatusRepository() *MemoryMistakeStatusRepository {
	return &MemoryMistakeStatusRepository{statuses: map[string]map[string]models.MistakeStatus{}}
}

// ListForUser returns every status row of a user, ordered by question id
func (r *MemoryMistakeStatusRepository) ListForUser(_ context.Context, userID string) ([]models.MistakeStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.MistakeStatus{}
	for _, st := range r.statuses[userID] {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (r *MemoryMistakeStatusRepository) upsert(userID, questionID string, apply func(*models.MistakeStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byQuestion, ok := r.statuses[userID]
	if !ok {
		byQuestion = map[string]models.MistakeStatus{}
		r.statuses[userID] = byQuestion
	}
	st, ok := byQuestion[questionID]
	if !ok {
		st = models.MistakeStatus{UserID: userID, QuestionID: questionID}
	}
	apply(&st)
	st.UpdatedAt = time.Now().UTC()
	byQuestion[questionID] = st
}

// SetResolved marks a mistake as resolved or unresolved
func (r *MemoryMistakeStatusRepository) SetResolved(_ context.Context, userID, questionID string, resolved bool) error {
	r.upsert(userID, questionID, func(st *models.MistakeStatus) { st.Resolved = resolved })
	return nil
}

// SetNotes replaces the notes of a mistake
func (r *MemoryMistakeStatusRepository) SetNotes(_ context.Context, userID, questionID, notes string) error {
	r.upsert(userID, questionID, func(st *models.MistakeStatus) { st.Notes = notes })
	return nil
}

// Dismiss records when the user dismissed a mistake
func (r *MemoryMistakeStatusRepository) Dismiss(_ context.Context, userID, questionID string, at time.Time) error {
	r.upsert(userID, questionID, func(st *models.MistakeStatus) {
		t := at.UTC()
		st.DismissedAt = &t
	})
	return nil
}
