package services

import (
	"context"
	"time"

	"examprep/internal/models"
	"examprep/internal/observability"
	contextutils "examprep/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// MistakeServiceInterface defines the interface for mistake listing and review
type MistakeServiceInterface interface {
	GetMistakes(ctx context.Context, userID string, filter models.MistakeFilter) ([]models.MistakeEntry, error)
	SetResolved(ctx context.Context, userID, questionID string, resolved bool) error
	SetNotes(ctx context.Context, userID, questionID, notes string) error
	Dismiss(ctx context.Context, userID, questionID string) error
}

// MistakeService derives mistakes from the record log and merges in review state
type MistakeService struct {
	records RecordServiceInterface
	status  MistakeStatusRepository
	logger  *observability.Logger
	now     func() time.Time
}

// NewMistakeService creates a new mistake service
func NewMistakeService(records RecordServiceInterface, status MistakeStatusRepository, logger *observability.Logger) *MistakeService {
	if records == nil {
		panic("record service cannot be nil")
	}
	if status == nil {
		panic("mistake status repository cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &MistakeService{records: records, status: status, logger: logger, now: time.Now}
}

// GetMistakes returns the user's mistakes, most recently missed first. When the
// review state cannot be read the plain derived list is returned.
func (s *MistakeService) GetMistakes(ctx context.Context, userID string, filter models.MistakeFilter) (result0 []models.MistakeEntry, err error) {
	ctx, span := observability.TraceMistakeFunction(ctx, "GetMistakes",
		observability.AttributeUserID(userID),
		observability.AttributeTagFilter(filter.Tag),
		attribute.Bool("filter.include_resolved", filter.IncludeResolved),
	)
	defer observability.FinishSpan(span, &err)

	if userID == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "userId is required to list mistakes")
	}

	entries := ExtractMistakes(s.records.List(ctx, userID))

	statuses, serr := s.status.ListForUser(ctx, userID)
	if serr != nil {
		s.logger.Warn(ctx, "Mistake review state unavailable, returning derived mistakes", map[string]interface{}{
			"user_id": userID,
			"error":   serr.Error(),
		})
		span.SetAttributes(attribute.Bool("mistake.status_degraded", true))
		statuses = nil
	}

	entries = applyStatuses(entries, statuses)
	entries = filterMistakes(entries, filter)

	span.SetAttributes(observability.AttributeCount(len(entries)))
	return entries, nil
}

// applyStatuses merges review state into entries. A dismissed entry stays hidden
// unless the question was missed again after the dismissal, in which case it comes
// back unresolved.
func applyStatuses(entries []models.MistakeEntry, statuses []models.MistakeStatus) []models.MistakeEntry {
	if len(statuses) == 0 {
		return entries
	}
	byQuestion := make(map[string]models.MistakeStatus, len(statuses))
	for _, st := range statuses {
		byQuestion[st.QuestionID] = st
	}

	out := make([]models.MistakeEntry, 0, len(entries))
	for _, e := range entries {
		st, ok := byQuestion[e.Question.ID]
		if !ok {
			out = append(out, e)
			continue
		}
		e.Notes = st.Notes
		e.Resolved = st.Resolved
		if st.DismissedAt != nil {
			if !e.LastWrongTime.After(*st.DismissedAt) {
				continue
			}
			e.Resolved = false
		}
		out = append(out, e)
	}
	return out
}

func filterMistakes(entries []models.MistakeEntry, filter models.MistakeFilter) []models.MistakeEntry {
	out := make([]models.MistakeEntry, 0, len(entries))
	for _, e := range entries {
		if !filter.IncludeResolved && e.Resolved {
			continue
		}
		if filter.Tag != "" && !e.Topics.Contains(filter.Tag) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// requireMistake checks the question is among the user's derived mistakes
func (s *MistakeService) requireMistake(ctx context.Context, userID, questionID string) error {
	if userID == "" || questionID == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "userId and questionId are required")
	}
	for _, e := range ExtractMistakes(s.records.List(ctx, userID)) {
		if e.Question.ID == questionID {
			return nil
		}
	}
	return contextutils.WrapErrorf(contextutils.ErrQuestionNotFound, "no mistake for question %s", questionID)
}

// SetResolved marks one of the user's mistakes as resolved or unresolved
func (s *MistakeService) SetResolved(ctx context.Context, userID, questionID string, resolved bool) (err error) {
	ctx, span := observability.TraceMistakeFunction(ctx, "SetResolved",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	if err = s.requireMistake(ctx, userID, questionID); err != nil {
		return err
	}
	return s.status.SetResolved(ctx, userID, questionID, resolved)
}

// SetNotes replaces the notes on one of the user's mistakes
func (s *MistakeService) SetNotes(ctx context.Context, userID, questionID, notes string) (err error) {
	ctx, span := observability.TraceMistakeFunction(ctx, "SetNotes",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	if err = s.requireMistake(ctx, userID, questionID); err != nil {
		return err
	}
	return s.status.SetNotes(ctx, userID, questionID, notes)
}

// Dismiss hides one of the user's mistakes until it is missed again
func (s *MistakeService) Dismiss(ctx context.Context, userID, questionID string) (err error) {
	ctx, span := observability.TraceMistakeFunction(ctx, "Dismiss",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	if err = s.requireMistake(ctx, userID, questionID); err != nil {
		return err
	}
	if err = s.status.Dismiss(ctx, userID, questionID, s.now()); err != nil {
		return err
	}
	s.logger.Info(ctx, "Dismissed mistake", map[string]interface{}{
		"user_id":     userID,
		"question_id": questionID,
	})
	return nil
}
