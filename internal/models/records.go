// Package models defines the attempt records, mistakes and statistics shared by the
// exercise records service.
package models

import (
	"fmt"
	"time"

	contextutils "examprep/internal/utils"
)

// RecordType distinguishes how an attempt was taken
type RecordType string

const (
	// RecordTypeExercise is a practice exercise; the default when no type is given
	RecordTypeExercise RecordType = "exercise"
	// RecordTypeExam is a timed exam
	RecordTypeExam RecordType = "exam"
	// RecordTypePractice is an unscored drill; it feeds mistakes but not statistics
	RecordTypePractice RecordType = "practice"
)

// IsScored reports whether attempts of this type count towards statistics
func (t RecordType) IsScored() bool {
	return t == RecordTypeExercise || t == RecordTypeExam || t == ""
}

// QuestionType is the kind of question, which decides how answers are compared
type QuestionType string

// Question types
const (
	QuestionTypeSingle      QuestionType = "single"
	QuestionTypeMultiple    QuestionType = "multiple"
	QuestionTypeTrueFalse   QuestionType = "truefalse"
	QuestionTypeFill        QuestionType = "fill"
	QuestionTypeShortAnswer QuestionType = "short_answer"
	QuestionTypeText        QuestionType = "text"
	QuestionTypeEssay       QuestionType = "essay"
	QuestionTypeCode        QuestionType = "code"
)

// IsMultiSelect reports whether answers are sets of options
func (t QuestionType) IsMultiSelect() bool {
	switch t {
	case QuestionTypeMultiple, "multi", "multi_select", "checkbox":
		return true
	}
	return false
}

// IsFreeText reports whether answers need external scoring (fill-in, text, essay, code)
func (t QuestionType) IsFreeText() bool {
	switch t {
	case QuestionTypeFill, QuestionTypeShortAnswer, QuestionTypeText, QuestionTypeEssay, QuestionTypeCode, "fill_blank":
		return true
	}
	return false
}

// QuestionSnapshot is a copy of a question as it was when the attempt was taken
type QuestionSnapshot struct {
	ID            string       `json:"id" validate:"required"`
	Title         string       `json:"title"`
	Type          QuestionType `json:"type"`
	Options       StringList   `json:"options"`
	CorrectAnswer Answer       `json:"correctAnswer"`
	Tags          StringList   `json:"tags"`
}

// Normalized returns a copy with options coerced to a non-nil list and, for
// multi-select questions, the correct answer coerced to a list
func (q QuestionSnapshot) Normalized() QuestionSnapshot {
	out := q
	out.Options = append(StringList{}, q.Options...)
	out.Tags = append(StringList{}, q.Tags...)
	out.CorrectAnswer = Answer{Values: append([]string(nil), q.CorrectAnswer.Values...), IsList: q.CorrectAnswer.IsList}
	if q.Type.IsMultiSelect() {
		out.CorrectAnswer = out.CorrectAnswer.AsList()
	}
	return out
}

// QuestionResult is the graded outcome of one question. IsCorrect is nil when no
// explicit judgment was given.
type QuestionResult struct {
	QuestionID string  `json:"questionId"`
	IsCorrect  *bool   `json:"isCorrect,omitempty"`
	Score      float64 `json:"score"`
	Feedback   string  `json:"feedback,omitempty"`
}

// Results summarizes the scoring of an attempt
type Results struct {
	TotalScore      float64          `json:"totalScore"`
	MaxScore        float64          `json:"maxScore"`
	CorrectCount    int              `json:"correctCount"`
	Percentage      *float64         `json:"percentage,omitempty"`
	QuestionResults []QuestionResult `json:"questionResults"`
}

// PercentageValue returns the stored percentage, or totalScore/maxScore*100 when absent
func (r Results) PercentageValue() float64 {
	if r.Percentage != nil {
		return *r.Percentage
	}
	if r.MaxScore <= 0 {
		return 0
	}
	return r.TotalScore / r.MaxScore * 100
}

// AttemptRecord is one completed exercise or exam attempt. Records are immutable once saved.
type AttemptRecord struct {
	ID            string             `json:"id"`
	UserID        string             `json:"userId" validate:"required"`
	Type          RecordType         `json:"type"`
	ExerciseID    string             `json:"exerciseId"`
	ExerciseTitle string             `json:"exerciseTitle"`
	Timestamp     time.Time          `json:"timestamp"`
	Questions     []QuestionSnapshot `json:"questions" validate:"dive"`
	Answers       map[string]Answer  `json:"answers"`
	Results       Results            `json:"results"`
	Tags          StringList         `json:"tags"`
}

// Normalize fills defaults so downstream code never branches on field presence
func (r *AttemptRecord) Normalize() {
	if r.Type == "" {
		r.Type = RecordTypeExercise
	}
	if r.Questions == nil {
		r.Questions = []QuestionSnapshot{}
	}
	for i := range r.Questions {
		if r.Questions[i].Options == nil {
			r.Questions[i].Options = StringList{}
		}
		if r.Questions[i].Tags == nil {
			r.Questions[i].Tags = StringList{}
		}
	}
	if r.Answers == nil {
		r.Answers = map[string]Answer{}
	}
	if r.Results.QuestionResults == nil {
		r.Results.QuestionResults = []QuestionResult{}
	}
	if r.Results.Percentage == nil && r.Results.MaxScore > 0 {
		p := r.Results.PercentageValue()
		r.Results.Percentage = &p
	}
	if r.Tags == nil {
		r.Tags = StringList{}
	}
}

// Validate checks required fields and the shape invariants: one result per question
// and answers only for known questions
func (r *AttemptRecord) Validate() error {
	if err := contextutils.ValidateStruct(r); err != nil {
		return err
	}

	if len(r.Questions) != len(r.Results.QuestionResults) {
		return contextutils.WrapErrorf(contextutils.ErrInconsistentRecord,
			"record has %d questions but %d question results", len(r.Questions), len(r.Results.QuestionResults))
	}

	ids := make(map[string]struct{}, len(r.Questions))
	for _, q := range r.Questions {
		ids[q.ID] = struct{}{}
	}
	for questionID := range r.Answers {
		if _, ok := ids[questionID]; !ok {
			return contextutils.WrapErrorf(contextutils.ErrInconsistentRecord,
				"answer references unknown question %q", questionID)
		}
	}

	if r.Type != "" && r.Type != RecordTypeExercise && r.Type != RecordTypeExam && r.Type != RecordTypePractice {
		return contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn,
			"Invalid record type", fmt.Sprintf("unknown type %q", r.Type))
	}

	return nil
}

// ResultAt returns the result for the question at index i, or nil when missing
func (r *AttemptRecord) ResultAt(i int) *QuestionResult {
	if i < 0 || i >= len(r.Results.QuestionResults) {
		return nil
	}
	return &r.Results.QuestionResults[i]
}

// AnswerFor returns the submitted answer for a question
func (r *AttemptRecord) AnswerFor(questionID string) Answer {
	return r.Answers[questionID]
}

// TopicsFor returns the question's own tags, falling back to the record's tags
func (r *AttemptRecord) TopicsFor(q QuestionSnapshot) []string {
	if len(q.Tags) > 0 {
		return q.Tags
	}
	return r.Tags
}

// HasTag reports whether the record or any of its questions carries tag
func (r *AttemptRecord) HasTag(tag string) bool {
	if r.Tags.Contains(tag) {
		return true
	}
	for _, q := range r.Questions {
		if q.Tags.Contains(tag) {
			return true
		}
	}
	return false
}
