package models

import "time"

// MistakeEntry aggregates every incorrect attempt at one question. Question,
// LastWrongTime and UserAnswer come from the most recent miss; Count spans all history.
type MistakeEntry struct {
	Question      QuestionSnapshot `json:"question"`
	Count         int              `json:"count"`
	LastWrongTime time.Time        `json:"lastWrongTime"`
	UserAnswer    Answer           `json:"userAnswer"`
	RecordID      string           `json:"recordId,omitempty"`
	ExerciseID    string           `json:"exerciseId,omitempty"`
	ExerciseTitle string           `json:"exerciseTitle,omitempty"`
	// Topics are the question's tags, or the attempt's tags when the question has none
	Topics        StringList       `json:"topics"`

	// Review state kept alongside the derived entry
	Resolved bool   `json:"resolved"`
	Notes    string `json:"notes,omitempty"`
}

// MistakeStatus is the persisted review state of a mistake
type MistakeStatus struct {
	UserID      string     `json:"userId" db:"user_id"`
	QuestionID  string     `json:"questionId" db:"question_id"`
	Resolved    bool       `json:"resolved" db:"resolved"`
	Notes       string     `json:"notes" db:"notes"`
	DismissedAt *time.Time `json:"dismissedAt,omitempty" db:"dismissed_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// MistakeFilter narrows a mistake listing
type MistakeFilter struct {
	// IncludeResolved keeps entries the user marked as resolved
	IncludeResolved bool
	// Tag keeps only questions carrying this tag
	Tag string
}

// DefaultMistakeFilter lists everything, resolved entries included
func DefaultMistakeFilter() MistakeFilter {
	return MistakeFilter{IncludeResolved: true}
}
