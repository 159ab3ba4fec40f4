package models

import (
	"encoding/json"
	"time"
)

// UserDataExport is everything held for one user
type UserDataExport struct {
	UserID     string          `json:"userId"`
	Stats      *UserStatistics `json:"stats"`
	Records    []AttemptRecord `json:"records"`
	Mistakes   []MistakeEntry  `json:"mistakes"`
	ExportTime time.Time       `json:"exportTime"`
}

// ImportRequest carries records to merge into a user's history. Records stay raw so a
// malformed entry fails alone instead of rejecting the whole batch.
type ImportRequest struct {
	UserID  string            `json:"userId" validate:"required"`
	Records []json.RawMessage `json:"records"`
}

// ImportResult reports the outcome of an import
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}

// Success reports whether no submitted record failed
func (r *ImportResult) Success() bool {
	return r.Failed == 0
}
