// Package grading decides whether a submitted answer is correct.
//
// Judgment follows two paths: an explicit isCorrect flag on the question result is
// trusted as-is; without one, the answer is compared locally according to the
// question type. Free-text style questions (fill-in, short answer, essay, code)
// cannot be judged locally and count as incorrect until scored externally.
package grading

import (
	"strings"

	"examprep/internal/models"
)

// Verdict explains how a judgment was reached
type Verdict string

const (
	// VerdictExplicit means the stored isCorrect flag was used
	VerdictExplicit Verdict = "explicit"
	// VerdictCompared means the answer was compared against the correct answer
	VerdictCompared Verdict = "compared"
	// VerdictUnscored means the question type needs external scoring
	VerdictUnscored Verdict = "unscored"
)

// Judge reports whether answer is correct for q. result may be nil.
func Judge(q models.QuestionSnapshot, answer models.Answer, result *models.QuestionResult) bool {
	correct, _ := JudgeWithVerdict(q, answer, result)
	return correct
}

// JudgeWithVerdict is Judge that also reports which path decided
func JudgeWithVerdict(q models.QuestionSnapshot, answer models.Answer, result *models.QuestionResult) (bool, Verdict) {
	if result != nil && result.IsCorrect != nil {
		return *result.IsCorrect, VerdictExplicit
	}

	switch {
	case q.Type.IsMultiSelect():
		return SetEqual(answer, q.CorrectAnswer), VerdictCompared
	case q.Type.IsFreeText():
		return false, VerdictUnscored
	default:
		return ScalarEqual(answer, q.CorrectAnswer), VerdictCompared
	}
}

// SetEqual compares answers as sets: same number of distinct values and every
// correct value present in the submission
func SetEqual(answer, correct models.Answer) bool {
	got := answer.AsList().Set()
	want := correct.AsList().Set()
	if len(got) != len(want) {
		return false
	}
	for v := range want {
		if _, ok := got[v]; !ok {
			return false
		}
	}
	return true
}

// ScalarEqual compares the single submitted value with the single correct value.
// Surrounding whitespace is ignored; an empty submission is never correct.
func ScalarEqual(answer, correct models.Answer) bool {
	got := strings.TrimSpace(answer.Scalar())
	if got == "" {
		return false
	}
	return got == strings.TrimSpace(correct.Scalar())
}

// JudgeRecord judges every question of a record, in question order
func JudgeRecord(r *models.AttemptRecord) []bool {
	out := make([]bool, len(r.Questions))
	for i, q := range r.Questions {
		out[i] = Judge(q, r.AnswerFor(q.ID), r.ResultAt(i))
	}
	return out
}
