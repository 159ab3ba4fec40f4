package grading

import (
	"testing"

	"examprep/internal/models"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestJudge(t *testing.T) {
	multi := models.QuestionSnapshot{ID: "q1", Type: models.QuestionTypeMultiple, CorrectAnswer: models.ListAnswer("a", "c")}
	single := models.QuestionSnapshot{ID: "q2", Type: models.QuestionTypeSingle, CorrectAnswer: models.TextAnswer("b")}
	truefalse := models.QuestionSnapshot{ID: "q3", Type: models.QuestionTypeTrueFalse, CorrectAnswer: models.TextAnswer("true")}
	essay := models.QuestionSnapshot{ID: "q4", Type: models.QuestionTypeEssay, CorrectAnswer: models.TextAnswer("anything")}
	code := models.QuestionSnapshot{ID: "q5", Type: models.QuestionTypeCode}
	fill := models.QuestionSnapshot{ID: "q6", Type: models.QuestionTypeFill, CorrectAnswer: models.TextAnswer("let")}

	tests := []struct {
		name     string
		question models.QuestionSnapshot
		answer   models.Answer
		result   *models.QuestionResult
		expected bool
		verdict  Verdict
	}{
		{name: "multi-select same order", question: multi, answer: models.ListAnswer("a", "c"), expected: true, verdict: VerdictCompared},
		{name: "multi-select order independent", question: multi, answer: models.ListAnswer("c", "a"), expected: true, verdict: VerdictCompared},
		{name: "multi-select subset", question: multi, answer: models.ListAnswer("a"), expected: false, verdict: VerdictCompared},
		{name: "multi-select superset", question: multi, answer: models.ListAnswer("a", "b", "c"), expected: false, verdict: VerdictCompared},
		{name: "multi-select scalar correct answer", question: models.QuestionSnapshot{Type: models.QuestionTypeMultiple, CorrectAnswer: models.TextAnswer("a")}, answer: models.ListAnswer("a"), expected: true, verdict: VerdictCompared},
		{name: "multi-select empty", question: multi, answer: models.Answer{}, expected: false, verdict: VerdictCompared},
		{name: "single correct", question: single, answer: models.TextAnswer("b"), expected: true, verdict: VerdictCompared},
		{name: "single wrong", question: single, answer: models.TextAnswer("a"), expected: false, verdict: VerdictCompared},
		{name: "single unanswered", question: single, answer: models.Answer{}, expected: false, verdict: VerdictCompared},
		{name: "true/false from boolean", question: truefalse, answer: models.TextAnswer("true"), expected: true, verdict: VerdictCompared},
		{name: "essay without flag", question: essay, answer: models.TextAnswer("anything"), expected: false, verdict: VerdictUnscored},
		{name: "code without flag", question: code, answer: models.TextAnswer("fmt.Println()"), expected: false, verdict: VerdictUnscored},
		{name: "fill-in without flag", question: fill, answer: models.TextAnswer("let"), expected: false, verdict: VerdictUnscored},
		{name: "essay with explicit flag", question: essay, answer: models.TextAnswer("x"), result: &models.QuestionResult{IsCorrect: boolPtr(true)}, expected: true, verdict: VerdictExplicit},
		{name: "explicit flag overrides comparison", question: single, answer: models.TextAnswer("b"), result: &models.QuestionResult{IsCorrect: boolPtr(false)}, expected: false, verdict: VerdictExplicit},
		{name: "result without flag falls back", question: single, answer: models.TextAnswer("b"), result: &models.QuestionResult{Score: 0}, expected: true, verdict: VerdictCompared},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, verdict := JudgeWithVerdict(tt.question, tt.answer, tt.result)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.verdict, verdict)
			assert.Equal(t, tt.expected, Judge(tt.question, tt.answer, tt.result))
		})
	}
}

func TestJudgeRecord(t *testing.T) {
	r := &models.AttemptRecord{
		Questions: []models.QuestionSnapshot{
			{ID: "q1", Type: models.QuestionTypeSingle, CorrectAnswer: models.TextAnswer("a")},
			{ID: "q2", Type: models.QuestionTypeSingle, CorrectAnswer: models.TextAnswer("b")},
			{ID: "q3", Type: models.QuestionTypeEssay},
		},
		Answers: map[string]models.Answer{
			"q1": models.TextAnswer("a"),
			"q2": models.TextAnswer("a"),
			"q3": models.TextAnswer("long text"),
		},
		Results: models.Results{QuestionResults: []models.QuestionResult{
			{QuestionID: "q1"},
			{QuestionID: "q2"},
			{QuestionID: "q3", IsCorrect: boolPtr(true)},
		}},
	}

	assert.Equal(t, []bool{true, false, true}, JudgeRecord(r))
}

func TestJudgeRecord_MissingResults(t *testing.T) {
	r := &models.AttemptRecord{
		Questions: []models.QuestionSnapshot{{ID: "q1", Type: models.QuestionTypeSingle, CorrectAnswer: models.TextAnswer("a")}},
		Answers:   map[string]models.Answer{"q1": models.TextAnswer("a")},
	}

	assert.Equal(t, []bool{true}, JudgeRecord(r))
}
