package services

import (
	"testing"
	"time"

	"examprep/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multiSelectRecord(id string, at time.Time, answer ...string) models.AttemptRecord {
	return models.AttemptRecord{
		ID:        id,
		UserID:    "U",
		Timestamp: at,
		Questions: []models.QuestionSnapshot{{
			ID:            "q-multi",
			Type:          models.QuestionTypeMultiple,
			CorrectAnswer: models.TextAnswer("a"),
			Tags:          nil,
		}},
		Answers: map[string]models.Answer{"q-multi": models.ListAnswer(answer...)},
		Results: models.Results{QuestionResults: []models.QuestionResult{{QuestionID: "q-multi"}}},
		Tags:    models.StringList{"Sets"},
	}
}

func TestExtractMistakes_Empty(t *testing.T) {
	got := ExtractMistakes(nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtractMistakes_CountsAllButKeepsLatest(t *testing.T) {
	older := *jsRecord("U", baseTime, false, 0)
	older.ID = "older"
	older.Answers["q-closure"] = models.TextAnswer("a")
	newer := *jsRecord("U", baseTime.Add(time.Hour), false, 0)
	newer.ID = "newer"
	newer.Answers["q-closure"] = models.TextAnswer("c")
	correct := *jsRecord("U", baseTime.Add(2*time.Hour), true, 10)

	// Insertion order must not matter
	for _, records := range [][]models.AttemptRecord{
		{correct, newer, older},
		{older, correct, newer},
	} {
		got := ExtractMistakes(records)
		require.Len(t, got, 1)
		assert.Equal(t, 2, got[0].Count)
		assert.True(t, newer.Timestamp.Equal(got[0].LastWrongTime))
		assert.Equal(t, models.TextAnswer("c"), got[0].UserAnswer)
		assert.Equal(t, "newer", got[0].RecordID)
		assert.Equal(t, models.StringList{"JS"}, got[0].Topics)
	}
}

func TestExtractMistakes_EqualTimestampsKeepCollectionOrder(t *testing.T) {
	first := *jsRecord("U", baseTime, false, 0)
	first.ID = "first"
	first.Answers["q-closure"] = models.TextAnswer("a")
	second := *jsRecord("U", baseTime, false, 0)
	second.ID = "second"
	second.Answers["q-closure"] = models.TextAnswer("c")

	got := ExtractMistakes([]models.AttemptRecord{first, second})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "first", got[0].RecordID)
	assert.Equal(t, models.TextAnswer("a"), got[0].UserAnswer)
}

func TestExtractMistakes_FallbackJudgment(t *testing.T) {
	t.Run("multi-select compared as sets", func(t *testing.T) {
		rec := multiSelectRecord("r1", baseTime, "c", "a")
		rec.Questions[0].CorrectAnswer = models.ListAnswer("a", "c")
		assert.Empty(t, ExtractMistakes([]models.AttemptRecord{rec}))

		rec = multiSelectRecord("r2", baseTime, "a")
		rec.Questions[0].CorrectAnswer = models.ListAnswer("a", "c")
		assert.Len(t, ExtractMistakes([]models.AttemptRecord{rec}), 1)
	})

	t.Run("free text without flag is a mistake", func(t *testing.T) {
		rec := models.AttemptRecord{
			UserID:    "U",
			Timestamp: baseTime,
			Questions: []models.QuestionSnapshot{{ID: "q-essay", Type: models.QuestionTypeEssay, CorrectAnswer: models.TextAnswer("anything")}},
			Answers:   map[string]models.Answer{"q-essay": models.TextAnswer("anything")},
			Results:   models.Results{QuestionResults: []models.QuestionResult{{QuestionID: "q-essay"}}},
		}
		assert.Len(t, ExtractMistakes([]models.AttemptRecord{rec}), 1)

		rec.Results.QuestionResults[0].IsCorrect = boolPtr(true)
		assert.Empty(t, ExtractMistakes([]models.AttemptRecord{rec}))
	})

	t.Run("explicit flag is trusted", func(t *testing.T) {
		rec := *jsRecord("U", baseTime, true, 10)
		rec.Answers["q-closure"] = models.TextAnswer("wrong")
		assert.Empty(t, ExtractMistakes([]models.AttemptRecord{rec}))
	})
}

func TestExtractMistakes_NormalizesSnapshot(t *testing.T) {
	rec := multiSelectRecord("r1", baseTime, "b")
	got := ExtractMistakes([]models.AttemptRecord{rec})
	require.Len(t, got, 1)

	q := got[0].Question
	assert.NotNil(t, q.Options)
	assert.Empty(t, q.Options)
	assert.True(t, q.CorrectAnswer.IsList)
	assert.Equal(t, []string{"a"}, q.CorrectAnswer.Values)
	assert.Equal(t, models.StringList{"Sets"}, got[0].Topics, "record tags stand in for missing question tags")
}

func TestExtractMistakes_SortedByLastWrongTime(t *testing.T) {
	a := *jsRecord("U", baseTime, false, 0)
	b := multiSelectRecord("r-multi", baseTime.Add(time.Hour), "b")

	got := ExtractMistakes([]models.AttemptRecord{a, b})
	require.Len(t, got, 2)
	assert.Equal(t, "q-multi", got[0].Question.ID)
	assert.Equal(t, "q-closure", got[1].Question.ID)
}
