package services

import (
	"context"
	"testing"
	"time"

	"examprep/internal/config"
	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/storage"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEnv struct {
	store    *storage.MemoryStore
	log      *RecordLog
	records  *RecordService
	stats    *StatisticsService
	status   *MemoryMistakeStatusRepository
	mistakes *MistakeService
	export   *ExportService
	logs     *observer.ObservedLogs
}

func newObservedLogger() (*observability.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &observability.Logger{Logger: zap.New(core)}, logs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger, logs := newObservedLogger()
	store := storage.NewMemoryStore()
	log := NewRecordLog(store, config.DefaultRecordsKey)

	stats := NewStatisticsService(store, log, config.DefaultStatsKeyPrefix, DefaultStatisticsOptions(), nil, logger)
	records := NewRecordService(log, stats, nil, logger)
	status := NewMemoryMistakeStatusRepository()
	mistakes := NewMistakeService(records, status, logger)
	export := NewExportService(records, mistakes, stats, 0, nil, logger)

	return &testEnv{
		store:    store,
		log:      log,
		records:  records,
		stats:    stats,
		status:   status,
		mistakes: mistakes,
		export:   export,
		logs:     logs,
	}
}

func boolPtr(b bool) *bool { return &b }

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// jsRecord builds a one-question exercise tagged "JS"
func jsRecord(userID string, at time.Time, correct bool, score float64) *models.AttemptRecord {
	return &models.AttemptRecord{
		UserID:        userID,
		Type:          models.RecordTypeExercise,
		ExerciseID:    "ex-js",
		ExerciseTitle: "JavaScript basics",
		Timestamp:     at,
		Questions: []models.QuestionSnapshot{{
			ID:            "q-closure",
			Title:         "What is a closure?",
			Type:          models.QuestionTypeSingle,
			Options:       models.StringList{"a", "b", "c"},
			CorrectAnswer: models.TextAnswer("b"),
			Tags:          models.StringList{"JS"},
		}},
		Answers: map[string]models.Answer{"q-closure": models.TextAnswer(map[bool]string{true: "b", false: "a"}[correct])},
		Results: models.Results{
			TotalScore:   score,
			MaxScore:     10,
			CorrectCount: map[bool]int{true: 1, false: 0}[correct],
			QuestionResults: []models.QuestionResult{{
				QuestionID: "q-closure",
				IsCorrect:  boolPtr(correct),
				Score:      score,
			}},
		},
		Tags: models.StringList{"JS"},
	}
}

func mustSave(t *testing.T, env *testEnv, r *models.AttemptRecord) *models.AttemptRecord {
	t.Helper()
	saved, err := env.records.Save(context.Background(), r)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	return saved
}
