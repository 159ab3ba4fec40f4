package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"examprep/internal/config"
	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/services"
	"examprep/internal/storage"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newTestServices(t *testing.T) *Services {
	t.Helper()
	logger := &observability.Logger{Logger: zap.NewNop()}
	store := storage.NewMemoryStore()
	log := services.NewRecordLog(store, config.DefaultRecordsKey)
	stats := services.NewStatisticsService(store, log, config.DefaultStatsKeyPrefix, services.DefaultStatisticsOptions(), nil, logger)
	records := services.NewRecordService(log, stats, nil, logger)
	mistakes := services.NewMistakeService(records, services.NewMemoryMistakeStatusRepository(), logger)
	export := services.NewExportService(records, mistakes, stats, 0, nil, logger)
	return &Services{Records: records, Mistakes: mistakes, Statistics: stats, Export: export}
}

func seedRecord(t *testing.T, svc *Services, userID, id string, correct bool) {
	t.Helper()
	answer, score, count := "a", 0.0, 0
	if correct {
		answer, score, count = "b", 10.0, 1
	}
	_, err := svc.Records.Save(context.Background(), &models.AttemptRecord{
		ID:            id,
		UserID:        userID,
		Type:          models.RecordTypeExercise,
		ExerciseID:    "ex-go",
		ExerciseTitle: "Go channels",
		Timestamp:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Questions: []models.QuestionSnapshot{{
			ID:            "q-chan",
			Title:         "Who closes a channel?",
			Type:          models.QuestionTypeSingle,
			Options:       models.StringList{"a", "b"},
			CorrectAnswer: models.TextAnswer("b"),
			Tags:          models.StringList{"Go"},
		}},
		Answers: map[string]models.Answer{"q-chan": models.TextAnswer(answer)},
		Tags:    models.StringList{"Go"},
		Results: models.Results{
			TotalScore:      score,
			MaxScore:        10,
			CorrectCount:    count,
			QuestionResults: []models.QuestionResult{{QuestionID: "q-chan", Score: score}},
		},
	})
	require.NoError(t, err)
}

func run(t *testing.T, svc *Services, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "adm", SilenceUsage: true, SilenceErrors: true}
	Register(root, svc)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRecordsCommands(t *testing.T) {
	svc := newTestServices(t)
	seedRecord(t, svc, "u1", "rec-1", false)
	seedRecord(t, svc, "u2", "rec-2", true)

	out, err := run(t, svc, "records", "list", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "rec-1")
	assert.NotContains(t, out, "rec-2")
	assert.Contains(t, out, "0/10")

	out, err = run(t, svc, "records", "list", "--json")
	require.NoError(t, err)
	var records []models.AttemptRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	assert.Len(t, records, 2)

	out, err = run(t, svc, "records", "delete", "rec-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted record rec-1")

	out, err = run(t, svc, "records", "delete", "rec-1")
	require.NoError(t, err)
	assert.Contains(t, out, "not found")

	out, err = run(t, svc, "records", "list", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "No records found")

	_, err = run(t, svc, "records", "delete")
	assert.Error(t, err)
}

func TestMistakesListCommand(t *testing.T) {
	svc := newTestServices(t)
	seedRecord(t, svc, "u1", "rec-1", false)

	out, err := run(t, svc, "mistakes", "list", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "q-chan")
	assert.Contains(t, out, "Who closes a channel?")

	out, err = run(t, svc, "mistakes", "list", "--user", "u1", "--tag", "JS")
	require.NoError(t, err)
	assert.Contains(t, out, "No mistakes found")

	_, err = run(t, svc, "mistakes", "list")
	assert.Error(t, err, "--user is required")
}

func TestStatsCommands(t *testing.T) {
	svc := newTestServices(t)
	seedRecord(t, svc, "u1", "rec-1", false)
	seedRecord(t, svc, "u1", "rec-2", true)
	seedRecord(t, svc, "u2", "rec-3", true)

	out, err := run(t, svc, "stats", "show", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Exercises:")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "Go")

	out, err = run(t, svc, "stats", "show", "--user", "u1", "--json")
	require.NoError(t, err)
	var stats models.UserStatistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.TotalExercises)

	out, err = run(t, svc, "stats", "refresh", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Refreshed statistics for u1 (2 exercises)")

	out, err = run(t, svc, "stats", "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "Refreshed statistics for 2 users")
}

func TestExportImportCommands(t *testing.T) {
	svc := newTestServices(t)
	seedRecord(t, svc, "u1", "rec-1", false)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "u1.json")
	_, err := run(t, svc, "export", "--user", "u1", "--out", jsonPath)
	require.NoError(t, err)

	var export models.UserDataExport
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "u1", export.UserID)
	assert.Len(t, export.Records, 1)

	xlsxPath := filepath.Join(dir, "u1.xlsx")
	_, err = run(t, svc, "export", "--user", "u1", "--format", "xlsx", "--out", xlsxPath)
	require.NoError(t, err)
	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	assert.Contains(t, f.GetSheetList(), "Mistakes")
	require.NoError(t, f.Close())

	_, err = run(t, svc, "export", "--user", "u1", "--format", "csv")
	assert.Error(t, err)

	// Re-importing the same export into another user skips the known id
	out, err := run(t, svc, "import", "--file", jsonPath, "--user", "u9")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0, skipped 1, failed 0")

	// A fresh store accepts it and keeps the owner from the file
	fresh := newTestServices(t)
	out, err = run(t, fresh, "import", "--file", jsonPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1, skipped 0, failed 0")
	assert.Len(t, fresh.Records.List(context.Background(), "u1"), 1)

	_, err = run(t, svc, "import", "--file", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, newTestServices(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "examprep-adm")
}
