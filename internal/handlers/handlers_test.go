package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"examprep/internal/config"
	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/services"
	"examprep/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type testServer struct {
	router  *gin.Engine
	records *services.RecordService
	stats   *services.StatisticsService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.IsTest = true
	// Nothing listens here; /v1/version must degrade gracefully
	cfg.Server.WorkerInternalURL = "http://127.0.0.1:1"

	logger := &observability.Logger{Logger: zap.NewNop()}
	store := storage.NewMemoryStore()
	log := services.NewRecordLog(store, cfg.Storage.RecordsKey)
	stats := services.NewStatisticsService(store, log, cfg.Storage.StatsKeyPrefix, services.StatisticsOptionsFromConfig(cfg.Statistics), nil, logger)
	records := services.NewRecordService(log, stats, nil, logger)
	mistakes := services.NewMistakeService(records, services.NewMemoryMistakeStatusRepository(), logger)
	export := services.NewExportService(records, mistakes, stats, cfg.Server.MaxImportRecords, nil, logger)

	return &testServer{
		router:  NewRouter(cfg, records, mistakes, stats, export, logger),
		records: records,
		stats:   stats,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// attemptBody is a one-question exercise; correct picks the right option
func attemptBody(userID string, correct bool, score float64) map[string]interface{} {
	answer := "a"
	if correct {
		answer = "b"
	}
	return map[string]interface{}{
		"userId":        userID,
		"type":          "exercise",
		"exerciseId":    "ex-js",
		"exerciseTitle": "JavaScript basics",
		"questions": []map[string]interface{}{{
			"id":            "q-closure",
			"title":         "What is a closure?",
			"type":          "single",
			"options":       []string{"a", "b", "c"},
			"correctAnswer": "b",
			"tags":          []string{"JS"},
		}},
		"answers": map[string]interface{}{"q-closure": answer},
		"results": map[string]interface{}{
			"totalScore":   score,
			"maxScore":     10,
			"correctCount": map[bool]int{true: 1, false: 0}[correct],
			"questionResults": []map[string]interface{}{{
				"questionId": "q-closure",
				"isCorrect":  correct,
				"score":      score,
			}},
		},
	}
}

func (s *testServer) saveAttempt(t *testing.T, userID string, correct bool, score float64) models.AttemptRecord {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/records", attemptBody(userID, correct, score))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var saved models.AttemptRecord
	decodeBody(t, w, &saved)
	return saved
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), ServiceName)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(t, http.MethodGet, "/v1/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	decodeBody(t, w, &body)
	backend, ok := body["backend"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ServiceName, backend["service"])
	worker, ok := body["worker"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Worker unavailable", worker["error"])
}

func TestRecordsEndpoints(t *testing.T) {
	s := newTestServer(t)

	first := s.saveAttempt(t, "u1", false, 0)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Timestamp.IsZero())
	s.saveAttempt(t, "u2", true, 10)

	t.Run("list filters by user", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/records?user_id=u1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Records []models.AttemptRecord `json:"records"`
			Count   int                    `json:"count"`
		}
		decodeBody(t, w, &body)
		assert.Equal(t, 1, body.Count)
		assert.Equal(t, first.ID, body.Records[0].ID)
	})

	t.Run("list without a user returns everything", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/records", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":2`)
	})

	t.Run("list pages", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/records?page=2&page_size=1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Records    []models.AttemptRecord `json:"records"`
			Pagination Pagination             `json:"pagination"`
		}
		decodeBody(t, w, &body)
		assert.Len(t, body.Records, 1)
		assert.Equal(t, Pagination{Page: 2, PageSize: 1, Total: 2, TotalPages: 2}, body.Pagination)
	})

	t.Run("get", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/records/"+first.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got models.AttemptRecord
		decodeBody(t, w, &got)
		assert.Equal(t, "u1", got.UserID)
	})

	t.Run("get unknown", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/records/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "RECORD_NOT_FOUND")
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		body := attemptBody("u1", true, 10)
		body["id"] = first.ID
		w := s.do(t, http.MethodPost, "/v1/records", body)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		w := s.do(t, http.MethodDelete, "/v1/records/"+first.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"deleted":true}`, w.Body.String())

		w = s.do(t, http.MethodDelete, "/v1/records/"+first.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"deleted":false}`, w.Body.String())
	})
}

func TestSaveRecordRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"not an object", []int{1, 2}, http.StatusBadRequest},
		{"missing user", attemptBody("", true, 10), http.StatusBadRequest},
		{"results do not match questions", func() interface{} {
			b := attemptBody("u1", true, 10)
			b["results"] = map[string]interface{}{"maxScore": 10}
			return b
		}(), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/v1/records", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestMistakeEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.saveAttempt(t, "u1", false, 0)
	s.saveAttempt(t, "u1", false, 0)

	listMistakes := func(t *testing.T, query string) []models.MistakeEntry {
		t.Helper()
		w := s.do(t, http.MethodGet, "/v1/users/u1/mistakes"+query, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var body struct {
			Mistakes []models.MistakeEntry `json:"mistakes"`
		}
		decodeBody(t, w, &body)
		return body.Mistakes
	}

	mistakes := listMistakes(t, "")
	require.Len(t, mistakes, 1)
	assert.Equal(t, 2, mistakes[0].Count)
	assert.Equal(t, "a", mistakes[0].UserAnswer.Scalar())

	assert.Len(t, listMistakes(t, "?tag=JS"), 1)
	assert.Empty(t, listMistakes(t, "?tag=Go"))

	w := s.do(t, http.MethodPut, "/v1/users/u1/mistakes/q-closure/resolved", map[string]bool{"resolved": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, listMistakes(t, "?include_resolved=false"))
	require.Len(t, listMistakes(t, ""), 1)
	assert.True(t, listMistakes(t, "")[0].Resolved)

	w = s.do(t, http.MethodPut, "/v1/users/u1/mistakes/q-closure/notes", map[string]string{"notes": "scope chain"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scope chain", listMistakes(t, "")[0].Notes)

	w = s.do(t, http.MethodPut, "/v1/users/u1/mistakes/q-closure/resolved", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/v1/users/u1/mistakes/q-unknown/resolved", map[string]bool{"resolved": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/v1/users/u1/mistakes?include_resolved=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/v1/users/u1/mistakes/q-closure", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, listMistakes(t, ""))
}

func TestStatisticsEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.saveAttempt(t, "u1", false, 0)
	s.saveAttempt(t, "u1", true, 10)

	w := s.do(t, http.MethodGet, "/v1/users/u1/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.UserStatistics
	decodeBody(t, w, &stats)
	assert.Equal(t, 2, stats.TotalExercises)
	assert.InDelta(t, 50.0, stats.AverageScore, 0.001)

	w = s.do(t, http.MethodGet, "/v1/users/nobody/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &stats)
	assert.Equal(t, 0, stats.TotalExercises)

	w = s.do(t, http.MethodPost, "/v1/users/u1/statistics/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &stats)
	assert.Equal(t, 2, stats.TotalExercises)
}

func TestExportEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.saveAttempt(t, "u1", false, 0)

	t.Run("json", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/users/u1/export", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var export models.UserDataExport
		decodeBody(t, w, &export)
		assert.Equal(t, "u1", export.UserID)
		assert.Len(t, export.Records, 1)
		assert.Len(t, export.Mistakes, 1)
		require.NotNil(t, export.Stats)
	})

	t.Run("xlsx", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/users/u1/export?format=xlsx", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "examprep-u1-")

		f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		defer func() { _ = f.Close() }()
		assert.Contains(t, f.GetSheetList(), "Records")
	})

	t.Run("unknown format", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/v1/users/u1/export?format=csv", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestImportEndpoint(t *testing.T) {
	s := newTestServer(t)
	existing := s.saveAttempt(t, "u1", true, 10)

	dup := attemptBody("u1", true, 10)
	dup["id"] = existing.ID
	foreign := attemptBody("someone-else", false, 0)
	foreign["id"] = "imported-1"

	w := s.do(t, http.MethodPost, "/v1/users/u1/import", map[string]interface{}{
		"records": []interface{}{dup, foreign, "not a record"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result models.ImportResult
	decodeBody(t, w, &result)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)

	rec, err := s.records.Get(t.Context(), "imported-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID, "imported records belong to the path user")

	w = s.do(t, http.MethodGet, "/v1/users/u1/statistics", nil)
	var stats models.UserStatistics
	decodeBody(t, w, &stats)
	assert.Equal(t, 2, stats.TotalExercises)

	w = s.do(t, http.MethodPost, "/v1/users/u1/import", []string{"x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprintf("%q", "/v1/records"))
}
