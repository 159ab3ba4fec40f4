package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"examprep/internal/config"
	"examprep/internal/database"
	"examprep/internal/models"
	contextutils "examprep/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMistakeStatusRepository struct {
	mock.Mock
}

func (m *mockMistakeStatusRepository) ListForUser(ctx context.Context, userID string) ([]models.MistakeStatus, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]models.MistakeStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMistakeStatusRepository) SetResolved(ctx context.Context, userID, questionID string, resolved bool) error {
	return m.Called(ctx, userID, questionID, resolved).Error(0)
}

func (m *mockMistakeStatusRepository) SetNotes(ctx context.Context, userID, questionID, notes string) error {
	return m.Called(ctx, userID, questionID, notes).Error(0)
}

func (m *mockMistakeStatusRepository) Dismiss(ctx context.Context, userID, questionID string, at time.Time) error {
	return m.Called(ctx, userID, questionID, at).Error(0)
}

func TestMistakeService_ResolvedAndNotes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustSave(t, env, jsRecord("U", baseTime, false, 0))

	require.NoError(t, env.mistakes.SetResolved(ctx, "U", "q-closure", true))
	require.NoError(t, env.mistakes.SetNotes(ctx, "U", "q-closure", "re-read chapter 3"))

	got, err := env.mistakes.GetMistakes(ctx, "U", models.DefaultMistakeFilter())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Resolved)
	assert.Equal(t, "re-read chapter 3", got[0].Notes)

	got, err = env.mistakes.GetMistakes(ctx, "U", models.MistakeFilter{IncludeResolved: false})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMistakeService_UnknownMistake(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustSave(t, env, jsRecord("U", baseTime, true, 10))

	err := env.mistakes.SetResolved(ctx, "U", "q-closure", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrQuestionNotFound))

	err = env.mistakes.Dismiss(ctx, "", "q-closure")
	assert.Equal(t, contextutils.ErrorCodeMissingRequired, contextutils.GetErrorCode(err))
}

func TestMistakeService_DismissUntilMissedAgain(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustSave(t, env, jsRecord("U", baseTime, false, 0))

	env.mistakes.now = func() time.Time { return baseTime.Add(time.Hour) }
	require.NoError(t, env.mistakes.SetResolved(ctx, "U", "q-closure", true))
	require.NoError(t, env.mistakes.Dismiss(ctx, "U", "q-closure"))

	got, err := env.mistakes.GetMistakes(ctx, "U", models.DefaultMistakeFilter())
	require.NoError(t, err)
	assert.Empty(t, got)

	mustSave(t, env, jsRecord("U", baseTime.Add(2*time.Hour), false, 0))

	got, err = env.mistakes.GetMistakes(ctx, "U", models.DefaultMistakeFilter())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Count)
	assert.False(t, got[0].Resolved)
}

func TestMistakeService_TagFilter(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustSave(t, env, jsRecord("U", baseTime, false, 0))
	multi := multiSelectRecord("", baseTime.Add(time.Hour), "b")
	mustSave(t, env, &multi)

	got, err := env.mistakes.GetMistakes(ctx, "U", models.MistakeFilter{IncludeResolved: true, Tag: "Sets"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "q-multi", got[0].Question.ID)

	got, err = env.mistakes.GetMistakes(ctx, "U", models.MistakeFilter{IncludeResolved: true, Tag: "nope"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMistakeService_DegradesWhenStatusUnavailable(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustSave(t, env, jsRecord("U", baseTime, false, 0))

	repo := &mockMistakeStatusRepository{}
	repo.On("ListForUser", mock.Anything, "U").Return(nil, errors.New("connection refused"))

	logger, logs := newObservedLogger()
	svc := NewMistakeService(env.records, repo, logger)

	got, err := svc.GetMistakes(ctx, "U", models.DefaultMistakeFilter())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Resolved)
	assert.Equal(t, 1, logs.FilterMessage("Mistake review state unavailable, returning derived mistakes").Len())
	repo.AssertExpectations(t)
}

func TestMistakeService_RequiresUserID(t *testing.T) {
	env := newTestEnv(t)
	got, err := env.mistakes.GetMistakes(context.Background(), "", models.DefaultMistakeFilter())
	assert.Nil(t, got)
	assert.Equal(t, contextutils.ErrorCodeMissingRequired, contextutils.GetErrorCode(err))
}

func TestSQLMistakeStatusRepository(t *testing.T) {
	ctx := context.Background()
	logger, _ := newObservedLogger()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := database.NewManager(logger).InitDB(ctx, database.DefaultDatabaseConfig(config.DriverSQLite, dsn))
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLMistakeStatusRepository(database.NewSQLX(db, config.DriverSQLite), logger)

	statuses, err := repo.ListForUser(ctx, "U")
	require.NoError(t, err)
	assert.Empty(t, statuses)

	require.NoError(t, repo.SetResolved(ctx, "U", "q2", true))
	require.NoError(t, repo.SetNotes(ctx, "U", "q2", "tricky"))
	require.NoError(t, repo.SetNotes(ctx, "U", "q1", "first"))
	dismissedAt := baseTime.Add(time.Hour)
	require.NoError(t, repo.Dismiss(ctx, "U", "q1", dismissedAt))
	require.NoError(t, repo.SetResolved(ctx, "V", "q1", true))

	statuses, err = repo.ListForUser(ctx, "U")
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "q1", statuses[0].QuestionID)
	assert.Equal(t, "first", statuses[0].Notes)
	assert.False(t, statuses[0].Resolved)
	require.NotNil(t, statuses[0].DismissedAt)
	assert.True(t, dismissedAt.Equal(*statuses[0].DismissedAt))

	assert.Equal(t, "q2", statuses[1].QuestionID)
	assert.True(t, statuses[1].Resolved, "notes update keeps the resolved flag")
	assert.Equal(t, "tricky", statuses[1].Notes)
	assert.Nil(t, statuses[1].DismissedAt)
}
