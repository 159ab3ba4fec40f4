package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"examprep/internal/config"
	"examprep/internal/di"
	"examprep/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewApplication(t *testing.T) {
	cfg := config.Default()
	cfg.IsTest = true
	cfg.Server.Port = "0"

	container := di.NewServiceContainer(cfg, &observability.Logger{Logger: zap.NewNop()})
	require.NoError(t, container.Initialize(context.Background()))

	app, err := NewApplication(container)
	require.NoError(t, err)
	assert.Equal(t, ":0", app.server.Addr)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, app.Shutdown(context.Background()))
}

func TestNewApplicationUninitializedContainer(t *testing.T) {
	container := di.NewServiceContainer(config.Default(), &observability.Logger{Logger: zap.NewNop()})
	_, err := NewApplication(container)
	assert.Error(t, err)
}
