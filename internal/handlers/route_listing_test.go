package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteListingHandler_CollectRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/v1/records", func(_ *gin.Context) {})
	router.GET("/v1/records", func(_ *gin.Context) {})
	router.DELETE("/v1/records/:id", func(_ *gin.Context) {})
	router.GET("/debug/pprof", func(_ *gin.Context) {})

	handler := NewRouteListingHandler("examprep-test")
	handler.CollectRoutes(router)

	routes := handler.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, "GET", routes[0].Method)
	assert.Equal(t, "/v1/records", routes[0].Path)
	assert.Equal(t, "POST", routes[1].Method)
	assert.Equal(t, "/v1/records/:id", routes[2].Path)
}

func TestRouteListingHandler_GetRouteListing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/v1/records", func(_ *gin.Context) {})

	handler := NewRouteListingHandler("examprep-test")
	handler.CollectRoutes(router)
	router.GET("/", handler.GetRouteListing)

	t.Run("json", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))

		var body struct {
			Service string      `json:"service"`
			Count   int         `json:"count"`
			Routes  []RouteInfo `json:"routes"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "examprep-test", body.Service)
		assert.Equal(t, 1, body.Count)
		assert.Equal(t, "/v1/records", body.Routes[0].Path)
	})

	t.Run("text", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Accept", "text/plain")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "examprep-test: 1 routes")
		assert.Contains(t, w.Body.String(), "GET  /v1/records")
	})
}

func TestShortHandlerName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"examprep/internal/handlers.(*RecordsHandler).SaveRecord-fm", "RecordsHandler.SaveRecord"},
		{"examprep/internal/handlers.NewRouter.func1", "NewRouter.func1"},
		{"main.handler", "handler"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shortHandlerName(tt.in), tt.in)
	}
}
