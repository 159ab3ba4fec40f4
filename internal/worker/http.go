package worker

import (
	"net/http"

	"examprep/internal/middleware"
	"examprep/internal/observability"
	"examprep/internal/version"

	"github.com/gin-gonic/gin"
)

// ServiceName identifies the worker in traces and /v1/version
const ServiceName = "examprep-worker"

// StatusResponse is the body of GET /status
type StatusResponse struct {
	Instance string      `json:"instance"`
	Status   Status      `json:"status"`
	History  []RunRecord `json:"history"`
}

// Handler exposes the worker's health, status and version, plus manual controls
func (w *Worker) Handler() http.Handler {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(middleware.ErrorRecoveryMiddleware(w.logger, nil))
	router.Use(observability.GinMiddlewareWithErrorHandling(ServiceName)...)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusResponse{
			Instance: w.instance,
			Status:   w.GetStatus(),
			History:  w.GetHistory(),
		})
	})

	router.GET("/v1/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.For(ServiceName))
	})

	router.POST("/trigger", func(c *gin.Context) {
		refreshed, err := w.TriggerManualRun(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":           err.Error(),
				"users_refreshed": refreshed,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"users_refreshed": refreshed})
	})

	router.POST("/pause", func(c *gin.Context) {
		w.Pause(c.Request.Context())
		c.JSON(http.StatusOK, w.GetStatus())
	})

	router.POST("/resume", func(c *gin.Context) {
		w.Resume(c.Request.Context())
		c.JSON(http.StatusOK, w.GetStatus())
	})

	return router
}
