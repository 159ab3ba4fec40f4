package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"examprep/internal/config"
	"examprep/internal/middleware"
	"examprep/internal/observability"
	"examprep/internal/services"
	contextutils "examprep/internal/utils"
	"examprep/internal/version"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ServiceName identifies the HTTP server in traces, logs and /v1/version
const ServiceName = "examprep-server"

// NewRouter creates the gin engine with middleware and every API route
func NewRouter(
	cfg *config.Config,
	recordService services.RecordServiceInterface,
	mistakeService services.MistakeServiceInterface,
	statisticsService services.StatisticsServiceInterface,
	exportService services.ExportServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger, nil))
	router.Use(middleware.RequestID())
	router.Use(requestLogger(logger))

	// Health check endpoint (defined before tracing so probes stay out of traces)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
	})

	router.Use(observability.GinMiddlewareWithErrorHandling(ServiceName)...)

	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug || cfg.IsTest
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	recordsHandler := NewRecordsHandler(recordService, cfg, logger)
	userDataHandler := NewUserDataHandler(mistakeService, statisticsService, exportService, cfg, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", versionHandler(cfg))

		records := v1.Group("/records")
		{
			records.POST("", recordsHandler.SaveRecord)
			records.GET("", recordsHandler.ListRecords)
			records.GET("/:id", recordsHandler.GetRecord)
			records.DELETE("/:id", recordsHandler.DeleteRecord)
		}

		users := v1.Group("/users/:userId")
		{
			users.GET("/mistakes", userDataHandler.GetMistakes)
			users.PUT("/mistakes/:questionId/resolved", userDataHandler.SetMistakeResolved)
			users.PUT("/mistakes/:questionId/notes", userDataHandler.SetMistakeNotes)
			users.DELETE("/mistakes/:questionId", userDataHandler.DismissMistake)

			users.GET("/statistics", userDataHandler.GetStatistics)
			users.POST("/statistics/refresh", userDataHandler.RefreshStatistics)

			users.GET("/export", userDataHandler.ExportUserData)
			users.POST("/import", userDataHandler.ImportUserData)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		StandardizeHTTPError(c, http.StatusNotFound, "Not found", c.Request.URL.Path)
	})

	// Automatic route listing at root path
	routeListing := NewRouteListingHandler(ServiceName)
	routeListing.CollectRoutes(router)
	router.GET("/", routeListing.GetRouteListing)

	return router
}

// requestLogger logs every request through the observability logger, at a level
// chosen by the response status
func requestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"request_id":       contextutils.GetRequestIDFromContext(c.Request.Context()),
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			fields["http.error_type"] = "server_error"
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			fields["http.error_type"] = "client_error"
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		case strings.HasPrefix(c.Request.URL.Path, "/health"):
			logger.Debug(c.Request.Context(), "HTTP request", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	}
}

// versionHandler reports the server's build and, when reachable, the worker's
func versionHandler(cfg *config.Config) gin.HandlerFunc {
	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   2 * time.Second,
	}

	return func(c *gin.Context) {
		var workerVersion interface{} = gin.H{"error": "Worker unavailable"}

		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, cfg.Server.WorkerInternalURL+"/v1/version", nil)
		if err == nil {
			resp, err := client.Do(req)
			if err == nil {
				defer func() { _ = resp.Body.Close() }()
				if resp.StatusCode == http.StatusOK {
					var v version.Info
					if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
						workerVersion = gin.H{"error": "Failed to decode worker version"}
					} else {
						workerVersion = v
					}
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"backend": version.For(ServiceName),
			"worker":  workerVersion,
		})
	}
}
