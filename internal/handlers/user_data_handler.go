package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"examprep/internal/config"
	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/services"
	contextutils "examprep/internal/utils"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UserDataHandler serves the per-user views derived from the record log:
// mistakes, statistics, export and import
type UserDataHandler struct {
	mistakeService    services.MistakeServiceInterface
	statisticsService services.StatisticsServiceInterface
	exportService     services.ExportServiceInterface
	cfg               *config.Config
	logger            *observability.Logger
}

// NewUserDataHandler creates a new UserDataHandler instance
func NewUserDataHandler(
	mistakeService services.MistakeServiceInterface,
	statisticsService services.StatisticsServiceInterface,
	exportService services.ExportServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *UserDataHandler {
	return &UserDataHandler{
		mistakeService:    mistakeService,
		statisticsService: statisticsService,
		exportService:     exportService,
		cfg:               cfg,
		logger:            logger,
	}
}

// ResolvedRequest is the body of PUT .../mistakes/:questionId/resolved
type ResolvedRequest struct {
	Resolved *bool `json:"resolved" validate:"required"`
}

// NotesRequest is the body of PUT .../mistakes/:questionId/notes
type NotesRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

// GetMistakes handles GET /v1/users/:userId/mistakes
func (h *UserDataHandler) GetMistakes(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_mistakes")
	defer observability.FinishSpan(span, nil)

	userID := c.Param("userId")
	filter := models.DefaultMistakeFilter()
	if raw := c.Query("include_resolved"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			HandleValidationError(c, "include_resolved", raw, "must be a boolean")
			return
		}
		filter.IncludeResolved = include
	}
	filter.Tag = c.Query("tag")
	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeTagFilter(filter.Tag))

	mistakes, err := h.mistakeService.GetMistakes(ctx, userID, filter)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(observability.AttributeCount(len(mistakes)))
	c.JSON(http.StatusOK, gin.H{
		"mistakes": mistakes,
		"count":    len(mistakes),
	})
}

// SetMistakeResolved handles PUT /v1/users/:userId/mistakes/:questionId/resolved
func (h *UserDataHandler) SetMistakeResolved(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "set_mistake_resolved")
	defer observability.FinishSpan(span, nil)

	userID, questionID := c.Param("userId"), c.Param("questionId")
	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeQuestionID(questionID))

	var req ResolvedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn(ctx, "Invalid resolved request format", map[string]interface{}{"error": err.Error()})
		HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidFormat, "invalid request body"))
		return
	}
	if err := contextutils.ValidateStruct(&req); err != nil {
		HandleAppError(c, err)
		return
	}

	if err := h.mistakeService.SetResolved(ctx, userID, questionID, *req.Resolved); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questionId": questionID, "resolved": *req.Resolved})
}

// SetMistakeNotes handles PUT /v1/users/:userId/mistakes/:questionId/notes
func (h *UserDataHandler) SetMistakeNotes(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "set_mistake_notes")
	defer observability.FinishSpan(span, nil)

	userID, questionID := c.Param("userId"), c.Param("questionId")
	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeQuestionID(questionID))

	var req NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn(ctx, "Invalid notes request format", map[string]interface{}{"error": err.Error()})
		HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidFormat, "invalid request body"))
		return
	}
	if err := contextutils.ValidateStruct(&req); err != nil {
		HandleAppError(c, err)
		return
	}

	if err := h.mistakeService.SetNotes(ctx, userID, questionID, req.Notes); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questionId": questionID, "notes": req.Notes})
}

// DismissMistake handles DELETE /v1/users/:userId/mistakes/:questionId
func (h *UserDataHandler) DismissMistake(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "dismiss_mistake")
	defer observability.FinishSpan(span, nil)

	userID, questionID := c.Param("userId"), c.Param("questionId")
	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeQuestionID(questionID))

	if err := h.mistakeService.Dismiss(ctx, userID, questionID); err != nil {
		HandleAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStatistics handles GET /v1/users/:userId/statistics
func (h *UserDataHandler) GetStatistics(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_statistics")
	defer observability.FinishSpan(span, nil)

	userID := c.Param("userId")
	span.SetAttributes(observability.AttributeUserID(userID))

	stats, err := h.statisticsService.GetStatistics(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RefreshStatistics handles POST /v1/users/:userId/statistics/refresh
func (h *UserDataHandler) RefreshStatistics(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "refresh_statistics")
	defer observability.FinishSpan(span, nil)

	userID := c.Param("userId")
	span.SetAttributes(observability.AttributeUserID(userID))

	stats, err := h.statisticsService.Recompute(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "Failed to refresh statistics", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExportUserData handles GET /v1/users/:userId/export?format=json|xlsx
func (h *UserDataHandler) ExportUserData(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "export_user_data")
	defer observability.FinishSpan(span, nil)

	userID := c.Param("userId")
	format := c.DefaultQuery("format", services.ExportFormatJSON)
	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeFormat(format))

	if format != services.ExportFormatJSON && format != services.ExportFormatXLSX {
		HandleValidationError(c, "format", format, "must be json or xlsx")
		return
	}

	export, err := h.exportService.ExportUserData(ctx, userID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if format == services.ExportFormatJSON {
		c.JSON(http.StatusOK, export)
		return
	}

	var buf bytes.Buffer
	if err := h.exportService.WriteXLSX(export, &buf); err != nil {
		h.logger.Error(ctx, "Failed to render spreadsheet export", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}
	filename := fmt.Sprintf("examprep-%s-%s.xlsx", userID, export.ExportTime.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ImportUserData handles POST /v1/users/:userId/import
func (h *UserDataHandler) ImportUserData(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "import_user_data")
	defer observability.FinishSpan(span, nil)

	userID := c.Param("userId")
	span.SetAttributes(observability.AttributeUserID(userID))

	var req models.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn(ctx, "Invalid import request format", map[string]interface{}{"error": err.Error()})
		HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidFormat, "request body must be an object with a records array"))
		return
	}
	// The path decides the owner; a userId in the body is ignored
	req.UserID = userID

	result, err := h.exportService.ImportUserData(ctx, &req)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(observability.AttributeCount(result.Imported))
	c.JSON(http.StatusOK, result)
}
