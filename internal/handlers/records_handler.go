package handlers

import (
	"net/http"

	"examprep/internal/config"
	"examprep/internal/models"
	"examprep/internal/observability"
	"examprep/internal/services"
	contextutils "examprep/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// RecordsHandler handles attempt record HTTP requests
type RecordsHandler struct {
	recordService services.RecordServiceInterface
	cfg           *config.Config
	logger        *observability.Logger
}

// NewRecordsHandler creates a new RecordsHandler instance
func NewRecordsHandler(recordService services.RecordServiceInterface, cfg *config.Config, logger *observability.Logger) *RecordsHandler {
	return &RecordsHandler{
		recordService: recordService,
		cfg:           cfg,
		logger:        logger,
	}
}

// SaveRecord handles POST /v1/records
func (h *RecordsHandler) SaveRecord(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "save_record")
	defer observability.FinishSpan(span, nil)

	var req models.AttemptRecord
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn(ctx, "Invalid save record request format", map[string]interface{}{
			"error": err.Error(),
		})
		HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidFormat, "request body is not a valid attempt record"))
		return
	}
	span.SetAttributes(observability.AttributeUserID(req.UserID), observability.AttributeExerciseID(req.ExerciseID))

	saved, err := h.recordService.Save(contextutils.WithUserID(ctx, req.UserID), &req)
	if err != nil {
		h.logger.Warn(ctx, "Failed to save record", map[string]interface{}{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(observability.AttributeRecordID(saved.ID))
	c.JSON(http.StatusCreated, saved)
}

// ListRecords handles GET /v1/records?user_id=&page=&page_size=
// count is the total number of matching records, not the size of the page.
func (h *RecordsHandler) ListRecords(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_records")
	defer observability.FinishSpan(span, nil)

	userID := c.Query("user_id")
	page, size := ParsePagination(c, recordsFirstPage, recordsPageSize, recordsMaxPageSize)
	records := h.recordService.List(ctx, userID)
	items, pagination := Paginate(records, page, size)

	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeCount(len(records)))
	WritePaginated(c, "records", items, pagination, gin.H{"count": len(records)})
}

// GetRecord handles GET /v1/records/:id
func (h *RecordsHandler) GetRecord(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_record")
	defer observability.FinishSpan(span, nil)

	id := c.Param("id")
	span.SetAttributes(observability.AttributeRecordID(id))

	record, err := h.recordService.Get(ctx, id)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeleteRecord handles DELETE /v1/records/:id
func (h *RecordsHandler) DeleteRecord(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_record")
	defer observability.FinishSpan(span, nil)

	id := c.Param("id")
	span.SetAttributes(observability.AttributeRecordID(id))

	removed, err := h.recordService.Delete(ctx, id)
	if err != nil {
		h.logger.Error(ctx, "Failed to delete record", err, map[string]interface{}{"record_id": id})
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.Bool("record.removed", removed))
	c.JSON(http.StatusOK, gin.H{"deleted": removed})
}
