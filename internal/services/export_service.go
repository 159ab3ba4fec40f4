package services

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"examprep/internal/config"
	"examprep/internal/models"
	"examprep/internal/observability"
	contextutils "examprep/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed schemas/attempt_record.schema.json
var attemptRecordSchema []byte

// Export formats
const (
	ExportFormatJSON = "json"
	ExportFormatXLSX = "xlsx"
)

// Workbook sheet names
const (
	sheetSummary  = "Summary"
	sheetRecords  = "Records"
	sheetMistakes = "Mistakes"
	sheetTopics   = "Topics"
)

// ExportServiceInterface defines the interface for user data export and import
type ExportServiceInterface interface {
	ExportUserData(ctx context.Context, userID string) (*models.UserDataExport, error)
	WriteXLSX(export *models.UserDataExport, w io.Writer) error
	ImportUserData(ctx context.Context, req *models.ImportRequest) (*models.ImportResult, error)
}

// ExportService bundles a user's records, mistakes and statistics, and merges
// records back in
type ExportService struct {
	records    RecordServiceInterface
	mistakes   MistakeServiceInterface
	stats      StatisticsServiceInterface
	schema     *gojsonschema.Schema
	maxRecords int
	metrics    *observability.DomainMetrics
	logger     *observability.Logger
}

// NewExportService creates a new export service. maxRecords caps a single import;
// zero means the default cap.
func NewExportService(records RecordServiceInterface, mistakes MistakeServiceInterface, stats StatisticsServiceInterface, maxRecords int, metrics *observability.DomainMetrics, logger *observability.Logger) *ExportService {
	if records == nil || mistakes == nil || stats == nil {
		panic("record, mistake and statistics services are required")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(attemptRecordSchema))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded attempt record schema: %v", err))
	}
	if maxRecords <= 0 {
		maxRecords = config.DefaultMaxImportRecords
	}
	return &ExportService{
		records:    records,
		mistakes:   mistakes,
		stats:      stats,
		schema:     schema,
		maxRecords: maxRecords,
		metrics:    metrics,
		logger:     logger,
	}
}

// ExportUserData gathers everything held for a user
func (s *ExportService) ExportUserData(ctx context.Context, userID string) (result0 *models.UserDataExport, err error) {
	ctx, span := observability.TraceExportFunction(ctx, "ExportUserData", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if userID == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "userId is required to export data")
	}

	stats, err := s.stats.GetStatistics(ctx, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load statistics for export")
	}
	mistakes, err := s.mistakes.GetMistakes(ctx, userID, models.DefaultMistakeFilter())
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load mistakes for export")
	}

	export := &models.UserDataExport{
		UserID:     userID,
		Stats:      stats,
		Records:    s.records.List(ctx, userID),
		Mistakes:   mistakes,
		ExportTime: time.Now().UTC(),
	}
	span.SetAttributes(
		attribute.Int("export.records", len(export.Records)),
		attribute.Int("export.mistakes", len(export.Mistakes)),
	)
	return export, nil
}

// WriteXLSX renders an export as a workbook with Summary, Records, Mistakes and
// Topics sheets
func (s *ExportService) WriteXLSX(export *models.UserDataExport, w io.Writer) error {
	if export == nil {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "export is required")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	f.SetSheetName("Sheet1", sheetSummary)
	for _, name := range []string{sheetRecords, sheetMistakes, sheetTopics} {
		if _, err := f.NewSheet(name); err != nil {
			return contextutils.WrapErrorf(err, "failed to create sheet %s", name)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return contextutils.WrapError(err, "failed to create header style")
	}

	stats := export.Stats
	if stats == nil {
		stats = models.NewUserStatistics(export.UserID)
	}

	summary := [][]interface{}{
		{"Field", "Value"},
		{"User", export.UserID},
		{"Exported at", export.ExportTime.Format(time.RFC3339)},
		{"Total exercises", stats.TotalExercises},
		{"Total questions", stats.TotalQuestions},
		{"Correct questions", stats.CorrectQuestions},
		{"Total score", stats.TotalScore},
		{"Average score", stats.AverageScore},
	}
	tags := make([]string, 0, len(stats.ExercisesByCategory))
	for tag := range stats.ExercisesByCategory {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		c := stats.ExercisesByCategory[tag]
		summary = append(summary, []interface{}{"Category " + tag, fmt.Sprintf("%d attempts, average %.1f", c.Count, c.AverageScore)})
	}

	records := [][]interface{}{{"ID", "Type", "Exercise", "Title", "Timestamp", "Score", "Max score", "Correct", "Percentage", "Tags"}}
	for _, r := range export.Records {
		records = append(records, []interface{}{
			r.ID, string(r.Type), r.ExerciseID, r.ExerciseTitle, r.Timestamp.Format(time.RFC3339),
			r.Results.TotalScore, r.Results.MaxScore, r.Results.CorrectCount, r.Results.PercentageValue(),
			strings.Join(r.Tags, ", "),
		})
	}

	mistakes := [][]interface{}{{"Question", "Title", "Type", "Count", "Last wrong", "Your answer", "Correct answer", "Resolved", "Notes"}}
	for _, m := range export.Mistakes {
		mistakes = append(mistakes, []interface{}{
			m.Question.ID, m.Question.Title, string(m.Question.Type), m.Count, m.LastWrongTime.Format(time.RFC3339),
			m.UserAnswer.String(), m.Question.CorrectAnswer.String(), m.Resolved, m.Notes,
		})
	}

	topics := [][]interface{}{{"Ranking", "Topic", "Accuracy", "Correct", "Total"}}
	for _, t := range stats.StrongTopics {
		topics = append(topics, []interface{}{"strong", t.Topic, t.Accuracy, t.Correct, t.Total})
	}
	for _, t := range stats.WeakTopics {
		topics = append(topics, []interface{}{"weak", t.Topic, t.Accuracy, t.Correct, t.Total})
	}

	for sheet, rows := range map[string][][]interface{}{
		sheetSummary:  summary,
		sheetRecords:  records,
		sheetMistakes: mistakes,
		sheetTopics:   topics,
	} {
		if err := writeRows(f, sheet, rows, headerStyle); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return contextutils.WrapError(err, "failed to write workbook")
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return contextutils.WrapError(err, "failed to address cell")
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return contextutils.WrapErrorf(err, "failed to write row %d of %s", i+1, sheet)
		}
	}
	if len(rows) > 0 {
		last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return contextutils.WrapError(err, "failed to address cell")
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return contextutils.WrapErrorf(err, "failed to style header of %s", sheet)
		}
	}
	return nil
}

// ImportUserData validates raw records against the attempt record schema, assigns
// them to the requesting user and stores them with one rewrite. Entries that fail
// validation are counted and reported without stopping the batch; records whose id
// is already stored are skipped. Statistics are recomputed afterwards.
func (s *ExportService) ImportUserData(ctx context.Context, req *models.ImportRequest) (result0 *models.ImportResult, err error) {
	ctx, span := observability.TraceExportFunction(ctx, "ImportUserData")
	defer observability.FinishSpan(span, &err)

	if req == nil {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "import request is required")
	}
	if err = contextutils.ValidateStruct(req); err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttributeUserID(req.UserID), observability.AttributeCount(len(req.Records)))

	if len(req.Records) > s.maxRecords {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn,
			"Too many records", fmt.Sprintf("%d records exceeds the limit of %d", len(req.Records), s.maxRecords))
	}

	result := &models.ImportResult{Errors: []string{}}
	valid := make([]models.AttemptRecord, 0, len(req.Records))

	for i, raw := range req.Records {
		rec, verr := s.decodeImported(raw)
		if verr != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", i, verr))
			continue
		}
		rec.UserID = req.UserID
		if verr := rec.Validate(); verr != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", i, verr))
			continue
		}
		valid = append(valid, rec)
	}

	imported, skipped, err := s.records.ImportRecords(ctx, valid)
	if err != nil {
		return nil, err
	}
	result.Imported = imported
	result.Skipped = skipped

	if imported > 0 {
		if _, rerr := s.stats.Recompute(ctx, req.UserID); rerr != nil {
			s.logger.Error(ctx, "Failed to recompute statistics after import", rerr, map[string]interface{}{"user_id": req.UserID})
		}
	}

	s.metrics.RecordsImported(ctx, result.Imported, result.Skipped, result.Failed)
	s.logger.Info(ctx, "Imported user data", map[string]interface{}{
		"user_id":  req.UserID,
		"imported": result.Imported,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
	})
	return result, nil
}

// decodeImported checks one raw record against the schema and decodes it
func (s *ExportService) decodeImported(raw []byte) (models.AttemptRecord, error) {
	res, err := s.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return models.AttemptRecord{}, contextutils.WrapError(contextutils.ErrInvalidFormat, "record is not valid JSON")
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return models.AttemptRecord{}, contextutils.NewAppError(contextutils.ErrorCodeValidationFailed, contextutils.SeverityWarn,
			"Record does not match schema", strings.Join(msgs, "; "))
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return models.AttemptRecord{}, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeInvalidFormat, contextutils.SeverityWarn,
			"Record could not be decoded", err.Error(), err)
	}
	return rec, nil
}
