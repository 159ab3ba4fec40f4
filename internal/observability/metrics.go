package observability

import (
	"context"

	"examprep/internal/config"
	contextutils "examprep/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitMetrics initializes OpenTelemetry metrics
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otel resource: %w", err)
	}

	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
		exporter = exp
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "unsupported otel protocol: %s", cfg.Protocol)
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	)
	return mp, nil
}

// DomainMetrics holds the counters emitted by the record, statistics and import paths.
// A nil *DomainMetrics is valid and records nothing.
type DomainMetrics struct {
	recordsSaved         otelmetric.Int64Counter
	recordsDeleted       otelmetric.Int64Counter
	recordsImported      otelmetric.Int64Counter
	statisticsRecomputed otelmetric.Int64Counter
	statisticsUpdated    otelmetric.Int64Counter
}

// NewDomainMetrics creates the counters from the global meter provider (no-op until one is installed)
func NewDomainMetrics() (*DomainMetrics, error) {
	return NewDomainMetricsWithMeter(otel.Meter(instrumentationName))
}

// NewDomainMetricsWithMeter creates the counters from the given meter
func NewDomainMetricsWithMeter(meter otelmetric.Meter) (result0 *DomainMetrics, err error) {
	m := &DomainMetrics{}
	if m.recordsSaved, err = meter.Int64Counter("records.saved", otelmetric.WithDescription("Attempt records saved")); err != nil {
		return nil, err
	}
	if m.recordsDeleted, err = meter.Int64Counter("records.deleted", otelmetric.WithDescription("Attempt records deleted")); err != nil {
		return nil, err
	}
	if m.recordsImported, err = meter.Int64Counter("records.imported", otelmetric.WithDescription("Attempt records imported, by outcome")); err != nil {
		return nil, err
	}
	if m.statisticsRecomputed, err = meter.Int64Counter("statistics.recomputed", otelmetric.WithDescription("Full statistics recomputations")); err != nil {
		return nil, err
	}
	if m.statisticsUpdated, err = meter.Int64Counter("statistics.updated", otelmetric.WithDescription("Incremental statistics updates")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordSaved counts a saved attempt record
func (m *DomainMetrics) RecordSaved(ctx context.Context, recordType string) {
	if m == nil {
		return
	}
	m.recordsSaved.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("record.type", recordType)))
}

// RecordDeleted counts a deleted attempt record
func (m *DomainMetrics) RecordDeleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.recordsDeleted.Add(ctx, 1)
}

// RecordsImported counts import outcomes
func (m *DomainMetrics) RecordsImported(ctx context.Context, imported, skipped, failed int) {
	if m == nil {
		return
	}
	m.recordsImported.Add(ctx, int64(imported), otelmetric.WithAttributes(attribute.String("outcome", "imported")))
	m.recordsImported.Add(ctx, int64(skipped), otelmetric.WithAttributes(attribute.String("outcome", "skipped")))
	m.recordsImported.Add(ctx, int64(failed), otelmetric.WithAttributes(attribute.String("outcome", "failed")))
}

// StatisticsRecomputed counts a full statistics recomputation
func (m *DomainMetrics) StatisticsRecomputed(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.statisticsRecomputed.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("reason", reason)))
}

// StatisticsUpdated counts an incremental statistics update
func (m *DomainMetrics) StatisticsUpdated(ctx context.Context) {
	if m == nil {
		return
	}
	m.statisticsUpdated.Add(ctx, 1)
}
