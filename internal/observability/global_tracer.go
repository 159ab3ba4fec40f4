package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "examprep"

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer(instrumentationName)
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		globalTracer = otel.Tracer(instrumentationName)
	}
	return globalTracer
}

// TraceFunction starts a new span with a descriptive name for the given service and function.
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetGlobalTracer()
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceRecordFunction starts a new span for a record store function.
func TraceRecordFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "records", functionName, attributes...)
}

// TraceMistakeFunction starts a new span for a mistake service function.
func TraceMistakeFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "mistakes", functionName, attributes...)
}

// TraceStatisticsFunction starts a new span for a statistics service function.
func TraceStatisticsFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "statistics", functionName, attributes...)
}

// TraceExportFunction starts a new span for an export or import function.
func TraceExportFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "export", functionName, attributes...)
}

// TraceStorageFunction starts a new span for a key-value storage function.
func TraceStorageFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "storage", functionName, attributes...)
}

// TraceWorkerFunction starts a new span for a worker function.
func TraceWorkerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "worker", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeUserID returns a tracing attribute for a user ID.
func AttributeUserID(id string) attribute.KeyValue {
	return attribute.String("user.id", id)
}

// AttributeRecordID returns a tracing attribute for an attempt record ID.
func AttributeRecordID(id string) attribute.KeyValue {
	return attribute.String("record.id", id)
}

// AttributeRecordType returns a tracing attribute for an attempt record type.
func AttributeRecordType(recordType interface{}) attribute.KeyValue {
	return attribute.String("record.type", fmt.Sprintf("%v", recordType))
}

// AttributeExerciseID returns a tracing attribute for an exercise ID.
func AttributeExerciseID(id string) attribute.KeyValue {
	return attribute.String("exercise.id", id)
}

// AttributeQuestionID returns a tracing attribute for a question ID.
func AttributeQuestionID(id string) attribute.KeyValue {
	return attribute.String("question.id", id)
}

// AttributeStorageKey returns a tracing attribute for a storage key.
func AttributeStorageKey(key string) attribute.KeyValue {
	return attribute.String("storage.key", key)
}

// AttributeCount returns a tracing attribute for a number of items.
func AttributeCount(n int) attribute.KeyValue {
	return attribute.Int("count", n)
}

// AttributeFormat returns a tracing attribute for an export format.
func AttributeFormat(format string) attribute.KeyValue {
	return attribute.String("format", format)
}

// AttributeTagFilter returns a tracing attribute for a tag filter value.
func AttributeTagFilter(tag string) attribute.KeyValue {
	return attribute.String("tag_filter", tag)
}
