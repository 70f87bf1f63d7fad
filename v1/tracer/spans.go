package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Attribute keys shared by data plane spans.
const (
	AttrTable     = attribute.Key("db.sql.table")
	AttrOperation = attribute.Key("db.operation")
	AttrRows      = attribute.Key("db.rows")
	AttrProcedure = attribute.Key("rpc.method")
	AttrRole      = attribute.Key("enduser.role")
)

// StartRequest opens the span of one table request, named after its
// action ("dal.select", "dal.insert", ...).
func (t *Tracer) StartRequest(ctx context.Context, table, action, role string) (context.Context, trace.Span) {
	return t.start(ctx, "dal."+action,
		semconv.DBSystemKey.String("dataplane"),
		AttrTable.String(table),
		AttrOperation.String(action),
		AttrRole.String(role),
	)
}

// StartProcedure opens the span of one named procedure call.
func (t *Tracer) StartProcedure(ctx context.Context, name, role string) (context.Context, trace.Span) {
	return t.start(ctx, "dal.rpc",
		AttrProcedure.String(name),
		AttrRole.String(role),
	)
}

// StartSpan opens a span without preset attributes.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.start(ctx, name)
}

func (t *Tracer) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil || t.provider == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, name)
	}
	return t.provider.Tracer(instrumentationName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordRows notes how many rows a request produced.
func (t *Tracer) RecordRows(span trace.Span, n int) {
	span.SetAttributes(AttrRows.Int(n))
}

// RecordErrorOnSpan marks span as failed with err. A nil err is ignored.
func (t *Tracer) RecordErrorOnSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes adds free-form attributes to span. Values without a native
// attribute kind are rendered with fmt.Sprint.
func (t *Tracer) SetAttributes(span trace.Span, attrs map[string]interface{}) {
	if len(attrs) == 0 {
		return
	}
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, toAttribute(k, v))
	}
	span.SetAttributes(kvs...)
}

func toAttribute(key string, v interface{}) attribute.KeyValue {
	k := attribute.Key(key)
	switch val := v.(type) {
	case string:
		return k.String(val)
	case int:
		return k.Int(val)
	case int64:
		return k.Int64(val)
	case float64:
		return k.Float64(val)
	case bool:
		return k.Bool(val)
	case []string:
		return k.StringSlice(val)
	default:
		return k.String(fmt.Sprint(val))
	}
}
