// Package tracer wraps OpenTelemetry tracing for the data plane.
//
// The data access layer opens one span per table request or procedure
// call:
//
//	ctx, span := t.StartRequest(ctx, "photos", "select", "user")
//	defer span.End()
//	...
//	t.RecordRows(span, len(rows))
//	t.RecordErrorOnSpan(span, err)
//
// NewClient installs the provider and the W3C propagators globally, which
// lets the event publisher stamp the active trace onto message headers.
//
// All methods are safe on a nil *Tracer and then produce no-op spans.
package tracer
