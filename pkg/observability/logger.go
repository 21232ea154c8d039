package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrVersion = "version"
	attrEnv     = "env"
	attrMode    = "mode"

	// spanEventName is the span event recorded for warnings and errors.
	spanEventName = "log"
)

// Identity is the process metadata stamped on every record.
type Identity struct {
	Service string
	Version string
	Env     string
	Mode    AppMode
}

// TracingHandler is an [slog.Handler] that correlates log records with the
// active span. Every record gets trace_id and span_id when a span is present;
// records at warn level or above are also added to the span as events, so a
// skipped release or a parse failure shows up on its faultline.release span.
type TracingHandler struct {
	inner slog.Handler
	// attrs are the handler-level attributes copied onto span events.
	attrs []attribute.KeyValue
}

// NewTracingHandler wraps inner. Identity attributes are attached to the inner
// handler up front so they stay at the top level under WithGroup.
func NewTracingHandler(inner slog.Handler, id Identity) *TracingHandler {
	attrs := []slog.Attr{
		slog.String(attrService, id.Service),
		slog.String(attrMode, string(id.Mode)),
	}

	if id.Version != "" {
		attrs = append(attrs, slog.String(attrVersion, id.Version))
	}

	if id.Env != "" {
		attrs = append(attrs, slog.String(attrEnv, id.Env))
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds the span context, mirrors warnings onto the span, then delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	span := trace.SpanFromContext(ctx)

	sc := span.SpanContext()
	if sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if record.Level >= slog.LevelWarn && span.IsRecording() {
		span.AddEvent(spanEventName, trace.WithAttributes(th.eventAttrs(record)...))
	}

	err := th.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

func (th *TracingHandler) eventAttrs(record slog.Record) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(th.attrs)+record.NumAttrs()+2)
	out = append(out,
		attribute.String("level", record.Level.String()),
		attribute.String("message", record.Message),
	)
	out = append(out, th.attrs...)

	record.Attrs(func(a slog.Attr) bool {
		out = append(out, toAttribute(a))

		return true
	})

	return out
}

func toAttribute(a slog.Attr) attribute.KeyValue {
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindInt64:
		return attribute.Int64(a.Key, v.Int64())
	case slog.KindFloat64:
		return attribute.Float64(a.Key, v.Float64())
	case slog.KindBool:
		return attribute.Bool(a.Key, v.Bool())
	default:
		return attribute.String(a.Key, v.String())
	}
}

// WithAttrs returns a new TracingHandler with additional attributes.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	spanAttrs := make([]attribute.KeyValue, 0, len(th.attrs)+len(attrs))
	spanAttrs = append(spanAttrs, th.attrs...)

	for _, a := range attrs {
		spanAttrs = append(spanAttrs, toAttribute(a))
	}

	return &TracingHandler{
		inner: th.inner.WithAttrs(attrs),
		attrs: spanAttrs,
	}
}

// WithGroup returns a new TracingHandler with a group prefix on the inner handler.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{
		inner: th.inner.WithGroup(name),
		attrs: th.attrs,
	}
}
