package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/psantana5/costime/pkg/costime"
)

// SpanObserver turns end and step measurements into spans named after the
// label, backdated to the measured interval.
type SpanObserver struct {
	tracer trace.Tracer
}

// NewSpanObserver creates an observer recording spans on tracer
func NewSpanObserver(tracer trace.Tracer) *SpanObserver {
	return &SpanObserver{tracer: tracer}
}

// Observe implements costime.Observer
func (o *SpanObserver) Observe(m costime.Measurement) {
	if m.Kind == costime.KindStart {
		return
	}

	_, span := o.tracer.Start(context.Background(), m.Label,
		trace.WithTimestamp(m.StartedAt),
		trace.WithAttributes(
			attribute.String("costime.tag", m.Tag),
			attribute.String("costime.kind", string(m.Kind)),
			attribute.Int64("costime.elapsed_ms", m.ElapsedMillis()),
		),
	)
	span.End(trace.WithTimestamp(m.EndedAt))
}
