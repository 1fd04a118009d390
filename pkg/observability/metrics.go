package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce   sync.Once
	eventCounter  metric.Int64Counter
	turnHistogram metric.Float64Histogram
)

func instruments() (metric.Int64Counter, metric.Float64Histogram) {
	metricsOnce.Do(func() {
		meter := otel.Meter("companion-engine/backend")
		eventCounter, _ = meter.Int64Counter("engine_events_total",
			metric.WithDescription("Engine events published on the internal bus, by type"))
		turnHistogram, _ = meter.Float64Histogram("chat_turn_seconds",
			metric.WithDescription("Wall time of a full chat turn, streaming included"))
	})
	return eventCounter, turnHistogram
}

// CountEvent increments the bus event counter for the given event type.
func CountEvent(ctx context.Context, eventType string) {
	counter, _ := instruments()
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

// RecordTurn records the duration of a completed chat turn in seconds.
func RecordTurn(ctx context.Context, seconds float64, ok bool) {
	_, hist := instruments()
	if hist == nil {
		return
	}
	hist.Record(ctx, seconds, metric.WithAttributes(attribute.Bool("ok", ok)))
}
