package server

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentation = "github.com/alimasry/go-docops/server"

type metrics struct {
	applied  metric.Int64Counter
	rejected metric.Int64Counter
}

// newMetrics registers the session counters with the global meter provider.
func newMetrics() *metrics {
	meter := otel.Meter(instrumentation)
	m := &metrics{}
	var err error
	m.applied, err = meter.Int64Counter("docops.operations.applied",
		metric.WithDescription("Operations applied to documents."),
		metric.WithUnit("{operation}"))
	if err != nil {
		m.applied = noop.Int64Counter{}
	}
	m.rejected, err = meter.Int64Counter("docops.batches.rejected",
		metric.WithDescription("Operation batches rejected by a session."),
		metric.WithUnit("{batch}"))
	if err != nil {
		m.rejected = noop.Int64Counter{}
	}
	return m
}
