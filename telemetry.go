package tmplkit

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Spans and instruments use the global OTel providers. Configure them with
// otel.SetTracerProvider / otel.SetMeterProvider before loading templates.
var tracer = otel.Tracer("github.com/skosovsky/tmplkit")

type instruments struct {
	renders       metric.Int64Counter
	renderErrors  metric.Int64Counter
	renderMisses  metric.Int64Counter
	renderLatency metric.Float64Histogram
	loaded        metric.Int64Counter
}

var (
	defaultInstruments     *instruments
	defaultInstrumentsOnce sync.Once
)

// meters lazily creates the instruments. Creation errors leave the
// affected instrument nil and recording is skipped.
func meters() *instruments {
	defaultInstrumentsOnce.Do(func() {
		meter := otel.Meter("github.com/skosovsky/tmplkit")
		in := &instruments{}
		in.renders, _ = meter.Int64Counter("tmplkit.render.count",
			metric.WithDescription("Number of template renders"))
		in.renderErrors, _ = meter.Int64Counter("tmplkit.render.errors",
			metric.WithDescription("Number of renders that failed inside the engine"))
		in.renderMisses, _ = meter.Int64Counter("tmplkit.render.misses",
			metric.WithDescription("Number of renders for names not in the store"))
		in.renderLatency, _ = meter.Float64Histogram("tmplkit.render.latency_ms",
			metric.WithDescription("Template render latency in milliseconds"),
			metric.WithUnit("ms"))
		in.loaded, _ = meter.Int64Counter("tmplkit.load.templates",
			metric.WithDescription("Number of templates compiled by store loads"))
		defaultInstruments = in
	})
	return defaultInstruments
}

func recordRender(ctx context.Context, e Entry, d time.Duration, err error) {
	m := meters()
	attrs := metric.WithAttributes(
		attribute.String("template.name", e.Name),
		attribute.String("template.engine", e.Engine),
	)
	if m.renders != nil {
		m.renders.Add(ctx, 1, attrs)
	}
	if m.renderLatency != nil {
		m.renderLatency.Record(ctx, float64(d.Microseconds())/1000.0, attrs)
	}
	if err != nil && m.renderErrors != nil {
		m.renderErrors.Add(ctx, 1, attrs)
	}
}

func recordMiss(ctx context.Context, name string) {
	if m := meters(); m.renderMisses != nil {
		m.renderMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("template.name", name)))
	}
}

func recordLoad(ctx context.Context, engine string, n int) {
	if m := meters(); m.loaded != nil {
		m.loaded.Add(ctx, int64(n), metric.WithAttributes(attribute.String("template.engine", engine)))
	}
}
