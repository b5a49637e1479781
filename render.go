package tmplkit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Render renders the template called name with data.
//
// A name that is not in the store yields ("", false, nil): absence is not an
// error and has no side effects beyond telemetry. When the engine fails, the
// result is ("", true, err) with err a *RenderError wrapping
// ErrTemplateRender. Escaping is decided by the engine alone.
func (s *Store) Render(ctx context.Context, name string, data Context) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "tmplkit.render", trace.WithAttributes(attribute.String("template.name", name)))
	defer span.End()

	e, ok := s.entries[name]
	if !ok {
		span.SetAttributes(attribute.Bool("template.found", false))
		recordMiss(ctx, name)
		return "", false, nil
	}
	span.SetAttributes(
		attribute.Bool("template.found", true),
		attribute.String("template.engine", e.Engine),
	)
	if data == nil {
		data = Context{}
	}

	start := time.Now()
	out, err := e.handle.Render(data)
	recordRender(ctx, e, time.Since(start), err)
	if err != nil {
		rerr := &RenderError{Template: name, Engine: e.Engine, Err: fmt.Errorf("%w: %w", ErrTemplateRender, err)}
		span.RecordError(rerr)
		span.SetStatus(codes.Error, rerr.Error())
		s.logger.DebugContext(ctx, "template render failed", "template", name, "engine", e.Engine, "error", err)
		return "", true, rerr
	}
	return out, true, nil
}
