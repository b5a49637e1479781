// Package handlebars is the Handlebars engine, backed by
// github.com/mailgun/raymond/v2.
//
// Templates use the ".hbs" extension and always HTML-escape {{ }}
// interpolations, whatever their inner extension. Every template of a load
// is available to every other as a partial under its logical name:
//
//	{{> hbs/common/header }}
package handlebars

import (
	"fmt"

	"github.com/mailgun/raymond/v2"

	"github.com/skosovsky/tmplkit"
	"github.com/skosovsky/tmplkit/internal/cast"
)

// Extension is the file extension handled by the engine.
const Extension = ".hbs"

// Name is the engine name recorded on entries.
const Name = "handlebars"

// Engine compiles Handlebars templates. Create with New.
type Engine struct {
	helpers map[string]any
}

var _ tmplkit.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithHelper adds a helper available to every template. fn must be a
// function returning exactly one value; raymond rejects anything else at
// compile time.
func WithHelper(name string, fn any) Option {
	return func(e *Engine) {
		e.helpers[name] = fn
	}
}

// New returns an Engine with the sanitize and truncate_chars helpers.
func New(opts ...Option) *Engine {
	e := &Engine{helpers: map[string]any{
		"sanitize":       sanitize,
		"truncate_chars": truncateChars,
	}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements tmplkit.Engine.
func (e *Engine) Name() string { return Name }

// Extension implements tmplkit.Engine.
func (e *Engine) Extension() string { return Extension }

// Compile parses every source, then registers each parsed template as a
// partial of every other one.
func (e *Engine) Compile(sources []tmplkit.Source) (map[string]tmplkit.Handle, error) {
	parsed := make(map[string]*raymond.Template, len(sources))
	for _, src := range sources {
		tpl, err := raymond.Parse(string(src.Data))
		if err != nil {
			return nil, tmplkit.ParseError(Name, src, err)
		}
		parsed[src.Name] = tpl
	}
	out := make(map[string]tmplkit.Handle, len(parsed))
	for _, src := range sources {
		tpl := parsed[src.Name]
		if err := e.link(tpl, parsed); err != nil {
			return nil, tmplkit.ParseError(Name, src, err)
		}
		out[src.Name] = &handle{tpl: tpl}
	}
	return out, nil
}

// link registers helpers and partials on tpl. raymond reports invalid
// helpers and duplicate registrations by panicking.
func (e *Engine) link(tpl *raymond.Template, partials map[string]*raymond.Template) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	tpl.RegisterHelpers(e.helpers)
	for name, p := range partials {
		tpl.RegisterPartialTemplate(name, p)
	}
	return nil
}

type handle struct {
	tpl *raymond.Template
}

func (h *handle) Render(data tmplkit.Context) (string, error) {
	if data == nil {
		data = tmplkit.Context{}
	}
	return h.tpl.Exec(map[string]any(data))
}

func sanitize(v any) raymond.SafeString {
	return raymond.SafeString(tmplkit.Sanitize(raymond.Str(v)))
}

func truncateChars(v any, n any) string {
	limit, ok := cast.ToInt64(n)
	if !ok {
		return raymond.Str(v)
	}
	return tmplkit.TruncateChars(raymond.Str(v), int(limit))
}
