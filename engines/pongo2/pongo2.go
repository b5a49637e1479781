// Package pongo2 is the Django/Jinja-syntax engine, backed by
// github.com/flosch/pongo2/v6.
//
// Templates use the ".pongo2" extension. The inner extension decides
// escaping: markup formats (html, htm, xml by default) auto-escape
// & < > " ' / in variable output, everything else renders raw. Templates
// reference each other by logical name:
//
//	{% extends "pongo2/base" %}
//	{% include "pongo2/partials/nav" %}
//
// Paths relative to the current template's directory also resolve.
package pongo2

import (
	"strings"

	p2 "github.com/flosch/pongo2/v6"

	"github.com/skosovsky/tmplkit"
)

// Extension is the file extension handled by the engine.
const Extension = ".pongo2"

// Name is the engine name recorded on entries.
const Name = "pongo2"

// Engine compiles pongo2 templates. The zero value is not usable; call New.
type Engine struct {
	markup map[string]bool
}

var _ tmplkit.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithMarkupFormats replaces the set of inner extensions that auto-escape.
// Formats are compared case-insensitively, without the leading dot.
func WithMarkupFormats(formats ...string) Option {
	return func(e *Engine) {
		e.markup = make(map[string]bool, len(formats))
		for _, f := range formats {
			e.markup[strings.ToLower(strings.TrimPrefix(f, "."))] = true
		}
	}
}

// New returns an Engine. Escaping defaults to html, htm and xml.
func New(opts ...Option) *Engine {
	e := &Engine{markup: map[string]bool{"html": true, "htm": true, "xml": true}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements tmplkit.Engine.
func (e *Engine) Name() string { return Name }

// Extension implements tmplkit.Engine.
func (e *Engine) Extension() string { return Extension }

// Escapes reports whether templates of the given format auto-escape.
func (e *Engine) Escapes(format string) bool { return e.markup[strings.ToLower(format)] }

// Compile parses every source in one template set so that extends and
// include resolve within the batch.
func (e *Engine) Compile(sources []tmplkit.Source) (map[string]tmplkit.Handle, error) {
	if err := register(); err != nil {
		return nil, err
	}
	set := p2.NewSet("tmplkit", newLoader(sources, e.Escapes))
	out := make(map[string]tmplkit.Handle, len(sources))
	for _, src := range sources {
		tpl, err := set.FromFile(src.Name)
		if err != nil {
			return nil, tmplkit.ParseError(Name, src, err)
		}
		out[src.Name] = &handle{tpl: tpl, escape: e.Escapes(src.Format)}
	}
	return out, nil
}

type handle struct {
	tpl    *p2.Template
	escape bool
}

func (h *handle) Render(data tmplkit.Context) (string, error) {
	ctx := make(p2.Context, len(data)+1)
	for k, v := range data {
		ctx[k] = v
	}
	ctx[escapeModeKey] = h.escape
	return h.tpl.Execute(ctx)
}
