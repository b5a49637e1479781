// Package fairing attaches a template store to a net/http application.
//
// A Fairing builds the store once at startup and keeps it as an atomic
// snapshot. Attach hands each request the snapshot current when the request
// started; Reload and Watch build a complete new store and swap it in, so
// in-flight requests never observe a partly loaded tree.
package fairing

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skosovsky/tmplkit"
	"github.com/skosovsky/tmplkit/config"
	"github.com/skosovsky/tmplkit/engines/handlebars"
	"github.com/skosovsky/tmplkit/engines/pongo2"
)

// Fairing owns the current template store for an application.
type Fairing struct {
	dir      string
	engines  []tmplkit.Engine
	logger   *slog.Logger
	debounce time.Duration

	current   atomic.Pointer[tmplkit.Store]
	reloads   singleflight.Group
	requested atomic.Uint64
}

// Option configures a Fairing.
type Option func(*Fairing)

// WithEngines replaces the default engines (pongo2 and handlebars).
func WithEngines(engines ...tmplkit.Engine) Option {
	return func(f *Fairing) {
		f.engines = engines
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Fairing) {
		f.logger = l
	}
}

// WithDebounce sets how long Watch waits for a burst of file events to
// settle before reloading. Defaults to 100ms.
func WithDebounce(d time.Duration) Option {
	return func(f *Fairing) {
		f.debounce = d
	}
}

// DefaultEngines returns a fresh pongo2 engine and a fresh handlebars engine.
func DefaultEngines() []tmplkit.Engine {
	return []tmplkit.Engine{pongo2.New(), handlebars.New()}
}

// New loads every template under dir. A load failure is returned as is
// (a *tmplkit.LoadError) and no Fairing is created.
func New(ctx context.Context, dir string, opts ...Option) (*Fairing, error) {
	f := &Fairing{
		dir:      dir,
		logger:   slog.Default(),
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	if len(f.engines) == 0 {
		f.engines = DefaultEngines()
	}
	store, err := f.load(ctx)
	if err != nil {
		return nil, err
	}
	f.current.Store(store)
	return f, nil
}

// FromConfig is New with the template directory and engine settings from cfg.
// Options given here are applied after the ones derived from cfg.
func FromConfig(ctx context.Context, cfg config.Config, opts ...Option) (*Fairing, error) {
	engines := WithEngines(
		pongo2.New(pongo2.WithMarkupFormats(cfg.MarkupFormats...)),
		handlebars.New(),
	)
	return New(ctx, cfg.TemplateDir, append([]Option{engines}, opts...)...)
}

func (f *Fairing) load(ctx context.Context) (*tmplkit.Store, error) {
	return tmplkit.LoadDir(ctx, f.dir, tmplkit.WithEngines(f.engines...), tmplkit.WithLogger(f.logger))
}

// Store returns the current snapshot.
func (f *Fairing) Store() *tmplkit.Store { return f.current.Load() }

// Dir returns the template directory.
func (f *Fairing) Dir() string { return f.dir }

// Reload rebuilds the store from disk and swaps it in. On failure the
// previous store stays current and the error is returned.
//
// Concurrent calls share one rebuild, but a call never settles for a
// rebuild that began walking the tree before the call was made: it waits
// for that one to finish and then runs or joins the next. The shared
// rebuild is not cancelled by any one caller; a caller whose ctx ends
// stops waiting and gets ctx.Err().
func (f *Fairing) Reload(ctx context.Context) error {
	ticket := f.requested.Add(1)
	for {
		ch := f.reloads.DoChan("reload", func() (any, error) {
			return f.rebuild(context.WithoutCancel(ctx))
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			if covered, _ := res.Val.(uint64); covered >= ticket {
				return res.Err
			}
		}
	}
}

// rebuild loads a fresh store and reports the highest reload ticket issued
// before the walk started; every Reload holding a ticket up to it sees its
// change reflected.
func (f *Fairing) rebuild(ctx context.Context) (uint64, error) {
	covered := f.requested.Load()
	store, err := f.load(ctx)
	if err != nil {
		f.logger.ErrorContext(ctx, "template reload failed, keeping previous templates", "dir", f.dir, "error", err)
		return covered, err
	}
	prev := f.current.Swap(store)
	f.logger.InfoContext(ctx, "templates reloaded", "dir", f.dir, "count", store.Len(), "previous", prev.Len())
	return covered, nil
}
