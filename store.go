package tmplkit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Store maps logical template names to compiled templates.
// Built once by Load; immutable afterwards, so reads need no locking.
type Store struct {
	root     string
	entries  map[string]Entry
	names    []string
	loadedAt time.Time
	logger   *slog.Logger
}

// Load walks fsys from its root and compiles every file whose extension
// belongs to a registered engine. Files with other extensions and hidden
// files or directories are skipped. Logical names must be unique across all
// engines. Any walk, parse or naming failure is returned as a *LoadError and
// no Store is built.
//
// Engines compile concurrently, one goroutine per engine.
func Load(ctx context.Context, fsys fs.FS, opts ...Option) (*Store, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger(ctx)
	}
	if len(o.engines) == 0 {
		return nil, &LoadError{Err: ErrNoEngines}
	}
	byExt := make(map[string]Engine, len(o.engines))
	for _, e := range o.engines {
		ext := e.Extension()
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return nil, &LoadError{Engine: e.Name(), Err: fmt.Errorf("invalid extension %q", ext)}
		}
		if prev, dup := byExt[ext]; dup {
			return nil, &LoadError{Engine: e.Name(), Err: fmt.Errorf("extension %q already used by %s", ext, prev.Name())}
		}
		byExt[ext] = e
	}

	ctx, span := tracer.Start(ctx, "tmplkit.load", trace.WithAttributes(attribute.String("template.root", o.root)))
	defer span.End()

	store, err := load(ctx, fsys, o, byExt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("template.count", len(store.entries)))
	o.logger.InfoContext(ctx, "templates loaded", "root", o.root, "count", len(store.entries))
	return store, nil
}

func load(ctx context.Context, fsys fs.FS, o loadOptions, byExt map[string]Engine) (*Store, error) {
	batches := make(map[string][]Source, len(byExt))
	seen := make(map[string]string) // logical name -> source path
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return &LoadError{Path: p, Err: err}
		}
		if p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return ctx.Err()
		}
		engine := engineFor(byExt, p)
		if engine == nil {
			o.logger.DebugContext(ctx, "skipping file without engine", "path", p)
			return nil
		}
		name, format, ok := LogicalName(p, engine.Extension())
		if !ok {
			return &LoadError{Path: p, Engine: engine.Name(), Err: fmt.Errorf("%w: cannot derive a name", ErrInvalidName)}
		}
		if err := ValidateName(name); err != nil {
			return &LoadError{Path: p, Engine: engine.Name(), Err: err}
		}
		if prev, dup := seen[name]; dup {
			return &LoadError{Path: p, Engine: engine.Name(), Err: fmt.Errorf("%w: %q also defined by %q", ErrDuplicateName, name, prev)}
		}
		seen[name] = p
		info, err := d.Info()
		if err != nil {
			return &LoadError{Path: p, Engine: engine.Name(), Err: err}
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return &LoadError{Path: p, Engine: engine.Name(), Err: err}
		}
		batches[engine.Extension()] = append(batches[engine.Extension()], Source{
			Name:    name,
			Path:    p,
			Format:  format,
			ModTime: info.ModTime(),
			Data:    data,
		})
		return nil
	})
	if err != nil {
		var le *LoadError
		if !errors.As(err, &le) {
			err = &LoadError{Err: err}
		}
		return nil, err
	}

	compiled := make([]map[string]Handle, len(o.engines))
	g, gctx := errgroup.WithContext(ctx)
	for i, engine := range o.engines {
		sources := batches[engine.Extension()]
		if len(sources) == 0 {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			handles, err := engine.Compile(sources)
			if err != nil {
				var le *LoadError
				if !errors.As(err, &le) {
					err = &LoadError{Engine: engine.Name(), Err: fmt.Errorf("%w: %w", ErrTemplateParse, err)}
				}
				return err
			}
			for _, src := range sources {
				if handles[src.Name] == nil {
					return &LoadError{Path: src.Path, Engine: engine.Name(), Err: fmt.Errorf("engine returned no template for %q", src.Name)}
				}
			}
			compiled[i] = handles
			recordLoad(gctx, engine.Name(), len(sources))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &Store{
		root:     o.root,
		entries:  make(map[string]Entry, len(seen)),
		loadedAt: time.Now(),
		logger:   o.logger,
	}
	for i, engine := range o.engines {
		for _, src := range batches[engine.Extension()] {
			s.entries[src.Name] = Entry{
				Name:    src.Name,
				Engine:  engine.Name(),
				Path:    src.Path,
				Format:  src.Format,
				ModTime: src.ModTime,
				handle:  compiled[i][src.Name],
			}
		}
	}
	s.names = make([]string, 0, len(s.entries))
	for name := range s.entries {
		s.names = append(s.names, name)
	}
	slices.Sort(s.names)
	return s, nil
}

// engineFor picks the engine whose extension the file name ends with.
// The longest matching extension wins.
func engineFor(byExt map[string]Engine, p string) Engine {
	base := path.Base(p)
	var best Engine
	for ext, e := range byExt {
		if strings.HasSuffix(base, ext) && len(base) > len(ext) {
			if best == nil || len(ext) > len(best.Extension()) {
				best = e
			}
		}
	}
	return best
}

// LoadDir loads templates from the directory dir on disk.
func LoadDir(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("%w: %w", ErrTemplateDir, err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Err: fmt.Errorf("%w: %s is not a directory", ErrTemplateDir, dir)}
	}
	return Load(ctx, os.DirFS(dir), append(opts, withRoot(dir))...)
}

// Contains reports whether name is a loaded template.
func (s *Store) Contains(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Lookup returns the entry for name.
func (s *Store) Lookup(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Get returns the entry for name, or an error wrapping ErrTemplateNotFound.
func (s *Store) Get(name string) (Entry, error) {
	e, ok := s.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return e, nil
}

// Names returns the sorted logical names. The slice is a copy.
func (s *Store) Names() []string { return slices.Clone(s.names) }

// Entries returns all entries sorted by name.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.entries[name])
	}
	return out
}

// Len returns the number of templates.
func (s *Store) Len() int { return len(s.entries) }

// Root returns the directory given to LoadDir; empty for Load.
func (s *Store) Root() string { return s.root }

// LoadedAt returns when the store finished building.
func (s *Store) LoadedAt() time.Time { return s.loadedAt }
