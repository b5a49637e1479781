package pongo2

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/skosovsky/tmplkit"
)

// loader serves one compile batch to pongo2 from memory. Every template is
// prefixed with the escape-mode tag so the rendered template's format, not
// the format of a parent it extends, decides escaping.
type loader struct {
	byName  map[string]tmplkit.Source
	byPath  map[string]string // source path -> logical name
	escapes func(format string) bool
}

func newLoader(sources []tmplkit.Source, escapes func(format string) bool) *loader {
	l := &loader{
		byName:  make(map[string]tmplkit.Source, len(sources)),
		byPath:  make(map[string]string, len(sources)),
		escapes: escapes,
	}
	for _, src := range sources {
		l.byName[src.Name] = src
		l.byPath[src.Path] = src.Name
	}
	return l
}

// Abs resolves name, as written in a template whose logical name is base,
// to a logical name. Logical names and root-relative source paths resolve
// as-is; anything else is tried relative to base's directory.
func (l *loader) Abs(base, name string) string {
	if n, ok := l.resolve(name); ok {
		return n
	}
	if src, ok := l.byName[base]; ok {
		if n, ok := l.resolve(path.Join(path.Dir(src.Path), name)); ok {
			return n
		}
	}
	return name
}

func (l *loader) resolve(name string) (string, bool) {
	name = strings.TrimPrefix(name, "/")
	if _, ok := l.byName[name]; ok {
		return name, true
	}
	if n, ok := l.byPath[name]; ok {
		return n, true
	}
	return "", false
}

func (l *loader) Get(name string) (io.Reader, error) {
	src, ok := l.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", tmplkit.ErrTemplateNotFound, name)
	}
	return io.MultiReader(strings.NewReader(escapePrelude(l.escapes(src.Format))), bytes.NewReader(src.Data)), nil
}
