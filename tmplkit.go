package tmplkit

import "time"

// Context is the data a template is rendered with. Built per call; owned by the caller.
type Context map[string]any

// Source is one discovered template file handed to an Engine for compilation.
type Source struct {
	Name    string // logical name, e.g. "pongo2/html_test"
	Path    string // slash path relative to the template root
	Format  string // inner extension without the dot ("html", "txt"); may be empty
	ModTime time.Time
	Data    []byte
}

// Handle is a compiled template. Render must be safe for concurrent use.
type Handle interface {
	Render(data Context) (string, error)
}

// Engine compiles every source carrying its extension.
// Compile receives the whole batch so templates can reference each other
// (inheritance, includes, partials) by logical name. It must return one
// Handle per source, keyed by Source.Name.
type Engine interface {
	Name() string
	Extension() string // with the leading dot, e.g. ".hbs"
	Compile(sources []Source) (map[string]Handle, error)
}

// Entry is a loaded template. Immutable after load.
type Entry struct {
	Name    string
	Engine  string
	Path    string
	Format  string
	ModTime time.Time

	handle Handle
}
