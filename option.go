package tmplkit

import "log/slog"

type loadOptions struct {
	engines []Engine
	logger  *slog.Logger
	root    string
}

// Option configures Load and LoadDir (functional options pattern).
type Option func(*loadOptions)

// WithEngines registers the engines templates are discovered for.
// Extensions must be distinct; at least one engine is required.
func WithEngines(engines ...Engine) Option {
	return func(o *loadOptions) {
		o.engines = append(o.engines, engines...)
	}
}

// WithLogger sets the logger used during load and render.
// Without it the logger carried by the load context is used (see LoggingContext).
func WithLogger(l *slog.Logger) Option {
	return func(o *loadOptions) {
		o.logger = l
	}
}

// withRoot records the directory a Store was loaded from.
func withRoot(dir string) Option {
	return func(o *loadOptions) {
		o.root = dir
	}
}
