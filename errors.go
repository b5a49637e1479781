package tmplkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for load and render operations.
// All use prefix "tmplkit:" for identification. Callers should use errors.Is/errors.As.
var (
	ErrTemplateNotFound = errors.New("tmplkit: template not found")
	ErrTemplateParse    = errors.New("tmplkit: template parsing failed")
	ErrTemplateRender   = errors.New("tmplkit: template rendering failed")
	ErrDuplicateName    = errors.New("tmplkit: duplicate logical template name")
	ErrInvalidName      = errors.New("tmplkit: invalid template name")
	ErrTemplateDir      = errors.New("tmplkit: template directory is not usable")
	ErrNoEngines        = errors.New("tmplkit: no template engines registered")
	ErrInvalidContext   = errors.New("tmplkit: value cannot be used as a render context")
)

// LoadError reports a failure while building a Store. Any LoadError is fatal to the load.
type LoadError struct {
	Path   string // source path relative to the root; empty for directory-level failures
	Engine string
	Err    error
}

// Error implements error.
func (e *LoadError) Error() string {
	switch {
	case e.Path == "" && e.Engine == "":
		return fmt.Sprintf("tmplkit: load: %v", e.Err)
	case e.Path == "":
		return fmt.Sprintf("tmplkit: load (%s): %v", e.Engine, e.Err)
	case e.Engine == "":
		return fmt.Sprintf("tmplkit: load %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("tmplkit: load %q (%s): %v", e.Path, e.Engine, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/errors.As.
func (e *LoadError) Unwrap() error { return e.Err }

// RenderError reports an engine failure while rendering a template that exists.
type RenderError struct {
	Template string
	Engine   string
	Err      error
}

// Error implements error.
func (e *RenderError) Error() string {
	return fmt.Sprintf("tmplkit: render %q (%s): %v", e.Template, e.Engine, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/errors.As.
func (e *RenderError) Unwrap() error { return e.Err }

// ParseError wraps an engine compile failure for src as a LoadError.
func ParseError(engine string, src Source, err error) *LoadError {
	return &LoadError{Path: src.Path, Engine: engine, Err: fmt.Errorf("%w: %w", ErrTemplateParse, err)}
}

var (
	_ error = (*LoadError)(nil)
	_ error = (*RenderError)(nil)
)
