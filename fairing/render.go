package fairing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/skosovsky/tmplkit"
)

// Show renders name with data against the current store. data may be
// anything tmplkit.NewContext accepts. The bool is false when the template
// does not exist and also when rendering failed; failures are logged.
func (f *Fairing) Show(ctx context.Context, name string, data any) (string, bool) {
	out, err := render(ctx, f.Store(), name, data)
	if err != nil {
		if !errors.Is(err, tmplkit.ErrTemplateNotFound) {
			f.log(ctx).ErrorContext(ctx, "template show failed", "template", name, "error", err)
		}
		return "", false
	}
	return out, true
}

// Respond renders name with data into w. The request's Metadata snapshot is
// used when present, so the response agrees with earlier ContainsTemplate
// answers. Absent templates produce 404 and render failures 500. The content
// type follows the template format.
func (f *Fairing) Respond(w http.ResponseWriter, r *http.Request, name string, data any) {
	store := f.Store()
	if md, ok := MetadataFrom(r); ok && md.store != nil {
		store = md.store
	}
	out, err := render(r.Context(), store, name, data)
	switch {
	case errors.Is(err, tmplkit.ErrTemplateNotFound):
		f.log(r.Context()).DebugContext(r.Context(), "template not found", "template", name)
		http.NotFound(w, r)
		return
	case err != nil:
		f.log(r.Context()).ErrorContext(r.Context(), "template render failed", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	entry, _ := store.Lookup(name)
	w.Header().Set("Content-Type", ContentType(entry.Format))
	_, _ = io.WriteString(w, out)
}

// log prefers the request-scoped logger in ctx over the fairing's own.
func (f *Fairing) log(ctx context.Context) *slog.Logger {
	if l, ok := tmplkit.LoggerFrom(ctx); ok {
		return l
	}
	return f.logger
}

func render(ctx context.Context, store *tmplkit.Store, name string, data any) (string, error) {
	if !store.Contains(name) {
		return "", tmplkit.ErrTemplateNotFound
	}
	tctx, err := tmplkit.NewContext(data)
	if err != nil {
		return "", err
	}
	out, ok, err := store.Render(ctx, name, tctx)
	if !ok {
		return "", tmplkit.ErrTemplateNotFound
	}
	return out, err
}

// ContentType maps a template format to a Content-Type header value.
// Unknown or empty formats are served as plain text.
func ContentType(format string) string {
	if format != "" {
		if ct := mime.TypeByExtension("." + format); ct != "" {
			return ct
		}
	}
	return "text/plain; charset=utf-8"
}
