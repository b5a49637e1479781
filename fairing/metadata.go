package fairing

import (
	"context"
	"net/http"

	"github.com/skosovsky/tmplkit"
)

// Metadata is the per-request view of the template store. It answers from
// the snapshot that was current when the request entered Attach.
type Metadata struct {
	store *tmplkit.Store
}

type metadataKey struct{}

// Attach is middleware that makes Metadata available to next.
func (f *Fairing) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithMetadata(r.Context(), f.Metadata())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Metadata returns a guard over the current snapshot.
func (f *Fairing) Metadata() *Metadata { return &Metadata{store: f.Store()} }

// WithMetadata returns a copy of ctx carrying md.
func WithMetadata(ctx context.Context, md *Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// MetadataFromContext returns the Metadata stored by Attach or WithMetadata.
func MetadataFromContext(ctx context.Context) (*Metadata, bool) {
	md, ok := ctx.Value(metadataKey{}).(*Metadata)
	return md, ok && md != nil
}

// MetadataFrom returns the request's Metadata. ok is false when the request
// did not pass through Attach.
func MetadataFrom(r *http.Request) (*Metadata, bool) {
	return MetadataFromContext(r.Context())
}

// ContainsTemplate reports whether name is a loaded template.
func (m *Metadata) ContainsTemplate(name string) bool {
	return m != nil && m.store != nil && m.store.Contains(name)
}

// Names returns the sorted logical names of the snapshot.
func (m *Metadata) Names() []string {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.Names()
}

// Store returns the snapshot the guard answers from.
func (m *Metadata) Store() *tmplkit.Store { return m.store }
