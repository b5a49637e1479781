package fairing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_ContainsTemplate(t *testing.T) {
	t.Parallel()
	md := newFixture(t).Metadata()

	for _, name := range []string{"pongo2/txt_test", "pongo2/html_test", "hbs/test"} {
		assert.True(t, md.ContainsTemplate(name), name)
	}
	for _, name := range []string{"pongo2/not_existing", "hbs/txt_test", "hbs/not_existing", "pongo2/test", ""} {
		assert.False(t, md.ContainsTemplate(name), name)
	}
	assert.Contains(t, md.Names(), "hbs/common/header")
}

func TestMetadata_NilIsEmpty(t *testing.T) {
	t.Parallel()
	var md *Metadata
	assert.False(t, md.ContainsTemplate("hbs/test"))
	assert.Nil(t, md.Names())
}

func TestAttach_ProvidesMetadata(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var seen *Metadata
	handler := f.Attach(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		md, ok := MetadataFrom(r)
		require.True(t, ok)
		seen = md
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, seen)
	assert.Same(t, f.Store(), seen.Store())
}

func TestMetadataFrom_WithoutAttach(t *testing.T) {
	t.Parallel()
	_, ok := MetadataFrom(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	_, ok = MetadataFromContext(WithMetadata(context.Background(), nil))
	assert.False(t, ok)
}

// A request keeps answering from the snapshot it started with even if a
// reload lands while it is in flight.
func TestAttach_SnapshotIsStableAcrossReload(t *testing.T) {
	t.Parallel()
	dir := copyFixture(t)
	f, err := New(context.Background(), dir, quiet)
	require.NoError(t, err)

	handler := f.Attach(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		md, _ := MetadataFrom(r)
		require.NoError(t, os.Remove(filepath.Join(dir, "hbs", "test.html.hbs")))
		require.NoError(t, f.Reload(r.Context()))

		assert.True(t, md.ContainsTemplate("hbs/test"))
		assert.False(t, f.Store().Contains("hbs/test"))
		f.Respond(w, r, "hbs/test", map[string]any{"title": "x", "content": "y"})
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello x!\n\n<main> y </main>\nDone.\n\n", rec.Body.String())
}
