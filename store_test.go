package tmplkit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
)

var (
	spanRecorder = tracetest.NewSpanRecorder()
	metricReader = sdkmetric.NewManualReader()
)

func TestMain(m *testing.M) {
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder)))
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader)))
	goleak.VerifyTestMain(m)
}

// stubEngine substitutes {key} placeholders. A source whose body is
// "syntax error" fails to compile; a body of "fail" fails to render.
type stubEngine struct {
	name     string
	ext      string
	dropName string // omitted from Compile's result when set
}

func (e stubEngine) Name() string      { return e.name }
func (e stubEngine) Extension() string { return e.ext }

func (e stubEngine) Compile(sources []Source) (map[string]Handle, error) {
	out := make(map[string]Handle, len(sources))
	for _, src := range sources {
		if string(src.Data) == "syntax error" {
			return nil, ParseError(e.name, src, errors.New("unexpected token"))
		}
		if src.Name == e.dropName {
			continue
		}
		out[src.Name] = stubHandle(src.Data)
	}
	return out, nil
}

type stubHandle string

func (h stubHandle) Render(data Context) (string, error) {
	if h == "fail" {
		return "", errors.New("boom")
	}
	out := string(h)
	for k, v := range data {
		out = strings.ReplaceAll(out, "{"+k+"}", fmt.Sprint(v))
	}
	return out, nil
}

var (
	engineOne = stubEngine{name: "one", ext: ".one"}
	engineTwo = stubEngine{name: "two", ext: ".two"}
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"one/page.html.one":    {Data: []byte("<p>{title}</p>")},
		"one/notes.one":        {Data: []byte("notes")},
		"two/mail.txt.two":     {Data: []byte("Hi {name}")},
		"two/deep/nested.two":  {Data: []byte("deep")},
		"two/readme.md":        {Data: []byte("not a template")},
		".hidden/secret.one":   {Data: []byte("hidden")},
		"one/.draft.html.one":  {Data: []byte("draft")},
		"one/broken.html.one~": {Data: []byte("backup")},
		"one/fail.txt.one":     {Data: []byte("fail")},
	}
}

func mustLoad(t *testing.T, fsys fstest.MapFS) *Store {
	t.Helper()
	s, err := Load(context.Background(), fsys, WithEngines(engineOne, engineTwo))
	require.NoError(t, err)
	return s
}

func TestLoad_DiscoversByExtension(t *testing.T) {
	t.Parallel()
	s := mustLoad(t, testFS())

	assert.Equal(t, []string{"one/fail", "one/notes", "one/page", "two/deep/nested", "two/mail"}, s.Names())
	assert.Equal(t, 5, s.Len())
	assert.Empty(t, s.Root())
	assert.False(t, s.LoadedAt().IsZero())

	e, ok := s.Lookup("one/page")
	require.True(t, ok)
	assert.Equal(t, "one", e.Engine)
	assert.Equal(t, "one/page.html.one", e.Path)
	assert.Equal(t, "html", e.Format)

	e, ok = s.Lookup("one/notes")
	require.True(t, ok)
	assert.Empty(t, e.Format)

	assert.True(t, s.Contains("two/deep/nested"))
	assert.False(t, s.Contains("two/readme"))
	assert.False(t, s.Contains("one/.draft"))
	assert.False(t, s.Contains(".hidden/secret"))
}

func TestStore_Get(t *testing.T) {
	t.Parallel()
	s := mustLoad(t, testFS())

	e, err := s.Get("two/mail")
	require.NoError(t, err)
	assert.Equal(t, "two", e.Engine)

	_, err = s.Get("two/nope")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestStore_NamesIsACopy(t *testing.T) {
	t.Parallel()
	s := mustLoad(t, testFS())
	names := s.Names()
	names[0] = "mutated"
	assert.Equal(t, "one/fail", s.Names()[0])
}

func TestLoad_Idempotent(t *testing.T) {
	t.Parallel()
	fsys := testFS()
	first := mustLoad(t, fsys)
	second := mustLoad(t, fsys)

	if diff := cmp.Diff(first.Entries(), second.Entries(), cmpopts.IgnoreUnexported(Entry{})); diff != "" {
		t.Errorf("reload changed entries (-first +second):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		fsys     fstest.MapFS
		opts     []Option
		wantErr  error
		wantPath string
	}{
		{
			name: "duplicate across engines",
			fsys: fstest.MapFS{
				"a/x.html.one": {Data: []byte("1")},
				"a/x.two":      {Data: []byte("2")},
			},
			opts:     []Option{WithEngines(engineOne, engineTwo)},
			wantErr:  ErrDuplicateName,
			wantPath: "a/x.two",
		},
		{
			name: "duplicate across formats",
			fsys: fstest.MapFS{
				"x.html.one": {Data: []byte("1")},
				"x.txt.one":  {Data: []byte("2")},
			},
			opts:     []Option{WithEngines(engineOne)},
			wantErr:  ErrDuplicateName,
			wantPath: "x.txt.one",
		},
		{
			name: "parse failure",
			fsys: fstest.MapFS{
				"ok.one":  {Data: []byte("fine")},
				"bad.one": {Data: []byte("syntax error")},
			},
			opts:     []Option{WithEngines(engineOne)},
			wantErr:  ErrTemplateParse,
			wantPath: "bad.one",
		},
		{
			name:    "no engines",
			fsys:    fstest.MapFS{},
			wantErr: ErrNoEngines,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := Load(context.Background(), tt.fsys, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, tt.wantErr)
			var lerr *LoadError
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, tt.wantPath, lerr.Path)
		})
	}
}

func TestLoad_RejectsConflictingEngines(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), fstest.MapFS{}, WithEngines(engineOne, stubEngine{name: "other", ext: ".one"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `extension ".one" already used by one`)

	_, err = Load(context.Background(), fstest.MapFS{}, WithEngines(stubEngine{name: "bare", ext: "one"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid extension")
}

func TestLoad_MissingHandleIsLoadError(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), fstest.MapFS{
		"a.one": {Data: []byte("a")},
	}, WithEngines(stubEngine{name: "one", ext: ".one", dropName: "a"}))
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "a.one", lerr.Path)
}

func TestLoad_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, testFS(), WithEngines(engineOne))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_EmptyTreeIsValid(t *testing.T) {
	t.Parallel()
	s, err := Load(context.Background(), fstest.MapFS{}, WithEngines(engineOne))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Names())
}

func TestLoadDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "one"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one", "hello.txt.one"), []byte("hello {who}"), 0o644))

	s, err := LoadDir(context.Background(), dir, WithEngines(engineOne))
	require.NoError(t, err)
	assert.Equal(t, dir, s.Root())
	e, ok := s.Lookup("one/hello")
	require.True(t, ok)
	assert.False(t, e.ModTime.IsZero())

	out, ok, err := s.Render(context.Background(), "one/hello", Context{"who": "disk"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello disk", out)
}

func TestLoadDir_NotADirectory(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := LoadDir(context.Background(), file, WithEngines(engineOne))
	assert.ErrorIs(t, err, ErrTemplateDir)

	_, err = LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"), WithEngines(engineOne))
	assert.ErrorIs(t, err, ErrTemplateDir)
}

func TestRender(t *testing.T) {
	t.Parallel()
	s := mustLoad(t, testFS())
	ctx := context.Background()

	out, ok, err := s.Render(ctx, "one/page", Context{"title": "T"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<p>T</p>", out)

	out, ok, err = s.Render(ctx, "one/missing", Context{"title": "T"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, out)

	out, ok, err = s.Render(ctx, "one/notes", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "notes", out)
}

func TestRender_EngineFailure(t *testing.T) {
	t.Parallel()
	s := mustLoad(t, testFS())

	out, ok, err := s.Render(context.Background(), "one/fail", nil)
	assert.True(t, ok)
	assert.Empty(t, out)
	require.ErrorIs(t, err, ErrTemplateRender)
	assert.NotErrorIs(t, err, ErrTemplateNotFound)
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "one/fail", rerr.Template)
	assert.Equal(t, "one", rerr.Engine)
	assert.Contains(t, err.Error(), "boom")
}

func TestRender_Concurrent(t *testing.T) {
	t.Parallel()
	s := mustLoad(t, testFS())

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, ok, err := s.Render(context.Background(), "two/mail", Context{"name": i})
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, fmt.Sprintf("Hi %d", i), out)
		}()
	}
	wg.Wait()
}
