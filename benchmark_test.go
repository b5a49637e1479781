package tmplkit

import (
	"context"
	"testing"
	"testing/fstest"
)

func BenchmarkRender(b *testing.B) {
	s, err := Load(context.Background(), fstest.MapFS{
		"bench.txt.one": {Data: []byte("Hello {name}")},
	}, WithEngines(engineOne))
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	data := Context{"name": "bench"}
	for b.Loop() {
		_, _, _ = s.Render(ctx, "bench", data)
	}
}

func BenchmarkNewContext(b *testing.B) {
	type P struct {
		A string `tmpl:"a"`
		B string `tmpl:"b"`
		C string `tmpl:"c"`
	}
	payload := &P{A: "x", B: "y", C: "z"}
	for b.Loop() {
		_, _ = NewContext(payload)
	}
}
