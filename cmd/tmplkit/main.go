// Command tmplkit serves, renders and lists a template tree.
//
//	tmplkit serve  [-config tmplkit.yaml]
//	tmplkit render -dir templates -name hbs/test [-data key=value ...] [-out file]
//	tmplkit list   -dir templates
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/skosovsky/tmplkit"
	"github.com/skosovsky/tmplkit/config"
	"github.com/skosovsky/tmplkit/fairing"
	"github.com/skosovsky/tmplkit/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tmplkit:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: tmplkit <serve|render|list> [flags]")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return serve(ctx, rest, stderr)
	case "render":
		return renderCmd(ctx, rest, stdout, stderr)
	case "list":
		return list(ctx, rest, stdout, stderr)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func serve(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("config", config.DefaultPath, "configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	f, err := fairing.FromConfig(ctx, cfg, fairing.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "templates loaded", "dir", f.Dir(), "count", f.Store().Len())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(f, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Reload {
		g.Go(func() error { return f.Watch(gctx) })
	}
	return g.Wait()
}

// dataFlag collects repeated key=value pairs. Values are decoded as YAML
// scalars, so -data count=3 yields an integer and -data ok=true a bool.
type dataFlag map[string]any

func (d dataFlag) String() string { return fmt.Sprint(map[string]any(d)) }

func (d dataFlag) Set(s string) error {
	key, raw, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		v = raw
	}
	d[key] = v
	return nil
}

func renderCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", config.Default().TemplateDir, "template directory")
	name := fs.String("name", "", "logical template name")
	out := fs.String("out", "", "output file (stdout if empty)")
	data := dataFlag{}
	fs.Var(data, "data", "template variable as key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return errors.New("render: -name is required")
	}

	store, err := tmplkit.LoadDir(ctx, *dir, tmplkit.WithEngines(fairing.DefaultEngines()...))
	if err != nil {
		return err
	}
	text, ok, err := store.Render(ctx, *name, tmplkit.Context(data))
	if !ok {
		return fmt.Errorf("%w: %q", tmplkit.ErrTemplateNotFound, *name)
	}
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = io.WriteString(stdout, text)
		return err
	}
	return atomic.WriteFile(*out, strings.NewReader(text))
}

func list(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", config.Default().TemplateDir, "template directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	store, err := tmplkit.LoadDir(ctx, *dir, tmplkit.WithEngines(fairing.DefaultEngines()...))
	if err != nil {
		return err
	}
	for _, e := range store.Entries() {
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", e.Name, e.Engine, e.Path)
	}
	return nil
}
