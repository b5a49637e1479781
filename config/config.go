// Package config loads tmplkit's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation and decoding failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "tmplkit.yaml"

// Config is the process configuration.
type Config struct {
	// TemplateDir is the root of the template tree.
	TemplateDir string `yaml:"template_dir"`
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Reload watches TemplateDir and swaps in a fresh store on change.
	Reload bool `yaml:"reload"`
	// MarkupFormats lists the inner extensions the pongo2 engine escapes.
	// It must not be empty.
	MarkupFormats []string `yaml:"markup_formats"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TemplateDir:   "templates",
		Addr:          ":8000",
		LogLevel:      "info",
		MarkupFormats: []string{"html", "htm", "xml"},
	}
}

// Load reads the configuration at path on top of the defaults, then applies
// TMPLKIT_* environment overrides and validates the result.
// If the file does not exist, the defaults are written to it atomically;
// failing to write them is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if werr := writeDefault(path, cfg); werr != nil {
			slog.Warn("could not write default config", "path", path, "error", werr)
		}
	case err != nil:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func writeDefault(path string, cfg Config) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("TMPLKIT_TEMPLATE_DIR"); ok {
		c.TemplateDir = v
	}
	if v, ok := lookup("TMPLKIT_ADDR"); ok {
		c.Addr = v
	}
	if v, ok := lookup("TMPLKIT_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("TMPLKIT_RELOAD"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: TMPLKIT_RELOAD=%q: %w", ErrInvalidConfig, v, err)
		}
		c.Reload = b
	}
	return nil
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	if strings.TrimSpace(c.TemplateDir) == "" {
		return fmt.Errorf("%w: template_dir is empty", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr is empty", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if len(c.MarkupFormats) == 0 {
		return fmt.Errorf("%w: markup_formats is empty, pongo2 html templates would not escape", ErrInvalidConfig)
	}
	for _, f := range c.MarkupFormats {
		if strings.Trim(strings.TrimSpace(f), ".") == "" {
			return fmt.Errorf("%w: markup_formats has a blank entry", ErrInvalidConfig)
		}
	}
	return nil
}

// Level returns the slog level named by LogLevel, or info when invalid.
func (c Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel maps debug, info, warn and error (any case) to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, s)
	}
	return l, nil
}
