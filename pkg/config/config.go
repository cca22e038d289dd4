// Package config handles loading and saving pipetrace configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/pipetrace/config.yaml
//
// A path ending in .toml is read and written as TOML instead of YAML.
// Command-line flags override values loaded from the file.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/pipetrace/pkg/model"
)

// RenderConfig holds timeline geometry and output settings.
type RenderConfig struct {
	ScalingFactor float64 `yaml:"scaling_factor" toml:"scaling_factor"` // Pixels per trace time unit
	RowHeight     float64 `yaml:"row_height" toml:"row_height"`
	BarHeight     float64 `yaml:"bar_height" toml:"bar_height"`
	Header        bool    `yaml:"header,omitempty" toml:"header,omitempty"` // Title, summary and legend above the rows
	Title         string  `yaml:"title,omitempty" toml:"title,omitempty"`
}

// FetchConfig controls where the trace comes from.
type FetchConfig struct {
	Source  string      `yaml:"source,omitempty" toml:"source,omitempty"` // File path or http(s) URL
	Range   model.Range `yaml:"range" toml:"range"`
	Timeout string      `yaml:"timeout,omitempty" toml:"timeout,omitempty"` // HTTP sources only, e.g. "30s"
}

// ServeConfig controls the HTTP surface.
type ServeConfig struct {
	Addr  string `yaml:"addr" toml:"addr"`
	Watch bool   `yaml:"watch,omitempty" toml:"watch,omitempty"` // Reload the trace file when it changes
}

// DiagnosticsConfig controls the diagnostic sink.
type DiagnosticsConfig struct {
	Path  string `yaml:"path,omitempty" toml:"path,omitempty"` // JSON lines file; empty writes to stderr
	Quiet bool   `yaml:"quiet,omitempty" toml:"quiet,omitempty"`
}

// Config is the top-level configuration for pipetrace.
type Config struct {
	Render      RenderConfig      `yaml:"render" toml:"render"`
	Fetch       FetchConfig       `yaml:"fetch" toml:"fetch"`
	Serve       ServeConfig       `yaml:"serve" toml:"serve"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics,omitempty" toml:"diagnostics,omitempty"`
}

// DefaultAddr is the default listen address of pipetrace serve.
const DefaultAddr = "127.0.0.1:7410"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Render: RenderConfig{
			ScalingFactor: 1e10,
			RowHeight:     10,
			BarHeight:     7,
		},
		Fetch: FetchConfig{
			Range: model.DefaultRange,
		},
		Serve: ServeConfig{
			Addr: DefaultAddr,
		},
	}
}

// ConfigDir returns the XDG config directory for pipetrace.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "pipetrace")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pipetrace")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	// Expand ~ in paths; URLs are left alone.
	cfg.Fetch.Source = expandHome(cfg.Fetch.Source)
	cfg.Diagnostics.Path = expandHome(cfg.Diagnostics.Path)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate rejects settings no command can run with.
func (c Config) Validate() error {
	r := c.Render
	for name, v := range map[string]float64{
		"render.scaling_factor": r.ScalingFactor,
		"render.row_height":     r.RowHeight,
		"render.bar_height":     r.BarHeight,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a positive number, got %v", name, v)
		}
	}
	if r.BarHeight > r.RowHeight {
		return fmt.Errorf("render.bar_height %v exceeds render.row_height %v", r.BarHeight, r.RowHeight)
	}
	if err := c.Fetch.Range.Validate(); err != nil {
		return fmt.Errorf("fetch.range: %w", err)
	}
	if _, err := c.Fetch.FetchTimeout(); err != nil {
		return err
	}
	return nil
}

// FetchTimeout parses Timeout. Zero means no timeout.
func (f FetchConfig) FetchTimeout() (time.Duration, error) {
	if f.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 0, fmt.Errorf("fetch.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("fetch.timeout must not be negative, got %v", d)
	}
	return d, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
