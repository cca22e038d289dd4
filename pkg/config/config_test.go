package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/pipetrace/pkg/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Render.ScalingFactor != 1e10 {
		t.Errorf("expected scaling factor 1e10, got %g", cfg.Render.ScalingFactor)
	}
	if cfg.Render.RowHeight != 10 || cfg.Render.BarHeight != 7 {
		t.Errorf("expected row/bar height 10/7, got %v/%v", cfg.Render.RowHeight, cfg.Render.BarHeight)
	}
	if cfg.Fetch.Range != model.DefaultRange {
		t.Errorf("expected default range [0,100), got %+v", cfg.Fetch.Range)
	}
	if cfg.Serve.Addr != DefaultAddr {
		t.Errorf("expected addr %q, got %q", DefaultAddr, cfg.Serve.Addr)
	}
	if cfg.Diagnostics.Path != "" {
		t.Errorf("expected stderr diagnostics, got %q", cfg.Diagnostics.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Render.ScalingFactor != 1e10 {
		t.Errorf("expected default config, got %+v", cfg.Render)
	}
}

func TestLoadFrom_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
render:
  scaling_factor: 5e9
  header: true
  title: gfx1030 run
fetch:
  source: ~/traces/run.jsonl
  range:
    start: 10
    end: 20
  timeout: 15s
serve:
  addr: ":8080"
  watch: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Render.ScalingFactor != 5e9 || !cfg.Render.Header || cfg.Render.Title != "gfx1030 run" {
		t.Errorf("render = %+v", cfg.Render)
	}
	// Unset fields keep their defaults.
	if cfg.Render.RowHeight != 10 || cfg.Render.BarHeight != 7 {
		t.Errorf("defaults lost: %+v", cfg.Render)
	}
	home, _ := os.UserHomeDir()
	if cfg.Fetch.Source != filepath.Join(home, "traces/run.jsonl") {
		t.Errorf("expected expanded source, got %q", cfg.Fetch.Source)
	}
	if cfg.Fetch.Range != (model.Range{Start: 10, End: 20}) {
		t.Errorf("range = %+v", cfg.Fetch.Range)
	}
	if d, _ := cfg.Fetch.FetchTimeout(); d != 15*time.Second {
		t.Errorf("timeout = %v", d)
	}
	if cfg.Serve.Addr != ":8080" || !cfg.Serve.Watch {
		t.Errorf("serve = %+v", cfg.Serve)
	}
}

func TestLoadFrom_ValidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[render]
row_height = 12.0
bar_height = 9.0

[fetch]
source = "http://localhost:7410"

[fetch.range]
start = 0.0
end = 50.0

[diagnostics]
path = "/tmp/clicks.jsonl"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Render.RowHeight != 12 || cfg.Render.BarHeight != 9 || cfg.Render.ScalingFactor != 1e10 {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.Fetch.Source != "http://localhost:7410" || cfg.Fetch.Range.End != 50 {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if cfg.Diagnostics.Path != "/tmp/clicks.jsonl" {
		t.Errorf("diagnostics = %+v", cfg.Diagnostics)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("render: [invalid"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		substr  string
	}{
		{"zero scale", "render:\n  scaling_factor: 0\n", "scaling_factor"},
		{"negative row", "render:\n  row_height: -1\n", "row_height"},
		{"bar taller than row", "render:\n  row_height: 5\n  bar_height: 6\n", "exceeds"},
		{"inverted range", "fetch:\n  range:\n    start: 5\n    end: 1\n", "fetch.range"},
		{"bad timeout", "fetch:\n  timeout: soon\n", "fetch.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFrom(path)
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("expected error mentioning %q, got %v", tt.substr, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sub", name)

			cfg := DefaultConfig()
			cfg.Render.Title = "saved"
			cfg.Render.Header = true
			cfg.Fetch.Source = "/data/trace.msgpack"
			cfg.Fetch.Range = model.Range{Start: 1, End: 2}
			cfg.Serve.Watch = true
			cfg.Diagnostics.Quiet = true

			if err := SaveTo(cfg, path); err != nil {
				t.Fatalf("SaveTo failed: %v", err)
			}

			loaded, err := LoadFrom(path)
			if err != nil {
				t.Fatalf("LoadFrom failed: %v", err)
			}
			if loaded != cfg {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
			}
		})
	}
}

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigDir(); got != "/custom/config/pipetrace" {
		t.Errorf("expected /custom/config/pipetrace, got %q", got)
	}
	if got := ConfigPath(); got != "/custom/config/pipetrace/config.yaml" {
		t.Errorf("expected config.yaml under XDG dir, got %q", got)
	}
}

func TestLoad_FromXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := DefaultConfig()
	cfg.Serve.Addr = "0.0.0.0:9000"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Serve.Addr != "0.0.0.0:9000" {
		t.Errorf("addr = %q", loaded.Serve.Addr)
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := expandHome("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("expandHome(~/x) = %q", got)
	}
	if got := expandHome("/abs"); got != "/abs" {
		t.Errorf("expandHome(/abs) = %q", got)
	}
	if got := expandHome("http://host"); got != "http://host" {
		t.Errorf("URL should be untouched, got %q", got)
	}
}
