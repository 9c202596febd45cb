package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spachava753/assetflow/internal/config"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "assetflow.yaml", `source_dir: site
output_dir: public
styles:
  sources: [scss/main.scss, scss/extra.css]
  targets: [chrome90]
scripts:
  sources:
    - js/vendor.js
    - js/main.js
images:
  jpeg_quality: 60
  skip_larger_than: 8M
templates:
  pretty: false
  data:
    title: Hello
lint:
  fail_on_error: false
server:
  port: 8080
watch:
  delay_ms: 150
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	dir := filepath.Dir(path)
	if cfg.Root != dir {
		t.Errorf("expected root %s, got %s", dir, cfg.Root)
	}
	if cfg.SourceDir != filepath.Join(dir, "site") {
		t.Errorf("expected source_dir resolved against config dir, got %s", cfg.SourceDir)
	}
	if cfg.OutputDir != filepath.Join(dir, "public") {
		t.Errorf("expected output_dir resolved against config dir, got %s", cfg.OutputDir)
	}
	if diff := cmp.Diff([]string{"js/vendor.js", "js/main.js"}, cfg.Scripts.Sources); diff != "" {
		t.Errorf("scripts.sources mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"chrome90"}, cfg.Styles.Targets); diff != "" {
		t.Errorf("styles.targets mismatch (-want +got):\n%s", diff)
	}
	if cfg.Styles.Output != "css/style.min.css" {
		t.Errorf("expected default styles output, got %s", cfg.Styles.Output)
	}
	if cfg.Images.JPEGQuality != 60 {
		t.Errorf("expected jpeg_quality 60, got %d", cfg.Images.JPEGQuality)
	}
	if cfg.Templates.IsPretty() {
		t.Error("expected pretty disabled")
	}
	if cfg.Templates.Data["title"] != "Hello" {
		t.Errorf("expected template data title Hello, got %v", cfg.Templates.Data["title"])
	}
	if cfg.Lint.ShouldFail() {
		t.Error("expected fail_on_error disabled")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host localhost, got %s", cfg.Server.Host)
	}
	if cfg.Watch.DelayMs != 150 {
		t.Errorf("expected delay 150, got %d", cfg.Watch.DelayMs)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "assetflow.toml", `source_dir = "src"
output_dir = "build"

[scripts]
sources = ["js/a.js", "js/b.js"]
target = "es2020"

[build]
preflight = false
assets = ["*.html"]
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scripts.Target != "es2020" {
		t.Errorf("expected target es2020, got %s", cfg.Scripts.Target)
	}
	if len(cfg.Scripts.Sources) != 2 {
		t.Errorf("expected 2 script sources, got %d", len(cfg.Scripts.Sources))
	}
	if cfg.Build.RunPreflight() {
		t.Error("expected preflight disabled")
	}
	if diff := cmp.Diff([]string{"*.html"}, cfg.Build.Assets); diff != "" {
		t.Errorf("build.assets mismatch (-want +got):\n%s", diff)
	}
	if cfg.Images.Concurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", cfg.Images.Concurrency)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad yaml", "assetflow.yaml", "styles: [unterminated"},
		{"bad toml", "assetflow.toml", "source_dir = "},
		{"unsupported extension", "assetflow.json", "{}"},
		{"same source and output", "assetflow.yaml", "source_dir: web\noutput_dir: web\n"},
		{"traversal in pattern", "assetflow.yaml", "images:\n  sources: ['../*']\n"},
		{"absolute output", "assetflow.yaml", "styles:\n  output: /tmp/x.css\n"},
		{"quality out of range", "assetflow.yaml", "images:\n  jpeg_quality: 101\n"},
		{"bad size", "assetflow.yaml", "images:\n  skip_larger_than: lots\n"},
		{"bad port", "assetflow.yaml", "server:\n  port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)
			if _, err := config.Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()

	got, err := config.Find(dir)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != "" {
		t.Errorf("expected no config, got %s", got)
	}

	tomlPath := filepath.Join(dir, "assetflow.toml")
	if err := os.WriteFile(tomlPath, nil, 0644); err != nil {
		t.Fatal(err)
	}
	got, _ = config.Find(dir)
	if got != tomlPath {
		t.Errorf("expected %s, got %s", tomlPath, got)
	}

	yamlPath := filepath.Join(dir, "assetflow.yaml")
	if err := os.WriteFile(yamlPath, nil, 0644); err != nil {
		t.Fatal(err)
	}
	got, _ = config.Find(dir)
	if got != yamlPath {
		t.Errorf("expected yaml to take precedence, got %s", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if cfg.SourceDir != "src" {
		t.Errorf("expected default source_dir 'src', got %s", cfg.SourceDir)
	}
	if cfg.OutputDir != "dist" {
		t.Errorf("expected default output_dir 'dist', got %s", cfg.OutputDir)
	}
	if cfg.Images.JPEGQuality != 75 {
		t.Errorf("expected default jpeg_quality 75, got %d", cfg.Images.JPEGQuality)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.Server.Port)
	}
	if !cfg.Build.RunPreflight() {
		t.Error("expected preflight enabled by default")
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}
