package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/spachava753/assetflow/internal/fileset"
	"github.com/spachava753/assetflow/internal/models"
	"github.com/spachava753/assetflow/internal/util"
)

// FileNames are the project files Find looks for, in order.
var FileNames = []string{"assetflow.yaml", "assetflow.yml", "assetflow.toml"}

// DefaultConfig returns a Config with default values.
func DefaultConfig() models.Config {
	return models.Config{
		SourceDir: "src",
		OutputDir: "dist",
		LogLevel:  "info",
		Styles: models.StylesConfig{
			Sources:  []string{"scss/style.scss"},
			Output:   "css/style.min.css",
			Watch:    []string{"scss/**/*.scss", "scss/**/*.sass", "scss/**/*.css"},
			Compiler: "sass",
			Targets:  []string{"chrome58", "edge16", "firefox57", "ios11", "safari11"},
		},
		Scripts: models.ScriptsConfig{
			Sources: []string{"js/main.js"},
			Output:  "js/main.min.js",
			Watch:   []string{"js/*.js", "!js/main.min.js"},
			Target:  "es2017",
		},
		Templates: models.TemplatesConfig{
			Sources: []string{"pug/*.pug"},
			Watch:   []string{"pug/**/*.pug"},
		},
		Images: models.ImagesConfig{
			Sources:        []string{"img/**/*"},
			Base:           "img",
			Output:         "img",
			JPEGQuality:    75,
			SkipLargerThan: "32M",
			Concurrency:    4,
		},
		Lint: models.LintConfig{
			Sources: []string{"pug/**/*.pug"},
		},
		Markup: models.MarkupConfig{
			Watch: []string{"*.html"},
		},
		Server: models.ServerConfig{
			Host: "localhost",
			Port: 3000,
		},
		Build: models.BuildConfig{
			Assets: []string{"css/style.min.css", "fonts/**/*", "js/main.min.js", "*.html"},
		},
	}
}

// Find returns the first project file from FileNames present in dir, or ""
// when there is none.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", p, err)
		}
	}
	return "", nil
}

// Load reads a project file, YAML or TOML by extension, on top of the
// defaults. Relative source and output directories are resolved against the
// file's directory.
func Load(path string) (models.Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	applyDefaults(&cfg)

	if err := Resolve(&cfg, filepath.Dir(path)); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Resolve sets the project root and makes relative source and output
// directories absolute against it.
func Resolve(cfg *models.Config, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}
	cfg.Root = abs
	if !filepath.IsAbs(cfg.SourceDir) {
		cfg.SourceDir = filepath.Join(abs, cfg.SourceDir)
	}
	if !filepath.IsAbs(cfg.OutputDir) {
		cfg.OutputDir = filepath.Join(abs, cfg.OutputDir)
	}
	return nil
}

// applyDefaults fills values a config file left empty.
func applyDefaults(cfg *models.Config) {
	def := DefaultConfig()

	if cfg.SourceDir == "" {
		cfg.SourceDir = def.SourceDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Styles.Output == "" {
		cfg.Styles.Output = def.Styles.Output
	}
	if cfg.Styles.Compiler == "" {
		cfg.Styles.Compiler = def.Styles.Compiler
	}
	if cfg.Scripts.Output == "" {
		cfg.Scripts.Output = def.Scripts.Output
	}
	if cfg.Scripts.Target == "" {
		cfg.Scripts.Target = def.Scripts.Target
	}
	if cfg.Images.Output == "" {
		cfg.Images.Output = def.Images.Output
	}
	if cfg.Images.JPEGQuality == 0 {
		cfg.Images.JPEGQuality = def.Images.JPEGQuality
	}
	if cfg.Images.Concurrency == 0 {
		cfg.Images.Concurrency = def.Images.Concurrency
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
}

// Validate checks paths, patterns and numeric ranges of a config.
func Validate(cfg models.Config) error {
	if cfg.SourceDir == "" {
		return fmt.Errorf("source_dir is required")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if filepath.Clean(cfg.SourceDir) == filepath.Clean(cfg.OutputDir) {
		return fmt.Errorf("output_dir must differ from source_dir")
	}

	globs := map[string][]string{
		"styles.sources":    cfg.Styles.Sources,
		"styles.watch":      cfg.Styles.Watch,
		"scripts.sources":   cfg.Scripts.Sources,
		"scripts.watch":     cfg.Scripts.Watch,
		"templates.sources": cfg.Templates.Sources,
		"templates.watch":   cfg.Templates.Watch,
		"images.sources":    cfg.Images.Sources,
		"lint.sources":      cfg.Lint.Sources,
		"markup.watch":      cfg.Markup.Watch,
		"build.assets":      cfg.Build.Assets,
	}
	for field, patterns := range globs {
		if err := fileset.Validate(patterns); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}

	outputs := map[string]string{
		"styles.output":    cfg.Styles.Output,
		"scripts.output":   cfg.Scripts.Output,
		"templates.output": cfg.Templates.Output,
		"images.base":      cfg.Images.Base,
		"images.output":    cfg.Images.Output,
	}
	for field, p := range outputs {
		if filepath.IsAbs(p) {
			return fmt.Errorf("%s: path %q must be relative", field, p)
		}
		if err := fileset.ValidatePath(p); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}

	if cfg.Images.JPEGQuality < 1 || cfg.Images.JPEGQuality > 100 {
		return fmt.Errorf("images.jpeg_quality must be between 1 and 100, got %d", cfg.Images.JPEGQuality)
	}
	if _, err := util.ParseSize(cfg.Images.SkipLargerThan); err != nil {
		return fmt.Errorf("images.skip_larger_than: %w", err)
	}
	if cfg.Images.Concurrency < 0 {
		return fmt.Errorf("images.concurrency must not be negative")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Watch.DelayMs < 0 {
		return fmt.Errorf("watch.delay_ms must not be negative")
	}

	return nil
}
