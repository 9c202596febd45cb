package transform

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/spachava753/assetflow/internal/livereload"
	"github.com/spachava753/assetflow/internal/models"
	"github.com/spachava753/assetflow/internal/toolchain"
)

// Styles compiles SCSS/Sass sources with the external sass compiler, passes
// plain CSS through, concatenates the results in source order and minifies
// and prefixes them into a single stylesheet.
type Styles struct {
	Root     string   // source directory
	Sources  []string // patterns relative to Root
	Output   string   // output file relative to Root
	Compiler string   // sass executable
	Engines  []api.Engine
	Notifier livereload.Notifier
}

// NewStyles builds the styles task from config.
func NewStyles(cfg models.Config, n livereload.Notifier) (*Styles, error) {
	engines, err := ParseEngines(cfg.Styles.Targets)
	if err != nil {
		return nil, fmt.Errorf("styles: %w", err)
	}
	return &Styles{
		Root:     cfg.SourceDir,
		Sources:  cfg.Styles.Sources,
		Output:   cfg.Styles.Output,
		Compiler: cfg.Styles.Compiler,
		Engines:  engines,
		Notifier: n,
	}, nil
}

func (s *Styles) Name() string { return "styles" }

func (s *Styles) Run(ctx context.Context) error {
	files, err := expand(s.Name(), s.Root, s.Sources)
	if err != nil {
		return err
	}

	var b bundle
	var used int
	for _, f := range files {
		if f == s.Output {
			continue
		}
		ext := strings.ToLower(path.Ext(f))
		if (ext == ".scss" || ext == ".sass") && strings.HasPrefix(path.Base(f), "_") {
			continue // partials are pulled in by @use/@import
		}

		data, err := readSource(s.Name(), s.Root, f)
		if err != nil {
			return err
		}

		switch ext {
		case ".scss", ".sass":
			data, err = s.compile(ctx, f, data, ext == ".sass")
			if err != nil {
				return err
			}
		case ".css":
		default:
			return models.NewTaskError(s.Name(), models.ErrSyntax, fmt.Errorf("%s: unsupported style source", f))
		}

		b.add(f, data)
		b.write("\n")
		used++
	}
	if used == 0 {
		return models.NewTaskError(s.Name(), models.ErrFilesystem, fmt.Errorf("no style sources match %v", s.Sources))
	}

	result := api.Transform(b.String(), api.TransformOptions{
		Loader:            api.LoaderCSS,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
		Engines:           s.Engines,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return models.NewTaskError(s.Name(), models.ErrSyntax, esbuildError(result.Errors, &b))
	}
	for _, w := range result.Warnings {
		slog.Warn("style warning", "task", s.Name(), "message", w.Text)
	}

	if err := writeOutput(s.Name(), filepath.Join(s.Root, filepath.FromSlash(s.Output)), result.Code); err != nil {
		return err
	}
	slog.Debug("wrote stylesheet", "task", s.Name(), "output", s.Output, "sources", used, "bytes", len(result.Code))

	if s.Notifier != nil {
		s.Notifier.Reload(s.Output)
	}
	return nil
}

// compile runs the sass CLI over one source, reading it from stdin with its
// own directory on the load path.
func (s *Styles) compile(ctx context.Context, rel string, src []byte, indented bool) ([]byte, error) {
	args := []string{
		"--stdin",
		"--no-source-map",
		"--style=expanded",
		"--load-path=" + filepath.Dir(filepath.Join(s.Root, filepath.FromSlash(rel))),
	}
	if indented {
		args = append(args, "--indented")
	}

	out, err := toolchain.Run(ctx, toolchain.Command{
		Name:  s.Compiler,
		Args:  args,
		Dir:   s.Root,
		Stdin: src,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if _, ok := err.(*toolchain.ExitError); ok {
			return nil, models.NewTaskError(s.Name(), models.ErrSyntax, fmt.Errorf("%s: %w", rel, err))
		}
		return nil, models.NewTaskError(s.Name(), models.ErrInternal, err)
	}
	return out, nil
}
