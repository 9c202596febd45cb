package transform

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/spachava753/assetflow/internal/livereload"
	"github.com/spachava753/assetflow/internal/models"
)

// Scripts concatenates JavaScript sources in listed order and minifies the
// bundle. The output file is never one of its own inputs.
type Scripts struct {
	Root     string
	Sources  []string
	Output   string
	Target   api.Target
	Notifier livereload.Notifier
}

// NewScripts builds the scripts task from config.
func NewScripts(cfg models.Config, n livereload.Notifier) (*Scripts, error) {
	target, err := ParseTarget(cfg.Scripts.Target)
	if err != nil {
		return nil, fmt.Errorf("scripts: %w", err)
	}
	return &Scripts{
		Root:     cfg.SourceDir,
		Sources:  cfg.Scripts.Sources,
		Output:   cfg.Scripts.Output,
		Target:   target,
		Notifier: n,
	}, nil
}

func (s *Scripts) Name() string { return "scripts" }

func (s *Scripts) Run(ctx context.Context) error {
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
		data, err := readSource(s.Name(), s.Root, f)
		if err != nil {
			return err
		}
		if used > 0 {
			b.write("\n;\n")
		}
		b.add(f, data)
		used++
	}
	if used == 0 {
		return models.NewTaskError(s.Name(), models.ErrFilesystem, fmt.Errorf("no script sources match %v", s.Sources))
	}

	result := api.Transform(b.String(), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            s.Target,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return models.NewTaskError(s.Name(), models.ErrSyntax, esbuildError(result.Errors, &b))
	}
	for _, w := range result.Warnings {
		slog.Warn("script warning", "task", s.Name(), "message", w.Text)
	}

	if err := writeOutput(s.Name(), filepath.Join(s.Root, filepath.FromSlash(s.Output)), result.Code); err != nil {
		return err
	}
	slog.Debug("wrote script bundle", "task", s.Name(), "output", s.Output, "sources", used, "bytes", len(result.Code))

	if s.Notifier != nil {
		s.Notifier.Reload(s.Output)
	}
	return nil
}
