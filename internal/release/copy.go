package release

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spachava753/assetflow/internal/fileset"
	"github.com/spachava753/assetflow/internal/models"
)

// Copier copies the files matched by Patterns from Root into Dest, keeping
// their paths relative to Root.
type Copier struct {
	Root     string
	Patterns []string
	Dest     string
}

// NewCopier builds the copy task from config.
func NewCopier(cfg models.Config) *Copier {
	return &Copier{
		Root:     cfg.SourceDir,
		Patterns: cfg.Build.Assets,
		Dest:     cfg.OutputDir,
	}
}

func (c *Copier) Name() string { return "copy" }

func (c *Copier) Run(ctx context.Context) error {
	files, err := fileset.Expand(c.Root, c.Patterns)
	if err != nil {
		return models.NewTaskError(c.Name(), models.ErrFilesystem, err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(c.Root, filepath.FromSlash(f))
		dst := filepath.Join(c.Dest, filepath.FromSlash(f))
		if err := fileset.CopyFile(src, dst); err != nil {
			return models.NewTaskError(c.Name(), models.ErrFilesystem, err)
		}
	}

	slog.Info("copied assets", "task", c.Name(), "files", len(files), "dest", c.Dest)
	return nil
}
