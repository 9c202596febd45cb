// Package release holds the tasks that produce the distributable output
// directory: removing the previous one and copying finalized assets into it.
package release

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spachava753/assetflow/internal/models"
)

// Cleaner removes Dir recursively. It refuses to touch a directory that is,
// or contains, the project root or a protected path, and anything outside
// the project root.
type Cleaner struct {
	Dir       string
	Root      string
	Protected []string
}

// NewCleaner builds the clean task from config.
func NewCleaner(cfg models.Config) *Cleaner {
	return &Cleaner{
		Dir:       cfg.OutputDir,
		Root:      cfg.Root,
		Protected: []string{cfg.SourceDir},
	}
}

func (c *Cleaner) Name() string { return "clean" }

func (c *Cleaner) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.check(); err != nil {
		return models.NewTaskError(c.Name(), models.ErrFilesystem, err)
	}

	if _, err := os.Lstat(c.Dir); os.IsNotExist(err) {
		slog.Debug("nothing to clean", "task", c.Name(), "dir", c.Dir)
		return nil
	}
	if err := os.RemoveAll(c.Dir); err != nil {
		return models.NewTaskError(c.Name(), models.ErrFilesystem, fmt.Errorf("removing %s: %w", c.Dir, err))
	}
	slog.Info("removed output directory", "task", c.Name(), "dir", c.Dir)
	return nil
}

func (c *Cleaner) check() error {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", c.Dir, err)
	}
	if c.Root != "" {
		root, err := filepath.Abs(c.Root)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", c.Root, err)
		}
		if !within(root, dir) || dir == root {
			return fmt.Errorf("refusing to remove %s: not inside project root %s", dir, root)
		}
	}
	for _, p := range c.Protected {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		if within(dir, abs) {
			return fmt.Errorf("refusing to remove %s: it contains %s", dir, abs)
		}
	}
	return nil
}

// within reports whether p is parent or below it.
func within(parent, p string) bool {
	rel, err := filepath.Rel(parent, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
