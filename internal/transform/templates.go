package transform

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/Joker/jade"
	"github.com/yosssi/gohtml"

	"github.com/spachava753/assetflow/internal/livereload"
	"github.com/spachava753/assetflow/internal/models"
)

// CompileTemplate parses Pug source into an executable html/template. name is
// the template's file path; include and extends resolve relative to it.
func CompileTemplate(name string, src []byte) (*template.Template, error) {
	text, err := jade.Parse(name, src)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

// Templates renders Pug templates to HTML files, one per source. Sources
// whose name starts with "_" are partials and are not rendered on their own.
type Templates struct {
	Root     string
	Sources  []string
	Output   string // directory relative to Root
	Pretty   bool
	Data     map[string]any
	Notifier livereload.Notifier
}

// NewTemplates builds the templates task from config.
func NewTemplates(cfg models.Config, n livereload.Notifier) *Templates {
	return &Templates{
		Root:     cfg.SourceDir,
		Sources:  cfg.Templates.Sources,
		Output:   cfg.Templates.Output,
		Pretty:   cfg.Templates.IsPretty(),
		Data:     cfg.Templates.Data,
		Notifier: n,
	}
}

func (t *Templates) Name() string { return "templates" }

func (t *Templates) Run(ctx context.Context) error {
	files, err := expand(t.Name(), t.Root, t.Sources)
	if err != nil {
		return err
	}

	var rendered int
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.HasPrefix(path.Base(f), "_") {
			continue
		}

		out, err := t.render(f)
		if err != nil {
			return err
		}

		rel := path.Join(filepath.ToSlash(t.Output), strings.TrimSuffix(path.Base(f), path.Ext(f))+".html")
		if err := writeOutput(t.Name(), filepath.Join(t.Root, filepath.FromSlash(rel)), out); err != nil {
			return err
		}
		rendered++

		if t.Notifier != nil {
			t.Notifier.Reload(rel)
		}
	}

	if rendered == 0 {
		slog.Info("no templates to render", "task", t.Name(), "patterns", t.Sources)
	}
	return nil
}

func (t *Templates) render(rel string) ([]byte, error) {
	src, err := readSource(t.Name(), t.Root, rel)
	if err != nil {
		return nil, err
	}

	tmpl, err := CompileTemplate(filepath.Join(t.Root, filepath.FromSlash(rel)), src)
	if err != nil {
		return nil, models.NewTaskError(t.Name(), models.ErrSyntax, fmt.Errorf("%s: %w", rel, err))
	}

	data := t.Data
	if data == nil {
		data = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, models.NewTaskError(t.Name(), models.ErrSyntax, fmt.Errorf("%s: %w", rel, err))
	}

	if !t.Pretty {
		return buf.Bytes(), nil
	}
	return []byte(gohtml.Format(buf.String()) + "\n"), nil
}
