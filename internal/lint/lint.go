// Package lint checks Pug templates against a fixed set of style and syntax
// rules before they are rendered.
package lint

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spachava753/assetflow/internal/fileset"
	"github.com/spachava753/assetflow/internal/models"
	"github.com/spachava753/assetflow/internal/transform"
)

// Violation is one rule failure in one file. Line is 1-based, 0 when the
// failure applies to the whole file.
type Violation struct {
	File    string
	Line    int
	Rule    string
	Message string
}

func (v Violation) String() string {
	if v.Line > 0 {
		return fmt.Sprintf("%s:%d %s: %s", v.File, v.Line, v.Rule, v.Message)
	}
	return fmt.Sprintf("%s %s: %s", v.File, v.Rule, v.Message)
}

// Rule checks the contents of one file; name is its path on disk. File and
// Rule of the returned violations are filled in by the linter.
type Rule struct {
	Name  string
	Check func(name string, src []byte) []Violation
}

// Rules is the full rule set, in reporting order.
var Rules = []Rule{
	{Name: "syntax", Check: checkSyntax},
	{Name: "no-mixed-indentation", Check: checkIndentation},
	{Name: "no-trailing-whitespace", Check: checkTrailingWhitespace},
	{Name: "no-duplicate-attributes", Check: checkDuplicateAttributes},
	{Name: "no-empty-file", Check: checkEmpty},
}

// Linter is the lint task.
type Linter struct {
	Root        string
	Sources     []string
	Rules       []Rule
	FailOnError bool
}

// New builds the lint task from config. Unknown rule names are an error.
func New(cfg models.Config) (*Linter, error) {
	rules := Rules
	if len(cfg.Lint.Rules) > 0 {
		rules = nil
		for _, name := range cfg.Lint.Rules {
			i := slices.IndexFunc(Rules, func(r Rule) bool { return r.Name == name })
			if i < 0 {
				return nil, fmt.Errorf("unknown lint rule %q", name)
			}
			rules = append(rules, Rules[i])
		}
	}
	return &Linter{
		Root:        cfg.SourceDir,
		Sources:     cfg.Lint.Sources,
		Rules:       rules,
		FailOnError: cfg.Lint.ShouldFail(),
	}, nil
}

func (l *Linter) Name() string { return "lint" }

// Check lints every matched file and returns the violations found.
func (l *Linter) Check(ctx context.Context) ([]Violation, int, error) {
	files, err := fileset.Expand(l.Root, l.Sources)
	if err != nil {
		return nil, 0, models.NewTaskError(l.Name(), models.ErrFilesystem, err)
	}

	var violations []Violation
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		name := filepath.Join(l.Root, filepath.FromSlash(f))
		src, err := os.ReadFile(name)
		if err != nil {
			return nil, 0, models.NewTaskError(l.Name(), models.ErrFilesystem, err)
		}
		for _, r := range l.Rules {
			for _, v := range r.Check(name, src) {
				v.File = f
				v.Rule = r.Name
				violations = append(violations, v)
			}
		}
	}
	return violations, len(files), nil
}

func (l *Linter) Run(ctx context.Context) error {
	violations, checked, err := l.Check(ctx)
	if err != nil {
		return err
	}

	for _, v := range violations {
		slog.Warn("lint violation", "task", l.Name(), "violation", v.String())
	}
	slog.Debug("linted templates", "task", l.Name(), "files", checked, "violations", len(violations))

	if len(violations) > 0 && l.FailOnError {
		return models.NewTaskError(l.Name(), models.ErrLint,
			fmt.Errorf("%d violation(s) in %d file(s)", len(violations), checked))
	}
	return nil
}

func lines(src []byte) []string {
	s := strings.ReplaceAll(string(src), "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func checkSyntax(name string, src []byte) []Violation {
	if len(bytes.TrimSpace(src)) == 0 {
		return nil
	}
	if _, err := transform.CompileTemplate(name, src); err != nil {
		return []Violation{{Message: err.Error()}}
	}
	return nil
}

func checkIndentation(_ string, src []byte) []Violation {
	var style byte
	for i, line := range lines(src) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		for j := 0; j < len(indent); j++ {
			if style == 0 {
				style = indent[j]
				continue
			}
			if indent[j] != style {
				return []Violation{{
					Line:    i + 1,
					Message: fmt.Sprintf("indented with %s, file uses %s", indentName(indent[j]), indentName(style)),
				}}
			}
		}
	}
	return nil
}

func indentName(c byte) string {
	if c == '\t' {
		return "tabs"
	}
	return "spaces"
}

func checkTrailingWhitespace(_ string, src []byte) []Violation {
	var out []Violation
	for i, line := range lines(src) {
		if strings.HasSuffix(line, " ") || strings.HasSuffix(line, "\t") {
			out = append(out, Violation{Line: i + 1, Message: "trailing whitespace"})
		}
	}
	return out
}

func checkEmpty(_ string, src []byte) []Violation {
	if len(bytes.TrimSpace(src)) == 0 {
		return []Violation{{Message: "file is empty"}}
	}
	return nil
}

func checkDuplicateAttributes(_ string, src []byte) []Violation {
	var out []Violation
	for _, list := range attributeLists(string(src)) {
		seen := map[string]bool{}
		for _, name := range attributeNames(list.body) {
			if seen[name] {
				out = append(out, Violation{Line: list.line, Message: fmt.Sprintf("duplicate attribute %q", name)})
				continue
			}
			seen[name] = true
		}
	}
	return out
}
