package lint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spachava753/assetflow/internal/config"
	"github.com/spachava753/assetflow/internal/models"
)

func TestRules(t *testing.T) {
	tests := []struct {
		name  string
		check func(string, []byte) []Violation
		src   string
		lines []int
	}{
		{
			name:  "consistent spaces",
			check: checkIndentation,
			src:   "html\n  body\n    h1 Hi\n",
		},
		{
			name:  "tabs after spaces",
			check: checkIndentation,
			src:   "html\n  body\n\t\th1 Hi\n",
			lines: []int{3},
		},
		{
			name:  "mixed within one indent",
			check: checkIndentation,
			src:   "html\n \tbody\n",
			lines: []int{2},
		},
		{
			name:  "trailing whitespace",
			check: checkTrailingWhitespace,
			src:   "html \n  body\n  p hi\t\n",
			lines: []int{1, 3},
		},
		{
			name:  "crlf is not trailing whitespace",
			check: checkTrailingWhitespace,
			src:   "html\r\n  body\r\n",
		},
		{
			name:  "empty file",
			check: checkEmpty,
			src:   " \n\n\t\n",
			lines: []int{0},
		},
		{
			name:  "non-empty file",
			check: checkEmpty,
			src:   "p hi\n",
		},
		{
			name:  "duplicate attribute",
			check: checkDuplicateAttributes,
			src:   "html\n  body\n    a(href=\"/\" title=\"x\" href=\"/other\") Link\n",
			lines: []int{3},
		},
		{
			name:  "duplicate across lines",
			check: checkDuplicateAttributes,
			src:   "input(\n  type=\"text\",\n  name=\"q\",\n  type=\"search\"\n)\np after\n",
			lines: []int{1},
		},
		{
			name:  "distinct attributes with expressions",
			check: checkDuplicateAttributes,
			src:   "a.btn#go(href=\"/a,b\" + suffix, data-x='(x)' disabled) go\n",
		},
		{
			name:  "parentheses in text are not attributes",
			check: checkDuplicateAttributes,
			src:   "p Some text (a a) here\n| (b b)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, v := range tt.check("test.pug", []byte(tt.src)) {
				got = append(got, v.Line)
			}
			if diff := cmp.Diff(tt.lines, got); diff != "" {
				t.Errorf("violation lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAttributeNames(t *testing.T) {
	tests := []struct {
		body string
		want []string
	}{
		{`href="/" title='x'`, []string{"href", "title"}},
		{`type="text", name="q"`, []string{"type", "name"}},
		{`class=cond ? "a" : "b" checked`, []string{"class", "checked"}},
		{`data-x=fn(1, 2) id != raw`, []string{"data-x", "id"}},
		{`title="a \" b" alt`, []string{"title", "alt"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, attributeNames(tt.body)); diff != "" {
			t.Errorf("attributeNames(%q) mismatch (-want +got):\n%s", tt.body, diff)
		}
	}
}

func writeTemplates(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newLinter(t *testing.T, root string, rules []string, fail *bool) *Linter {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SourceDir = root
	cfg.Lint.Rules = rules
	cfg.Lint.FailOnError = fail
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestLinterRun(t *testing.T) {
	root := writeTemplates(t, map[string]string{
		"pug/index.pug":           "doctype html\nhtml\n  body\n    h1 Hello\n",
		"pug/partials/_nav.pug":   "nav\n  a(href=\"/\") Home\n",
		"pug/partials/footer.pug": "footer \n  p(class=\"a\" class=\"b\") bye\n",
	})

	l := newLinter(t, root, nil, nil)
	violations, checked, err := l.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if checked != 3 {
		t.Errorf("expected 3 files checked, got %d", checked)
	}

	var got []string
	for _, v := range violations {
		got = append(got, v.String())
	}
	want := []string{
		"pug/partials/footer.pug:1 no-trailing-whitespace: trailing whitespace",
		`pug/partials/footer.pug:2 no-duplicate-attributes: duplicate attribute "class"`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("violations mismatch (-want +got):\n%s", diff)
	}

	err = l.Run(context.Background())
	var taskErr *models.TaskError
	if !errors.As(err, &taskErr) || taskErr.Kind != models.ErrLint {
		t.Fatalf("expected lint TaskError, got %v", err)
	}
}

func TestLinterSyntaxError(t *testing.T) {
	root := writeTemplates(t, map[string]string{
		"pug/index.pug": "html\n  body\n    p {{ .unclosed\n",
	})

	l := newLinter(t, root, []string{"syntax"}, nil)
	violations, _, err := l.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(violations) != 1 || violations[0].Rule != "syntax" {
		t.Fatalf("expected one syntax violation, got %v", violations)
	}
}

func TestLinterReportOnly(t *testing.T) {
	root := writeTemplates(t, map[string]string{"pug/empty.pug": ""})

	fail := false
	l := newLinter(t, root, nil, &fail)
	if err := l.Run(context.Background()); err != nil {
		t.Errorf("expected report-only run to succeed, got %v", err)
	}

	l = newLinter(t, root, []string{"no-trailing-whitespace"}, nil)
	if err := l.Run(context.Background()); err != nil {
		t.Errorf("expected disabled rule to be skipped, got %v", err)
	}
}

func TestNewUnknownRule(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Lint.Rules = []string{"no-such-rule"}
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unknown rule")
	}
}
