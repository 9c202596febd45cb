package fileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("creating dir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

func TestExpand(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"js/vendor.js":        "v",
		"js/main.js":          "m",
		"js/main.min.js":      "min",
		"scss/a.scss":         "a",
		"scss/parts/b.scss":   "b",
		"fonts/x/font.woff2":  "f",
		"index.html":          "<html>",
		"about.html":          "<html>",
		"img/logo.png":        "png",
		"img/icons/arrow.svg": "svg",
	})

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "listed order is kept",
			patterns: []string{"js/vendor.js", "js/main.js"},
			want:     []string{"js/vendor.js", "js/main.js"},
		},
		{
			name:     "negation removes matches",
			patterns: []string{"js/*.js", "!js/main.min.js"},
			want:     []string{"js/main.js", "js/vendor.js"},
		},
		{
			name:     "negation applies regardless of position",
			patterns: []string{"!js/main.min.js", "js/*.js"},
			want:     []string{"js/main.js", "js/vendor.js"},
		},
		{
			name:     "double star crosses directories and skips dirs",
			patterns: []string{"img/**/*"},
			want:     []string{"img/icons/arrow.svg", "img/logo.png"},
		},
		{
			name:     "duplicates are dropped",
			patterns: []string{"js/main.js", "js/*.js"},
			want:     []string{"js/main.js", "js/main.min.js", "js/vendor.js"},
		},
		{
			name:     "no matches",
			patterns: []string{"css/*.css"},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(root, tt.patterns)
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Expand mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	patterns := []string{"js/*.js", "!js/main.min.js"}

	tests := []struct {
		rel  string
		want bool
	}{
		{"js/main.js", true},
		{"js/main.min.js", false},
		{"js/lib/x.js", false},
		{"scss/a.scss", false},
	}

	for _, tt := range tests {
		if got := Match(patterns, tt.rel); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}

	if !Match([]string{"scss/**/*.scss"}, "scss/parts/deep/b.scss") {
		t.Error("expected ** to match nested file")
	}
}

func TestBaseDirs(t *testing.T) {
	got := BaseDirs([]string{"scss/**/*.scss", "js/*.js", "!js/main.min.js", "*.html", "scss/*.css"})
	want := []string{".", "js", "scss"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BaseDirs mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		wantErr  bool
	}{
		{"valid", []string{"img/**/*", "!img/raw/*"}, false},
		{"absolute", []string{"/etc/*"}, true},
		{"traversal", []string{"../secrets/*"}, true},
		{"empty negation", []string{"!"}, true},
		{"bad bracket", []string{"img/[a-"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.patterns)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%v) error = %v, wantErr %v", tt.patterns, err, tt.wantErr)
			}
		})
	}
}

func TestWriteFileKeepsPreviousOnFailure(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "css", "style.min.css")

	if err := WriteFile(out, []byte("a{}")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(data) != "a{}" {
		t.Errorf("expected a{}, got %q", data)
	}

	// A directory where the file's parent should be makes the write fail.
	blocked := filepath.Join(root, "blocked")
	if err := os.WriteFile(blocked, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(filepath.Join(blocked, "out.css"), []byte("b{}")); err == nil {
		t.Error("expected error writing under a regular file")
	}

	data, _ = os.ReadFile(out)
	if string(data) != "a{}" {
		t.Errorf("previous output changed: %q", data)
	}
}
