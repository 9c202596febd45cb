// Package fileset resolves ordered glob pattern lists against a source tree
// and writes task outputs atomically.
//
// Patterns use doublestar syntax ("**" crosses directories) and are relative
// to the tree root with forward slashes. A pattern starting with "!" removes
// matching files from the set regardless of its position in the list.
package fileset

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/renameio/v2"
)

// Validate checks that every pattern is a well-formed relative glob.
func Validate(patterns []string) error {
	for _, p := range patterns {
		pat := strings.TrimPrefix(p, "!")
		if pat == "" {
			return fmt.Errorf("empty pattern")
		}
		if path.IsAbs(pat) || filepath.IsAbs(pat) {
			return fmt.Errorf("pattern %q must be relative", p)
		}
		if err := ValidatePath(pat); err != nil {
			return err
		}
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("invalid pattern %q", p)
		}
	}
	return nil
}

// ValidatePath rejects paths containing ".." segments to keep tasks inside their tree.
func ValidatePath(p string) error {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return fmt.Errorf("invalid path: contains directory traversal: %q", p)
		}
	}
	return nil
}

// Expand returns the regular files under root matched by patterns, as
// slash-separated paths relative to root. Files keep the order of the first
// pattern that matched them; matches of a single pattern are sorted.
func Expand(root string, patterns []string) ([]string, error) {
	fsys := os.DirFS(root)

	var include, exclude []string
	for _, p := range patterns {
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			exclude = append(exclude, neg)
			continue
		}
		include = append(include, p)
	}

	seen := make(map[string]bool)
	var files []string
	for _, pat := range include {
		matches, err := doublestar.Glob(fsys, pat)
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pat, err)
		}
		sort.Strings(matches)

		for _, m := range matches {
			if seen[m] || matchAny(exclude, m) {
				continue
			}
			info, err := fs.Stat(fsys, m)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", m, err)
			}
			if !info.Mode().IsRegular() {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}

	return files, nil
}

// Match reports whether rel (slash-separated, relative to the tree root) is
// selected by patterns: it matches a positive pattern and no negated one.
func Match(patterns []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	var matched bool
	for _, p := range patterns {
		if neg, ok := strings.CutPrefix(p, "!"); ok {
			if ok, _ := doublestar.Match(neg, rel); ok {
				return false
			}
			continue
		}
		if !matched {
			matched, _ = doublestar.Match(p, rel)
		}
	}
	return matched
}

// BaseDirs returns the static directory prefix of every positive pattern,
// deduplicated and sorted. "." stands for the tree root.
func BaseDirs(patterns []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			continue
		}
		base, _ := doublestar.SplitPattern(p)
		if base == "" {
			base = "."
		}
		if !seen[base] {
			seen[base] = true
			dirs = append(dirs, base)
		}
	}
	sort.Strings(dirs)
	return dirs
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// WriteFile writes data to name through a temporary file and rename, so
// readers never observe a partial file and a failed write leaves the
// previous content in place. Parent directories are created.
func WriteFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}
	if err := renameio.WriteFile(name, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// CopyFile copies src to dst atomically, creating parent directories of dst.
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	return WriteFile(dst, data)
}
