// Package transform holds the tasks that turn source files into built assets:
// styles, scripts, templates and images.
//
// Every transform reads the files its patterns select, applies one
// conversion with fixed options and writes the result atomically, so a
// failed run leaves the previous output untouched.
package transform

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/spachava753/assetflow/internal/fileset"
	"github.com/spachava753/assetflow/internal/models"
)

// expand resolves patterns under root, wrapping failures for task.
func expand(task, root string, patterns []string) ([]string, error) {
	files, err := fileset.Expand(root, patterns)
	if err != nil {
		return nil, models.NewTaskError(task, models.ErrFilesystem, err)
	}
	return files, nil
}

// readSource reads rel under root, wrapping failures for task.
func readSource(task, root, rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, models.NewTaskError(task, models.ErrFilesystem, err)
	}
	return data, nil
}

// writeOutput writes data to name, wrapping failures for task.
func writeOutput(task, name string, data []byte) error {
	if err := fileset.WriteFile(name, data); err != nil {
		return models.NewTaskError(task, models.ErrFilesystem, err)
	}
	return nil
}

// bundle concatenates sources and remembers the line each one starts on, so
// tool messages about the bundle can name the source they came from.
type bundle struct {
	buf    bytes.Buffer
	lines  int // newlines written so far
	files  []string
	starts []int // 1-based first line of each file
}

// write appends glue text that belongs to no source.
func (b *bundle) write(s string) {
	b.buf.WriteString(s)
	b.lines += strings.Count(s, "\n")
}

// add appends the contents of the source file name.
func (b *bundle) add(name string, data []byte) {
	b.files = append(b.files, name)
	b.starts = append(b.starts, b.lines+1)
	b.buf.Write(data)
	b.lines += bytes.Count(data, []byte("\n"))
}

func (b *bundle) String() string { return b.buf.String() }

// locate maps a 1-based bundle line to a source file and its own line.
func (b *bundle) locate(line int) (string, int) {
	for i := len(b.starts) - 1; i >= 0; i-- {
		if line >= b.starts[i] {
			return b.files[i], line - b.starts[i] + 1
		}
	}
	return "", line
}

// esbuildError joins esbuild messages into one error, keeping the tool's text
// and pointing each located message at the source it came from.
func esbuildError(msgs []api.Message, b *bundle) error {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			file, line := b.locate(m.Location.Line)
			lines = append(lines, fmt.Sprintf("%s:%d:%d: %s", file, line, m.Location.Column, m.Text))
			continue
		}
		lines = append(lines, m.Text)
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"deno":    api.EngineDeno,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// ParseEngines converts targets such as "chrome58" or "safari11.1" into
// esbuild engines.
func ParseEngines(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, t := range targets {
		t = strings.ToLower(strings.TrimSpace(t))
		i := strings.IndexAny(t, "0123456789")
		if i <= 0 {
			return nil, fmt.Errorf("invalid browser target %q", t)
		}
		name, ok := engineNames[t[:i]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q in target %q", t[:i], t)
		}
		engines = append(engines, api.Engine{Name: name, Version: t[i:]})
	}
	return engines, nil
}

var esTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget converts a language level such as "es2017" into an esbuild target.
func ParseTarget(target string) (api.Target, error) {
	t, ok := esTargets[strings.ToLower(strings.TrimSpace(target))]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown script target %q", target)
	}
	return t, nil
}
