// Package toolchain runs external compilers as subprocesses.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Command describes one invocation of an external tool.
type Command struct {
	Name  string // executable name or path
	Args  []string
	Dir   string
	Stdin []byte
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// ExitError reports a tool that ran and exited non-zero. Its message is the
// tool's own stderr output.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	}
	return msg
}

// Run executes cmd, feeding Stdin to the process, and returns its stdout.
func Run(ctx context.Context, cmd Command) ([]byte, error) {
	path, err := exec.LookPath(cmd.Name)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", cmd.Name, err)
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		// A killed process also reports an ExitError.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("running %s: %w", cmd.Name, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{
				Command: cmd.Name,
				Code:    exitErr.ExitCode(),
				Stderr:  stderr.String(),
			}
		}
		return nil, fmt.Errorf("running %s: %w", cmd.Name, err)
	}

	return stdout.Bytes(), nil
}

// Available reports whether name resolves to an executable on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
