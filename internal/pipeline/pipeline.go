// Package pipeline models named tasks and their composition.
//
// A Task is a named unit of work whose only observable contract is success or
// failure. Tasks compose with two primitives: Then runs members one after the
// other and stops at the first failure; AllOf starts every member at once and
// fails with the first member error, cancelling the rest. Settle marks a
// member whose failure is logged and not propagated.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a named, invokable unit of work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

// Func wraps fn as a Task.
func Func(name string, fn func(ctx context.Context) error) Task {
	return &funcTask{name: name, fn: fn}
}

func (t *funcTask) Name() string                  { return t.name }
func (t *funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

// composite is implemented by Then and AllOf compositions.
type composite interface {
	Task
	kind() string
	members() []Task
}

type series struct {
	name  string
	tasks []Task
}

// Then returns a Task that runs tasks in order. Each member starts only after
// the previous one succeeded; the first failure is returned and the remaining
// members never start.
func Then(name string, tasks ...Task) Task {
	return &series{name: name, tasks: tasks}
}

func (s *series) Name() string    { return s.name }
func (s *series) kind() string    { return "then" }
func (s *series) members() []Task { return s.tasks }

func (s *series) Run(ctx context.Context) error {
	for _, t := range s.tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := Run(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

type parallel struct {
	name  string
	tasks []Task
}

// AllOf returns a Task that starts all tasks concurrently with no ordering
// between them. It returns once every member has returned. The first member
// error cancels the context passed to the others and is the result.
func AllOf(name string, tasks ...Task) Task {
	return &parallel{name: name, tasks: tasks}
}

func (p *parallel) Name() string    { return p.name }
func (p *parallel) kind() string    { return "all-of" }
func (p *parallel) members() []Task { return p.tasks }

func (p *parallel) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range p.tasks {
		t := t
		g.Go(func() error {
			return Run(ctx, t)
		})
	}
	return g.Wait()
}

type settled struct {
	task Task
}

// Settle returns a Task that runs t and reports success even when t fails.
// The failure is logged. Cancellation is still returned so that enclosing
// compositions stop.
func Settle(t Task) Task {
	return &settled{task: t}
}

func (s *settled) Name() string    { return s.task.Name() }
func (s *settled) kind() string    { return "settle" }
func (s *settled) members() []Task { return []Task{s.task} }

func (s *settled) Run(ctx context.Context) error {
	err := s.task.Run(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	slog.Warn("task failed, continuing", "task", s.task.Name(), "error", err)
	return nil
}

// Run executes t, logging its start, duration and outcome.
func Run(ctx context.Context, t Task) error {
	start := time.Now()
	slog.Info("starting task", "task", t.Name())

	err := t.Run(ctx)

	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		slog.Error("task failed", "task", t.Name(), "duration", elapsed, "error", err)
		return err
	}
	slog.Info("finished task", "task", t.Name(), "duration", elapsed)
	return nil
}

// Describe renders the composition tree of t, e.g.
// "build = then(clean, images, copy)". Leaf tasks render as their name.
func Describe(t Task) string {
	c, ok := t.(composite)
	if !ok {
		return t.Name()
	}
	return fmt.Sprintf("%s = %s", c.Name(), describeMembers(c))
}

func describeMembers(c composite) string {
	parts := make([]string, 0, len(c.members()))
	for _, m := range c.members() {
		if mc, ok := m.(composite); ok {
			parts = append(parts, describeMembers(mc))
			continue
		}
		parts = append(parts, m.Name())
	}
	return fmt.Sprintf("%s(%s)", c.kind(), strings.Join(parts, ", "))
}
