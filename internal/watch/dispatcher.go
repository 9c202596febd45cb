// Package watch reruns tasks when source files change. Which task runs for
// which file is data: an ordered list of rules, each a set of glob patterns
// and a handler.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spachava753/assetflow/internal/fileset"
	"github.com/spachava753/assetflow/internal/livereload"
	"github.com/spachava753/assetflow/internal/pipeline"
)

// Handler reacts to a change of rel, a slash-separated path relative to the
// watched root.
type Handler func(ctx context.Context, rel string) error

// Rule binds patterns to a handler. Patterns use fileset syntax, so a
// leading "!" excludes.
type Rule struct {
	Name     string
	Patterns []string
	Handle   Handler
}

// RunTask returns a handler that runs t, ignoring which file changed.
func RunTask(t pipeline.Task) Handler {
	return func(ctx context.Context, _ string) error {
		return pipeline.Run(ctx, t)
	}
}

// Reload returns a handler that only asks browsers to reload the changed path.
func Reload(n livereload.Notifier) Handler {
	return func(_ context.Context, rel string) error {
		n.Reload(rel)
		return nil
	}
}

// State of a dispatcher.
type State string

const (
	Idle   State = "idle"
	Active State = "active"
)

// Dispatcher runs the handlers of matching rules, each in its own goroutine.
// Runs of the same rule may overlap; the last one to write wins. With a
// positive delay, events for a rule are coalesced and the rule runs once for
// the last path seen within the delay.
type Dispatcher struct {
	rules []Rule
	delay time.Duration

	wg       sync.WaitGroup
	inFlight atomic.Int64

	mu      sync.Mutex
	pending map[string]*pendingRun
	closed  bool
}

type pendingRun struct {
	timer *time.Timer
	path  string
}

// NewDispatcher creates a dispatcher over rules, evaluated in order.
func NewDispatcher(rules []Rule, delay time.Duration) *Dispatcher {
	return &Dispatcher{
		rules:   rules,
		delay:   delay,
		pending: make(map[string]*pendingRun),
	}
}

// Rules returns the rules in evaluation order.
func (d *Dispatcher) Rules() []Rule {
	return d.rules
}

// Dispatch starts every rule matching rel once and returns their names.
func (d *Dispatcher) Dispatch(ctx context.Context, rel string) []string {
	var matched []string
	for _, r := range d.rules {
		if !fileset.Match(r.Patterns, rel) {
			continue
		}
		matched = append(matched, r.Name)
		if d.delay > 0 {
			d.schedule(ctx, r, rel)
			continue
		}
		d.start(ctx, r, rel)
	}
	return matched
}

func (d *Dispatcher) start(ctx context.Context, r Rule, rel string) {
	d.wg.Add(1)
	d.inFlight.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inFlight.Add(-1)

		slog.Debug("running watch rule", "rule", r.Name, "path", rel)
		if err := r.Handle(ctx, rel); err != nil && ctx.Err() == nil {
			slog.Error("watch rule failed", "rule", r.Name, "path", rel, "error", err)
		}
	}()
}

func (d *Dispatcher) schedule(ctx context.Context, r Rule, rel string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if p, ok := d.pending[r.Name]; ok && p.timer.Stop() {
		p.path = rel
		p.timer.Reset(d.delay)
		return
	}

	p := &pendingRun{path: rel}
	d.wg.Add(1)
	p.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()

		d.mu.Lock()
		if d.pending[r.Name] == p {
			delete(d.pending, r.Name)
		}
		path, closed := p.path, d.closed
		d.mu.Unlock()

		if !closed {
			d.start(ctx, r, path)
		}
	})
	d.pending[r.Name] = p
}

// Active returns the number of handlers currently running.
func (d *Dispatcher) Active() int {
	return int(d.inFlight.Load())
}

// State reports whether any handler is running.
func (d *Dispatcher) State() State {
	if d.Active() > 0 {
		return Active
	}
	return Idle
}

// Wait blocks until running and scheduled handlers have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close drops scheduled runs and waits for running handlers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	for name, p := range d.pending {
		if p.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, name)
	}
	d.mu.Unlock()

	d.wg.Wait()
}
