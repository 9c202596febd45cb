// Package composer builds the named tasks of a project and composes them
// into the development and release pipelines.
package composer

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spachava753/assetflow/internal/lint"
	"github.com/spachava753/assetflow/internal/livereload"
	"github.com/spachava753/assetflow/internal/models"
	"github.com/spachava753/assetflow/internal/pipeline"
	"github.com/spachava753/assetflow/internal/release"
	"github.com/spachava753/assetflow/internal/transform"
	"github.com/spachava753/assetflow/internal/watch"
)

// Names lists the named tasks in the order they are presented.
var Names = []string{
	"styles", "scripts", "templates", "images", "lint",
	"clean", "copy", "watch", "serve", "build", "default",
}

var usage = map[string]string{
	"styles":    "Compile, prefix and minify stylesheets",
	"scripts":   "Bundle and minify scripts",
	"templates": "Render Pug templates to HTML",
	"images":    "Optimise images into the output directory",
	"lint":      "Check templates against the lint rules",
	"clean":     "Remove the output directory",
	"copy":      "Copy finalized assets into the output directory",
	"watch":     "Rebuild on source changes",
	"serve":     "Serve the source directory with live reload",
	"build":     "Produce the release output directory",
	"default":   "Build, watch and serve for development",
}

// Usage returns the one-line description of a named task.
func Usage(name string) string {
	return usage[name]
}

// Composer holds the tasks of one project. Every transform shares the
// live-reload server as its Notifier.
type Composer struct {
	cfg     models.Config
	server  *livereload.Server
	watcher *watch.Watcher
	tasks   map[string]pipeline.Task
}

// New creates all tasks for cfg.
func New(cfg models.Config) (*Composer, error) {
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := livereload.NewServer(cfg.SourceDir, addr)

	styles, err := transform.NewStyles(cfg, server)
	if err != nil {
		return nil, err
	}
	scripts, err := transform.NewScripts(cfg, server)
	if err != nil {
		return nil, err
	}
	templates := transform.NewTemplates(cfg, server)
	images, err := transform.NewImages(cfg)
	if err != nil {
		return nil, err
	}
	linter, err := lint.New(cfg)
	if err != nil {
		return nil, err
	}
	clean := release.NewCleaner(cfg)
	assets := release.NewCopier(cfg)

	rules := []watch.Rule{
		{Name: "styles", Patterns: cfg.Styles.Watch, Handle: watch.RunTask(styles)},
		{Name: "scripts", Patterns: cfg.Scripts.Watch, Handle: watch.RunTask(scripts)},
		{Name: "templates", Patterns: cfg.Templates.Watch, Handle: watch.RunTask(templates)},
		{Name: "markup", Patterns: cfg.Markup.Watch, Handle: watch.Reload(server)},
	}
	dispatcher := watch.NewDispatcher(rules, time.Duration(cfg.Watch.DelayMs)*time.Millisecond)
	watcher := watch.New(cfg.SourceDir, dispatcher, cfg.OutputDir)

	serve := pipeline.Func("serve", server.ListenAndServe)

	var stages []pipeline.Task
	if cfg.Build.RunPreflight() {
		stages = append(stages, pipeline.Then("preflight", linter,
			pipeline.AllOf("compile", styles, scripts, templates)))
	}
	stages = append(stages, clean, images, assets)
	build := pipeline.Then("build", stages...)

	// Only lint is fatal at startup; a broken transform is reported and the
	// watcher rebuilds it once the source is fixed.
	dev := pipeline.AllOf("default",
		pipeline.Settle(styles), pipeline.Settle(scripts), linter, pipeline.Settle(templates), watcher, serve)

	c := &Composer{
		cfg:     cfg,
		server:  server,
		watcher: watcher,
		tasks:   map[string]pipeline.Task{},
	}
	for _, t := range []pipeline.Task{styles, scripts, templates, images, linter, clean, assets, watcher, serve, build, dev} {
		c.tasks[t.Name()] = t
	}
	return c, nil
}

// Task returns the named task.
func (c *Composer) Task(name string) (pipeline.Task, error) {
	t, ok := c.tasks[name]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", name)
	}
	return t, nil
}

// Build returns the release pipeline.
func (c *Composer) Build() pipeline.Task {
	return c.tasks["build"]
}

// Default returns the development pipeline. It only returns on failure or
// cancellation.
func (c *Composer) Default() pipeline.Task {
	return c.tasks["default"]
}

// Server returns the live-reload server shared by the tasks.
func (c *Composer) Server() *livereload.Server {
	return c.server
}

// Watcher returns the watch task.
func (c *Composer) Watcher() *watch.Watcher {
	return c.watcher
}
