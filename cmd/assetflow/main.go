package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/goyek/goyek/v2"
	"github.com/goyek/goyek/v2/middleware"

	"github.com/spachava753/assetflow/internal/composer"
	"github.com/spachava753/assetflow/internal/config"
	"github.com/spachava753/assetflow/internal/models"
	"github.com/spachava753/assetflow/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "path to assetflow.yaml or assetflow.toml (default: look in the working directory)")
	verbose := flag.Bool("v", false, "enable debug logging")
	plan := flag.Bool("plan", false, "print how the selected tasks are composed and exit")
	flag.Usage = usage
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	setupLogging(*verbose, cfg.LogLevel)

	c, err := composer.New(cfg)
	if err != nil {
		slog.Error("setting up tasks", "error", err)
		os.Exit(1)
	}

	names := flag.Args()
	if len(names) == 0 {
		names = []string{"default"}
	}
	for _, name := range names {
		if _, err := c.Task(name); err != nil {
			fmt.Fprintln(os.Stderr, err)
			usage()
			os.Exit(2)
		}
	}

	if *plan {
		for _, name := range names {
			t, _ := c.Task(name)
			fmt.Println(pipeline.Describe(t))
		}
		return
	}

	define(c)

	// Setup context with manual signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	defer func() {
		signal.Stop(sigChan)
		cancel()
	}()

	go func() {
		sig := <-sigChan
		slog.Info("interrupt received, shutting down gracefully...", "signal", sig)
		cancel()
	}()

	err = goyek.Execute(ctx, names)
	interrupted := ctx.Err() != nil
	code := exitCode(names, interrupted, err)
	switch {
	case interrupted && code == 0:
		slog.Info("stopped")
	case interrupted:
		slog.Error("interrupted before completion", "tasks", names)
	case err != nil:
		slog.Error("run failed", "error", err)
	}
	if code != 0 {
		cancel()
		os.Exit(code)
	}
}

// longRunning tasks only end when interrupted.
var longRunning = map[string]bool{"default": true, "watch": true, "serve": true}

// exitCode maps the outcome of a run to the process status. Interrupting
// long-running tasks is how they end, so it counts as success; anything
// else that was interrupted did not complete.
func exitCode(names []string, interrupted bool, err error) int {
	if interrupted {
		for _, name := range names {
			if !longRunning[name] {
				return 1
			}
		}
		return 0
	}
	if err != nil {
		return 1
	}
	return 0
}

// define registers every composed task with goyek so it can be selected
// by name on the command line.
func define(c *composer.Composer) {
	goyek.Use(middleware.ReportStatus)

	for _, name := range composer.Names {
		t, err := c.Task(name)
		if err != nil {
			continue
		}
		defined := goyek.Define(goyek.Task{
			Name:  name,
			Usage: composer.Usage(name),
			Action: func(a *goyek.A) {
				err := pipeline.Run(a.Context(), t)
				if err == nil || (errors.Is(err, context.Canceled) && a.Context().Err() != nil) {
					return
				}
				var taskErr *models.TaskError
				if errors.As(err, &taskErr) {
					a.Errorf("%s failed (%s): %v", taskErr.Task, taskErr.Kind, taskErr.Err)
					return
				}
				a.Error(err)
			},
		})
		if name == "default" {
			goyek.SetDefault(defined)
		}
	}
}

func loadConfig(path string) (models.Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return models.Config{}, fmt.Errorf("getting working directory: %w", err)
		}
		found, err := config.Find(wd)
		if err != nil {
			return models.Config{}, err
		}
		if found == "" {
			cfg := config.DefaultConfig()
			if err := config.Resolve(&cfg, wd); err != nil {
				return cfg, err
			}
			return cfg, config.Validate(cfg)
		}
		path = found
	}
	return config.Load(path)
}

func setupLogging(verbose bool, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: assetflow [flags] [task ...]\n\ntasks:\n")
	for _, name := range composer.Names {
		fmt.Fprintf(out, "  %-10s %s\n", name, composer.Usage(name))
	}
	fmt.Fprintf(out, "\nflags:\n")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nWith no task, default runs.")
}
