package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/symreach/internal/output"
	"github.com/panbanda/symreach/internal/progress"
	"github.com/panbanda/symreach/internal/service/analysis"
	"github.com/panbanda/symreach/pkg/config"
)

// errDeadCodeFound makes deadcode --fail-on-dead exit non-zero.
var errDeadCodeFound = errors.New("dead code found")

// exitCode maps command errors to process exit codes.
func exitCode(err error) int {
	if errors.Is(err, errDeadCodeFound) {
		return 2
	}
	return 1
}

// loadConfig reads --config, or the first config file in the working
// directory, and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		path, _ = config.Find(".")
	}

	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}
	if f := c.String("format"); f != "" {
		cfg.Output.Format = f
	}
	return cfg, nil
}

// newLogger logs warnings to w, or everything when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newService builds the analysis service for a command.
func newService(c *cli.Context) (*analysis.Service, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(c.App.ErrWriter, cfg.Output.Verbose)
	return analysis.New(analysis.WithConfig(cfg), analysis.WithLogger(logger)), cfg, nil
}

func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	return output.NewFormatter(output.ParseFormat(cfg.Output.Format), c.String("output"), cfg.Output.Color && !color.NoColor)
}

// machineReadable reports whether the output is meant for another program,
// in which case progress bars stay off.
func machineReadable(f *output.Formatter) bool {
	return f.Format().MachineReadable()
}

func newTracker(label string, total int, quiet bool) *progress.Tracker {
	return progress.NewTracker(label, total, progress.Quiet(quiet || color.NoColor))
}

// scanManifests finds manifests under the command's paths.
func scanManifests(c *cli.Context, svc *analysis.Service) ([]string, error) {
	return svc.Scan(getPaths(c))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// warnFailed prints manifests that were skipped.
func warnFailed(f *output.Formatter, failed []analysis.FailedManifest) {
	if len(failed) == 0 || machineReadable(f) {
		return
	}
	fmt.Fprintln(f.Writer())
	f.Warning("%d manifest(s) skipped:", len(failed))
	for _, fm := range failed {
		fmt.Fprintf(f.Writer(), "  - %s: %s\n", fm.Path, fm.Error)
	}
}
