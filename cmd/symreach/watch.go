package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/symreach/internal/output"
	"github.com/panbanda/symreach/internal/semantic"
	"github.com/panbanda/symreach/internal/service/analysis"
	"github.com/panbanda/symreach/pkg/analyzer/deadcode"
	"github.com/panbanda/symreach/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Re-run dead code analysis whenever manifests change",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "Entry point mode: library, executable, hybrid (default from config)",
			},
			&cli.StringFlag{
				Name:  "min-confidence",
				Usage: "Lowest confidence to report: low, medium, high (default from config)",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "Quiet period before a changed manifest is reloaded",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	root := "."
	if c.Args().Len() > 0 {
		root = c.Args().First()
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	svc, cfg, err := newService(c)
	if err != nil {
		return err
	}
	policy, err := svc.Policy(c.String("mode"))
	if err != nil {
		return err
	}
	floorName := cfg.DeadCode.MinConfidence
	if v := c.String("min-confidence"); v != "" {
		floorName = v
	}
	floor, err := deadcode.ParseConfidence(floorName)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	var opts []watch.SessionOption
	var loaded *analysis.Loaded
	files, err := svc.Scan([]string{root})
	switch {
	case errors.Is(err, analysis.ErrNoManifests):
		loaded = &analysis.Loaded{Graph: svc.NewGraph()}
	case err != nil:
		return err
	default:
		if loaded, err = svc.Load(ctx, files, nil); err != nil {
			return err
		}
		sum, err := svc.Enhance(ctx, loaded.Graph)
		if err != nil {
			return fmt.Errorf("semantic enhancement: %w", err)
		}
		if sum.Mode != semantic.ModeOff {
			if r, err := semantic.New(cfg.Semantic); err == nil {
				opts = append(opts, watch.WithResolver(r, semantic.Options(sum.Mode)))
			}
		}
	}

	logger := newLogger(c.App.ErrWriter, cfg.Output.Verbose)
	session := watch.NewSession(loaded.Graph, policy, append(opts, watch.WithSessionLogger(logger))...)
	session.Seed(loaded.Manifests)

	res, err := session.Analyze(ctx)
	if err != nil {
		return err
	}
	printWatchResult(c, res, floor)

	w, err := watch.NewWatcher(root, cfg, c.Duration("debounce"), logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	w.SetHandler(func(ctx context.Context, events []watch.Event) {
		var names []string
		for _, ev := range events {
			rel, err := filepath.Rel(root, ev.Path)
			if err != nil {
				rel = ev.Path
			}
			if ev.Removed {
				rel += " (removed)"
			}
			names = append(names, rel)
		}
		color.Yellow("\nChanged: %s", strings.Join(names, ", "))
		fmt.Fprintln(c.App.Writer, strings.Repeat("-", 40))

		up, err := session.Apply(ctx, events)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				color.Red("Error: %v", err)
			}
			return
		}
		for path, ferr := range up.Failed {
			color.Red("  %s: %v", path, ferr)
		}
		printWatchResult(c, up.Result, floor)
	})

	color.Cyan("Watching %s for manifest changes...", root)
	color.Cyan("Press Ctrl+C to stop")

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printWatchResult(c *cli.Context, res *deadcode.Result, floor deadcode.ConfidenceLevel) {
	dead := res.DeadAtLeast(floor)
	st := res.Statistics
	fmt.Fprintf(c.App.Writer, "%d symbols, %d live, %d dead (%d at %s or above) in %s\n",
		st.TotalSymbols, st.LiveSymbols, st.DeadSymbols, len(dead), floor, st.Elapsed.Round(time.Microsecond))
	for _, d := range dead {
		conf := d.Confidence.String()
		fmt.Fprintf(c.App.Writer, "  %s  %s  %s\n", d.Symbol.Location, d.Symbol.QualifiedName, output.ConfidenceColor(conf, conf))
	}
}
