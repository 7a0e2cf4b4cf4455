package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/symreach/internal/fileproc"
	"github.com/panbanda/symreach/internal/output"
	"github.com/panbanda/symreach/pkg/manifest"
)

func validateCmd() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check symbol manifests against the manifest schema",
		ArgsUsage: "[path...]",
		Action:    runValidateCmd,
	}
}

type validationResult struct {
	Path    string `json:"path" toon:"path"`
	Files   int    `json:"files" toon:"files"`
	Symbols int    `json:"symbols" toon:"symbols"`
	Error   string `json:"error,omitempty" toon:"error,omitempty"`
}

func runValidateCmd(c *cli.Context) error {
	svc, cfg, err := newService(c)
	if err != nil {
		return err
	}
	files, err := scanManifests(c, svc)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	ctx, stop := signalContext(c.Context)
	defer stop()

	tracker := newTracker("Validating manifests...", len(files), machineReadable(formatter))
	loaded, err := manifest.LoadFiles(ctx, files, manifest.LoadOptions{OnProgress: tracker.Func()})
	tracker.FinishSuccess()

	var perrs *fileproc.ProcessingErrors
	if err != nil && !errors.As(err, &perrs) {
		return err
	}

	results := make([]validationResult, 0, len(files))
	for _, l := range loaded {
		r := validationResult{Path: l.Path, Files: len(l.Files)}
		for _, f := range l.Files {
			r.Symbols += len(f.Symbols)
		}
		results = append(results, r)
	}
	if perrs != nil {
		for _, pe := range perrs.Sorted() {
			results = append(results, validationResult{Path: pe.Path, Error: pe.Err.Error()})
		}
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if r.Error != "" {
			status = r.Error
		}
		rows = append(rows, []string{r.Path, fmt.Sprintf("%d", r.Files), fmt.Sprintf("%d", r.Symbols), status})
	}
	table := output.NewTable(
		"Manifest Validation",
		[]string{"Manifest", "Files", "Symbols", "Status"},
		rows,
		[]string{fmt.Sprintf("Valid: %d", len(loaded)), "", "", fmt.Sprintf("Invalid: %d", len(results)-len(loaded))},
		results,
	)
	if err := formatter.Output(table); err != nil {
		return err
	}

	if perrs != nil && perrs.HasErrors() {
		return fmt.Errorf("%d invalid manifest(s)", len(perrs.Sorted()))
	}
	return nil
}
