package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/symreach/internal/output"
	"github.com/panbanda/symreach/internal/service/analysis"
)

func refsCmd() *cli.Command {
	return &cli.Command{
		Name:      "refs",
		Usage:     "List references that resolve to no declaration",
		ArgsUsage: "[path...]",
		Action:    runRefsCmd,
	}
}

func runRefsCmd(c *cli.Context) error {
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

	tracker := newTracker("Loading manifests...", len(files), machineReadable(formatter))
	report, err := svc.UnresolvedReferences(ctx, files, tracker.Func())
	if err != nil {
		tracker.FinishError(err)
		return fmt.Errorf("analysis failed: %w", err)
	}
	tracker.FinishSuccess()

	if err := formatter.Output(refsReport(report)); err != nil {
		return err
	}
	warnFailed(formatter, report.Failed)
	return nil
}

func refsReport(report *analysis.ReferenceReport) *output.Table {
	rows := make([][]string, 0, len(report.Unresolved))
	for _, u := range report.Unresolved {
		ref := u.Reference
		rows = append(rows, []string{ref.Location.String(), ref.Name, string(ref.Kind), ref.ScopeContext, ref.InferredBaseType})
	}
	return output.NewTable(
		"Unresolved References",
		[]string{"Location", "Name", "Kind", "Scope", "Base Type"},
		rows,
		[]string{
			fmt.Sprintf("Unresolved: %d", len(report.Unresolved)),
			fmt.Sprintf("References: %d", report.Graph.References),
			fmt.Sprintf("Semantic: %s", report.Semantic.Mode),
			"",
			"",
		},
		report,
	)
}
