package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/symreach/internal/output"
	"github.com/panbanda/symreach/internal/service/analysis"
	"github.com/panbanda/symreach/pkg/analyzer/deadcode"
	"github.com/panbanda/symreach/pkg/symbol"
	"github.com/panbanda/symreach/pkg/symgraph"
)

func deadcodeCmd() *cli.Command {
	return &cli.Command{
		Name:      "deadcode",
		Aliases:   []string{"dc"},
		Usage:     "Report declarations no entry point can reach",
		ArgsUsage: "[path...]",
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
			&cli.BoolFlag{
				Name:  "fail-on-dead",
				Usage: "Exit with status 2 when dead code is reported",
			},
		},
		Action: runDeadcodeCmd,
	}
}

func runDeadcodeCmd(c *cli.Context) error {
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
	report, err := svc.AnalyzeDeadCode(ctx, files, analysis.DeadCodeOptions{
		Mode:          c.String("mode"),
		MinConfidence: c.String("min-confidence"),
		NoCache:       c.Bool("no-cache"),
		OnProgress:    tracker.Func(),
	})
	if err != nil {
		tracker.FinishError(err)
		return fmt.Errorf("analysis failed: %w", err)
	}
	tracker.FinishSuccess()

	if err := formatter.Output(deadCodeReport(report, formatter.Colored())); err != nil {
		return err
	}
	warnFailed(formatter, report.Failed)

	if c.Bool("fail-on-dead") && len(report.Reported()) > 0 {
		return errDeadCodeFound
	}
	return nil
}

// deadCodeReport lays out a dead code report for text and markdown. JSON and
// TOON render the report itself.
func deadCodeReport(report *analysis.DeadCodeReport, colored bool) *output.Report {
	res := report.Result
	reported := report.Reported()

	rows := make([][]string, 0, len(reported))
	for _, d := range reported {
		conf := d.Confidence.String()
		if colored {
			conf = output.ConfidenceColor(conf, conf)
		}
		rows = append(rows, []string{
			d.Symbol.Location.String(),
			d.Symbol.QualifiedName,
			string(d.Symbol.Kind),
			d.Symbol.Accessibility.String(),
			conf,
		})
	}

	st := res.Statistics
	summary := &output.Section{
		Title: "Summary",
		Content: fmt.Sprintf(
			"Mode: %s\nManifests: %d (%d skipped)\nSymbols: %d, entry points: %d, live: %d, ignored: %d\nDead: %d (High %d, Medium %d, Low %d), reported at %s or above: %d",
			res.Mode, report.Manifests, len(report.Failed),
			st.TotalSymbols, st.EntryPoints, st.LiveSymbols, st.IgnoredSymbols,
			st.DeadSymbols,
			st.DeadByConfidence[deadcode.ConfidenceHigh],
			st.DeadByConfidence[deadcode.ConfidenceMedium],
			st.DeadByConfidence[deadcode.ConfidenceLow],
			report.MinConfidence, len(reported),
		),
		Sections: []output.Section{{
			Title:   "Graph",
			Content: graphSummary(report.Graph, report.Semantic, report.Revision, report.Cached),
		}},
	}

	sections := []output.Renderable{
		summary,
		output.NewTable(
			"Dead Symbols",
			[]string{"Location", "Symbol", "Kind", "Access", "Confidence"},
			rows,
			[]string{fmt.Sprintf("Total: %d", len(reported)), "", "", "", ""},
			nil,
		),
	}

	if len(res.DeadCycles) > 0 {
		cycles := make([][]string, 0, len(res.DeadCycles))
		for i, cycle := range res.DeadCycles {
			cycles = append(cycles, []string{fmt.Sprintf("%d", i+1), fmt.Sprintf("%d", len(cycle)), cycleNames(report, cycle)})
		}
		sections = append(sections, output.NewTable(
			"Dead Cycles",
			[]string{"#", "Size", "Members"},
			cycles,
			nil,
			nil,
		))
	}

	return &output.Report{
		Title:    "Dead Code Analysis",
		Sections: sections,
		Data:     report,
	}
}

// cycleNames names cycle members by qualified name where the result knows
// them.
func cycleNames(report *analysis.DeadCodeReport, cycle []symbol.ID) string {
	names := make(map[symbol.ID]string, len(report.Result.DeadSymbols))
	for _, d := range report.Result.DeadSymbols {
		names[d.Symbol.ID] = d.Symbol.QualifiedName
	}
	parts := make([]string, 0, len(cycle))
	for _, id := range cycle {
		if n, ok := names[id]; ok {
			parts = append(parts, n)
		} else {
			parts = append(parts, string(id))
		}
	}
	return strings.Join(parts, ", ")
}

func graphSummary(st symgraph.Stats, sem analysis.SemanticSummary, revision string, cached bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Files: %d, symbols: %d, edges: %d\n", st.Files, st.Symbols, st.Edges)
	fmt.Fprintf(&b, "References: %d (%d unresolved, %d roots)\n", st.References, st.Unresolved, st.Roots)
	fmt.Fprintf(&b, "Semantic: %s (configured %s), resolved %d of %d queried", sem.Mode, sem.Configured, sem.Stats.Resolved, sem.Stats.Queried)
	if revision != "" {
		fmt.Fprintf(&b, "\nRevision: %s", revision)
	}
	if cached {
		b.WriteString("\nResult served from cache")
	}
	return b.String()
}
