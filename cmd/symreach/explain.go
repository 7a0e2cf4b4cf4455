package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/symreach/internal/output"
	"github.com/panbanda/symreach/internal/service/analysis"
)

func explainCmd() *cli.Command {
	return &cli.Command{
		Name:      "explain",
		Usage:     "Explain why a symbol is live, dead or ignored",
		ArgsUsage: "<symbol> [path...]",
		Description: `The symbol may be an id, a qualified name (Type.member) or a simple
name. Every matching declaration is explained.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "Entry point mode: library, executable, hybrid (default from config)",
			},
		},
		Action: runExplainCmd,
	}
}

func runExplainCmd(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return errors.New("explain requires a symbol")
	}
	query := c.Args().First()
	paths := c.Args().Tail()
	if len(paths) == 0 {
		paths = []string{"."}
	}

	svc, cfg, err := newService(c)
	if err != nil {
		return err
	}
	files, err := svc.Scan(paths)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	explanations, err := svc.Explain(ctx, files, query, c.String("mode"))
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(explainReport(query, explanations, formatter.Colored()))
}

func explainReport(query string, explanations []analysis.Explanation, colored bool) *output.Report {
	report := &output.Report{
		Title: "Explain " + query,
		Data:  explanations,
	}
	for _, ex := range explanations {
		status := string(ex.Status)
		if colored {
			status = output.StatusColor(status, status)
		}

		var content strings.Builder
		fmt.Fprintf(&content, "Status: %s", status)
		if ex.Confidence != "" {
			fmt.Fprintf(&content, " (%s confidence)", ex.Confidence)
		}
		fmt.Fprintf(&content, "\nKind: %s, access: %s\nLocation: %s\nID: %s",
			ex.Symbol.Kind, ex.Symbol.Accessibility, ex.Symbol.Location, ex.Symbol.ID)
		if len(ex.Symbol.Attributes) > 0 {
			fmt.Fprintf(&content, "\nAttributes: %s", strings.Join(ex.Symbol.Attributes, " "))
		}
		if len(ex.Conforms) > 0 {
			fmt.Fprintf(&content, "\nConforms to: %s", strings.Join(ex.Conforms, ", "))
		}

		report.Sections = append(report.Sections,
			&output.Section{Title: ex.Symbol.QualifiedName, Content: content.String()},
			neighborTable("Referenced By", ex.ReferencedBy, colored),
			neighborTable("References", ex.References, colored),
		)
		if len(ex.Children) > 0 {
			report.Sections = append(report.Sections, neighborTable("Members", ex.Children, colored))
		}
	}
	return report
}

func neighborTable(title string, neighbors []analysis.Neighbor, colored bool) *output.Table {
	rows := make([][]string, 0, len(neighbors))
	for _, n := range neighbors {
		status := string(n.Status)
		if colored {
			status = output.StatusColor(status, status)
		}
		rows = append(rows, []string{n.QualifiedName, n.Location, status})
	}
	return output.NewTable(title, []string{"Symbol", "Location", "Status"}, rows, nil, neighbors)
}
