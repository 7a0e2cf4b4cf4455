package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/symreach/internal/output"
	"github.com/panbanda/symreach/internal/service/analysis"
	"github.com/panbanda/symreach/pkg/analyzer/deadcode"
	"github.com/panbanda/symreach/pkg/symbol"
)

// AnalyzeInput is the base input for all tools.
type AnalyzeInput struct {
	Paths  []string `json:"paths,omitempty" jsonschema:"Manifest files or directories to analyze. Defaults to current directory if empty."`
	Format string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// DeadCodeInput configures find_dead_code.
type DeadCodeInput struct {
	AnalyzeInput
	Mode          string `json:"mode,omitempty" jsonschema:"Entry point mode: library, executable, or hybrid. Defaults to the configured mode."`
	MinConfidence string `json:"min_confidence,omitempty" jsonschema:"Lowest confidence to report: low, medium, or high. Defaults to the configured floor."`
	NoCache       bool   `json:"no_cache,omitempty" jsonschema:"Bypass the result cache."`
}

// ExplainInput configures explain_symbol.
type ExplainInput struct {
	AnalyzeInput
	Symbol string `json:"symbol" jsonschema:"Symbol id, qualified name, or simple name to explain."`
	Mode   string `json:"mode,omitempty" jsonschema:"Entry point mode: library, executable, or hybrid."`
}

// ReferencesInput configures unresolved_references.
type ReferencesInput struct {
	AnalyzeInput
}

func getPaths(input AnalyzeInput) []string {
	if len(input.Paths) == 0 {
		return []string{"."}
	}
	return input.Paths
}

func getFormat(input AnalyzeInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		return output.MarshalJSON(data)
	case output.FormatMarkdown:
		out, err := output.MarshalTOON(data)
		if err != nil {
			return "", err
		}
		return "```\n" + out + "\n```", nil
	default:
		return output.MarshalTOON(data)
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// deadItem is one reported symbol in tool output.
type deadItem struct {
	ID            symbol.ID                `json:"id" toon:"id"`
	QualifiedName string                   `json:"qualified_name" toon:"qualified_name"`
	Kind          symbol.Kind              `json:"kind" toon:"kind"`
	Accessibility string                   `json:"accessibility" toon:"accessibility"`
	Location      string                   `json:"location" toon:"location"`
	Confidence    deadcode.ConfidenceLevel `json:"confidence" toon:"confidence"`
}

type deadSummary struct {
	Symbols     int `json:"symbols" toon:"symbols"`
	EntryPoints int `json:"entry_points" toon:"entry_points"`
	Live        int `json:"live" toon:"live"`
	Dead        int `json:"dead" toon:"dead"`
	Ignored     int `json:"ignored" toon:"ignored"`
	Reported    int `json:"reported" toon:"reported"`
}

type deadCodeOutput struct {
	Mode          deadcode.Mode             `json:"mode" toon:"mode"`
	MinConfidence deadcode.ConfidenceLevel  `json:"min_confidence" toon:"min_confidence"`
	Summary       deadSummary               `json:"summary" toon:"summary"`
	Dead          []deadItem                `json:"dead" toon:"dead"`
	Cycles        [][]symbol.ID             `json:"dead_cycles,omitempty" toon:"dead_cycles,omitempty"`
	Semantic      analysis.SemanticSummary  `json:"semantic" toon:"semantic"`
	Failed        []analysis.FailedManifest `json:"failed,omitempty" toon:"failed,omitempty"`
	Cached        bool                      `json:"cached" toon:"cached"`
}

func newDeadCodeOutput(report *analysis.DeadCodeReport) deadCodeOutput {
	res := report.Result
	reported := report.Reported()
	out := deadCodeOutput{
		Mode:          res.Mode,
		MinConfidence: report.MinConfidence,
		Summary: deadSummary{
			Symbols:     res.Statistics.TotalSymbols,
			EntryPoints: res.Statistics.EntryPoints,
			Live:        res.Statistics.LiveSymbols,
			Dead:        res.Statistics.DeadSymbols,
			Ignored:     res.Statistics.IgnoredSymbols,
			Reported:    len(reported),
		},
		Dead:     make([]deadItem, 0, len(reported)),
		Cycles:   res.DeadCycles,
		Semantic: report.Semantic,
		Failed:   report.Failed,
		Cached:   report.Cached,
	}
	for _, d := range reported {
		out.Dead = append(out.Dead, deadItem{
			ID:            d.Symbol.ID,
			QualifiedName: d.Symbol.QualifiedName,
			Kind:          d.Symbol.Kind,
			Accessibility: d.Symbol.Accessibility.String(),
			Location:      d.Symbol.Location.String(),
			Confidence:    d.Confidence,
		})
	}
	return out
}

func (s *Server) scan(input AnalyzeInput) ([]string, error) {
	return s.service.Scan(getPaths(input))
}

func (s *Server) handleFindDeadCode(ctx context.Context, req *mcp.CallToolRequest, input DeadCodeInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.AnalyzeInput)

	files, err := s.scan(input.AnalyzeInput)
	if err != nil {
		return toolError(err.Error())
	}

	report, err := s.service.AnalyzeDeadCode(ctx, files, analysis.DeadCodeOptions{
		Mode:          input.Mode,
		MinConfidence: input.MinConfidence,
		NoCache:       input.NoCache,
	})
	if err != nil {
		return toolError(err.Error())
	}

	return toolResult(newDeadCodeOutput(report), format)
}

func (s *Server) handleExplainSymbol(ctx context.Context, req *mcp.CallToolRequest, input ExplainInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.AnalyzeInput)
	if input.Symbol == "" {
		return toolError("symbol is required")
	}

	files, err := s.scan(input.AnalyzeInput)
	if err != nil {
		return toolError(err.Error())
	}

	explanations, err := s.service.Explain(ctx, files, input.Symbol, input.Mode)
	if err != nil {
		return toolError(err.Error())
	}

	return toolResult(struct {
		Query   string                 `json:"query" toon:"query"`
		Matches []analysis.Explanation `json:"matches" toon:"matches"`
	}{input.Symbol, explanations}, format)
}

func (s *Server) handleUnresolvedReferences(ctx context.Context, req *mcp.CallToolRequest, input ReferencesInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.AnalyzeInput)

	files, err := s.scan(input.AnalyzeInput)
	if err != nil {
		return toolError(err.Error())
	}

	report, err := s.service.UnresolvedReferences(ctx, files, nil)
	if err != nil {
		return toolError(err.Error())
	}

	return toolResult(report, format)
}
