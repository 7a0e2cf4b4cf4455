package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/symreach/internal/output"
	"github.com/panbanda/symreach/internal/service/analysis"
	"github.com/panbanda/symreach/internal/vcs"
	"github.com/panbanda/symreach/pkg/config"
)

const appManifest = `{
  "files": [{
    "path": "Sources/main.swift",
    "symbols": [{"name": "run", "kind": "function", "line": 1}],
    "references": [
      {"name": "Helper", "line": 2, "scope": "run"},
      {"name": "UIColor", "line": 3, "scope": "run"}
    ]
  }, {
    "path": "Sources/Helper.swift",
    "symbols": [
      {"name": "Helper", "kind": "struct", "line": 1},
      {"name": "scratch", "qualified_name": "Helper.scratch", "kind": "function", "accessibility": "private", "line": 4, "parent": "Helper"},
      {"name": "Legacy", "kind": "class", "line": 9}
    ]
  }]
}`

type noRepo struct{}

func (noRepo) PlainOpen(string) (vcs.Repository, error)           { return nil, vcs.ErrNotRepository }
func (noRepo) PlainOpenWithDetect(string) (vcs.Repository, error) { return nil, vcs.ErrNotRepository }

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.symbols.json"), []byte(appManifest), 0o644))

	cfg := config.DefaultConfig()
	cfg.Semantic.Mode = "off"
	cfg.Exclude.Gitignore = false
	cfg.Cache.Enabled = false
	svc := analysis.New(analysis.WithConfig(cfg), analysis.WithOpener(noRepo{}))
	return NewServer("1.0.0-test", svc), dir
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	return text.Text
}

func TestNewServer(t *testing.T) {
	s := NewServer("", nil)
	require.NotNil(t, s.server)
	require.NotNil(t, s.service)
}

func TestToolDescriptions(t *testing.T) {
	for name, fn := range map[string]func() string{
		"find_dead_code":        describeFindDeadCode,
		"explain_symbol":        describeExplainSymbol,
		"unresolved_references": describeUnresolvedReferences,
	} {
		t.Run(name, func(t *testing.T) {
			desc := fn()
			for _, section := range []string{"USE WHEN:", "INTERPRETING RESULTS:", "METRICS RETURNED:"} {
				assert.Contains(t, desc, section)
			}
		})
	}
}

func TestGetPathsAndFormat(t *testing.T) {
	assert.Equal(t, []string{"."}, getPaths(AnalyzeInput{}))
	assert.Equal(t, []string{"a", "b"}, getPaths(AnalyzeInput{Paths: []string{"a", "b"}}))

	assert.Equal(t, output.FormatTOON, getFormat(AnalyzeInput{}))
	assert.Equal(t, output.FormatJSON, getFormat(AnalyzeInput{Format: "json"}))
	assert.Equal(t, output.FormatMarkdown, getFormat(AnalyzeInput{Format: "md"}))
	assert.Equal(t, output.FormatTOON, getFormat(AnalyzeInput{Format: "xml"}))
}

func TestFormatOutput(t *testing.T) {
	data := map[string]int{"dead": 2}

	out, err := formatOutput(data, output.FormatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dead": 2}`, out)

	out, err = formatOutput(data, output.FormatMarkdown)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "```\n"))
	assert.True(t, strings.HasSuffix(out, "\n```"))

	out, err = formatOutput(data, output.FormatTOON)
	require.NoError(t, err)
	assert.Contains(t, out, "dead")
}

func TestToolError(t *testing.T) {
	res, extra, err := toolError("boom")
	require.NoError(t, err)
	assert.Nil(t, extra)
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: boom", resultText(t, res))
}

func TestHandleFindDeadCode(t *testing.T) {
	s, dir := testServer(t)

	res, _, err := s.handleFindDeadCode(context.Background(), nil, DeadCodeInput{
		AnalyzeInput: AnalyzeInput{Paths: []string{dir}, Format: "json"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var out deadCodeOutput
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, 2, out.Summary.Dead)
	assert.Equal(t, 2, out.Summary.Reported)
	var names []string
	for _, d := range out.Dead {
		names = append(names, d.QualifiedName)
	}
	assert.ElementsMatch(t, []string{"Helper.scratch", "Legacy"}, names)

	res, _, err = s.handleFindDeadCode(context.Background(), nil, DeadCodeInput{
		AnalyzeInput:  AnalyzeInput{Paths: []string{dir}, Format: "json"},
		MinConfidence: "high",
	})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	require.Len(t, out.Dead, 1)
	assert.Equal(t, "Helper.scratch", out.Dead[0].QualifiedName)
	assert.Equal(t, "private", out.Dead[0].Accessibility)
}

func TestHandleFindDeadCodeErrors(t *testing.T) {
	s, dir := testServer(t)

	res, _, err := s.handleFindDeadCode(context.Background(), nil, DeadCodeInput{
		AnalyzeInput: AnalyzeInput{Paths: []string{t.TempDir()}},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "no symbol manifests found")

	res, _, err = s.handleFindDeadCode(context.Background(), nil, DeadCodeInput{
		AnalyzeInput: AnalyzeInput{Paths: []string{dir}},
		Mode:         "plugin",
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleExplainSymbol(t *testing.T) {
	s, dir := testServer(t)

	res, _, err := s.handleExplainSymbol(context.Background(), nil, ExplainInput{
		AnalyzeInput: AnalyzeInput{Paths: []string{dir}, Format: "json"},
		Symbol:       "Helper",
	})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var out struct {
		Query   string                 `json:"query"`
		Matches []analysis.Explanation `json:"matches"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	require.Len(t, out.Matches, 1)
	assert.Equal(t, analysis.StatusLive, out.Matches[0].Status)
	require.Len(t, out.Matches[0].ReferencedBy, 1)
	assert.Equal(t, "run", out.Matches[0].ReferencedBy[0].QualifiedName)

	res, _, err = s.handleExplainSymbol(context.Background(), nil, ExplainInput{
		AnalyzeInput: AnalyzeInput{Paths: []string{dir}},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, _, err = s.handleExplainSymbol(context.Background(), nil, ExplainInput{
		AnalyzeInput: AnalyzeInput{Paths: []string{dir}},
		Symbol:       "Nope",
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "symbol not found")
}

func TestHandleUnresolvedReferences(t *testing.T) {
	s, dir := testServer(t)

	res, _, err := s.handleUnresolvedReferences(context.Background(), nil, ReferencesInput{
		AnalyzeInput: AnalyzeInput{Paths: []string{dir}, Format: "json"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "UIColor")
}

func TestPrompts(t *testing.T) {
	defs, err := loadPrompts()
	require.NoError(t, err)
	require.NotEmpty(t, defs)

	for _, def := range defs {
		t.Run(def.Name, func(t *testing.T) {
			assert.NotEmpty(t, def.Description)
			assert.NotEmpty(t, def.Body)
			assert.False(t, strings.HasPrefix(def.Body, "---"), "frontmatter should be stripped")
		})
	}
}

func TestPromptRender(t *testing.T) {
	def, err := parsePrompt("verify", []byte("---\ndescription: d\narguments:\n  - name: symbol\n    required: true\n  - name: paths\n    default: \".\"\n---\nCheck {{symbol}} in {{paths}}.\n"))
	require.NoError(t, err)
	assert.Equal(t, "d", def.Description)

	body, err := def.render(map[string]string{"symbol": "Helper"})
	require.NoError(t, err)
	assert.Equal(t, "Check Helper in ..\n", body)

	_, err = def.render(nil)
	assert.ErrorContains(t, err, "symbol")

	plain, err := parsePrompt("plain", []byte("no frontmatter"))
	require.NoError(t, err)
	assert.Equal(t, "no frontmatter", plain.Body)

	_, err = parsePrompt("bad", []byte("---\n: [\n---\nbody"))
	assert.Error(t, err)
}

func TestPromptHandler(t *testing.T) {
	def := promptDef{Name: "p", Description: "desc", Body: "Find {{paths}}", Arguments: []promptArgument{{Name: "paths", Default: "."}}}
	res, err := makePromptHandler(def)(context.Background(), &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Name: "p", Arguments: map[string]string{"paths": "Sources"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "desc", res.Description)
	require.Len(t, res.Messages, 1)
	assert.EqualValues(t, "user", res.Messages[0].Role)
	assert.Equal(t, "Find Sources", res.Messages[0].Content.(*mcp.TextContent).Text)
}

func TestServerOverTransport(t *testing.T) {
	s, dir := testServer(t)
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"find_dead_code", "explain_symbol", "unresolved_references"}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "find_dead_code",
		Arguments: map[string]any{"paths": []string{dir}, "format": "json", "min_confidence": "high"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "Helper.scratch")

	prompts, err := session.ListPrompts(ctx, &mcp.ListPromptsParams{})
	require.NoError(t, err)
	assert.NotEmpty(t, prompts.Prompts)
}

func TestGenerateServerManifest(t *testing.T) {
	data, err := GenerateServerManifest("")
	require.NoError(t, err)

	var m ServerManifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "io.github.panbanda/symreach", m.Name)
	assert.Equal(t, "0.0.0", m.Version)
	require.Len(t, m.Packages, 1)
	assert.Equal(t, "ghcr.io/panbanda/symreach:0.0.0", m.Packages[0].Identifier)
	assert.Equal(t, "stdio", m.Packages[0].Transport.Type)
}
