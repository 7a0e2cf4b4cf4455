package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/symreach/pkg/config"
	"github.com/panbanda/symreach/pkg/symbol"
	"github.com/panbanda/symreach/pkg/symgraph"
)

// TestHelperResolver is not a real test. It is run as a subprocess by the
// CommandResolver tests and answers every query named "area".
func TestHelperResolver(t *testing.T) {
	mode := os.Getenv("SYMREACH_HELPER")
	if mode == "" {
		return
	}
	defer os.Exit(0)

	switch mode {
	case "fail":
		fmt.Fprint(os.Stderr, "index store locked")
		os.Exit(3)
	case "sleep":
		time.Sleep(10 * time.Second)
		return
	case "garbage":
		fmt.Print("not json")
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		os.Exit(2)
	}
	var resp CommandResponse
	for _, q := range req.Queries {
		if q.Name == "area" {
			resp.Results = append(resp.Results, CommandAnswer{
				Query:      q,
				Resolution: symgraph.Resolution{QualifiedName: "Square.area", Module: "Geometry", Kind: symbol.KindFunction},
			})
		}
	}
	// An answer for a location nobody asked about is ignored.
	resp.Results = append(resp.Results, CommandAnswer{
		Query:      symgraph.Query{File: "elsewhere.swift", Line: 1, Name: "area"},
		Resolution: symgraph.Resolution{QualifiedName: "Other.area"},
	})
	_ = json.NewEncoder(os.Stdout).Encode(resp)
}

func helper(mode string) *CommandResolver {
	return &CommandResolver{
		Command: []string{os.Args[0], "-test.run=^TestHelperResolver$"},
		Env:     []string{"SYMREACH_HELPER=" + mode},
		Timeout: 5 * time.Second,
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"", ModeAuto, false},
		{"off", ModeOff, false},
		{"Hybrid", ModeHybrid, false},
		{" full ", ModeFull, false},
		{"auto", ModeAuto, false},
		{"maybe", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		configured Mode
		available  bool
		want       Mode
	}{
		{ModeOff, true, ModeOff},
		{ModeOff, false, ModeOff},
		{ModeHybrid, true, ModeHybrid},
		{ModeHybrid, false, ModeOff},
		{ModeFull, true, ModeFull},
		{ModeFull, false, ModeOff},
		{ModeAuto, true, ModeHybrid},
		{ModeAuto, false, ModeOff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveMode(tt.configured, tt.available), "%s/%v", tt.configured, tt.available)
	}
}

func TestOptions(t *testing.T) {
	assert.True(t, Options(ModeFull).IncludeAmbiguous)
	assert.False(t, Options(ModeHybrid).IncludeAmbiguous)
}

func TestIndexResolver(t *testing.T) {
	r := NewIndexResolver([]IndexEntry{
		{File: "a.swift", Line: 3, Column: 7, Name: "area", QualifiedName: "Square.area", Kind: symbol.KindFunction},
		{File: "a.swift", Line: 3, Column: 7, Name: "size", QualifiedName: "Square.size", Kind: symbol.KindVariable},
		{File: "a.swift", Line: 9, Column: 1, QualifiedName: "Circle", Module: "Geometry"},
	})
	assert.Equal(t, 2, r.Len())

	area := symgraph.Query{File: "a.swift", Line: 3, Column: 7, Name: "area"}
	size := symgraph.Query{File: "a.swift", Line: 3, Column: 7, Name: "size"}
	circle := symgraph.Query{File: "a.swift", Line: 9, Column: 1, Name: "Circle"}
	miss := symgraph.Query{File: "a.swift", Line: 10, Column: 1, Name: "x"}

	got, err := r.ResolveBatch(context.Background(), "a.swift", []symgraph.Query{area, size, circle, miss})
	require.NoError(t, err)
	assert.Equal(t, "Square.area", got[area].QualifiedName)
	assert.Equal(t, "Square.size", got[size].QualifiedName)
	assert.Equal(t, "Geometry", got[circle].Module)
	assert.NotContains(t, got, miss)
}

func TestLoadIndex(t *testing.T) {
	dir := t.TempDir()
	js := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"entries":[{"file":"a.swift","line":1,"column":2,"qualified_name":"A"}]}`), 0o644))
	yml := filepath.Join(dir, "index.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("entries:\n  - file: a.swift\n    line: 1\n    column: 2\n    qualified_name: A\n"), 0o644))

	for _, path := range []string{js, yml} {
		r, err := LoadIndex(path)
		require.NoError(t, err, path)
		got, err := r.ResolveBatch(context.Background(), "a.swift", []symgraph.Query{{File: "a.swift", Line: 1, Column: 2}})
		require.NoError(t, err)
		assert.Len(t, got, 1, path)
	}

	_, err := LoadIndex(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestCommandResolver(t *testing.T) {
	r := helper("answer")
	require.NoError(t, r.Available())

	area := symgraph.Query{File: "a.swift", Line: 4, Column: 2, Name: "area"}
	other := symgraph.Query{File: "a.swift", Line: 5, Column: 2, Name: "perimeter"}

	got, err := r.ResolveBatch(context.Background(), "a.swift", []symgraph.Query{area, other})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Square.area", got[area].QualifiedName)
	assert.Equal(t, symbol.KindFunction, got[area].Kind)
}

func TestCommandResolver_Failures(t *testing.T) {
	q := []symgraph.Query{{File: "a.swift", Line: 1, Name: "area"}}

	_, err := helper("fail").ResolveBatch(context.Background(), "a.swift", q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index store locked")

	_, err = helper("garbage").ResolveBatch(context.Background(), "a.swift", q)
	assert.Error(t, err)

	slow := helper("sleep")
	slow.Timeout = 100 * time.Millisecond
	_, err = slow.ResolveBatch(context.Background(), "a.swift", q)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew(t *testing.T) {
	_, err := New(config.SemanticConfig{})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = New(config.SemanticConfig{Command: []string{"symreach-no-such-helper"}})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = New(config.SemanticConfig{Index: filepath.Join(t.TempDir(), "missing.json")})
	assert.ErrorIs(t, err, ErrUnavailable)

	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"entries":[]}`), 0o644))
	r, err := New(config.SemanticConfig{Index: path, Command: []string{"ignored"}})
	require.NoError(t, err)
	_, ok := r.(*IndexResolver)
	assert.True(t, ok)

	r, err = New(config.SemanticConfig{Command: []string{os.Args[0]}, Timeout: 2})
	require.NoError(t, err)
	cr, ok := r.(*CommandResolver)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, cr.Timeout)
}

func TestEnhanceThroughIndex(t *testing.T) {
	g := symgraph.New()
	g.Build([]symbol.File{{
		Path: "a.swift",
		Symbols: []symbol.Symbol{
			{ID: "Square", Name: "Square", QualifiedName: "Square", Kind: symbol.KindStruct, Location: symbol.Location{File: "a.swift", Line: 1}},
			{ID: "main", Name: "main", QualifiedName: "main", Kind: symbol.KindFunction, Location: symbol.Location{File: "a.swift", Line: 5}},
		},
		References: []symbol.Reference{
			{Name: "Sq", Kind: symbol.RefIdentifier, Location: symbol.Location{File: "a.swift", Line: 6, Column: 3}, ScopeContext: "main"},
		},
	}})
	require.Empty(t, g.Outgoing("main"))

	r := NewIndexResolver([]IndexEntry{{File: "a.swift", Line: 6, Column: 3, QualifiedName: "Square"}})
	stats, err := g.EnhanceWithSemantics(context.Background(), r, nil, Options(ModeHybrid))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, []symbol.ID{"Square"}, g.Outgoing("main"))
}

func TestErrorsWrapUnavailable(t *testing.T) {
	err := (&CommandResolver{}).Available()
	assert.True(t, errors.Is(err, ErrUnavailable))
}
