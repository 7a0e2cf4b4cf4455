package deadcode

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/symreach/pkg/symbol"
	"github.com/panbanda/symreach/pkg/symgraph"
)

type symOpt func(*symbol.Symbol)

func access(a symbol.Accessibility) symOpt { return func(s *symbol.Symbol) { s.Accessibility = a } }
func attrs(a ...string) symOpt             { return func(s *symbol.Symbol) { s.Attributes = a } }
func child(of string) symOpt               { return func(s *symbol.Symbol) { s.ParentID = symbol.ID(of) } }

// decl builds a symbol whose id equals its qualified name.
func decl(qname string, kind symbol.Kind, line int, opts ...symOpt) symbol.Symbol {
	name := qname
	if i := strings.LastIndexByte(qname, '.'); i >= 0 {
		name = qname[i+1:]
	}
	s := symbol.Symbol{
		ID:            symbol.ID(qname),
		Name:          name,
		QualifiedName: qname,
		Kind:          kind,
		Accessibility: symbol.Internal,
		Location:      symbol.Location{Line: line, Column: 1},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func call(name, scope string, line int) symbol.Reference {
	return symbol.Reference{Name: name, Kind: symbol.RefFunctionCall, ScopeContext: scope, Location: symbol.Location{Line: line}}
}

func analyze(t *testing.T, policy Policy, files ...symbol.File) *Result {
	t.Helper()
	g := symgraph.New()
	g.Build(files)
	res, err := New(g, policy).Analyze(context.Background())
	require.NoError(t, err)
	return res
}

func executable() Policy {
	p := PolicyForMode(ModeExecutable)
	p.EntryFilePatterns = nil
	return p
}

func deadIDs(r *Result) []symbol.ID {
	var out []symbol.ID
	for _, d := range r.DeadSymbols {
		out = append(out, d.Symbol.ID)
	}
	return out
}

func TestAnalyze_DirectCall(t *testing.T) {
	res := analyze(t, executable(), symbol.File{
		Path: "App.swift",
		Symbols: []symbol.Symbol{
			decl("start", symbol.KindFunction, 1, attrs("main")),
			decl("helper", symbol.KindFunction, 5, access(symbol.Private)),
		},
		References: []symbol.Reference{call("helper", "start", 2)},
	})

	assert.Equal(t, []symbol.ID{"start"}, res.EntryPoints)
	assert.True(t, res.IsLive("helper"))
	assert.Empty(t, res.DeadSymbols)
}

func TestAnalyze_UnreachedPrivateIsHighConfidence(t *testing.T) {
	res := analyze(t, executable(), symbol.File{
		Path: "App.swift",
		Symbols: []symbol.Symbol{
			decl("start", symbol.KindFunction, 1, attrs("main")),
			decl("orphan", symbol.KindFunction, 5, access(symbol.Private)),
		},
	})

	require.Len(t, res.DeadSymbols, 1)
	assert.Equal(t, symbol.ID("orphan"), res.DeadSymbols[0].Symbol.ID)
	assert.Equal(t, ConfidenceHigh, res.DeadSymbols[0].Confidence)
	assert.Equal(t, 1, res.Statistics.DeadByConfidence[ConfidenceHigh])
	assert.Equal(t, 1, res.Statistics.DeadByKind[symbol.KindFunction])
	assert.Equal(t, 1, res.Statistics.DeadByFile["App.swift"])
}

func TestAnalyze_ProtocolRequirementReachesImplementations(t *testing.T) {
	res := analyze(t, executable(), symbol.File{
		Path: "Shapes.swift",
		Symbols: []symbol.Symbol{
			decl("Shape", symbol.KindProtocol, 1),
			decl("Shape.draw", symbol.KindFunction, 2, child("Shape")),
			decl("Circle", symbol.KindStruct, 5),
			decl("Circle.draw", symbol.KindFunction, 6, child("Circle")),
			decl("Circle.unused", symbol.KindFunction, 7, child("Circle"), access(symbol.Private)),
			decl("render", symbol.KindFunction, 10, attrs("main")),
		},
		References: []symbol.Reference{
			{Name: "Shape", Kind: symbol.RefConformance, ScopeContext: "Circle", Location: symbol.Location{Line: 5}},
			{Name: "Shape", Kind: symbol.RefTypeReference, ScopeContext: "render", Location: symbol.Location{Line: 10}},
			{Name: "draw", Kind: symbol.RefFunctionCall, ScopeContext: "render", InferredBaseType: "Shape", Location: symbol.Location{Line: 11}},
		},
	})

	assert.True(t, res.IsLive("Shape.draw"))
	assert.True(t, res.IsLive("Circle.draw"))
	assert.True(t, res.IsIgnored("Shape.draw"), "requirements are never reported")
	// Circle is never constructed or named, only reached through Shape.
	assert.Equal(t, []symbol.ID{"Circle", "Circle.unused"}, deadIDs(res))
}

func TestAnalyze_MemberUseDoesNotKeepContainerLive(t *testing.T) {
	res := analyze(t, executable(), symbol.File{
		Path: "Util.swift",
		Symbols: []symbol.Symbol{
			decl("Util", symbol.KindStruct, 1),
			decl("Util.init", symbol.KindInitializer, 2, child("Util")),
			decl("Util.format", symbol.KindFunction, 3, child("Util")),
			{ID: "ext:Util", Name: "Util", QualifiedName: "Util", Kind: symbol.KindExtension, Location: symbol.Location{Line: 6}},
			decl("Util.pad", symbol.KindFunction, 7, child("ext:Util")),
			decl("start", symbol.KindFunction, 10, attrs("main")),
		},
		References: []symbol.Reference{
			{Name: "format", Kind: symbol.RefFunctionCall, ScopeContext: "start", InferredBaseType: "Util", Location: symbol.Location{Line: 11}},
			{Name: "pad", Kind: symbol.RefFunctionCall, ScopeContext: "start", InferredBaseType: "Util", Location: symbol.Location{Line: 12}},
		},
	})

	assert.True(t, res.IsLive("Util.format"))
	assert.True(t, res.IsLive("Util.pad"))
	assert.False(t, res.IsLive("Util"))
	assert.False(t, res.IsLive("ext:Util"))
	assert.Equal(t, []symbol.ID{"Util", "Util.init"}, deadIDs(res))
}

func TestAnalyze_LiveConformingTypeKeepsImplementations(t *testing.T) {
	res := analyze(t, executable(), symbol.File{
		Path: "Shapes.swift",
		Symbols: []symbol.Symbol{
			decl("Shape", symbol.KindProtocol, 1),
			decl("Shape.draw", symbol.KindFunction, 2, child("Shape")),
			decl("Square", symbol.KindStruct, 5),
			decl("Square.draw", symbol.KindFunction, 6, child("Square")),
			decl("Square.init", symbol.KindInitializer, 7, child("Square")),
			decl("Square.deinit", symbol.KindDeinitializer, 8, child("Square")),
			decl("make", symbol.KindFunction, 10, attrs("main")),
		},
		References: []symbol.Reference{
			{Name: "Shape", Kind: symbol.RefConformance, ScopeContext: "Square", Location: symbol.Location{Line: 5}},
			{Name: "Square", Kind: symbol.RefInitializer, ScopeContext: "make", Location: symbol.Location{Line: 11}},
		},
	})

	for _, id := range []symbol.ID{"Square", "Square.draw", "Square.init", "Square.deinit"} {
		assert.True(t, res.IsLive(id), id)
	}
	assert.Empty(t, res.DeadSymbols)
}

func TestAnalyze_GlobIgnore(t *testing.T) {
	p := executable()
	p.IgnorePatterns = []string{"*Preview*"}
	res := analyze(t, p, symbol.File{
		Path:    "Views.swift",
		Symbols: []symbol.Symbol{decl("FooPreview", symbol.KindStruct, 1)},
	})

	assert.True(t, res.IsIgnored("FooPreview"))
	assert.Empty(t, res.DeadSymbols)
	assert.Equal(t, 1, res.Statistics.IgnoredSymbols)
}

func TestAnalyze_IgnoredMethodNamesStayLive(t *testing.T) {
	res := analyze(t, executable(), symbol.File{
		Path: "Screen.swift",
		Symbols: []symbol.Symbol{
			decl("Screen", symbol.KindClass, 1),
			decl("Screen.viewDidLoad", symbol.KindFunction, 2, child("Screen")),
			decl("Screen.configure", symbol.KindFunction, 5, child("Screen"), access(symbol.Private)),
		},
		References: []symbol.Reference{call("configure", "Screen.viewDidLoad", 3)},
	})

	assert.True(t, res.IsIgnored("Screen.viewDidLoad"))
	assert.True(t, res.IsLive("Screen.viewDidLoad"))
	assert.True(t, res.IsLive("Screen.configure"))
	assert.Equal(t, []symbol.ID{"Screen"}, deadIDs(res))
}

func TestAnalyze_IgnorePrecedence(t *testing.T) {
	p := executable()
	p.IgnorePrefixes = []string{"_"}
	res := analyze(t, p, symbol.File{
		Path: "Misc.swift",
		Symbols: []symbol.Symbol{
			decl("_internalHook", symbol.KindFunction, 1, access(symbol.Private)),
			decl("Box", symbol.KindStruct, 2),
			decl("Box.Element", symbol.KindAssociatedType, 3, child("Box")),
			{ID: "ext:Box", Name: "Box", QualifiedName: "Box", Kind: symbol.KindExtension, Location: symbol.Location{Line: 10}},
		},
	})

	for _, id := range []symbol.ID{"_internalHook", "Box.Element", "ext:Box"} {
		assert.True(t, res.IsIgnored(id), id)
		assert.False(t, res.IsDead(id), id)
	}
	assert.Equal(t, []symbol.ID{"Box"}, deadIDs(res))
}

func TestAnalyze_ConfidenceFollowsAccessibility(t *testing.T) {
	var syms []symbol.Symbol
	levels := []symbol.Accessibility{symbol.Private, symbol.FilePrivate, symbol.Internal, symbol.Package, symbol.Public, symbol.Open}
	for i, a := range levels {
		syms = append(syms, decl("f"+a.String(), symbol.KindFunction, i+1, access(a)))
	}
	res := analyze(t, executable(), symbol.File{Path: "Levels.swift", Symbols: syms})

	want := map[symbol.ID]ConfidenceLevel{
		"fprivate":     ConfidenceHigh,
		"ffileprivate": ConfidenceHigh,
		"finternal":    ConfidenceMedium,
		"fpackage":     ConfidenceMedium,
		"fpublic":      ConfidenceLow,
		"fopen":        ConfidenceLow,
	}
	require.Len(t, res.DeadSymbols, len(want))
	for _, d := range res.DeadSymbols {
		assert.Equal(t, want[d.Symbol.ID], d.Confidence, d.Symbol.ID)
	}
	assert.Len(t, res.DeadAtLeast(ConfidenceMedium), 4)
	assert.Len(t, res.DeadAtLeast(ConfidenceHigh), 2)
}

func TestAnalyze_Modes(t *testing.T) {
	file := symbol.File{
		Path: "Lib.swift",
		Symbols: []symbol.Symbol{
			decl("api", symbol.KindFunction, 1, access(symbol.Public)),
			decl("plugin", symbol.KindClass, 2, access(symbol.Open)),
		},
	}

	lib := analyze(t, PolicyForMode(ModeLibrary), file)
	assert.ElementsMatch(t, []symbol.ID{"api", "plugin"}, lib.EntryPoints)
	assert.Empty(t, lib.DeadSymbols)

	exe := analyze(t, executable(), file)
	assert.Empty(t, exe.EntryPoints)
	assert.ElementsMatch(t, []symbol.ID{"api", "plugin"}, deadIDs(exe))
}

func TestAnalyze_EntryHeuristics(t *testing.T) {
	p := executable()
	p.EntryFilePatterns = []string{"main.swift"}
	res := analyze(t, p,
		symbol.File{
			Path: "Sources/App/main.swift",
			Symbols: []symbol.Symbol{
				decl("boot", symbol.KindFunction, 1),
			},
		},
		symbol.File{
			Path: "Tests/ParserTests.swift",
			Symbols: []symbol.Symbol{
				decl("ParserTests", symbol.KindClass, 1),
				decl("ParserTests.testEmpty", symbol.KindFunction, 2, child("ParserTests")),
			},
		},
		symbol.File{
			Path: "Sources/App/Runner.swift",
			Symbols: []symbol.Symbol{
				decl("Runner", symbol.KindStruct, 1, attrs("@main")),
				decl("Runner.main", symbol.KindFunction, 2, child("Runner")),
			},
		},
	)

	assert.ElementsMatch(t,
		[]symbol.ID{"boot", "ParserTests", "ParserTests.testEmpty", "Runner"},
		res.EntryPoints,
	)
	assert.True(t, res.IsLive("Runner.main"))
	assert.Empty(t, res.DeadSymbols)
}

func TestAnalyze_SynthesizedMembers(t *testing.T) {
	p := executable()
	p.SynthesizedMembers = map[string][]string{"Identifiable": {"id"}}
	res := analyze(t, p, symbol.File{
		Path: "Config.swift",
		Symbols: []symbol.Symbol{
			decl("Config", symbol.KindStruct, 1),
			decl("Config.name", symbol.KindVariable, 2, child("Config")),
			decl("Config.id", symbol.KindVariable, 3, child("Config")),
			decl("Config.CodingKeys", symbol.KindEnum, 4, child("Config")),
			decl("Config.CodingKeys.name", symbol.KindEnumCase, 5, child("Config.CodingKeys")),
			decl("Config.helper", symbol.KindFunction, 6, child("Config"), access(symbol.Private)),
			decl("Flag", symbol.KindEnum, 10),
			decl("Flag.on", symbol.KindEnumCase, 11, child("Flag")),
			decl("Flag.off", symbol.KindEnumCase, 12, child("Flag")),
			decl("load", symbol.KindFunction, 20, attrs("main")),
		},
		References: []symbol.Reference{
			{Name: "Codable", Kind: symbol.RefConformance, ScopeContext: "Config", Location: symbol.Location{Line: 1}},
			{Name: "CaseIterable", Kind: symbol.RefConformance, ScopeContext: "Flag", Location: symbol.Location{Line: 10}},
			{Name: "Config", Kind: symbol.RefTypeReference, ScopeContext: "load", Location: symbol.Location{Line: 21}},
			{Name: "Flag", Kind: symbol.RefTypeReference, ScopeContext: "load", Location: symbol.Location{Line: 22}},
		},
	})

	for _, id := range []symbol.ID{"Config.name", "Config.id", "Config.CodingKeys", "Config.CodingKeys.name", "Flag.on", "Flag.off"} {
		assert.True(t, res.IsLive(id), id)
	}
	assert.Equal(t, []symbol.ID{"Config.helper"}, deadIDs(res))
}

func TestAnalyze_RootReferencesAreLive(t *testing.T) {
	res := analyze(t, executable(), symbol.File{
		Path: "script.swift",
		Symbols: []symbol.Symbol{
			decl("greet", symbol.KindFunction, 1),
		},
		References: []symbol.Reference{call("greet", "", 5)},
	})
	assert.True(t, res.IsLive("greet"))
	assert.Empty(t, res.DeadSymbols)
}

func TestAnalyze_DeadCycles(t *testing.T) {
	res := analyze(t, executable(), symbol.File{
		Path: "Cycle.swift",
		Symbols: []symbol.Symbol{
			decl("ping", symbol.KindFunction, 1, access(symbol.Private)),
			decl("pong", symbol.KindFunction, 5, access(symbol.Private)),
			decl("lonely", symbol.KindFunction, 9, access(symbol.Private)),
		},
		References: []symbol.Reference{
			call("pong", "ping", 2),
			call("ping", "pong", 6),
		},
	})

	assert.Len(t, res.DeadSymbols, 3)
	assert.Equal(t, [][]symbol.ID{{"ping", "pong"}}, res.DeadCycles)
}

func TestAnalyze_Idempotent(t *testing.T) {
	g := symgraph.New()
	g.Build([]symbol.File{{
		Path: "App.swift",
		Symbols: []symbol.Symbol{
			decl("start", symbol.KindFunction, 1, attrs("main")),
			decl("a", symbol.KindFunction, 2),
			decl("b", symbol.KindFunction, 3),
		},
		References: []symbol.Reference{call("a", "start", 1)},
	}})
	e := New(g, executable())

	first, err := e.Analyze(context.Background())
	require.NoError(t, err)
	second, err := e.Analyze(context.Background())
	require.NoError(t, err)

	first.Statistics.Elapsed, second.Statistics.Elapsed = 0, 0
	assert.Equal(t, first, second)
}

func TestAnalyze_ReflectsIncrementalUpdates(t *testing.T) {
	g := symgraph.New()
	main := symbol.File{
		Path:       "main.swift",
		Symbols:    []symbol.Symbol{decl("start", symbol.KindFunction, 1, attrs("main"))},
		References: []symbol.Reference{call("helper", "start", 2)},
	}
	g.Build([]symbol.File{main, {
		Path:    "util.swift",
		Symbols: []symbol.Symbol{decl("helper", symbol.KindFunction, 1)},
	}})
	e := New(g, executable())

	res, err := e.Analyze(context.Background())
	require.NoError(t, err)
	assert.True(t, res.IsLive("helper"))

	main.References = nil
	g.UpdateFile(main)

	res, err = e.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []symbol.ID{"helper"}, deadIDs(res))
}

func TestAnalyze_Cancelled(t *testing.T) {
	g := symgraph.New()
	g.Build([]symbol.File{{
		Path:    "App.swift",
		Symbols: []symbol.Symbol{decl("start", symbol.KindFunction, 1, attrs("main"))},
	}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(g, executable()).Analyze(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShouldIgnore_ProtocolParent(t *testing.T) {
	g := symgraph.New()
	g.Build([]symbol.File{{
		Path: "P.swift",
		Symbols: []symbol.Symbol{
			decl("P", symbol.KindProtocol, 1),
			decl("P.run", symbol.KindFunction, 2, child("P")),
		},
	}})
	e := New(g, executable())

	req, ok := g.Symbol("P.run")
	require.True(t, ok)
	assert.True(t, e.ShouldIgnore(&req))

	proto, _ := g.Symbol("P")
	assert.False(t, e.ShouldIgnore(&proto))
}
