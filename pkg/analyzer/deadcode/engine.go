// Package deadcode finds declarations that no entry point can reach through
// the symbol reference graph.
//
// Analysis proceeds in four phases: partition symbols into entry points,
// ignored symbols and the rest; propagate liveness breadth-first from the
// entry points along graph edges and language rules; classify every
// unreached, non-ignored symbol as dead; grade each by accessibility.
package deadcode

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/panbanda/symreach/pkg/analyzer"
	"github.com/panbanda/symreach/pkg/symbol"
	"github.com/panbanda/symreach/pkg/symgraph"
)

// GraphReader is the view of the graph the engine needs.
type GraphReader interface {
	Snapshot() *symgraph.Snapshot
	Symbol(id symbol.ID) (symbol.Symbol, bool)
}

// Engine runs reachability analysis over a graph. It never mutates the
// graph and can be re-run after incremental updates.
type Engine struct {
	graph  GraphReader
	policy Policy
	logger *slog.Logger

	entryFiles     []globMatcher
	ignore         []globMatcher
	entryAttrs     []string
	ignoredMethods map[string]struct{}
	synth          map[string]synthRule
}

// Compile-time check that Engine implements the analyzer interface.
var _ analyzer.Analyzer[*Result] = (*Engine)(nil)

// Option is a functional option for configuring Engine.
type Option func(*Engine)

// WithLogger sets the logger for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine for the graph under a policy.
func New(g GraphReader, policy Policy, opts ...Option) *Engine {
	e := &Engine{
		graph:          g,
		policy:         policy,
		logger:         slog.Default(),
		entryAttrs:     policy.EntryAttributes,
		ignoredMethods: make(map[string]struct{}, len(policy.IgnoredMethodNames)),
		synth:          policy.synthRules(),
	}
	for _, opt := range opts {
		opt(e)
	}
	badGlob := func(pattern string, err error) {
		e.logger.Debug("ignoring malformed glob", "pattern", pattern, "error", err)
	}
	e.entryFiles = compileGlobs(policy.EntryFilePatterns, badGlob)
	e.ignore = compileGlobs(policy.IgnorePatterns, badGlob)
	for _, name := range policy.IgnoredMethodNames {
		e.ignoredMethods[name] = struct{}{}
	}
	return e
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// IsEntryPoint reports whether a symbol is live regardless of references.
func (e *Engine) IsEntryPoint(s *symbol.Symbol) bool {
	if e.hasEntryAttribute(s) {
		return true
	}
	switch {
	case e.policy.TreatPublicAsEntry && s.Accessibility == symbol.Public:
		return true
	case e.policy.TreatOpenAsEntry && s.Accessibility == symbol.Open:
		return true
	}
	if len(e.entryFiles) > 0 {
		path := filepath.ToSlash(s.Location.File)
		if matchAny(e.entryFiles, path) || matchAny(e.entryFiles, filepath.Base(path)) {
			return true
		}
	}
	return isTestSymbol(s)
}

// isTestSymbol recognizes XCTest-style test cases and test methods.
func isTestSymbol(s *symbol.Symbol) bool {
	switch s.Kind {
	case symbol.KindClass:
		return strings.HasSuffix(s.Name, "Test") || strings.HasSuffix(s.Name, "Tests")
	case symbol.KindFunction:
		return strings.HasPrefix(s.Name, "test")
	}
	return false
}

func (e *Engine) hasEntryAttribute(s *symbol.Symbol) bool {
	for _, attr := range e.entryAttrs {
		if s.HasAttribute(attr) {
			return true
		}
	}
	return false
}

// ShouldIgnore reports whether a symbol is excluded from dead-code reporting.
func (e *Engine) ShouldIgnore(s *symbol.Symbol) bool {
	var parentKind symbol.Kind
	if s.ParentID != "" {
		if p, ok := e.graph.Symbol(s.ParentID); ok {
			parentKind = p.Kind
		}
	}
	ignored, _ := e.ignoreRule(s, parentKind)
	return ignored
}

// ignoreRule reports whether s is ignored and whether the matching rule also
// keeps it live. Only the method-name rule keeps a symbol live.
func (e *Engine) ignoreRule(s *symbol.Symbol, parentKind symbol.Kind) (ignored, live bool) {
	if s.Kind == symbol.KindFunction {
		if _, ok := e.ignoredMethods[s.Name]; ok {
			return true, true
		}
	}
	for _, prefix := range e.policy.IgnorePrefixes {
		if prefix != "" && strings.HasPrefix(s.Name, prefix) {
			return true, false
		}
	}
	if matchAny(e.ignore, s.QualifiedName) {
		return true, false
	}
	if parentKind == symbol.KindProtocol {
		return true, false
	}
	switch s.Kind {
	case symbol.KindAssociatedType, symbol.KindExtension, symbol.KindDeinitializer:
		return true, false
	}
	return false, false
}

// Analyze computes live and dead symbols. It only fails when ctx is done.
func (e *Engine) Analyze(ctx context.Context) (*Result, error) {
	start := time.Now()
	snap := e.graph.Snapshot()
	w := newWalker(snap)

	res := &Result{Mode: e.policy.Mode, Statistics: newStatistics()}
	ignored := newIndexSet(len(snap.Symbols))

	// Phase 1: partition.
	for i := range snap.Symbols {
		s := &snap.Symbols[i]
		if e.IsEntryPoint(s) {
			res.EntryPoints = append(res.EntryPoints, s.ID)
			w.enqueue(s.ID)
			continue
		}
		skip, live := e.ignoreRule(s, w.parentKind(s))
		if !skip {
			continue
		}
		ignored.add(uint32(i))
		res.IgnoredSymbols = append(res.IgnoredSymbols, s.ID)
		if live {
			w.enqueue(s.ID)
		}
	}
	for _, id := range snap.Roots {
		w.enqueue(id)
	}

	// Phase 2: propagate.
	for steps := 0; w.head < len(w.queue); steps++ {
		if steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		i := w.queue[w.head]
		w.head++
		e.visit(w, &snap.Symbols[i])
	}

	// Phase 3 and 4: classify and grade.
	dead := w.visited.missing(ignored)
	for _, i := range dead {
		s := snap.Symbols[i]
		conf := ConfidenceFor(s.Accessibility)
		res.DeadSymbols = append(res.DeadSymbols, DeadSymbol{Symbol: s, Confidence: conf})
		res.Statistics.DeadByConfidence[conf]++
		res.Statistics.DeadByKind[s.Kind]++
		res.Statistics.DeadByFile[s.Location.File]++
	}
	slices.SortFunc(res.DeadSymbols, func(a, b DeadSymbol) int {
		if a.Symbol.Location.Before(b.Symbol.Location) {
			return -1
		}
		if b.Symbol.Location.Before(a.Symbol.Location) {
			return 1
		}
		return strings.Compare(string(a.Symbol.ID), string(b.Symbol.ID))
	})
	res.DeadCycles = deadCycles(snap, w.index, dead)

	for _, i := range w.queue {
		res.LiveSymbols = append(res.LiveSymbols, snap.Symbols[i].ID)
	}
	slices.Sort(res.LiveSymbols)

	st := &res.Statistics
	st.TotalSymbols = len(snap.Symbols)
	st.EntryPoints = len(res.EntryPoints)
	st.LiveSymbols = len(res.LiveSymbols)
	st.DeadSymbols = len(res.DeadSymbols)
	st.IgnoredSymbols = len(res.IgnoredSymbols)
	st.Elapsed = time.Since(start)

	e.logger.Debug("dead code analysis complete",
		"mode", e.policy.Mode,
		"symbols", st.TotalSymbols,
		"entry_points", st.EntryPoints,
		"live", st.LiveSymbols,
		"dead", st.DeadSymbols,
		"ignored", st.IgnoredSymbols,
		"elapsed", st.Elapsed,
	)
	return res, nil
}
