// Package symgraph maintains the cross-file symbol reference graph: indexed
// declarations, resolved "uses" edges, protocol conformance maps and the
// references that could not be resolved.
//
// A Graph is safe for concurrent use. Every exported method is a single
// critical section on one RWMutex; no method holds the lock while calling out.
package symgraph

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"

	"github.com/panbanda/symreach/pkg/symbol"
)

const (
	// DefaultBatchSize is the number of reference locations sent to a
	// semantic resolver per request.
	DefaultBatchSize = 256
	// DefaultEnhanceWorkers bounds concurrent semantic batches.
	DefaultEnhanceWorkers = 4
)

type idSet = map[symbol.ID]struct{}

// record is one reference together with what it resolved to. Records with
// no targets are unresolved; records with targets but no source are roots.
type record struct {
	file    string
	ref     symbol.Reference
	source  symbol.ID
	targets []symbol.ID
	live    bool
}

type fileInfo struct {
	module  string
	imports map[string]struct{}
	records []*record
}

// Graph is the symbol reference graph.
type Graph struct {
	mu sync.RWMutex

	logger    *slog.Logger
	workers   int
	batchSize int

	symbols  map[symbol.ID]*symbol.Symbol
	byName   map[string]idSet
	byQName  map[string]idSet
	byScope  map[string]idSet // every enclosing qualified name
	byFile   map[string]idSet
	children map[symbol.ID]idSet

	out      map[symbol.ID]idSet
	in       map[symbol.ID]idSet
	edgeRefs map[symbol.Edge]int
	manual   map[symbol.Edge]struct{}

	files      map[string]*fileInfo
	unresolved map[*record]struct{}
	roots      map[symbol.ID]int
	bySource   map[symbol.ID]map[*record]struct{}
	byTarget   map[symbol.ID]map[*record]struct{}

	conformsTo      map[symbol.ID]idSet
	conformsToNames map[symbol.ID]map[string]struct{}
	implementations map[symbol.ID]idSet
	bindings        map[symbol.ID]map[string]symbol.ID
	conditional     map[symbol.ID]idSet
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithEnhanceWorkers bounds the number of concurrent semantic batches.
func WithEnhanceWorkers(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithBatchSize sets the number of locations per semantic request.
func WithBatchSize(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		logger:          slog.Default(),
		workers:         DefaultEnhanceWorkers,
		batchSize:       DefaultBatchSize,
		symbols:         make(map[symbol.ID]*symbol.Symbol),
		byName:          make(map[string]idSet),
		byQName:         make(map[string]idSet),
		byScope:         make(map[string]idSet),
		byFile:          make(map[string]idSet),
		children:        make(map[symbol.ID]idSet),
		out:             make(map[symbol.ID]idSet),
		in:              make(map[symbol.ID]idSet),
		edgeRefs:        make(map[symbol.Edge]int),
		manual:          make(map[symbol.Edge]struct{}),
		files:           make(map[string]*fileInfo),
		unresolved:      make(map[*record]struct{}),
		roots:           make(map[symbol.ID]int),
		bySource:        make(map[symbol.ID]map[*record]struct{}),
		byTarget:        make(map[symbol.ID]map[*record]struct{}),
		conformsTo:      make(map[symbol.ID]idSet),
		conformsToNames: make(map[symbol.ID]map[string]struct{}),
		implementations: make(map[symbol.ID]idSet),
		bindings:        make(map[symbol.ID]map[string]symbol.ID),
		conditional:     make(map[symbol.ID]idSet),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RegisterSymbol inserts a symbol into every index. Registering an existing
// id replaces the previous symbol.
func (g *Graph) RegisterSymbol(sym symbol.Symbol) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registerLocked(sym)
}

func (g *Graph) registerLocked(sym symbol.Symbol) {
	if old, ok := g.symbols[sym.ID]; ok {
		g.unindexLocked(old)
	}
	s := sym
	s.Attributes = slices.Clone(sym.Attributes)
	g.symbols[s.ID] = &s
	addTo(g.byName, s.Name, s.ID)
	addTo(g.byQName, s.QualifiedName, s.ID)
	for _, scope := range enclosingScopes(&s) {
		addTo(g.byScope, scope, s.ID)
	}
	addTo(g.byFile, s.Location.File, s.ID)
	if s.ParentID != "" {
		addTo(g.children, s.ParentID, s.ID)
	}
}

func (g *Graph) unindexLocked(s *symbol.Symbol) {
	removeFrom(g.byName, s.Name, s.ID)
	removeFrom(g.byQName, s.QualifiedName, s.ID)
	for _, scope := range enclosingScopes(s) {
		removeFrom(g.byScope, scope, s.ID)
	}
	removeFrom(g.byFile, s.Location.File, s.ID)
	if s.ParentID != "" {
		removeFrom(g.children, s.ParentID, s.ID)
	}
}

// unregisterLocked drops a symbol and every edge touching it. Records
// referring to the symbol must already be detached.
func (g *Graph) unregisterLocked(id symbol.ID) {
	s, ok := g.symbols[id]
	if !ok {
		return
	}
	g.unindexLocked(s)
	delete(g.symbols, id)

	for target := range g.out[id] {
		e := symbol.Edge{Source: id, Target: target}
		delete(g.edgeRefs, e)
		delete(g.manual, e)
		removeFrom(g.in, target, id)
	}
	delete(g.out, id)
	for source := range g.in[id] {
		e := symbol.Edge{Source: source, Target: id}
		delete(g.edgeRefs, e)
		delete(g.manual, e)
		removeFrom(g.out, source, id)
	}
	delete(g.in, id)
	delete(g.roots, id)
}

// AddEdge records that source uses target. It is idempotent and returns
// false when either endpoint is not registered.
func (g *Graph) AddEdge(source, target symbol.ID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.symbols[source]; !ok {
		return false
	}
	if _, ok := g.symbols[target]; !ok {
		return false
	}
	g.manual[symbol.Edge{Source: source, Target: target}] = struct{}{}
	g.linkLocked(source, target)
	return true
}

// linkLocked adds the edge to both adjacency sets and reports whether it is new.
func (g *Graph) linkLocked(source, target symbol.ID) bool {
	if !addTo(g.out, source, target) {
		return false
	}
	addTo(g.in, target, source)
	return true
}

func (g *Graph) unlinkLocked(source, target symbol.ID) {
	removeFrom(g.out, source, target)
	removeFrom(g.in, target, source)
}

// Symbol returns the symbol with the given id.
func (g *Graph) Symbol(id symbol.ID) (symbol.Symbol, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.symbols[id]
	if !ok {
		return symbol.Symbol{}, false
	}
	return *s, true
}

// SymbolsNamed returns the symbols with the given simple name.
func (g *Graph) SymbolsNamed(name string) []symbol.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collectLocked(g.byName[name])
}

// SymbolsQualified returns the symbols with the given qualified name.
func (g *Graph) SymbolsQualified(qualifiedName string) []symbol.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collectLocked(g.byQName[qualifiedName])
}

// SymbolsInFile returns the symbols declared in a file.
func (g *Graph) SymbolsInFile(path string) []symbol.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collectLocked(g.byFile[path])
}

// SymbolsInScope returns symbols whose qualified name equals prefix or
// continues it at a "." boundary.
func (g *Graph) SymbolsInScope(prefix string) []symbol.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make(idSet, len(g.byQName[prefix])+len(g.byScope[prefix]))
	for id := range g.byQName[prefix] {
		ids[id] = struct{}{}
	}
	for id := range g.byScope[prefix] {
		ids[id] = struct{}{}
	}
	return g.collectLocked(ids)
}

// enclosingScopes returns "A.B", "A" for qualified name "A.B.c".
func enclosingScopes(s *symbol.Symbol) []string {
	scope := s.Scope()
	if scope == "" {
		return nil
	}
	return scopePrefixes(scope)
}

// Children returns the symbols whose parent is id.
func (g *Graph) Children(id symbol.ID) []symbol.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collectLocked(g.children[id])
}

// AllSymbols returns every registered symbol ordered by id.
func (g *Graph) AllSymbols() []symbol.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]symbol.Symbol, 0, len(g.symbols))
	for _, s := range g.symbols {
		out = append(out, *s)
	}
	sortSymbols(out)
	return out
}

// Outgoing returns the ids the symbol uses.
func (g *Graph) Outgoing(id symbol.ID) []symbol.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedIDs(g.out[id])
}

// Incoming returns the ids of symbols that use id.
func (g *Graph) Incoming(id symbol.ID) []symbol.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedIDs(g.in[id])
}

// GetReferences returns the symbols referencing id.
func (g *Graph) GetReferences(id symbol.ID) []symbol.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collectLocked(g.in[id])
}

// Edges returns every edge ordered by source then target.
func (g *Graph) Edges() []symbol.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgesLocked()
}

func (g *Graph) edgesLocked() []symbol.Edge {
	var edges []symbol.Edge
	for source, targets := range g.out {
		for target := range targets {
			edges = append(edges, symbol.Edge{Source: source, Target: target})
		}
	}
	slices.SortFunc(edges, func(a, b symbol.Edge) int {
		if c := cmp.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return cmp.Compare(a.Target, b.Target)
	})
	return edges
}

// Files returns the paths of every added file.
func (g *Graph) Files() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	paths := make([]string, 0, len(g.files))
	for p := range g.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func (g *Graph) collectLocked(ids idSet) []symbol.Symbol {
	out := make([]symbol.Symbol, 0, len(ids))
	for id := range ids {
		if s, ok := g.symbols[id]; ok {
			out = append(out, *s)
		}
	}
	sortSymbols(out)
	return out
}

func sortSymbols(syms []symbol.Symbol) {
	slices.SortFunc(syms, func(a, b symbol.Symbol) int { return cmp.Compare(a.ID, b.ID) })
}

func sortedIDs(s idSet) []symbol.ID {
	ids := make([]symbol.ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func addTo[K, V comparable](m map[K]map[V]struct{}, k K, v V) bool {
	s, ok := m[k]
	if !ok {
		s = make(map[V]struct{})
		m[k] = s
	}
	if _, dup := s[v]; dup {
		return false
	}
	s[v] = struct{}{}
	return true
}

func removeFrom[K, V comparable](m map[K]map[V]struct{}, k K, v V) {
	s, ok := m[k]
	if !ok {
		return
	}
	delete(s, v)
	if len(s) == 0 {
		delete(m, k)
	}
}
