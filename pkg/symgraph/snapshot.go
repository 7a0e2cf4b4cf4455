package symgraph

import (
	"maps"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/symreach/pkg/symbol"
)

// Snapshot is an immutable copy of the graph taken under one read lock.
// Slices are ordered so that consumers iterate deterministically.
type Snapshot struct {
	Symbols          []symbol.Symbol
	Outgoing         map[symbol.ID][]symbol.ID
	Children         map[symbol.ID][]symbol.ID
	Extensions       map[symbol.ID][]symbol.ID
	ExtendedTypes    map[symbol.ID][]symbol.ID
	Conformances     map[symbol.ID][]symbol.ID
	ConformanceNames map[symbol.ID][]string
	Implementations  map[symbol.ID][]symbol.ID
	Roots            []symbol.ID
}

// Snapshot copies everything the reachability engine needs.
// Conformances include protocols inherited through other protocols, and
// ConformanceNames include the names of in-codebase protocols as well.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := &Snapshot{
		Symbols:          make([]symbol.Symbol, 0, len(g.symbols)),
		Outgoing:         make(map[symbol.ID][]symbol.ID, len(g.out)),
		Children:         make(map[symbol.ID][]symbol.ID, len(g.children)),
		Extensions:       make(map[symbol.ID][]symbol.ID),
		ExtendedTypes:    make(map[symbol.ID][]symbol.ID),
		Conformances:     make(map[symbol.ID][]symbol.ID),
		ConformanceNames: make(map[symbol.ID][]string),
		Implementations:  make(map[symbol.ID][]symbol.ID, len(g.implementations)),
		Roots:            sortedIDs(keySet(g.roots)),
	}
	for _, s := range g.symbols {
		c := *s
		c.Attributes = slices.Clone(s.Attributes)
		snap.Symbols = append(snap.Symbols, c)

		switch {
		case s.Kind == symbol.KindExtension:
			if types := g.extendedTypesLocked(s); len(types) > 0 {
				snap.ExtendedTypes[s.ID] = types
			}
		case s.Kind.IsType():
			if exts := g.extensionsLocked(s); len(exts) > 0 {
				snap.Extensions[s.ID] = exts
			}
		}
	}
	sortSymbols(snap.Symbols)

	for id, targets := range g.out {
		snap.Outgoing[id] = sortedIDs(targets)
	}
	for id, kids := range g.children {
		snap.Children[id] = sortedIDs(kids)
	}
	for id, impls := range g.implementations {
		snap.Implementations[id] = sortedIDs(impls)
	}

	typeIDs := keySet(g.conformsTo)
	for id := range g.conformsToNames {
		typeIDs[id] = struct{}{}
	}
	for id := range typeIDs {
		protocols := g.protocolClosureLocked(id)
		if len(protocols) > 0 {
			snap.Conformances[id] = protocols
		}
		names := make(map[string]struct{})
		for name := range g.conformsToNames[id] {
			names[name] = struct{}{}
		}
		for _, p := range protocols {
			names[g.symbols[p].Name] = struct{}{}
			for name := range g.conformsToNames[p] {
				names[name] = struct{}{}
			}
		}
		if len(names) > 0 {
			snap.ConformanceNames[id] = slices.Sorted(maps.Keys(names))
		}
	}
	return snap
}

// UnresolvedReference is a reference no symbol could be found for.
type UnresolvedReference struct {
	File      string           `json:"file" toon:"file"`
	Reference symbol.Reference `json:"reference" toon:"reference"`
}

// UnresolvedReferences returns the references that currently have no target,
// ordered by location.
func (g *Graph) UnresolvedReferences() []UnresolvedReference {
	g.mu.RLock()
	defer g.mu.RUnlock()
	recs := make([]*record, 0, len(g.unresolved))
	for rec := range g.unresolved {
		recs = append(recs, rec)
	}
	sortRecords(recs)
	out := make([]UnresolvedReference, len(recs))
	for i, rec := range recs {
		out[i] = UnresolvedReference{File: rec.file, Reference: rec.ref}
	}
	return out
}

// RootReferences returns symbols referenced from code outside any
// declaration, such as top-level statements.
func (g *Graph) RootReferences() []symbol.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedIDs(keySet(g.roots))
}

// Stats summarizes the graph's size.
type Stats struct {
	Files      int `json:"files" toon:"files"`
	Symbols    int `json:"symbols" toon:"symbols"`
	Edges      int `json:"edges" toon:"edges"`
	References int `json:"references" toon:"references"`
	Unresolved int `json:"unresolved" toon:"unresolved"`
	Roots      int `json:"roots" toon:"roots"`
}

// Stats returns counters describing the graph.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st := Stats{
		Files:      len(g.files),
		Symbols:    len(g.symbols),
		Unresolved: len(g.unresolved),
		Roots:      len(g.roots),
	}
	for _, targets := range g.out {
		st.Edges += len(targets)
	}
	for _, fi := range g.files {
		st.References += len(fi.records)
	}
	return st
}

// Fingerprint hashes the symbols, edges, roots and conformances. Two graphs with equal
// fingerprints yield the same reachability result for the same policy.
func (g *Graph) Fingerprint() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h := xxhash.New()
	for _, id := range sortedIDs(keySet(g.symbols)) {
		s := g.symbols[id]
		_, _ = h.WriteString(string(id))
		_, _ = h.WriteString(string(s.ParentID))
		_, _ = h.WriteString(s.Accessibility.String())
		for _, a := range s.Attributes {
			_, _ = h.WriteString(a)
		}
		_, _ = h.Write([]byte{0})
	}
	for _, e := range g.edgesLocked() {
		_, _ = h.WriteString(string(e.Source))
		_, _ = h.Write([]byte{1})
		_, _ = h.WriteString(string(e.Target))
		_, _ = h.Write([]byte{0})
	}
	for _, id := range sortedIDs(keySet(g.roots)) {
		_, _ = h.WriteString(string(id))
		_, _ = h.Write([]byte{2})
	}
	for _, id := range sortedIDs(keySet(g.conformsTo)) {
		_, _ = h.WriteString(string(id))
		for _, p := range sortedIDs(g.conformsTo[id]) {
			_, _ = h.WriteString(string(p))
		}
		_, _ = h.Write([]byte{3})
	}
	for _, id := range sortedIDs(keySet(g.conformsToNames)) {
		_, _ = h.WriteString(string(id))
		for _, name := range slices.Sorted(maps.Keys(g.conformsToNames[id])) {
			_, _ = h.WriteString(name)
		}
		_, _ = h.Write([]byte{4})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
