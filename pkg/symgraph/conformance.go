package symgraph

import (
	"maps"
	"slices"

	"github.com/panbanda/symreach/pkg/symbol"
)

// rebuildConformancesLocked recomputes the conformance, requirement and
// associated-type maps from the conformance clauses of every file.
func (g *Graph) rebuildConformancesLocked() {
	clear(g.conformsTo)
	clear(g.conformsToNames)
	clear(g.implementations)
	clear(g.bindings)

	paths := slices.Sorted(maps.Keys(g.files))
	for _, path := range paths {
		for _, rec := range g.files[path].records {
			if rec.ref.Kind == symbol.RefConformance || rec.ref.Kind == symbol.RefInheritance {
				g.linkConformanceLocked(rec)
			}
		}
	}

	for _, typeID := range sortedIDs(keySet(g.conformsTo)) {
		members := g.membersLocked(typeID)
		for _, proto := range g.protocolClosureLocked(typeID) {
			for _, req := range g.requirementsLocked(proto) {
				for _, m := range members {
					if m.Name == req.Name && m.Kind == req.Kind {
						addTo(g.implementations, req.ID, m.ID)
					}
				}
			}
		}
	}
	g.linkDefaultImplementationsLocked()
	g.bindAssociatedTypesLocked()

	// Conditional conformances ("extension A: P where T: Q") are not modelled;
	// g.conditional stays empty until the front end reports constraints.
}

func (g *Graph) linkConformanceLocked(rec *record) {
	types := g.conformingTypesLocked(rec.ref.ScopeContext)
	if len(types) == 0 {
		return
	}
	var protocols []symbol.ID
	resolved := g.resolveLocked(rec.ref, rec.file)
	for _, id := range resolved {
		if g.symbols[id].Kind == symbol.KindProtocol {
			protocols = append(protocols, id)
		}
	}
	if len(protocols) == 0 && len(resolved) > 0 {
		// Superclass, not a protocol.
		return
	}
	for _, t := range types {
		if len(protocols) == 0 {
			addTo(g.conformsToNames, t, rec.ref.Name)
			continue
		}
		for _, p := range protocols {
			if p != t {
				addTo(g.conformsTo, t, p)
			}
		}
	}
}

// conformingTypesLocked returns the nominal types declared by the scope of a
// conformance clause. Clauses on extensions apply to the extended type.
func (g *Graph) conformingTypesLocked(scope string) []symbol.ID {
	set := make(idSet)
	for id := range g.byQName[scope] {
		s := g.symbols[id]
		switch {
		case s.Kind.IsType():
			set[id] = struct{}{}
		case s.Kind == symbol.KindExtension:
			for _, t := range g.extendedTypesLocked(s) {
				set[t] = struct{}{}
			}
		}
	}
	return sortedIDs(set)
}

// extendedTypesLocked returns the nominal types an extension applies to.
func (g *Graph) extendedTypesLocked(ext *symbol.Symbol) []symbol.ID {
	var ids []symbol.ID
	for _, id := range sortedIDs(g.byQName[ext.QualifiedName]) {
		if s := g.symbols[id]; s.Kind.IsType() || s.Kind == symbol.KindTypeAlias {
			ids = append(ids, id)
		}
	}
	return ids
}

// extensionsLocked returns the extensions declared for a nominal type.
func (g *Graph) extensionsLocked(t *symbol.Symbol) []symbol.ID {
	var ids []symbol.ID
	for _, id := range sortedIDs(g.byQName[t.QualifiedName]) {
		if g.symbols[id].Kind == symbol.KindExtension {
			ids = append(ids, id)
		}
	}
	return ids
}

// membersLocked returns the members of a type including those declared in
// its extensions.
func (g *Graph) membersLocked(typeID symbol.ID) []*symbol.Symbol {
	t, ok := g.symbols[typeID]
	if !ok {
		return nil
	}
	var out []*symbol.Symbol
	for _, owner := range append([]symbol.ID{typeID}, g.extensionsLocked(t)...) {
		for _, id := range sortedIDs(g.children[owner]) {
			out = append(out, g.symbols[id])
		}
	}
	return out
}

func (g *Graph) requirementsLocked(proto symbol.ID) []*symbol.Symbol {
	var reqs []*symbol.Symbol
	for _, id := range sortedIDs(g.children[proto]) {
		if s := g.symbols[id]; s.Kind.IsMember() {
			reqs = append(reqs, s)
		}
	}
	return reqs
}

// protocolClosureLocked returns every in-codebase protocol a type conforms
// to, following protocol inheritance.
func (g *Graph) protocolClosureLocked(typeID symbol.ID) []symbol.ID {
	seen := make(idSet)
	queue := sortedIDs(g.conformsTo[typeID])
	for i := 0; i < len(queue); i++ {
		p := queue[i]
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		queue = append(queue, sortedIDs(g.conformsTo[p])...)
	}
	return sortedIDs(seen)
}

// linkDefaultImplementationsLocked treats members of protocol extensions as
// implementations of the matching requirements.
func (g *Graph) linkDefaultImplementationsLocked() {
	for _, s := range g.symbols {
		if s.Kind != symbol.KindProtocol {
			continue
		}
		exts := g.extensionsLocked(s)
		if len(exts) == 0 {
			continue
		}
		for _, req := range g.requirementsLocked(s.ID) {
			for _, ext := range exts {
				for id := range g.children[ext] {
					if m := g.symbols[id]; m.Name == req.Name && m.Kind == req.Kind {
						addTo(g.implementations, req.ID, m.ID)
					}
				}
			}
		}
	}
}

// bindAssociatedTypesLocked records, per conforming type, which concrete
// type satisfies each associated type of its protocols.
func (g *Graph) bindAssociatedTypesLocked() {
	for typeID := range g.conformsTo {
		members := g.membersLocked(typeID)
		for _, proto := range g.protocolClosureLocked(typeID) {
			for _, id := range sortedIDs(g.children[proto]) {
				assoc := g.symbols[id]
				if assoc.Kind != symbol.KindAssociatedType {
					continue
				}
				for _, m := range members {
					if m.Name != assoc.Name || !(m.Kind == symbol.KindTypeAlias || m.Kind.IsType()) {
						continue
					}
					concrete := m.ID
					if m.Kind == symbol.KindTypeAlias {
						if target := g.aliasTargetLocked(m); target != "" {
							concrete = target
						}
					}
					if g.bindings[typeID] == nil {
						g.bindings[typeID] = make(map[string]symbol.ID)
					}
					g.bindings[typeID][assoc.Name] = concrete
					break
				}
			}
		}
	}
}

// aliasTargetLocked resolves the first type named on the right-hand side of
// a type alias.
func (g *Graph) aliasTargetLocked(alias *symbol.Symbol) symbol.ID {
	fi, ok := g.files[alias.Location.File]
	if !ok {
		return ""
	}
	for _, rec := range fi.records {
		if rec.ref.ScopeContext != alias.QualifiedName {
			continue
		}
		switch rec.ref.Kind {
		case symbol.RefTypeReference, symbol.RefGenericArgument, symbol.RefIdentifier:
		default:
			continue
		}
		for _, id := range g.resolveLocked(rec.ref, rec.file) {
			if id != alias.ID && g.symbols[id].Kind != symbol.KindAssociatedType {
				return id
			}
		}
	}
	return ""
}

// Conformances returns the in-codebase protocols a type directly conforms to.
func (g *Graph) Conformances(typeID symbol.ID) []symbol.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedIDs(g.conformsTo[typeID])
}

// ConformanceNames returns the names of protocols a type conforms to that are
// not declared in the analyzed code.
func (g *Graph) ConformanceNames(typeID symbol.ID) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Sorted(maps.Keys(g.conformsToNames[typeID]))
}

// Implementations returns the members implementing a protocol requirement.
func (g *Graph) Implementations(requirementID symbol.ID) []symbol.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedIDs(g.implementations[requirementID])
}

// AssociatedTypeBindings returns associated-type name to concrete type id for
// a conforming type.
func (g *Graph) AssociatedTypeBindings(typeID symbol.ID) map[string]symbol.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return maps.Clone(g.bindings[typeID])
}

// ConditionalConformances is reserved for constrained conformances and
// currently always returns nil.
func (g *Graph) ConditionalConformances(typeID symbol.ID) []symbol.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.conditional[typeID]) == 0 {
		return nil
	}
	return sortedIDs(g.conditional[typeID])
}

// Extensions returns the extensions declared for a type.
func (g *Graph) Extensions(typeID symbol.ID) []symbol.Symbol {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.symbols[typeID]
	if !ok {
		return nil
	}
	ids := make(idSet)
	for _, id := range g.extensionsLocked(t) {
		ids[id] = struct{}{}
	}
	return g.collectLocked(ids)
}

func keySet[V any](m map[symbol.ID]V) idSet {
	s := make(idSet, len(m))
	for k := range m {
		s[k] = struct{}{}
	}
	return s
}
