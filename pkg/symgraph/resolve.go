package symgraph

import (
	"strings"

	"github.com/panbanda/symreach/pkg/symbol"
)

// ResolveReference maps a reference made in fromFile to the symbols it may
// denote. Each stage narrows the candidates and returns as soon as it leaves
// a non-empty set; when no stage narrows, every kind-compatible candidate is
// returned so that uncertainty keeps symbols alive. An empty result means the
// reference is unresolved.
func (g *Graph) ResolveReference(ref symbol.Reference, fromFile string) []symbol.ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.resolveLocked(ref, fromFile)
}

func (g *Graph) resolveLocked(ref symbol.Reference, fromFile string) []symbol.ID {
	named := g.byName[ref.Name]
	if len(named) == 0 {
		return nil
	}

	candidates := make([]*symbol.Symbol, 0, len(named))
	for _, id := range sortedIDs(named) {
		s := g.symbols[id]
		if ref.Kind.Compatible(s.Kind) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	if base := trimGenerics(ref.InferredBaseType); base != "" {
		if ids := g.filter(candidates, func(s *symbol.Symbol) bool { return g.memberOf(s, base) }); len(ids) > 0 {
			return ids
		}
	}

	if ref.ScopeContext != "" {
		prefixes := scopePrefixes(ref.ScopeContext)
		if ids := g.filter(candidates, func(s *symbol.Symbol) bool { return inScope(s, prefixes) }); len(ids) > 0 {
			return ids
		}
	}

	if fi, ok := g.files[fromFile]; ok {
		if ids := g.filter(candidates, func(s *symbol.Symbol) bool { return fi.visible(s.Module) }); len(ids) > 0 {
			return ids
		}
	}

	return g.filter(candidates, func(*symbol.Symbol) bool { return true })
}

func (g *Graph) filter(candidates []*symbol.Symbol, keep func(*symbol.Symbol) bool) []symbol.ID {
	var ids []symbol.ID
	for _, s := range candidates {
		if keep(s) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// memberOf reports whether s is declared directly inside a type named base,
// accepting module-qualified forms.
func (g *Graph) memberOf(s *symbol.Symbol, base string) bool {
	suffix := base + "." + s.Name
	if s.QualifiedName == suffix || strings.HasSuffix(s.QualifiedName, "."+suffix) {
		return true
	}
	if parent, ok := g.symbols[s.ParentID]; ok && parent.Name == base {
		return true
	}
	return false
}

// inScope reports whether s is declared directly in one of the enclosing
// scopes given by prefixes. A prefix may omit the symbol's module. Top-level
// symbols never match here; they are left to the import stage.
func inScope(s *symbol.Symbol, prefixes []string) bool {
	scope := s.Scope()
	if scope == "" {
		return false
	}
	for _, p := range prefixes {
		if scope == p || (s.Module != "" && scope == s.Module+"."+p) {
			return true
		}
	}
	return false
}

// scopePrefixes returns "A.B.C", "A.B", "A" for scope "A.B.C".
func scopePrefixes(scope string) []string {
	prefixes := []string{scope}
	for i := len(scope) - 1; i > 0; i-- {
		if scope[i] == '.' {
			prefixes = append(prefixes, scope[:i])
		}
	}
	return prefixes
}

// trimGenerics strips generic arguments and optionality: "Box<Int>?" becomes "Box".
func trimGenerics(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimRight(t, "?!")
}

func (fi *fileInfo) visible(module string) bool {
	if module == "" || module == fi.module {
		return true
	}
	_, ok := fi.imports[module]
	return ok
}

// sourceLocked finds the symbol a reference originates from: the declaration
// named by its scope, preferring the nearest preceding one in the same file.
// An empty scope yields ("", true), a root reference. ok is false when the
// scope names no declaration yet.
func (g *Graph) sourceLocked(rec *record) (id symbol.ID, ok bool) {
	scope := rec.ref.ScopeContext
	if scope == "" {
		return "", true
	}
	var best, sameFile, first *symbol.Symbol
	for _, id := range sortedIDs(g.byQName[scope]) {
		s := g.symbols[id]
		if first == nil {
			first = s
		}
		if s.Location.File != rec.file {
			continue
		}
		if sameFile == nil {
			sameFile = s
		}
		if !rec.ref.Location.Before(s.Location) && (best == nil || best.Location.Before(s.Location)) {
			best = s
		}
	}
	switch {
	case best != nil:
		return best.ID, true
	case sameFile != nil:
		return sameFile.ID, true
	case first != nil:
		return first.ID, true
	}
	return "", false
}
