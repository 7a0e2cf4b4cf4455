package deadcode

import (
	"slices"

	"github.com/panbanda/symreach/pkg/symbol"
)

// visit applies every liveness rule to a newly reached symbol.
func (e *Engine) visit(w *walker, s *symbol.Symbol) {
	for _, target := range w.snap.Outgoing[s.ID] {
		w.enqueue(target)
	}

	if s.Kind.IsType() {
		e.visitType(w, s)
	}

	// Calls through a protocol requirement reach every implementation.
	if p, ok := w.symbol(s.ParentID); ok && p.Kind == symbol.KindProtocol {
		for _, impl := range w.snap.Implementations[s.ID] {
			w.enqueue(impl)
		}
	}
}

func (e *Engine) visitType(w *walker, t *symbol.Symbol) {
	for _, ext := range w.snap.Extensions[t.ID] {
		w.enqueue(ext)
	}

	members := w.members(t.ID)
	entry := e.hasEntryAttribute(t)
	for _, m := range members {
		switch {
		case m.Kind == symbol.KindInitializer, m.Kind == symbol.KindDeinitializer:
			w.enqueue(m.ID)
		case entry && m.Kind == symbol.KindFunction && m.Name == "main":
			w.enqueue(m.ID)
		}
	}

	// A live conforming type keeps its implementations of every requirement,
	// including default implementations from protocol extensions.
	for _, proto := range w.snap.Conformances[t.ID] {
		for _, req := range w.snap.Children[proto] {
			for _, impl := range w.snap.Implementations[req] {
				if w.ownedBy(impl, t.ID) || w.ownedBy(impl, proto) {
					w.enqueue(impl)
				}
			}
		}
	}

	for _, name := range w.snap.ConformanceNames[t.ID] {
		if rule, ok := e.synth[name]; ok {
			applySynthRule(w, members, rule)
		}
	}
}

func applySynthRule(w *walker, members []*symbol.Symbol, rule synthRule) {
	for _, m := range members {
		switch {
		case slices.Contains(rule.members, m.Name):
			w.enqueue(m.ID)
		case rule.stored && m.Kind == symbol.KindVariable:
			w.enqueue(m.ID)
		case rule.cases && m.Kind == symbol.KindEnumCase:
			w.enqueue(m.ID)
		case slices.Contains(rule.nested, m.Name) && m.Kind.IsType():
			w.enqueue(m.ID)
			for _, c := range w.members(m.ID) {
				if c.Kind == symbol.KindEnumCase {
					w.enqueue(c.ID)
				}
			}
		}
	}
}
