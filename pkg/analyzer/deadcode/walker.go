package deadcode

import (
	"slices"

	"github.com/panbanda/symreach/pkg/symbol"
	"github.com/panbanda/symreach/pkg/symgraph"
)

// walker holds the breadth-first traversal state over a snapshot. Symbols
// are addressed by their position in snap.Symbols.
type walker struct {
	snap    *symgraph.Snapshot
	index   map[symbol.ID]uint32
	visited *indexSet
	queue   []uint32
	head    int
}

func newWalker(snap *symgraph.Snapshot) *walker {
	w := &walker{
		snap:    snap,
		index:   make(map[symbol.ID]uint32, len(snap.Symbols)),
		visited: newIndexSet(len(snap.Symbols)),
		queue:   make([]uint32, 0, len(snap.Symbols)),
	}
	for i, s := range snap.Symbols {
		w.index[s.ID] = uint32(i)
	}
	return w
}

// enqueue marks id live and schedules it for a visit once.
func (w *walker) enqueue(id symbol.ID) {
	i, ok := w.index[id]
	if !ok {
		return
	}
	if w.visited.mark(i) {
		w.queue = append(w.queue, i)
	}
}

func (w *walker) symbol(id symbol.ID) (*symbol.Symbol, bool) {
	i, ok := w.index[id]
	if !ok {
		return nil, false
	}
	return &w.snap.Symbols[i], true
}

func (w *walker) parentKind(s *symbol.Symbol) symbol.Kind {
	if p, ok := w.symbol(s.ParentID); ok {
		return p.Kind
	}
	return ""
}

// members returns the children of a type and of its extensions.
func (w *walker) members(typeID symbol.ID) []*symbol.Symbol {
	owners := append([]symbol.ID{typeID}, w.snap.Extensions[typeID]...)
	var out []*symbol.Symbol
	for _, owner := range owners {
		for _, id := range w.snap.Children[owner] {
			if s, ok := w.symbol(id); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// ownedBy reports whether member is declared in typeID or one of its extensions.
func (w *walker) ownedBy(member, typeID symbol.ID) bool {
	m, ok := w.symbol(member)
	if !ok {
		return false
	}
	return m.ParentID == typeID || slices.Contains(w.snap.Extensions[typeID], m.ParentID)
}
