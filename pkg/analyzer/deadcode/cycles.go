package deadcode

import (
	"slices"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/panbanda/symreach/pkg/symbol"
	"github.com/panbanda/symreach/pkg/symgraph"
)

// deadCycles groups dead symbols that only keep each other referenced into
// strongly connected components. Components of a single symbol are omitted.
func deadCycles(snap *symgraph.Snapshot, index map[symbol.ID]uint32, dead []uint32) [][]symbol.ID {
	if len(dead) < 2 {
		return nil
	}
	isDead := make(map[uint32]struct{}, len(dead))
	g := simple.NewDirectedGraph()
	for _, i := range dead {
		isDead[i] = struct{}{}
		g.AddNode(simple.Node(int64(i)))
	}
	for _, i := range dead {
		for _, target := range snap.Outgoing[snap.Symbols[i].ID] {
			j, ok := index[target]
			if !ok || j == i {
				continue
			}
			if _, ok := isDead[j]; !ok {
				continue
			}
			g.SetEdge(simple.Edge{F: simple.Node(int64(i)), T: simple.Node(int64(j))})
		}
	}

	var cycles [][]symbol.ID
	for _, component := range topo.TarjanSCC(g) {
		if len(component) < 2 {
			continue
		}
		ids := make([]symbol.ID, len(component))
		for k, n := range component {
			ids[k] = snap.Symbols[n.ID()].ID
		}
		slices.Sort(ids)
		cycles = append(cycles, ids)
	}
	slices.SortFunc(cycles, func(a, b []symbol.ID) int {
		return slices.Compare(a, b)
	})
	return cycles
}
