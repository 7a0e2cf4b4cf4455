package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/panbanda/symreach/pkg/analyzer/deadcode"
	"github.com/panbanda/symreach/pkg/symbol"
	"github.com/panbanda/symreach/pkg/symgraph"
)

// ErrSymbolNotFound is returned by Explain when nothing matches the query.
var ErrSymbolNotFound = errors.New("symbol not found")

// Status is a symbol's reachability classification.
type Status string

const (
	StatusEntry   Status = "entry"
	StatusLive    Status = "live"
	StatusDead    Status = "dead"
	StatusIgnored Status = "ignored"
)

// Neighbor is a symbol adjacent to an explained symbol.
type Neighbor struct {
	ID            symbol.ID `json:"id" toon:"id"`
	QualifiedName string    `json:"qualified_name" toon:"qualified_name"`
	Location      string    `json:"location" toon:"location"`
	Status        Status    `json:"status" toon:"status"`
}

// Explanation describes why a symbol is or is not reachable.
type Explanation struct {
	Symbol       symbol.Symbol            `json:"symbol" toon:"symbol"`
	Status       Status                   `json:"status" toon:"status"`
	Confidence   deadcode.ConfidenceLevel `json:"confidence,omitempty" toon:"confidence,omitempty"`
	ReferencedBy []Neighbor               `json:"referenced_by" toon:"referenced_by"`
	References   []Neighbor               `json:"references" toon:"references"`
	Conforms     []string                 `json:"conforms_to,omitempty" toon:"conforms_to,omitempty"`
	Children     []Neighbor               `json:"children,omitempty" toon:"children,omitempty"`
}

// Explain analyzes manifests and explains every symbol matching query, which
// may be a symbol id, a qualified name or a simple name, in that order.
func (s *Service) Explain(ctx context.Context, manifests []string, query, mode string) ([]Explanation, error) {
	policy, err := s.Policy(mode)
	if err != nil {
		return nil, err
	}
	loaded, err := s.Load(ctx, manifests, nil)
	if err != nil {
		return nil, err
	}
	if _, err := s.Enhance(ctx, loaded.Graph); err != nil {
		return nil, fmt.Errorf("semantic enhancement: %w", err)
	}
	g := loaded.Graph

	matches := lookup(g, query)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, query)
	}

	res, err := deadcode.New(g, policy, deadcode.WithLogger(s.logger)).Analyze(ctx)
	if err != nil {
		return nil, err
	}
	entries := make(map[symbol.ID]bool, len(res.EntryPoints))
	for _, id := range res.EntryPoints {
		entries[id] = true
	}
	dead := make(map[symbol.ID]deadcode.ConfidenceLevel, len(res.DeadSymbols))
	for _, d := range res.DeadSymbols {
		dead[d.Symbol.ID] = d.Confidence
	}
	status := func(id symbol.ID) Status {
		switch {
		case entries[id]:
			return StatusEntry
		case res.IsIgnored(id):
			return StatusIgnored
		case res.IsLive(id):
			return StatusLive
		}
		return StatusDead
	}
	neighbor := func(sym symbol.Symbol) Neighbor {
		return Neighbor{
			ID:            sym.ID,
			QualifiedName: sym.QualifiedName,
			Location:      sym.Location.String(),
			Status:        status(sym.ID),
		}
	}

	out := make([]Explanation, 0, len(matches))
	for _, sym := range matches {
		ex := Explanation{
			Symbol:       sym,
			Status:       status(sym.ID),
			Confidence:   dead[sym.ID],
			ReferencedBy: []Neighbor{},
			References:   []Neighbor{},
			Conforms:     g.ConformanceNames(sym.ID),
		}
		for _, ref := range g.GetReferences(sym.ID) {
			ex.ReferencedBy = append(ex.ReferencedBy, neighbor(ref))
		}
		for _, id := range g.Outgoing(sym.ID) {
			if target, ok := g.Symbol(id); ok {
				ex.References = append(ex.References, neighbor(target))
			}
		}
		for _, child := range g.Children(sym.ID) {
			ex.Children = append(ex.Children, neighbor(child))
		}
		out = append(out, ex)
	}
	return out, nil
}

func lookup(g *symgraph.Graph, query string) []symbol.Symbol {
	if sym, ok := g.Symbol(symbol.ID(query)); ok {
		return []symbol.Symbol{sym}
	}
	if syms := g.SymbolsQualified(query); len(syms) > 0 {
		return syms
	}
	return g.SymbolsNamed(query)
}

// ReferenceReport lists references the graph could not bind.
type ReferenceReport struct {
	Unresolved []symgraph.UnresolvedReference `json:"unresolved" toon:"unresolved"`
	Graph      symgraph.Stats                 `json:"graph" toon:"graph"`
	Semantic   SemanticSummary                `json:"semantic" toon:"semantic"`
	Failed     []FailedManifest               `json:"failed,omitempty" toon:"failed,omitempty"`
}

// UnresolvedReferences builds the graph and reports what stayed unresolved
// after semantic enhancement.
func (s *Service) UnresolvedReferences(ctx context.Context, manifests []string, onProgress func()) (*ReferenceReport, error) {
	loaded, err := s.Load(ctx, manifests, onProgress)
	if err != nil {
		return nil, err
	}
	sem, err := s.Enhance(ctx, loaded.Graph)
	if err != nil {
		return nil, fmt.Errorf("semantic enhancement: %w", err)
	}
	return &ReferenceReport{
		Unresolved: loaded.Graph.UnresolvedReferences(),
		Graph:      loaded.Graph.Stats(),
		Semantic:   sem,
		Failed:     loaded.Failed,
	}, nil
}
