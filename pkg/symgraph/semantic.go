package symgraph

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/panbanda/symreach/pkg/symbol"
)

// Query is one reference location sent to a semantic resolver.
type Query struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Name   string `json:"name"`
}

// Resolution is a resolver's answer for one location.
type Resolution struct {
	QualifiedName string      `json:"qualified_name"`
	Module        string      `json:"module,omitempty"`
	Kind          symbol.Kind `json:"kind,omitempty"`
	Internal      bool        `json:"internal,omitempty"`
}

// SemanticResolver answers batches of reference locations for one file.
// Results may be partial; missing locations stay unresolved. Implementations
// must be safe for concurrent use.
type SemanticResolver interface {
	ResolveBatch(ctx context.Context, file string, queries []Query) (map[Query]Resolution, error)
}

// EnhanceOptions controls which references are sent to the resolver.
type EnhanceOptions struct {
	// IncludeAmbiguous also re-resolves references bound to several
	// candidates; an exact answer withdraws the edges to the others.
	IncludeAmbiguous bool
}

// EnhanceStats summarizes a semantic enhancement pass.
type EnhanceStats struct {
	Queried      int `json:"queried"`
	Resolved     int `json:"resolved"`
	EdgesAdded   int `json:"edges_added"`
	EdgesRemoved int `json:"edges_removed"`
	FailedBatch  int `json:"failed_batches"`
}

type pendingQuery struct {
	rec   *record
	query Query
}

// EnhanceWithSemantics asks resolver about unresolved references, one batch
// per file (or per batch-size chunk), and applies every answer that names
// exactly one known symbol. Resolver failures are logged and skipped. When
// files is empty every file is considered. Cancelling ctx stops outstanding
// batches; answers already applied remain.
func (g *Graph) EnhanceWithSemantics(ctx context.Context, resolver SemanticResolver, files []string, opts EnhanceOptions) (EnhanceStats, error) {
	batches := g.pendingBatches(files, opts)

	var (
		mu    sync.Mutex
		stats EnhanceStats
	)
	p := pool.New().WithContext(ctx).WithMaxGoroutines(g.workers)
	for _, batch := range batches {
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return nil
			}
			queries := make([]Query, len(batch))
			for i, pq := range batch {
				queries[i] = pq.query
			}
			file := queries[0].File

			answers, err := resolver.ResolveBatch(ctx, file, queries)
			if err != nil {
				g.logger.Warn("semantic resolution failed",
					"file", file,
					"queries", len(queries),
					"error", err,
				)
				mu.Lock()
				stats.Queried += len(queries)
				stats.FailedBatch++
				mu.Unlock()
				return nil
			}

			var local EnhanceStats
			local.Queried = len(queries)
			for _, pq := range batch {
				if ctx.Err() != nil {
					break
				}
				res, ok := answers[pq.query]
				if !ok {
					continue
				}
				if added, removed, applied := g.applyResolution(pq.rec, res); applied {
					local.Resolved++
					local.EdgesAdded += added
					local.EdgesRemoved += removed
				}
			}
			mu.Lock()
			stats.Queried += local.Queried
			stats.Resolved += local.Resolved
			stats.EdgesAdded += local.EdgesAdded
			stats.EdgesRemoved += local.EdgesRemoved
			mu.Unlock()
			return nil
		})
	}
	_ = p.Wait()

	g.logger.Debug("semantic enhancement finished",
		"batches", len(batches),
		"queried", stats.Queried,
		"resolved", stats.Resolved,
		"edges_added", stats.EdgesAdded,
		"edges_removed", stats.EdgesRemoved,
	)
	return stats, ctx.Err()
}

func (g *Graph) pendingBatches(files []string, opts EnhanceOptions) [][]pendingQuery {
	g.mu.RLock()
	defer g.mu.RUnlock()

	paths := files
	if len(paths) == 0 {
		paths = make([]string, 0, len(g.files))
		for p := range g.files {
			paths = append(paths, p)
		}
	}
	paths = slices.Clone(paths)
	slices.Sort(paths)

	var batches [][]pendingQuery
	for _, path := range slices.Compact(paths) {
		fi, ok := g.files[path]
		if !ok {
			continue
		}
		var batch []pendingQuery
		for _, rec := range fi.records {
			_, unresolved := g.unresolved[rec]
			if !unresolved && !(opts.IncludeAmbiguous && len(rec.targets) > 1) {
				continue
			}
			if _, ok := g.sourceLocked(rec); !ok {
				continue
			}
			batch = append(batch, pendingQuery{rec: rec, query: Query{
				File:   path,
				Line:   rec.ref.Location.Line,
				Column: rec.ref.Location.Column,
				Name:   rec.ref.Name,
			}})
			if len(batch) == g.batchSize {
				batches = append(batches, batch)
				batch = nil
			}
		}
		if len(batch) > 0 {
			batches = append(batches, batch)
		}
	}
	return batches
}

// applyResolution binds one reference to the single symbol a resolver named.
func (g *Graph) applyResolution(rec *record, res Resolution) (added, removed int, applied bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !rec.live {
		return 0, 0, false
	}
	candidates := g.semanticCandidatesLocked(res)
	if len(candidates) != 1 {
		return 0, 0, false
	}
	target := candidates[0]

	if _, unresolved := g.unresolved[rec]; unresolved {
		source, ok := g.sourceLocked(rec)
		if !ok {
			return 0, 0, false
		}
		delete(g.unresolved, rec)
		return g.bindLocked(rec, source, []symbol.ID{target}), 0, true
	}
	if len(rec.targets) > 1 && slices.Contains(rec.targets, target) {
		source := rec.source
		removed = g.detachLocked(rec)
		added = g.bindLocked(rec, source, []symbol.ID{target})
		return 0, removed - added, true
	}
	return 0, 0, false
}

func (g *Graph) semanticCandidatesLocked(res Resolution) []symbol.ID {
	names := []string{res.QualifiedName}
	if res.Module != "" && strings.HasPrefix(res.QualifiedName, res.Module+".") {
		names = append(names, strings.TrimPrefix(res.QualifiedName, res.Module+"."))
	}
	set := make(idSet)
	for _, name := range names {
		for id := range g.byQName[name] {
			s := g.symbols[id]
			if res.Module != "" && s.Module != "" && s.Module != res.Module {
				continue
			}
			if res.Kind != "" && s.Kind != res.Kind {
				continue
			}
			set[id] = struct{}{}
		}
	}
	return sortedIDs(set)
}
