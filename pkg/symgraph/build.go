package symgraph

import (
	"cmp"
	"slices"

	"github.com/panbanda/symreach/pkg/symbol"
)

// Build adds a batch of parsed files. Files already present under the same
// path are replaced. Passes run in order over the whole batch: register all
// symbols, derive conformances and implementations, bind associated types,
// apply conditional conformances, then resolve every reference into edges.
func (g *Graph) Build(files []symbol.File) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buildLocked(files)
}

// AddFile adds one parsed file, replacing any previous version.
func (g *Graph) AddFile(file symbol.File) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buildLocked([]symbol.File{file})
}

// RemoveFile purges a file's symbols, their edges, the file's references and
// any conformance data derived from them. References in other files that
// pointed at the removed symbols are resolved again. It reports whether the
// file was known.
func (g *Graph) RemoveFile(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	affected, ok := g.removeFileLocked(path)
	if !ok {
		return false
	}
	g.rebuildConformancesLocked()
	for _, rec := range affected {
		g.attachLocked(rec)
	}
	g.logger.Debug("removed file from graph",
		"file", path,
		"reresolved", len(affected),
	)
	return true
}

// UpdateFile replaces a file. It is a RemoveFile followed by an AddFile and
// readers may observe the intermediate state.
func (g *Graph) UpdateFile(file symbol.File) {
	g.RemoveFile(file.Path)
	g.AddFile(file)
}

func (g *Graph) buildLocked(files []symbol.File) {
	var affected []*record
	for _, f := range files {
		recs, _ := g.removeFileLocked(f.Path)
		affected = append(affected, recs...)
	}

	// Pass 1: declarations.
	built := make(map[string]struct{}, len(files))
	names := make(map[string]struct{})
	qnames := make(map[string]struct{})
	for _, f := range files {
		built[f.Path] = struct{}{}
		for _, s := range g.registerFileLocked(f) {
			names[s.Name] = struct{}{}
			qnames[s.QualifiedName] = struct{}{}
		}
	}

	// Passes 2 to 4: conformances, associated types, conditional conformances.
	g.rebuildConformancesLocked()

	// Pass 5: references.
	edges, unresolved := 0, 0
	for _, f := range files {
		for _, rec := range g.files[f.Path].records {
			edges += g.attachLocked(rec)
			if len(rec.targets) == 0 {
				unresolved++
			}
		}
	}
	for _, rec := range affected {
		if _, rebuilt := built[rec.file]; !rebuilt && rec.live {
			g.attachLocked(rec)
		}
	}
	retried := g.retryDependentsLocked(names, qnames, built)

	g.logger.Debug("built symbol graph",
		"files", len(files),
		"symbols", len(g.symbols),
		"edges_added", edges,
		"unresolved", unresolved,
		"dependents_resolved", retried,
	)
}

func (g *Graph) registerFileLocked(f symbol.File) []symbol.Symbol {
	fi := &fileInfo{
		module:  f.Module,
		imports: make(map[string]struct{}, len(f.Imports)),
	}
	for _, imp := range f.Imports {
		fi.imports[imp] = struct{}{}
	}

	syms := make([]symbol.Symbol, 0, len(f.Symbols))
	for _, s := range f.Symbols {
		s.Location.File = f.Path
		if s.Module == "" {
			s.Module = f.Module
		}
		g.registerLocked(s)
		syms = append(syms, s)
	}
	for _, ref := range f.References {
		ref.Location.File = f.Path
		fi.records = append(fi.records, &record{file: f.Path, ref: ref, live: true})
	}
	g.files[f.Path] = fi
	return syms
}

// removeFileLocked drops the file and returns the still-live records of other
// files that lost a source or target and must be resolved again.
func (g *Graph) removeFileLocked(path string) ([]*record, bool) {
	fi, known := g.files[path]
	ids := sortedIDs(g.byFile[path])
	if !known && len(ids) == 0 {
		return nil, false
	}

	if known {
		for _, rec := range fi.records {
			g.detachLocked(rec)
			rec.live = false
		}
	}

	seen := make(map[*record]struct{})
	var affected []*record
	collect := func(recs map[*record]struct{}) {
		for rec := range recs {
			if _, dup := seen[rec]; !dup {
				seen[rec] = struct{}{}
				affected = append(affected, rec)
			}
		}
	}
	for _, id := range ids {
		collect(g.bySource[id])
		collect(g.byTarget[id])
	}
	for _, rec := range affected {
		g.detachLocked(rec)
	}
	for _, id := range ids {
		g.unregisterLocked(id)
	}
	delete(g.files, path)

	sortRecords(affected)
	return affected, true
}

// attachLocked resolves a record and links its edges. It returns the number
// of edges that did not exist before.
func (g *Graph) attachLocked(rec *record) int {
	targets := g.resolveLocked(rec.ref, rec.file)
	source, ok := g.sourceLocked(rec)
	if len(targets) == 0 || !ok {
		g.unresolved[rec] = struct{}{}
		return 0
	}
	delete(g.unresolved, rec)
	return g.bindLocked(rec, source, targets)
}

func (g *Graph) bindLocked(rec *record, source symbol.ID, targets []symbol.ID) int {
	rec.source, rec.targets = source, targets
	added := 0
	for _, t := range targets {
		addTo(g.byTarget, t, rec)
		if source == "" {
			g.roots[t]++
			continue
		}
		g.edgeRefs[symbol.Edge{Source: source, Target: t}]++
		if g.linkLocked(source, t) {
			added++
		}
	}
	if source != "" {
		addTo(g.bySource, source, rec)
	}
	return added
}

// detachLocked withdraws everything a record contributed. It returns the
// number of edges that disappeared.
func (g *Graph) detachLocked(rec *record) int {
	delete(g.unresolved, rec)
	removed := 0
	for _, t := range rec.targets {
		removeFrom(g.byTarget, t, rec)
		if rec.source == "" {
			if g.roots[t]--; g.roots[t] <= 0 {
				delete(g.roots, t)
			}
			continue
		}
		if g.withdrawLocked(symbol.Edge{Source: rec.source, Target: t}) {
			removed++
		}
	}
	if rec.source != "" {
		removeFrom(g.bySource, rec.source, rec)
	}
	rec.source, rec.targets = "", nil
	return removed
}

// withdrawLocked drops one contribution to an edge and unlinks the edge when
// nothing else supports it.
func (g *Graph) withdrawLocked(e symbol.Edge) bool {
	if g.edgeRefs[e]--; g.edgeRefs[e] > 0 {
		return false
	}
	delete(g.edgeRefs, e)
	if _, ok := g.manual[e]; ok {
		return false
	}
	g.unlinkLocked(e.Source, e.Target)
	return true
}

func (g *Graph) retryDependentsLocked(names, qnames map[string]struct{}, skip map[string]struct{}) int {
	var pending []*record
	for rec := range g.unresolved {
		if _, ok := skip[rec.file]; ok {
			continue
		}
		_, byName := names[rec.ref.Name]
		_, byScope := qnames[rec.ref.ScopeContext]
		if byName || byScope {
			pending = append(pending, rec)
		}
	}
	sortRecords(pending)
	resolved := 0
	for _, rec := range pending {
		g.attachLocked(rec)
		if len(rec.targets) > 0 {
			resolved++
		}
	}
	return resolved
}

func sortRecords(recs []*record) {
	slices.SortFunc(recs, func(a, b *record) int {
		if c := cmp.Compare(a.file, b.file); c != 0 {
			return c
		}
		if a.ref.Location.Before(b.ref.Location) {
			return -1
		}
		if b.ref.Location.Before(a.ref.Location) {
			return 1
		}
		return cmp.Compare(a.ref.Name, b.ref.Name)
	})
}
