package watch

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/panbanda/symreach/pkg/analyzer/deadcode"
	"github.com/panbanda/symreach/pkg/manifest"
	"github.com/panbanda/symreach/pkg/symgraph"
)

// Update is the outcome of applying one batch of events.
type Update struct {
	// Reloaded lists manifests that were decoded again.
	Reloaded []string
	// Removed lists manifests that disappeared.
	Removed []string
	// Failed maps manifests that could not be loaded to the reason. Their
	// previous contents stay in the graph.
	Failed map[string]error
	// Files lists source paths added, replaced or purged.
	Files  []string
	Result *deadcode.Result
}

// Session owns a graph built from manifests and keeps it in step with
// manifest edits. A manifest may describe several source files; the session
// remembers which, so files dropped from a manifest are purged too.
type Session struct {
	graph    *symgraph.Graph
	policy   deadcode.Policy
	logger   *slog.Logger
	resolver symgraph.SemanticResolver
	enhance  symgraph.EnhanceOptions

	mu     sync.Mutex
	owners map[string][]string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the session logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithResolver re-runs semantic enhancement over changed files.
func WithResolver(r symgraph.SemanticResolver, opts symgraph.EnhanceOptions) SessionOption {
	return func(s *Session) {
		s.resolver = r
		s.enhance = opts
	}
}

// NewSession wraps g, which may already hold the manifests passed to Seed.
func NewSession(g *symgraph.Graph, policy deadcode.Policy, opts ...SessionOption) *Session {
	s := &Session{
		graph:  g,
		policy: policy,
		logger: slog.Default(),
		owners: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Graph returns the live graph.
func (s *Session) Graph() *symgraph.Graph {
	return s.graph
}

// Seed records which source files each loaded manifest contributed.
func (s *Session) Seed(loaded []*manifest.Loaded) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range loaded {
		s.owners[l.Path] = sourcePaths(l)
	}
}

// Manifests returns the tracked manifest paths.
func (s *Session) Manifests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.owners))
}

// Analyze runs the engine over the current graph.
func (s *Session) Analyze(ctx context.Context) (*deadcode.Result, error) {
	return deadcode.New(s.graph, s.policy, deadcode.WithLogger(s.logger)).Analyze(ctx)
}

// Apply folds a batch of events into the graph and re-runs the engine. A
// manifest that fails to load leaves its previous contents in place.
func (s *Session) Apply(ctx context.Context, events []Event) (*Update, error) {
	s.mu.Lock()
	up := &Update{Failed: make(map[string]error)}
	touched := make(map[string]struct{})

	for _, ev := range events {
		if ev.Removed {
			for _, path := range s.owners[ev.Path] {
				s.graph.RemoveFile(path)
				touched[path] = struct{}{}
			}
			delete(s.owners, ev.Path)
			up.Removed = append(up.Removed, ev.Path)
			continue
		}

		loaded, err := manifest.LoadFile(ev.Path)
		if err != nil {
			s.logger.Warn("skipping manifest", "path", ev.Path, "error", err)
			up.Failed[ev.Path] = err
			continue
		}
		next := sourcePaths(loaded)
		for _, path := range s.owners[ev.Path] {
			if !slices.Contains(next, path) {
				s.graph.RemoveFile(path)
				touched[path] = struct{}{}
			}
		}
		s.graph.Build(loaded.Files)
		for _, path := range next {
			touched[path] = struct{}{}
		}
		s.owners[ev.Path] = next
		up.Reloaded = append(up.Reloaded, ev.Path)
	}
	s.mu.Unlock()

	up.Files = slices.Sorted(maps.Keys(touched))
	s.logger.Debug("applied manifest changes",
		"reloaded", len(up.Reloaded),
		"removed", len(up.Removed),
		"failed", len(up.Failed),
		"files", len(up.Files),
	)

	if s.resolver != nil && len(up.Files) > 0 {
		if _, err := s.graph.EnhanceWithSemantics(ctx, s.resolver, up.Files, s.enhance); err != nil {
			return up, fmt.Errorf("semantic enhancement: %w", err)
		}
	}

	res, err := s.Analyze(ctx)
	if err != nil {
		return up, err
	}
	up.Result = res
	return up, nil
}

func sourcePaths(l *manifest.Loaded) []string {
	paths := make([]string, 0, len(l.Files))
	for _, f := range l.Files {
		paths = append(paths, f.Path)
	}
	slices.Sort(paths)
	return slices.Compact(paths)
}
