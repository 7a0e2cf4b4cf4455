// Package analysis orchestrates manifest discovery, graph construction,
// semantic enhancement and reachability analysis.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/panbanda/symreach/internal/fileproc"
	"github.com/panbanda/symreach/internal/scanner"
	"github.com/panbanda/symreach/internal/semantic"
	"github.com/panbanda/symreach/internal/vcs"
	"github.com/panbanda/symreach/pkg/config"
	"github.com/panbanda/symreach/pkg/manifest"
	"github.com/panbanda/symreach/pkg/symgraph"
)

// ErrNoManifests is returned when a scan finds nothing to analyze.
var ErrNoManifests = errors.New("no symbol manifests found")

// Service orchestrates symbol analysis operations.
type Service struct {
	config   *config.Config
	opener   vcs.Opener
	logger   *slog.Logger
	resolver symgraph.SemanticResolver
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithOpener sets the VCS opener (for testing).
func WithOpener(opener vcs.Opener) Option {
	return func(s *Service) {
		s.opener = opener
	}
}

// WithLogger sets the logger passed down to the graph and engine.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithResolver overrides the semantic resolver built from config.
func WithResolver(r symgraph.SemanticResolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.LoadOrDefault(),
		opener: vcs.DefaultOpener(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the active configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Scan expands paths into manifest files, dropping oversized ones.
func (s *Service) Scan(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	files, err := scanner.NewScanner(s.config).ScanPaths(paths)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	files, skipped := scanner.FilterBySize(files, s.config.Input.MaxFileSize)
	if skipped > 0 {
		s.logger.Warn("skipped oversized manifests", "count", skipped, "limit", s.config.Input.MaxFileSize)
	}
	if len(files) == 0 {
		return nil, ErrNoManifests
	}
	return files, nil
}

// FailedManifest records a manifest that could not be loaded.
type FailedManifest struct {
	Path  string `json:"path" toon:"path"`
	Error string `json:"error" toon:"error"`
}

// Loaded is a graph built from manifests.
type Loaded struct {
	Graph     *symgraph.Graph
	Manifests []*manifest.Loaded
	Failed    []FailedManifest
}

// NewGraph returns an empty graph configured from the semantic settings.
func (s *Service) NewGraph() *symgraph.Graph {
	opts := []symgraph.Option{symgraph.WithLogger(s.logger)}
	if n := s.config.Semantic.Workers; n > 0 {
		opts = append(opts, symgraph.WithEnhanceWorkers(n))
	}
	if n := s.config.Semantic.BatchSize; n > 0 {
		opts = append(opts, symgraph.WithBatchSize(n))
	}
	return symgraph.New(opts...)
}

// Load decodes manifests concurrently and builds the graph. Manifests that
// fail to load are reported in Failed and skipped; only a cancelled context
// or a total failure returns an error.
func (s *Service) Load(ctx context.Context, manifests []string, onProgress func()) (*Loaded, error) {
	loaded, err := manifest.LoadFiles(ctx, manifests, manifest.LoadOptions{OnProgress: onProgress})
	out := &Loaded{Manifests: loaded}

	var perrs *fileproc.ProcessingErrors
	switch {
	case err == nil:
	case errors.As(err, &perrs):
		for _, pe := range perrs.Sorted() {
			s.logger.Warn("skipping manifest", "path", pe.Path, "error", pe.Err)
			out.Failed = append(out.Failed, FailedManifest{Path: pe.Path, Error: pe.Err.Error()})
		}
		if len(loaded) == 0 {
			return nil, fmt.Errorf("load manifests: %w", err)
		}
	default:
		return nil, fmt.Errorf("load manifests: %w", err)
	}

	out.Graph = s.NewGraph()
	out.Graph.Build(manifest.Files(loaded))
	return out, nil
}

// SemanticSummary reports how the semantic stage ran.
type SemanticSummary struct {
	Configured semantic.Mode         `json:"configured" toon:"configured"`
	Mode       semantic.Mode         `json:"mode" toon:"mode"`
	Stats      symgraph.EnhanceStats `json:"stats" toon:"stats"`
}

// Enhance runs the semantic resolver over the graph according to config.
// An unavailable resolver degrades to name-based resolution.
func (s *Service) Enhance(ctx context.Context, g *symgraph.Graph) (SemanticSummary, error) {
	configured, err := semantic.ParseMode(s.config.Semantic.Mode)
	if err != nil {
		return SemanticSummary{}, err
	}
	sum := SemanticSummary{Configured: configured, Mode: semantic.ModeOff}
	if configured == semantic.ModeOff {
		return sum, nil
	}

	resolver := s.resolver
	if resolver == nil {
		resolver, err = semantic.New(s.config.Semantic)
		if err != nil {
			level := slog.LevelDebug
			if configured != semantic.ModeAuto {
				level = slog.LevelWarn
			}
			s.logger.Log(ctx, level, "semantic resolver unavailable, using name resolution", "error", err)
		}
	}

	sum.Mode = semantic.ResolveMode(configured, resolver != nil)
	if sum.Mode == semantic.ModeOff {
		return sum, nil
	}
	sum.Stats, err = g.EnhanceWithSemantics(ctx, resolver, nil, semantic.Options(sum.Mode))
	return sum, err
}

// revision returns the git state of the repository containing the first
// path, or "" outside a repository.
func (s *Service) revision(paths []string) string {
	root := "."
	if len(paths) > 0 {
		root = paths[0]
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		root = filepath.Dir(root)
	}
	rev, err := vcs.CurrentRevision(s.opener, root)
	if err != nil {
		if !errors.Is(err, vcs.ErrNotRepository) {
			s.logger.Debug("could not read git revision", "path", root, "error", err)
		}
		return ""
	}
	return rev.String()
}
