package analysis

import (
	"context"
	"fmt"
	"slices"

	"github.com/panbanda/symreach/internal/cache"
	"github.com/panbanda/symreach/pkg/analyzer/deadcode"
	"github.com/panbanda/symreach/pkg/symgraph"
)

// cacheNamespace versions the cached result layout.
const cacheNamespace = "symreach/deadcode/v1"

// DeadCodeOptions configures dead code detection.
type DeadCodeOptions struct {
	// Mode overrides the configured analysis mode when set.
	Mode string
	// MinConfidence overrides the configured reporting floor when set.
	MinConfidence string
	// NoCache bypasses the result cache for this run.
	NoCache bool
	// OnProgress is called once per manifest loaded.
	OnProgress func()
}

// DeadCodeReport is the outcome of AnalyzeDeadCode.
type DeadCodeReport struct {
	Result        *deadcode.Result         `json:"result" toon:"result"`
	MinConfidence deadcode.ConfidenceLevel `json:"min_confidence" toon:"min_confidence"`
	Graph         symgraph.Stats           `json:"graph" toon:"graph"`
	Semantic      SemanticSummary          `json:"semantic" toon:"semantic"`
	Manifests     int                      `json:"manifests" toon:"manifests"`
	Failed        []FailedManifest         `json:"failed,omitempty" toon:"failed,omitempty"`
	Revision      string                   `json:"revision,omitempty" toon:"revision,omitempty"`
	Cached        bool                     `json:"cached" toon:"cached"`
}

// Reported returns the dead symbols at or above the report's confidence floor.
func (r *DeadCodeReport) Reported() []deadcode.DeadSymbol {
	return r.Result.DeadAtLeast(r.MinConfidence)
}

// Policy returns the engine policy for the config with optional overrides.
func (s *Service) Policy(mode string) (deadcode.Policy, error) {
	cfg := *s.config
	if mode != "" {
		cfg.DeadCode.Mode = mode
	}
	return cfg.Policy()
}

// AnalyzeDeadCode loads manifests, builds and enhances the graph and runs
// the reachability engine. Results are cached under a key covering the
// manifests, the policy, the graph fingerprint and the git revision.
func (s *Service) AnalyzeDeadCode(ctx context.Context, manifests []string, opts DeadCodeOptions) (*DeadCodeReport, error) {
	policy, err := s.Policy(opts.Mode)
	if err != nil {
		return nil, err
	}
	floorName := s.config.DeadCode.MinConfidence
	if opts.MinConfidence != "" {
		floorName = opts.MinConfidence
	}
	floor, err := deadcode.ParseConfidence(floorName)
	if err != nil {
		return nil, err
	}

	loaded, err := s.Load(ctx, manifests, opts.OnProgress)
	if err != nil {
		return nil, err
	}
	sem, err := s.Enhance(ctx, loaded.Graph)
	if err != nil {
		return nil, fmt.Errorf("semantic enhancement: %w", err)
	}

	report := &DeadCodeReport{
		MinConfidence: floor,
		Graph:         loaded.Graph.Stats(),
		Semantic:      sem,
		Manifests:     len(loaded.Manifests),
		Failed:        loaded.Failed,
		Revision:      s.revision(manifests),
	}

	c := s.openCache(opts.NoCache)
	key, keyErr := s.cacheKey(loaded, policy, report.Revision)
	if keyErr != nil {
		s.logger.Debug("result cache key unavailable", "error", keyErr)
	} else if c.Get(key, &report.Result) && report.Result != nil {
		report.Cached = true
		s.logger.Debug("dead code result served from cache", "key", key)
		return report, nil
	}

	engine := deadcode.New(loaded.Graph, policy, deadcode.WithLogger(s.logger))
	report.Result, err = engine.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	if keyErr == nil {
		if err := c.Set(key, report.Result); err != nil {
			s.logger.Warn("could not write result cache", "error", err)
		}
	}
	return report, nil
}

func (s *Service) openCache(disabled bool) *cache.Cache {
	cc := s.config.Cache
	c, err := cache.New(cc.Dir, cc.TTL, cc.Enabled && !disabled)
	if err != nil {
		s.logger.Warn("result cache disabled", "dir", cc.Dir, "error", err)
		c, _ = cache.New("", 0, false)
	}
	return c
}

func (s *Service) cacheKey(loaded *Loaded, policy deadcode.Policy, revision string) (string, error) {
	hashes := make([]string, 0, len(loaded.Manifests))
	for _, m := range loaded.Manifests {
		hashes = append(hashes, m.Path+"="+m.Hash)
	}
	slices.Sort(hashes)

	k := cache.NewKey(cacheNamespace).Add(hashes...)
	if _, err := k.AddJSON(policy); err != nil {
		return "", err
	}
	return k.Add(loaded.Graph.Fingerprint(), revision).Sum(), nil
}
