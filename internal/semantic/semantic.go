// Package semantic provides adapters that let a compiler-grade index answer
// the reference graph's unresolved lookups.
package semantic

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/panbanda/symreach/pkg/config"
	"github.com/panbanda/symreach/pkg/symgraph"
)

// ErrUnavailable is returned when no resolver is configured or the configured
// one cannot be reached.
var ErrUnavailable = errors.New("semantic resolver unavailable")

// Mode selects how much the analysis leans on a semantic resolver.
type Mode string

const (
	// ModeOff uses name-based resolution only.
	ModeOff Mode = "off"
	// ModeHybrid sends unresolved references to the resolver.
	ModeHybrid Mode = "hybrid"
	// ModeFull also re-resolves ambiguous references.
	ModeFull Mode = "full"
	// ModeAuto behaves like hybrid when a resolver is available.
	ModeAuto Mode = "auto"
)

// ParseMode converts a config string. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeOff, ModeHybrid, ModeFull, ModeAuto:
		return m, nil
	}
	return "", fmt.Errorf("unknown semantic mode %q", s)
}

// ResolveMode returns the mode actually used given resolver availability.
// Anything but off degrades to off without a resolver; auto becomes hybrid
// with one.
func ResolveMode(configured Mode, available bool) Mode {
	if !available {
		return ModeOff
	}
	if configured == ModeAuto {
		return ModeHybrid
	}
	return configured
}

// Options maps a resolved mode to graph enhancement options.
func Options(mode Mode) symgraph.EnhanceOptions {
	return symgraph.EnhanceOptions{IncludeAmbiguous: mode == ModeFull}
}

// New builds the resolver described by cfg. An index file takes precedence
// over a helper command. ErrUnavailable is returned when neither is set or
// the command cannot be found.
func New(cfg config.SemanticConfig) (symgraph.SemanticResolver, error) {
	switch {
	case cfg.Index != "":
		r, err := LoadIndex(cfg.Index)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return r, nil
	case len(cfg.Command) > 0:
		r := &CommandResolver{
			Command: cfg.Command,
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}
		if err := r.Available(); err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, ErrUnavailable
}
