package deadcode

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/panbanda/symreach/pkg/symbol"
)

// ConfidenceLevel indicates how certain we are that a dead symbol is unused.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "High"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceLow    ConfidenceLevel = "Low"
)

// String returns the string representation.
func (c ConfidenceLevel) String() string {
	return string(c)
}

// ConfidenceFor grades a dead symbol by how far it is visible. Symbols that
// cannot be seen outside their file are certainly unused; public symbols may
// be used by code outside the analyzed set.
func ConfidenceFor(a symbol.Accessibility) ConfidenceLevel {
	switch a {
	case symbol.Private, symbol.FilePrivate:
		return ConfidenceHigh
	case symbol.Internal, symbol.Package:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Mode selects which symbols are implicit entry points.
type Mode string

const (
	// ModeLibrary treats public and open symbols as entry points.
	ModeLibrary Mode = "library"
	// ModeExecutable only honours explicit entry markers.
	ModeExecutable Mode = "executable"
	// ModeHybrid combines both.
	ModeHybrid Mode = "hybrid"
)

// ParseMode converts a mode name. An empty string yields ModeHybrid.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHybrid:
		return ModeHybrid, nil
	case ModeLibrary:
		return ModeLibrary, nil
	case ModeExecutable:
		return ModeExecutable, nil
	}
	return "", fmt.Errorf("unknown analysis mode %q (want library, executable or hybrid)", s)
}

// DeadSymbol is a declaration no entry point reaches.
type DeadSymbol struct {
	Symbol     symbol.Symbol   `json:"symbol" toon:"symbol"`
	Confidence ConfidenceLevel `json:"confidence" toon:"confidence"`
}

// Statistics summarizes one analysis run.
type Statistics struct {
	TotalSymbols     int                     `json:"total_symbols" toon:"total_symbols"`
	EntryPoints      int                     `json:"entry_points" toon:"entry_points"`
	LiveSymbols      int                     `json:"live_symbols" toon:"live_symbols"`
	DeadSymbols      int                     `json:"dead_symbols" toon:"dead_symbols"`
	IgnoredSymbols   int                     `json:"ignored_symbols" toon:"ignored_symbols"`
	DeadByConfidence map[ConfidenceLevel]int `json:"dead_by_confidence" toon:"dead_by_confidence"`
	DeadByKind       map[symbol.Kind]int     `json:"dead_by_kind" toon:"dead_by_kind"`
	DeadByFile       map[string]int          `json:"dead_by_file" toon:"dead_by_file"`
	Elapsed          time.Duration           `json:"elapsed_ns" toon:"elapsed_ns"`
}

func newStatistics() Statistics {
	return Statistics{
		DeadByConfidence: make(map[ConfidenceLevel]int),
		DeadByKind:       make(map[symbol.Kind]int),
		DeadByFile:       make(map[string]int),
	}
}

// Result is the outcome of one reachability analysis. ID slices are sorted.
type Result struct {
	Mode           Mode          `json:"mode" toon:"mode"`
	EntryPoints    []symbol.ID   `json:"entry_points" toon:"entry_points"`
	LiveSymbols    []symbol.ID   `json:"live_symbols" toon:"live_symbols"`
	DeadSymbols    []DeadSymbol  `json:"dead_symbols" toon:"dead_symbols"`
	IgnoredSymbols []symbol.ID   `json:"ignored_symbols" toon:"ignored_symbols"`
	DeadCycles     [][]symbol.ID `json:"dead_cycles,omitempty" toon:"dead_cycles,omitempty"`
	Statistics     Statistics    `json:"statistics" toon:"statistics"`
}

// IsLive reports whether id was reached.
func (r *Result) IsLive(id symbol.ID) bool {
	_, ok := slices.BinarySearch(r.LiveSymbols, id)
	return ok
}

// IsDead reports whether id was classified as dead.
func (r *Result) IsDead(id symbol.ID) bool {
	return slices.ContainsFunc(r.DeadSymbols, func(d DeadSymbol) bool { return d.Symbol.ID == id })
}

// IsIgnored reports whether id was excluded from dead-code reporting.
func (r *Result) IsIgnored(id symbol.ID) bool {
	_, ok := slices.BinarySearch(r.IgnoredSymbols, id)
	return ok
}

// DeadAtLeast returns the dead symbols whose confidence is at or above floor.
func (r *Result) DeadAtLeast(floor ConfidenceLevel) []DeadSymbol {
	rank := map[ConfidenceLevel]int{ConfidenceLow: 0, ConfidenceMedium: 1, ConfidenceHigh: 2}
	var out []DeadSymbol
	for _, d := range r.DeadSymbols {
		if rank[d.Confidence] >= rank[floor] {
			out = append(out, d)
		}
	}
	return out
}

// ParseConfidence converts a confidence name, case-insensitively.
func ParseConfidence(s string) (ConfidenceLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "low":
		return ConfidenceLow, nil
	case "medium":
		return ConfidenceMedium, nil
	case "high":
		return ConfidenceHigh, nil
	}
	return "", fmt.Errorf("unknown confidence %q", s)
}
