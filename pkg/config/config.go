// Package config loads symreach settings from TOML, YAML or JSON files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/panbanda/symreach/pkg/analyzer/deadcode"
)

// Config holds all configuration options for symreach.
type Config struct {
	// Reachability policy
	DeadCode DeadCodeConfig `koanf:"deadcode" toml:"deadcode"`

	// Semantic resolver settings
	Semantic SemanticConfig `koanf:"semantic" toml:"semantic"`

	// Which files carry symbol manifests
	Input InputConfig `koanf:"input" toml:"input"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// DeadCodeConfig configures entry points and ignore rules.
type DeadCodeConfig struct {
	Mode                  string              `koanf:"mode" toml:"mode"` // library, executable, hybrid
	EntryAttributes       []string            `koanf:"entry_attributes" toml:"entry_attributes"`
	EntryFiles            []string            `koanf:"entry_files" toml:"entry_files"`
	IgnorePatterns        []string            `koanf:"ignore_patterns" toml:"ignore_patterns"`
	IgnorePrefixes        []string            `koanf:"ignore_prefixes" toml:"ignore_prefixes"`
	IgnoredMethods        []string            `koanf:"ignored_methods" toml:"ignored_methods"`
	SynthesizingProtocols []string            `koanf:"synthesizing_protocols" toml:"synthesizing_protocols"`
	SynthesizedMembers    map[string][]string `koanf:"synthesized_members" toml:"synthesized_members"`
	MinConfidence         string              `koanf:"min_confidence" toml:"min_confidence"` // low, medium, high
}

// SemanticConfig configures the optional semantic resolver.
type SemanticConfig struct {
	Mode      string   `koanf:"mode" toml:"mode"`       // off, hybrid, full, auto
	Index     string   `koanf:"index" toml:"index"`     // precomputed location index
	Command   []string `koanf:"command" toml:"command"` // resolver helper process
	Timeout   int      `koanf:"timeout" toml:"timeout"` // seconds per batch
	BatchSize int      `koanf:"batch_size" toml:"batch_size"`
	Workers   int      `koanf:"workers" toml:"workers"`
}

// InputConfig selects manifest files.
type InputConfig struct {
	Patterns    []string `koanf:"patterns" toml:"patterns"`
	MaxFileSize int64    `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = unlimited
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DeadCode: DeadCodeConfig{
			Mode:                  string(deadcode.ModeHybrid),
			EntryAttributes:       slices.Clone(deadcode.DefaultEntryAttributes),
			EntryFiles:            []string{"main.swift"},
			IgnorePatterns:        []string{"*_Previews*"},
			IgnoredMethods:        slices.Clone(deadcode.DefaultIgnoredMethodNames),
			SynthesizingProtocols: slices.Clone(deadcode.DefaultSynthesizingProtocols),
			MinConfidence:         "low",
		},
		Semantic: SemanticConfig{
			Mode:      "auto",
			Timeout:   30,
			BatchSize: 256,
			Workers:   4,
		},
		Input: InputConfig{
			Patterns: []string{
				"*.symbols.json",
				"*.symbols.yaml",
				"*.symbols.yml",
			},
			MaxFileSize: 64 << 20,
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				".git",
				".build",
				".symreach",
				"DerivedData",
				"Pods",
				"Carthage",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".symreach/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file, layered over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// FileNames are the config files LoadOrDefault looks for.
var FileNames = []string{
	"symreach.toml",
	"symreach.yaml",
	"symreach.yml",
	"symreach.json",
	".symreach.toml",
	".symreach.yaml",
	".symreach.yml",
	".symreach.json",
}

// Find returns the first config file found in dir or dir/.symreach.
func Find(dir string) (string, bool) {
	for _, d := range []string{dir, filepath.Join(dir, ".symreach")} {
		for _, name := range FileNames {
			path := filepath.Join(d, name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
	}
	return "", false
}

// LoadOrDefault loads the config from the working directory or returns
// defaults.
func LoadOrDefault() *Config {
	if path, ok := Find("."); ok {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

var semanticModes = []string{"off", "hybrid", "full", "auto"}

var outputFormats = []string{"text", "json", "markdown", "toon"}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	var errs []error
	if _, err := deadcode.ParseMode(c.DeadCode.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := deadcode.ParseConfidence(c.DeadCode.MinConfidence); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(semanticModes, strings.ToLower(c.Semantic.Mode)) {
		errs = append(errs, fmt.Errorf("unknown semantic mode %q", c.Semantic.Mode))
	}
	if c.Output.Format != "" && !slices.Contains(outputFormats, strings.ToLower(c.Output.Format)) {
		errs = append(errs, fmt.Errorf("unknown output format %q", c.Output.Format))
	}
	return errors.Join(errs...)
}

// Policy converts the dead-code section into an engine policy.
func (c *Config) Policy() (deadcode.Policy, error) {
	mode, err := deadcode.ParseMode(c.DeadCode.Mode)
	if err != nil {
		return deadcode.Policy{}, err
	}
	p := deadcode.PolicyForMode(mode)
	p.EntryAttributes = c.DeadCode.EntryAttributes
	p.EntryFilePatterns = c.DeadCode.EntryFiles
	p.IgnorePatterns = c.DeadCode.IgnorePatterns
	p.IgnorePrefixes = c.DeadCode.IgnorePrefixes
	p.IgnoredMethodNames = c.DeadCode.IgnoredMethods
	p.SynthesizingProtocols = c.DeadCode.SynthesizingProtocols
	p.SynthesizedMembers = c.DeadCode.SynthesizedMembers
	return p, nil
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	sep := string(filepath.Separator)
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, sep+dir+sep) || strings.HasPrefix(path, dir+sep) {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// IsManifest reports whether a file name matches the input patterns.
func (c *Config) IsManifest(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range c.Input.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
