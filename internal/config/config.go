// Package config loads the recognised-options record of §9: a single HCL
// file with explicit fields, unknown fields rejected at the boundary,
// documented defaults for everything the caller omits.
//
// The teacher only reaches for hashicorp/hcl/v2 to reformat .tf/.hcl files
// on writeback (internal/writeback/format.go); this package is the first
// place in the workspace that decodes HCL into a Go struct, via the same
// library's top-level hclsimple.DecodeFile entry point.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// ContextStrategy selects how memory-context retrieval trades recall for
// precision (§4.7, §9).
type ContextStrategy string

const (
	// StrategySmart names hybrid BM25+cosine ranking. memory.Store.Context
	// ranks this way whatever strategy is configured, and prunes nothing.
	StrategySmart ContextStrategy = "smart"
	// StrategyNaive names unranked retrieval of every code-linked or
	// tag-matched memory; no code path returns memories unranked.
	StrategyNaive ContextStrategy = "naive"
)

// Config is the caller-supplied recognised-options record of §9. Every
// field here is documented below with its default; hclsimple rejects any
// HCL attribute or block not named here, per "unknown fields are rejected
// at boundary".
type Config struct {
	// MaxFileSize is the per-file byte cap of the options record. Default
	// 2 MiB. Ingestion does not read this field: no ParseResult is skipped
	// for its file's size.
	MaxFileSize int `hcl:"max_file_size,optional"`

	// ExcludeGlobs lists path globs that ExcludesPath matches against a
	// file path. Default: none. Ingestion does not call ExcludesPath, so a
	// ParseResult whose FilePath matches is still ingested.
	ExcludeGlobs []string `hcl:"exclude_globs,optional"`

	// EnabledLanguages lists language tags; an empty list means all, and
	// LanguageEnabled reports membership. Default: empty. cmd feeds it
	// into the workspace fingerprint of meta.json, so changing it forces a
	// rebuild; ingestion does not call LanguageEnabled and accepts every
	// ParseResult.LanguageTag.
	EnabledLanguages []string `hcl:"enabled_languages,optional"`

	// MaxContextTokens bounds how many memory records memoryContext may
	// return. Default 20. The coordinator does not read this field:
	// memoryContext sets no ContextQuery.Limit, so every matching memory
	// is returned.
	MaxContextTokens int `hcl:"max_context_tokens,optional"`

	// ContextStrategy names smart vs naive memory-context retrieval.
	// Default "smart". Validate accepts only those two values; memory
	// context retrieval does not read the field (see StrategySmart).
	ContextStrategy ContextStrategy `hcl:"context_strategy,optional"`

	// DefaultDepth is the traversal depth for dependencyGraph/callGraph
	// when the caller passes 0. Default 3. The query engine does not read
	// this field; it applies its own defaultDepth constant, also 3.
	DefaultDepth int `hcl:"default_depth,optional"`

	// CacheEnabled toggles C8; disabling it makes executeCached always
	// fall through to live computation, useful for debugging cache bugs
	// without restarting with a different binary. Default true.
	CacheEnabled bool `hcl:"cache_enabled,optional"`

	// CacheCapacity bounds the number of entries cache.New holds. Default
	// 4096.
	CacheCapacity int `hcl:"cache_capacity,optional"`

	// ParallelParsingThreads is the ingestion worker-pool width of the
	// options record; 0 means runtime.NumCPU(). Default 0. ingest.Engine
	// does not read this field and always sizes its pool from
	// runtime.NumCPU(), capped at the batch size.
	ParallelParsingThreads int `hcl:"parallel_parsing_threads,optional"`

	// MinMemoryConfidence is the confidence below which a mined commit
	// classification is discarded rather than stored. Default 0.55.
	// gitmine.New takes this threshold as an argument; nothing in this
	// repository passes the configured value to it.
	MinMemoryConfidence float64 `hcl:"min_memory_confidence,optional"`

	// StoreLockTimeout is the lock-wait bound of the options record.
	// Default 2s. storelock.Acquire does not read it: it tries the lock
	// once without blocking and reports Locked=false at once when another
	// process holds it.
	StoreLockTimeout time.Duration `hcl:"store_lock_timeout,optional"`

	// EntryRoots lists path prefixes (matched against Node.FilePath) that
	// findUnusedCode (§4.6.4) treats as library entry points: a public
	// symbol defined under one of these roots is excluded from the unused
	// report outright rather than confidence-penalized, since its only
	// caller may be outside this workspace entirely. Default: none, which
	// leaves the exclusion inactive and every public symbol scored on its
	// other heuristics alone.
	EntryRoots []string `hcl:"entry_roots,optional"`
}

// Default returns the documented defaults for every field.
func Default() Config {
	return Config{
		MaxFileSize:            2 << 20,
		MaxContextTokens:       20,
		ContextStrategy:        StrategySmart,
		DefaultDepth:           3,
		CacheEnabled:           true,
		CacheCapacity:          4096,
		ParallelParsingThreads: 0,
		MinMemoryConfidence:    0.55,
		StoreLockTimeout:       2 * time.Second,
	}
}

// Load decodes path (an HCL file) into Config, starting from Default() so
// every field the file omits keeps its documented value, then validates
// the result. Unknown attributes or blocks are rejected by hclsimple
// itself before Load ever sees them.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field-level invariants hclsimple's decoding can't
// express on its own.
func (c Config) Validate() error {
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("config: max_file_size must be positive, got %d", c.MaxFileSize)
	}
	if c.ContextStrategy != StrategySmart && c.ContextStrategy != StrategyNaive {
		return fmt.Errorf("config: context_strategy must be %q or %q, got %q", StrategySmart, StrategyNaive, c.ContextStrategy)
	}
	if c.MaxContextTokens <= 0 {
		return fmt.Errorf("config: max_context_tokens must be positive, got %d", c.MaxContextTokens)
	}
	if c.MinMemoryConfidence < 0 || c.MinMemoryConfidence > 1 {
		return fmt.Errorf("config: min_memory_confidence must be in [0,1], got %v", c.MinMemoryConfidence)
	}
	if c.ParallelParsingThreads < 0 {
		return fmt.Errorf("config: parallel_parsing_threads must be >= 0, got %d", c.ParallelParsingThreads)
	}
	return nil
}

// ExcludesPath reports whether filePath matches any of ExcludeGlobs.
func (c Config) ExcludesPath(filePath string) bool {
	for _, g := range c.ExcludeGlobs {
		if ok, _ := matchGlob(g, filePath); ok {
			return true
		}
	}
	return false
}

// LanguageEnabled reports whether tag is accepted, per EnabledLanguages'
// "empty means everything accepted" rule.
func (c Config) LanguageEnabled(tag string) bool {
	if len(c.EnabledLanguages) == 0 {
		return true
	}
	for _, l := range c.EnabledLanguages {
		if l == tag {
			return true
		}
	}
	return false
}
