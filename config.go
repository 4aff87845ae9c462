package veridia

import (
	"os"
	"strconv"
)

// Config holds every tunable named in the external-interfaces contract.
// A single value is constructed at startup and threaded into the builder
// and the engine; there is no package-level configuration singleton.
type Config struct {
	// DataDir is the directory holding all on-disk index files.
	DataDir string

	// NumBarrels is N, the barrel count used for word_id mod N sharding.
	// Changing it invalidates existing indices.
	NumBarrels uint32

	// MinWordLength filters tokens shorter than this out of the index.
	MinWordLength int

	// MaxResults bounds the number of ranked hits returned from search.
	MaxResults int

	// BatchSize is carried in the config and can be set from
	// VERIDIA_BATCH_SIZE; neither the bulk builder nor the incremental
	// indexer reads it.
	BatchSize int

	// ProgressInterval controls how often the builder logs progress.
	ProgressInterval int

	// WorkerPoolSize bounds the bulk-tokenization worker pool.
	WorkerPoolSize int

	// TokenCacheSize bounds the tokenizer's input-string LRU cache.
	TokenCacheSize int

	// KExpand is the number of semantic neighbours added per query token.
	KExpand int

	// ExpansionWeight is the additive score for a semantically-expanded
	// term match (less than the exact-match weight of 1.0).
	ExpansionWeight float64

	// StrictANDBoost multiplies scores of documents matching every query
	// token when the strict-AND candidate set is used.
	StrictANDBoost float64

	// TitleDisplayCap truncates titles purely for display; the persisted
	// form is never truncated.
	TitleDisplayCap int

	// UseDiskLexicon selects the bbolt-backed disk-resident lexicon
	// backend (§4.C alternative (c)) instead of the default in-memory
	// map+skip-list backend. Set this for deployments where the full
	// lexicon does not comfortably fit in memory.
	UseDiskLexicon bool
}

// DefaultConfig returns the configuration this specification fixes as its
// concrete constants (§4.G, §9 of the expanded spec).
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:          dataDir,
		NumBarrels:       10,
		MinWordLength:    3,
		MaxResults:       50,
		BatchSize:        1000,
		ProgressInterval: 10000,
		WorkerPoolSize:   8,
		TokenCacheSize:   4096,
		KExpand:          2,
		ExpansionWeight:  0.6,
		StrictANDBoost:   1.75,
		TitleDisplayCap:  200,
	}
}

// LoadConfig builds a Config from defaults, overridden by environment
// variables prefixed VERIDIA_. Unset variables leave the default in place.
func LoadConfig(dataDir string) Config {
	cfg := DefaultConfig(dataDir)

	if v := os.Getenv("VERIDIA_NUM_BARRELS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.NumBarrels = uint32(n)
		}
	}
	if v := os.Getenv("VERIDIA_MIN_WORD_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinWordLength = n
		}
	}
	if v := os.Getenv("VERIDIA_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxResults = n
		}
	}
	if v := os.Getenv("VERIDIA_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("VERIDIA_WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("VERIDIA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("VERIDIA_USE_DISK_LEXICON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.UseDiskLexicon = b
		}
	}

	return cfg
}
