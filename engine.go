package veridia

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// EngineState is the readiness state of an Engine value, replacing the
// source's process-wide singleton/lazy-global pattern (§9 design notes).
type EngineState int

const (
	Initializing EngineState = iota
	Ready
	Degraded
)

func (s EngineState) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// StatusCounters is returned by Engine.Status() (§6 "engine.status()").
type StatusCounters struct {
	State        EngineState
	Documents    uint32
	Words        uint32
	HasEmbedding bool
}

// Engine is the explicit, host-injected value standing in for the
// source's singleton engine (§9). A host constructs exactly one per data
// directory and passes it wherever search/suggest/correct/ingest is
// needed; there is no package-level instance.
type Engine struct {
	mu sync.RWMutex

	cfg    Config
	logger *slog.Logger
	state  EngineState

	tokenizer *Tokenizer
	lexicon   *Lexicon
	inverted  *invertedIndex
	embedding *EmbeddingModel
	metadata  *metadataTable
	docs      *docStore
	stats     *docStats

	query       *queryEngine
	suggest     *suggestEngine
	incremental *incrementalIndexer
}

// OpenEngine opens all five on-disk structures for reading and returns a
// ready-to-query Engine. If the optional embedding file is absent, the
// engine opens in Ready state with semantic expansion disabled, per §4.F
// "degrades cleanly to exact lookup" — a missing optional component is not
// a Degraded condition by itself.
func OpenEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	e := &Engine{cfg: cfg, logger: logger, state: Initializing}

	e.tokenizer = NewTokenizer(cfg)

	meta, err := loadMetadataTable(cfg.DataDir)
	if err != nil {
		e.state = Degraded
		return e, err
	}
	e.metadata = meta

	lex, err := openLexiconForConfig(cfg)
	if err != nil {
		e.state = Degraded
		return e, err
	}
	e.lexicon = lex

	docs, err := openDocStore(cfg.DataDir)
	if err != nil {
		logger.Warn("document store unavailable; content() will fail", "error", err)
	}
	e.docs = docs

	inverted, err := openInvertedIndex(cfg.DataDir, cfg.NumBarrels, logger)
	if err != nil {
		e.state = Degraded
		return e, fmt.Errorf("opening inverted index: %w", err)
	}
	e.inverted = inverted

	ds, err := loadDocStats(cfg.DataDir)
	if err != nil {
		ds = &docStats{}
	}
	e.stats = ds

	if model, err := LoadEmbeddingModel(embeddingModelPath(cfg.DataDir)); err == nil {
		e.embedding = model
	} else {
		logger.Info("embedding model unavailable; semantic expansion disabled", "error", err)
	}

	e.query = &queryEngine{
		cfg: cfg, tokenizer: e.tokenizer, lexicon: e.lexicon, inverted: e.inverted,
		embedding: e.embedding, metadata: e.metadata, stats: e.stats, logger: logger,
	}
	e.suggest = &suggestEngine{lexicon: e.lexicon, inverted: e.inverted, embedding: e.embedding}
	e.incremental = newIncrementalIndexer(cfg, e.tokenizer, logger)

	e.state = Ready
	return e, nil
}

// Close releases every mmapped resource the engine holds.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	if e.inverted != nil {
		if err := e.inverted.Close(); err != nil {
			firstErr = err
		}
	}
	if e.docs != nil {
		if err := e.docs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.lexicon != nil {
		if err := e.lexicon.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// State returns the engine's current readiness.
func (e *Engine) State() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Search runs a ranked keyword query (§4.G, §6 "engine.search").
func (e *Engine) Search(query string, opts SearchOptions) []Hit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.query.Search(query, opts)
}

// Suggest returns autocomplete surfaces for prefix (§4.H, §6
// "engine.suggest").
func (e *Engine) Suggest(prefix string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.suggest.Autocomplete(prefix)
}

// Correct returns ranked spelling-correction candidates (§4.H, §6
// "engine.correct").
func (e *Engine) Correct(word string, limit int) CorrectionResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.suggest.Correct(word, limit)
}

// Content returns the stored record for docID (§4.B, §6 "engine.content").
func (e *Engine) Content(docID uint32) (DocumentRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.docs == nil {
		return DocumentRecord{}, fmt.Errorf("document store unavailable: %w", ErrIoFailure)
	}
	return e.docs.Get(docID)
}

// AddDocuments ingests new documents incrementally and reloads the
// engine's mmapped readers to reflect the rebuilt structures (§4.I, §5:
// "reload is atomic per file... readers must re-acquire handles"). Calls
// are serialized through the incremental indexer's own lock plus this
// write lock, so a reader never observes a half-reloaded engine.
func (e *Engine) AddDocuments(docs []IncomingDocument) (IncrementalStats, error) {
	stats, err := e.incremental.AddDocuments(docs)
	if err != nil {
		return stats, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.reloadLocked(); err != nil {
		e.state = Degraded
		return stats, err
	}
	return stats, nil
}

// reloadLocked reopens every mmapped structure and the lexicon/metadata
// snapshot. Callers must hold e.mu for writing.
func (e *Engine) reloadLocked() error {
	newMeta, err := loadMetadataTable(e.cfg.DataDir)
	if err != nil {
		return err
	}
	newLex, err := openLexiconForConfig(e.cfg)
	if err != nil {
		return err
	}
	newInverted, err := openInvertedIndex(e.cfg.DataDir, e.cfg.NumBarrels, e.logger)
	if err != nil {
		newLex.Close()
		return err
	}
	newStats, err := loadDocStats(e.cfg.DataDir)
	if err != nil {
		newStats = &docStats{}
	}

	// The document store is append-only: its mmap must be reopened too,
	// since mmap does not observe bytes appended after it was mapped
	// (§5: "reload is atomic per file; old mmap unmapped, new mmap
	// opened").
	var newDocs *docStore
	if e.docs != nil {
		newDocs, err = openDocStore(e.cfg.DataDir)
		if err != nil {
			newInverted.Close()
			newLex.Close()
			return err
		}
	}

	oldLex, oldInverted, oldDocs := e.lexicon, e.inverted, e.docs

	e.metadata = newMeta
	e.lexicon = newLex
	e.inverted = newInverted
	e.stats = newStats
	e.docs = newDocs
	e.query.lexicon = newLex
	e.query.inverted = newInverted
	e.query.metadata = newMeta
	e.query.stats = newStats
	e.suggest.lexicon = newLex
	e.suggest.inverted = newInverted

	if oldInverted != nil {
		oldInverted.Close()
	}
	if oldLex != nil {
		oldLex.Close()
	}
	if oldDocs != nil {
		oldDocs.Close()
	}
	return nil
}

// Status returns engine counters for host-side monitoring (§6
// "engine.status").
func (e *Engine) Status() StatusCounters {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return StatusCounters{
		State:        e.state,
		Documents:    e.metadata.MaxDocID(),
		Words:        e.lexicon.NextWordID(),
		HasEmbedding: e.embedding != nil,
	}
}
