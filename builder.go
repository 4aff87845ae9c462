package veridia

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/panjf2000/ants/v2"
)

// RawDocument is one line of dataset.jsonl before tokenization (§6).
type RawDocument struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Abstract string `json:"abstract"`
	Text     string `json:"text"`
	Authors  string `json:"authors"`
}

// fullText returns whichever of body/abstract/text is populated, per §6's
// "self-describing with at minimum title, body/abstract/text".
func (r RawDocument) fullText() string {
	if r.Body != "" {
		return r.Body
	}
	if r.Abstract != "" {
		return r.Abstract
	}
	return r.Text
}

// BuildStats reports per-stage timing and throughput for a bulk build
// (§4.L "Reports per-stage elapsed time and document rate").
type BuildStats struct {
	Documents  int
	Words      int
	StageTimes map[string]time.Duration
}

// BuildAll runs the end-to-end bulk pipeline: tokenize corpus → build
// lexicon + forward index + metadata + document store + doc-offsets
// (parallel tokenization fanned out over a bounded worker pool, single
// streaming write pass) → invert to barrels → emit dense offsets → emit
// document term statistics. All outputs are produced in a temp directory
// and renamed atomically into place (§4.L, §5).
func BuildAll(ctx context.Context, corpusPath string, cfg Config, logger *slog.Logger) (BuildStats, error) {
	stats := BuildStats{StageTimes: make(map[string]time.Duration)}

	buildDir, err := os.MkdirTemp(filepath.Dir(cfg.DataDir), ".build-*")
	if err != nil {
		return stats, fmt.Errorf("creating build temp dir: %w: %v", ErrIoFailure, err)
	}
	defer os.RemoveAll(buildDir)

	tokenizer := NewTokenizer(cfg)

	// Stage 1: tokenize + write forward index / document store / metadata
	// in a single streaming pass. Tokenization is fanned out across a
	// bounded worker pool (§5); interning and sequential writes happen on
	// one goroutine to keep word-ID/doc-ID assignment deterministic.
	start := time.Now()
	lex := newBuildLexicon()
	lengths, maxDocID, err := streamCorpus(ctx, corpusPath, buildDir, cfg, tokenizer, lex, logger)
	if err != nil {
		return stats, err
	}
	stats.StageTimes["tokenize_and_stream"] = time.Since(start)
	stats.Documents = int(maxDocID)
	stats.Words = int(lex.NextWordID())

	if err := flushLexiconText(buildDir, lex); err != nil {
		return stats, err
	}

	// Stage 2: invert to barrels + dense offsets, from the forward index
	// just streamed.
	start = time.Now()
	acc, _, _, err := buildFromForwardIndex(buildDir)
	if err != nil {
		return stats, err
	}
	if err := writeBarrels(buildDir, acc, cfg.NumBarrels, logger); err != nil {
		return stats, err
	}
	stats.StageTimes["invert_to_barrels"] = time.Since(start)

	// Stage 3: document term statistics, feeding the optional scoring
	// hook (§3 supplement).
	start = time.Now()
	ds := buildDocStats(lengths, maxDocID)
	if err := writeDocStats(buildDir, ds); err != nil {
		return stats, err
	}
	stats.StageTimes["doc_stats"] = time.Since(start)

	// Stage 4: persist initial indexing state.
	state := IndexingState{NextDocID: maxDocID + 1, NextWordID: lex.NextWordID(), TotalWords: lex.NextWordID()}
	if err := saveIndexingState(buildDir, state, time.Now().Unix()); err != nil {
		return stats, err
	}

	// Atomically move the completed build into place.
	if err := os.RemoveAll(cfg.DataDir); err != nil {
		return stats, fmt.Errorf("clearing previous data dir: %w: %v", ErrIoFailure, err)
	}
	if err := os.Rename(buildDir, cfg.DataDir); err != nil {
		return stats, fmt.Errorf("renaming build dir into place: %w: %v", ErrIoFailure, err)
	}

	if logger != nil {
		logger.Info("bulk build complete", "documents", stats.Documents, "words", stats.Words,
			"docs_per_sec", ratePerSec(stats.Documents, stats.StageTimes["tokenize_and_stream"]))
	}

	return stats, nil
}

func ratePerSec(count int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(count) / d.Seconds()
}

// buildLexicon is the in-memory, non-concurrent-safe intern table used
// only during a single bulk build; it is distinct from Lexicon so the
// hot interning path (called once per token, on the single writer
// goroutine) avoids the backend-interface indirection.
type buildLexicon struct {
	forward map[string]uint32
	next    uint32
}

func newBuildLexicon() *buildLexicon {
	return &buildLexicon{forward: make(map[string]uint32)}
}

func (l *buildLexicon) Intern(surface string) uint32 {
	if id, ok := l.forward[surface]; ok {
		return id
	}
	id := l.next
	l.next = id + 1
	l.forward[surface] = id
	return id
}

func (l *buildLexicon) NextWordID() uint32 { return l.next }

func flushLexiconText(dataDir string, lex *buildLexicon) error {
	surfaces := make([]string, len(lex.forward))
	for surf, id := range lex.forward {
		surfaces[id] = surf
	}

	f, err := os.Create(filepath.Join(dataDir, lexiconFileName))
	if err != nil {
		return fmt.Errorf("writing lexicon: %w: %v", ErrIoFailure, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for id, surf := range surfaces {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", surf, id); err != nil {
			return fmt.Errorf("writing lexicon entry: %w: %v", ErrIoFailure, err)
		}
	}
	return w.Flush()
}

// tokenizedDoc is one worker's output: a document ready for sequential
// interning and writing.
type tokenizedDoc struct {
	inputIndex int
	title      string
	authors    string
	body       string
	tokens     []string
}

// streamCorpus reads dataset.jsonl, fans tokenization out across a bounded
// ants worker pool, and feeds completed token sequences back to one
// goroutine that assigns doc_ids/word_ids in input order and writes the
// forward index, document store, and metadata table (§5: "single-threaded
// for lexicon mutation and forward-index writing... preserve deterministic
// ID assignment").
func streamCorpus(ctx context.Context, corpusPath, buildDir string, cfg Config, tokenizer *Tokenizer, lex *buildLexicon, logger *slog.Logger) (map[uint32]uint32, uint32, error) {
	f, err := os.Open(corpusPath)
	if err != nil {
		return nil, 0, fmt.Errorf("opening corpus: %w: %v", ErrIoFailure, err)
	}
	defer f.Close()

	fwd, err := newForwardIndexWriter(buildDir, true)
	if err != nil {
		return nil, 0, err
	}
	defer fwd.Close()

	docs, err := newDocStoreWriter(buildDir, true)
	if err != nil {
		return nil, 0, err
	}
	defer docs.Close()

	results := make(chan tokenizedDoc, cfg.WorkerPoolSize*4)
	var wg sync.WaitGroup

	pool, err := ants.NewPoolWithFunc(cfg.WorkerPoolSize, func(payload interface{}) {
		defer wg.Done()
		in := payload.(rawDocInput)
		full := in.doc.Title + " " + in.doc.fullText()
		tokens := tokenizer.Tokenize(full)
		results <- tokenizedDoc{
			inputIndex: in.index,
			title:      in.doc.Title,
			authors:    in.doc.Authors,
			body:       in.doc.fullText(),
			tokens:     tokens,
		}
	})
	if err != nil {
		return nil, 0, fmt.Errorf("starting worker pool: %w: %v", ErrIoFailure, err)
	}
	defer pool.Release()

	pending := make(map[int]tokenizedDoc)
	nextExpected := 0
	var nextDocID uint32 = 1
	lengths := make(map[uint32]uint32)

	// flushReady writes out any buffered results that are next in input
	// order, preserving deterministic doc_id/word_id assignment even
	// though tokenization itself completes out of order.
	flushReady := func() error {
		for {
			doc, ok := pending[nextExpected]
			if !ok {
				return nil
			}
			delete(pending, nextExpected)
			nextExpected++

			if len(doc.tokens) == 0 {
				continue // doc with zero tokens is skipped, no doc_id assigned (§8)
			}

			docID := nextDocID
			nextDocID++

			wordIDs := make([]uint32, len(doc.tokens))
			for i, tok := range doc.tokens {
				wordIDs[i] = lex.Intern(tok)
			}
			lengths[docID] = uint32(len(wordIDs))

			if err := fwd.Append(ForwardIndexRecord{DocID: docID, WordIDs: wordIDs}); err != nil {
				return err
			}
			if err := appendMetadataBuild(buildDir, MetadataEntry{DocID: docID, Title: doc.title, Authors: doc.authors}); err != nil {
				return err
			}
			if err := docs.Append(DocumentRecord{DocID: docID, Title: doc.title, Body: doc.body, Authors: doc.authors}); err != nil {
				return err
			}
		}
	}

	readerErrCh := make(chan error, 1)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		idx := 0
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				readerErrCh <- ctx.Err()
				return
			default:
			}
			var raw RawDocument
			if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
				readerErrCh <- fmt.Errorf("parsing corpus line %d: %w: %v", idx+1, ErrCorruptStructure, err)
				return
			}
			wg.Add(1)
			if err := pool.Invoke(rawDocInput{index: idx, doc: raw}); err != nil {
				wg.Done()
				readerErrCh <- fmt.Errorf("dispatching to worker pool: %w: %v", ErrIoFailure, err)
				return
			}
			idx++
			if cfg.ProgressInterval > 0 && idx%cfg.ProgressInterval == 0 && logger != nil {
				logger.Info("tokenizing corpus", "documents_seen", idx)
			}
		}
		readerErrCh <- scanner.Err()
	}()

	go func() {
		<-readerDone
		wg.Wait()
		close(results)
	}()

	for doc := range results {
		pending[doc.inputIndex] = doc
		if err := flushReady(); err != nil {
			return nil, 0, err
		}
	}

	if err := <-readerErrCh; err != nil {
		return nil, 0, err
	}

	return lengths, nextDocID - 1, nil
}

type rawDocInput struct {
	index int
	doc   RawDocument
}

// appendMetadataBuild is a thin wrapper over appendMetadata used during
// bulk build, where every write targets the temp build directory rather
// than the live data directory.
func appendMetadataBuild(buildDir string, entry MetadataEntry) error {
	return appendMetadata(buildDir, entry)
}
