package veridia

import (
	"log/slog"
	"sync"
	"time"
)

// IncomingDocument is one document passed to AddDocuments.
type IncomingDocument struct {
	Title   string
	Body    string
	Authors string
}

// IncrementalStats reports the outcome of one AddDocuments call (§4.I).
type IncrementalStats struct {
	DocumentsAdded      int
	NewWords            int
	TotalWordsProcessed int
}

// incrementalIndexer implements §4.I: append documents, extend the
// lexicon, rewrite the inverted index wholesale from the forward index,
// and persist state. Calls are serialized by mu, matching §5's "concurrent
// calls must be queued... by an internal lock".
type incrementalIndexer struct {
	mu        sync.Mutex
	cfg       Config
	tokenizer *Tokenizer
	logger    *slog.Logger
}

func newIncrementalIndexer(cfg Config, tokenizer *Tokenizer, logger *slog.Logger) *incrementalIndexer {
	return &incrementalIndexer{cfg: cfg, tokenizer: tokenizer, logger: logger}
}

// AddDocuments runs the full procedure of §4.I and returns statistics.
// On success the caller (Engine) is responsible for reloading its mmapped
// readers, since this function only ever mutates the on-disk state.
func (ix *incrementalIndexer) AddDocuments(docs []IncomingDocument) (IncrementalStats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	dataDir := ix.cfg.DataDir
	stats := IncrementalStats{}

	// Step 1: load persistent state, inferring from metadata/lexicon if
	// absent or behind.
	meta, err := loadMetadataTable(dataDir)
	if err != nil {
		return stats, err
	}
	lex, err := openLexicon(dataDir)
	if err != nil {
		return stats, err
	}
	defer lex.Close()

	state, err := loadIndexingState(dataDir, meta, lex, ix.logger)
	if err != nil {
		return stats, err
	}
	lex.SetNextWordID(state.NextWordID)

	nextDocID := state.NextDocID
	if nextDocID == 0 {
		nextDocID = 1
	}

	fwdWriter, err := newForwardIndexWriter(dataDir, false)
	if err != nil {
		return stats, err
	}
	docsWriter, err := newDocStoreWriter(dataDir, false)
	if err != nil {
		fwdWriter.Close()
		return stats, err
	}

	newSurfaces := make(map[string]uint32)

	// Step 2: tokenize, intern, append.
	for _, doc := range docs {
		tokens := ix.tokenizer.Tokenize(doc.Title + " " + doc.Body)
		if len(tokens) == 0 {
			continue
		}

		wordIDs := make([]uint32, len(tokens))
		for i, tok := range tokens {
			before := lex.NextWordID()
			id := lex.Intern(tok)
			if id == before {
				newSurfaces[tok] = id
			}
			wordIDs[i] = id
		}

		docID := nextDocID
		nextDocID++

		if err := fwdWriter.Append(ForwardIndexRecord{DocID: docID, WordIDs: wordIDs}); err != nil {
			fwdWriter.Close()
			docsWriter.Close()
			return stats, err
		}
		if err := appendMetadata(dataDir, MetadataEntry{DocID: docID, Title: doc.Title, Authors: doc.Authors}); err != nil {
			fwdWriter.Close()
			docsWriter.Close()
			return stats, err
		}
		if err := docsWriter.Append(DocumentRecord{DocID: docID, Title: doc.Title, Body: doc.Body, Authors: doc.Authors}); err != nil {
			fwdWriter.Close()
			docsWriter.Close()
			return stats, err
		}

		stats.DocumentsAdded++
		stats.TotalWordsProcessed += len(tokens)
	}

	if err := fwdWriter.Close(); err != nil {
		return stats, err
	}
	if err := docsWriter.Close(); err != nil {
		return stats, err
	}

	stats.NewWords = len(newSurfaces)

	// Step 3: append newly interned surfaces to lexicon.txt.
	if err := AppendLexiconText(dataDir, newSurfaces); err != nil {
		return stats, err
	}

	if ix.logger != nil {
		ix.logger.Info("incremental ingest: documents appended", "documents_added", stats.DocumentsAdded,
			"new_words", stats.NewWords, "starting_doc_id", state.NextDocID)
	}

	// Step 4: rewrite the inverted index wholesale from the forward index,
	// then barrels + dense offsets (§4.E, §4.I). A failure here is safe to
	// retry: the forward index and document store are already consistent
	// on disk (§4.I failure mode).
	acc, lengths, maxDocID, err := buildFromForwardIndex(dataDir)
	if err != nil {
		return stats, err
	}
	if err := writeBarrels(dataDir, acc, ix.cfg.NumBarrels, ix.logger); err != nil {
		return stats, err
	}
	ds := buildDocStats(lengths, maxDocID)
	if err := writeDocStats(dataDir, ds); err != nil {
		return stats, err
	}

	// Step 5: persist state.
	newState := IndexingState{
		NextDocID:  nextDocID,
		NextWordID: lex.NextWordID(),
		TotalWords: lex.NextWordID(),
	}
	if err := saveIndexingState(dataDir, newState, time.Now().Unix()); err != nil {
		return stats, err
	}

	if ix.logger != nil {
		ix.logger.Info("incremental ingest complete", "documents_added", stats.DocumentsAdded,
			"new_words", stats.NewWords, "next_doc_id", newState.NextDocID)
	}

	return stats, nil
}
