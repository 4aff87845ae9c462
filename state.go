package veridia

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const indexingStateFileName = "indexing_state.json"

// IndexingState is the persistent-state blob of §4.K.
type IndexingState struct {
	NextDocID  uint32 `json:"next_doc_id"`
	NextWordID uint32 `json:"next_word_id"`
	Timestamp  int64  `json:"timestamp"`
	TotalWords uint32 `json:"total_words"`
}

// loadIndexingState reads indexing_state.json, reconciling it against the
// metadata table and lexicon if it disagrees with them (§4.K, §7
// StateConflict, §9 resolution). If the file is absent, state is inferred
// entirely from the metadata table and lexicon (§4.I step 1).
func loadIndexingState(dataDir string, meta *metadataTable, lex *Lexicon, logger *slog.Logger) (IndexingState, error) {
	inferredDocID := meta.MaxDocID() + 1
	if meta.MaxDocID() == 0 && len(meta.byID) == 0 {
		inferredDocID = 0
	}
	inferredWordID := lex.NextWordID()

	path := filepath.Join(dataDir, indexingStateFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return IndexingState{
			NextDocID:  inferredDocID,
			NextWordID: inferredWordID,
			TotalWords: inferredWordID,
		}, nil
	}
	if err != nil {
		return IndexingState{}, fmt.Errorf("reading indexing state: %w: %v", ErrIoFailure, err)
	}

	var state IndexingState
	if err := json.Unmarshal(data, &state); err != nil {
		return IndexingState{}, fmt.Errorf("parsing indexing state: %w: %v", ErrCorruptStructure, err)
	}

	if state.NextDocID < inferredDocID {
		if logger != nil {
			logger.Warn("persistent state behind metadata table; reconciling",
				"error", ErrStateConflict, "state_next_doc_id", state.NextDocID, "metadata_next_doc_id", inferredDocID)
		}
		state.NextDocID = inferredDocID
	}
	if state.NextWordID < inferredWordID {
		if logger != nil {
			logger.Warn("persistent state behind lexicon; reconciling",
				"error", ErrStateConflict, "state_next_word_id", state.NextWordID, "lexicon_next_word_id", inferredWordID)
		}
		state.NextWordID = inferredWordID
	}

	return state, nil
}

// saveIndexingState writes indexing_state.json atomically (temp file +
// rename), per §4.K. now is injected by the caller since this package
// never calls time.Now() directly inside reusable helpers that tests also
// exercise.
func saveIndexingState(dataDir string, state IndexingState, now int64) error {
	state.Timestamp = now
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling indexing state: %w: %v", ErrIoFailure, err)
	}
	return writeFileAtomic(filepath.Join(dataDir, indexingStateFileName), data, 0o644)
}
