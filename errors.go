package veridia

import "errors"

// Sentinel errors for the taxonomy kinds this engine reports. Callers use
// errors.Is against these values; wrapping with fmt.Errorf("...: %w", ...)
// preserves the chain up to the caller.
var (
	// ErrIoFailure covers missing files, unreadable files, and mmap failures.
	ErrIoFailure = errors.New("veridia: io failure")

	// ErrCorruptStructure covers offset/barrel size mismatches and malformed
	// lines in metadata, lexicon, or document records.
	ErrCorruptStructure = errors.New("veridia: corrupt structure")

	// ErrNotInLexicon is returned by lookup APIs when a surface has no word_id.
	ErrNotInLexicon = errors.New("veridia: not in lexicon")

	// ErrDocNotFound is returned when a doc_id has no metadata/content row.
	ErrDocNotFound = errors.New("veridia: document not found")

	// ErrEmbeddingUnavailable is returned when the embedding model file is
	// missing or failed to load; semantic expansion silently no-ops instead
	// of surfacing this to query callers.
	ErrEmbeddingUnavailable = errors.New("veridia: embedding model unavailable")

	// ErrStateConflict is logged (not returned) when persisted state
	// disagrees with on-disk files; reconciliation takes the max.
	ErrStateConflict = errors.New("veridia: persistent state conflict")
)
