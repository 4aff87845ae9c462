package veridia

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to path by first writing to a sibling temp
// file and renaming it into place, so a crash mid-write never leaves a
// half-written file at path. Used for the files that are rewritten whole:
// barrels, dense and sparse offset tables, doc stats, indexing state, and
// the embedding cache (§3 lifecycle: "write-to-temp then rename per file").
// The append-only files (forward index, document store, doc offsets,
// metadata, lexicon.txt) are written in place instead.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w: %v", path, ErrIoFailure, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file for %s: %w: %v", path, ErrIoFailure, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file for %s: %w: %v", path, ErrIoFailure, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %s: %w: %v", path, ErrIoFailure, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file for %s: %w: %v", path, ErrIoFailure, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file into %s: %w: %v", path, ErrIoFailure, err)
	}
	return nil
}

// appendFile opens path for appending, creating it if absent. Used by the
// incremental indexer's append-only writers (forward index, metadata,
// document store, lexicon).
func appendFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s for append: %w: %v", path, ErrIoFailure, err)
	}
	return f, nil
}
