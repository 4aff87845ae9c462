package veridia

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

const (
	docStoreFileName   = "documents.jsonl"
	docOffsetsFileName = "doc_offsets.bin"
)

// DocumentRecord is one stored document (§3 Document entity, serialized
// form). Filename holds an optional source filename; the bulk builder and
// the incremental indexer leave it empty. The metadata table's
// "authors_or_filename" column (metadata.go) is filled from Authors.
type DocumentRecord struct {
	DocID    uint32
	Title    string
	Body     string
	Authors  string
	Filename string
}

// docStore is the append-only line-delimited record file plus its parallel
// doc_offsets.bin byte-offset table (§4.B). Writers append via
// docStoreWriter; readers mmap both files for O(1) random access.
type docStore struct {
	dataDir string
	content *mmapFile // documents.jsonl, mmapped read-only
	offsets *mmapFile // doc_offsets.bin, mmapped read-only
}

// openDocStore mmaps the document store and its offset table for reading.
func openDocStore(dataDir string) (*docStore, error) {
	content, err := openMmap(filepath.Join(dataDir, docStoreFileName))
	if err != nil {
		return nil, err
	}
	offsets, err := openMmap(filepath.Join(dataDir, docOffsetsFileName))
	if err != nil {
		content.Close()
		return nil, err
	}
	return &docStore{dataDir: dataDir, content: content, offsets: offsets}, nil
}

func (ds *docStore) Close() error {
	err1 := ds.content.Close()
	err2 := ds.offsets.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Get reads the document line for docID from the mmapped store: an 8-byte
// little-endian offset lookup followed by a scan to the next '\n'.
func (ds *docStore) Get(docID uint32) (DocumentRecord, error) {
	slot := int(docID-1) * 8
	if docID == 0 || slot+8 > ds.offsets.Len() {
		return DocumentRecord{}, fmt.Errorf("doc_id %d: %w", docID, ErrDocNotFound)
	}

	offset := binary.LittleEndian.Uint64(ds.offsets.Bytes()[slot : slot+8])
	data := ds.content.Bytes()
	if int(offset) >= len(data) {
		return DocumentRecord{}, fmt.Errorf("doc_id %d offset out of range: %w", docID, ErrCorruptStore(docID))
	}

	end := int(offset)
	for end < len(data) && data[end] != '\n' {
		end++
	}

	rec, err := parseStoreLine(data[offset:end])
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("doc_id %d: %w: %v", docID, ErrCorruptStructure, err)
	}
	return rec, nil
}

// ErrCorruptStore wraps ErrCorruptStructure with the offending doc_id for
// log context.
func ErrCorruptStore(docID uint32) error {
	return fmt.Errorf("doc_id %d offset out of range: %w", docID, ErrCorruptStructure)
}

// docStoreWriter appends records to the document store and offset table
// during bulk build and incremental ingest, never rewriting a previously
// written slot (§3: "doc-offset's slot i is never rewritten once written").
type docStoreWriter struct {
	content *bufio.Writer
	rawF    *os.File
	offsets *os.File
	offset  uint64
}

func newDocStoreWriter(dataDir string, truncate bool) (*docStoreWriter, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}

	rawF, err := os.OpenFile(filepath.Join(dataDir, docStoreFileName), flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening document store: %w: %v", ErrIoFailure, err)
	}
	offset := uint64(0)
	if !truncate {
		if info, err := rawF.Stat(); err == nil {
			offset = uint64(info.Size())
		}
	}

	offF, err := os.OpenFile(filepath.Join(dataDir, docOffsetsFileName), flags, 0o644)
	if err != nil {
		rawF.Close()
		return nil, fmt.Errorf("opening doc offsets: %w: %v", ErrIoFailure, err)
	}

	return &docStoreWriter{
		content: bufio.NewWriter(rawF),
		rawF:    rawF,
		offsets: offF,
		offset:  offset,
	}, nil
}

// Append writes one record's line and its offset-table slot. docID must be
// the next sequential, 1-based id.
func (w *docStoreWriter) Append(rec DocumentRecord) error {
	line := formatStoreLine(rec)

	var offBuf [8]byte
	binary.LittleEndian.PutUint64(offBuf[:], w.offset)
	if _, err := w.offsets.Write(offBuf[:]); err != nil {
		return fmt.Errorf("writing doc offset: %w: %v", ErrIoFailure, err)
	}

	n, err := w.content.WriteString(line)
	if err != nil {
		return fmt.Errorf("writing document record: %w: %v", ErrIoFailure, err)
	}
	w.offset += uint64(n)
	return nil
}

func (w *docStoreWriter) Close() error {
	if err := w.content.Flush(); err != nil {
		return err
	}
	if err := w.rawF.Sync(); err != nil {
		return err
	}
	if err := w.rawF.Close(); err != nil {
		return err
	}
	if err := w.offsets.Sync(); err != nil {
		return err
	}
	return w.offsets.Close()
}

// formatStoreLine renders a record as the store's one-line-per-document
// format: tab-separated fields, newline terminated. Titles/bodies/authors
// must not themselves contain '\t' or '\n'; callers sanitize at ingest.
func formatStoreLine(rec DocumentRecord) string {
	return fmt.Sprintf("%d\t%s\t%s\t%s\t%s\n",
		rec.DocID, sanitizeField(rec.Title), sanitizeField(rec.Body),
		sanitizeField(rec.Authors), sanitizeField(rec.Filename))
}

func parseStoreLine(line []byte) (DocumentRecord, error) {
	fields := splitTabs(string(line), 5)
	if len(fields) != 5 {
		return DocumentRecord{}, fmt.Errorf("expected 5 tab-separated fields, got %d", len(fields))
	}

	var docID uint32
	if _, err := fmt.Sscanf(fields[0], "%d", &docID); err != nil {
		return DocumentRecord{}, fmt.Errorf("parsing doc_id: %w", err)
	}

	return DocumentRecord{
		DocID:    docID,
		Title:    fields[1],
		Body:     fields[2],
		Authors:  fields[3],
		Filename: fields[4],
	}, nil
}

// sanitizeField strips '\t' and '\n' from a field so the tab-delimited
// store line format stays unambiguous.
func sanitizeField(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\t' || c == '\n' {
			out = append(out, ' ')
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// splitTabs splits s on '\t' into at most n fields, the last field
// absorbing any remaining tabs (there should be none after sanitizeField,
// but this keeps the parser defensive against legacy data).
func splitTabs(s string, n int) []string {
	out := make([]string, 0, n)
	start := 0
	for i := 0; i < len(s) && len(out) < n-1; i++ {
		if s[i] == '\t' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
