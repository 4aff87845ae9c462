package veridia

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const forwardIndexFileName = "forward_index.bin"

// ForwardIndexRecord is one document's word-ID sequence, the source of
// truth for rebuilding the inverted index (§4.D, §4.E).
type ForwardIndexRecord struct {
	DocID   uint32
	WordIDs []uint32
}

// forwardIndexWriter appends binary records: u32 doc_id, u32 num_words,
// u32 word_id × num_words, repeated. This is the format §4.D's expanded
// spec settles on (resolving the "text vs binary" open question).
type forwardIndexWriter struct {
	f *os.File
	w *bufio.Writer
}

func newForwardIndexWriter(dataDir string, truncate bool) (*forwardIndexWriter, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(filepath.Join(dataDir, forwardIndexFileName), flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening forward index: %w: %v", ErrIoFailure, err)
	}
	return &forwardIndexWriter{f: f, w: bufio.NewWriter(f)}, nil
}

func (w *forwardIndexWriter) Append(rec ForwardIndexRecord) error {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], rec.DocID)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(rec.WordIDs)))
	if _, err := w.w.Write(header[:]); err != nil {
		return fmt.Errorf("writing forward index header: %w: %v", ErrIoFailure, err)
	}

	buf := make([]byte, 4*len(rec.WordIDs))
	for i, id := range rec.WordIDs {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], id)
	}
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("writing forward index body: %w: %v", ErrIoFailure, err)
	}
	return nil
}

func (w *forwardIndexWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return err
	}
	return w.f.Close()
}

// forwardIndexReader streams ForwardIndexRecords, single-pass, used by the
// inverter (§4.E) and the incremental rebuild (§4.I). It is never used at
// query time.
type forwardIndexReader struct {
	f *os.File
	r *bufio.Reader
}

func openForwardIndexReader(dataDir string) (*forwardIndexReader, error) {
	f, err := os.Open(filepath.Join(dataDir, forwardIndexFileName))
	if err != nil {
		return nil, fmt.Errorf("opening forward index: %w: %v", ErrIoFailure, err)
	}
	return &forwardIndexReader{f: f, r: bufio.NewReaderSize(f, 1<<20)}, nil
}

// Next returns the next record, or io.EOF when the stream is exhausted.
func (r *forwardIndexReader) Next() (ForwardIndexRecord, error) {
	var header [8]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if err == io.EOF {
			return ForwardIndexRecord{}, io.EOF
		}
		return ForwardIndexRecord{}, fmt.Errorf("reading forward index header: %w: %v", ErrCorruptStructure, err)
	}
	docID := binary.LittleEndian.Uint32(header[0:4])
	numWords := binary.LittleEndian.Uint32(header[4:8])

	buf := make([]byte, 4*numWords)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return ForwardIndexRecord{}, fmt.Errorf("reading forward index body for doc %d: %w: %v", docID, ErrCorruptStructure, err)
	}

	wordIDs := make([]uint32, numWords)
	for i := range wordIDs {
		wordIDs[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return ForwardIndexRecord{DocID: docID, WordIDs: wordIDs}, nil
}

func (r *forwardIndexReader) Close() error {
	return r.f.Close()
}
