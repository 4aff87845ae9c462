package veridia

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

const (
	denseOffsetsFileName  = "word_offsets_dense.bin"
	sparseOffsetsFileName = "word_offsets_barrels.bin"
	offsetRecordSize      = 16 // u32 barrel_id, u64 offset, u32 count
	sparseRecordSize      = 20 // u32 word_id, u32 barrel_id, u64 offset, u32 count
)

func barrelFileName(barrelID uint32) string {
	return fmt.Sprintf("barrel_%d.bin", barrelID)
}

// OffsetRecord is the dense offset table's per-word_id slot (§3, §4.E).
type OffsetRecord struct {
	BarrelID uint32
	Offset   uint64
	Count    uint32
}

// IsEmpty reports the unused-slot sentinel: count == 0 is authoritative
// regardless of the other two fields (§9 resolution for the zero-sentinel
// collision).
func (r OffsetRecord) IsEmpty() bool {
	return r.Count == 0
}

// postingAccumulator aggregates (doc_id, word_id) incidence pairs into one
// roaring bitmap per word_id during a single streaming pass over the
// forward index — the build-time structure behind §4.E's "aggregate per
// word_id into a sorted deduplicated ascending list of doc_ids". Reused
// unchanged by the incremental rebuild (§4.I step 4), since both paths
// replay the entire forward index.
type postingAccumulator struct {
	bitmaps map[uint32]*roaring.Bitmap
}

func newPostingAccumulator() *postingAccumulator {
	return &postingAccumulator{bitmaps: make(map[uint32]*roaring.Bitmap)}
}

// Add records that docID contains wordID at least once.
func (a *postingAccumulator) Add(docID, wordID uint32) {
	bm, ok := a.bitmaps[wordID]
	if !ok {
		bm = roaring.New()
		a.bitmaps[wordID] = bm
	}
	bm.Add(docID)
}

// buildFromForwardIndex streams every record of the forward index into a
// fresh accumulator plus per-doc length statistics, per §4.E/§4.I: the
// inverted index is always rebuilt wholesale from the forward index, never
// patched incrementally.
func buildFromForwardIndex(dataDir string) (*postingAccumulator, map[uint32]uint32, uint32, error) {
	reader, err := openForwardIndexReader(dataDir)
	if err != nil {
		return nil, nil, 0, err
	}
	defer reader.Close()

	acc := newPostingAccumulator()
	lengths := make(map[uint32]uint32)
	var maxDocID uint32

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, 0, err
		}
		if rec.DocID > maxDocID {
			maxDocID = rec.DocID
		}
		lengths[rec.DocID] = uint32(len(rec.WordIDs))
		for _, wordID := range rec.WordIDs {
			acc.Add(rec.DocID, wordID)
		}
	}

	return acc, lengths, maxDocID, nil
}

// writeBarrels partitions the accumulated posting lists by word_id mod N,
// writes one barrel file per shard, and emits the dense and legacy sparse
// offset tables (§4.E). It is the single canonical builder §9's design
// notes call for, replacing any ad-hoc repair scripts.
func writeBarrels(dataDir string, acc *postingAccumulator, numBarrels uint32, logger *slog.Logger) error {
	if numBarrels == 0 {
		return fmt.Errorf("numBarrels must be positive: %w", ErrCorruptStructure)
	}

	wordIDs := make([]uint32, 0, len(acc.bitmaps))
	var maxWordID uint32
	for id := range acc.bitmaps {
		wordIDs = append(wordIDs, id)
		if id > maxWordID {
			maxWordID = id
		}
	}
	sort.Slice(wordIDs, func(i, j int) bool { return wordIDs[i] < wordIDs[j] })

	// Group word_ids by barrel, preserving ascending word_id order within
	// each barrel (§4.E: "concatenate its posting lists in ascending
	// word_id order").
	byBarrel := make(map[uint32][]uint32)
	for _, id := range wordIDs {
		b := id % numBarrels
		byBarrel[b] = append(byBarrel[b], id)
	}

	records := make(map[uint32]OffsetRecord, len(wordIDs))

	for barrelID := uint32(0); barrelID < numBarrels; barrelID++ {
		ids := byBarrel[barrelID]
		buf := make([]byte, 0, 4096)
		var offset uint64

		for _, wordID := range ids {
			bm := acc.bitmaps[wordID]
			docIDs := bm.ToArray()
			sort.Slice(docIDs, func(i, j int) bool { return docIDs[i] < docIDs[j] })

			start := len(buf)
			buf = append(buf, make([]byte, 4*len(docIDs))...)
			for i, docID := range docIDs {
				binary.LittleEndian.PutUint32(buf[start+i*4:start+i*4+4], docID)
			}

			records[wordID] = OffsetRecord{
				BarrelID: barrelID,
				Offset:   offset,
				Count:    uint32(len(docIDs)),
			}
			offset += uint64(4 * len(docIDs))
		}

		path := filepath.Join(dataDir, barrelFileName(barrelID))
		if err := writeFileAtomic(path, buf, 0o644); err != nil {
			return fmt.Errorf("writing barrel %d: %w", barrelID, err)
		}
	}

	if err := writeDenseOffsets(dataDir, records, maxWordID); err != nil {
		return err
	}
	if err := writeSparseOffsets(dataDir, records, wordIDs); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("barrels written", "barrels", numBarrels, "words", len(wordIDs), "max_word_id", maxWordID)
	}
	return nil
}

// writeDenseOffsets emits word_offsets_dense.bin: slot word_id*16 holds
// (barrel_id, offset, count); unused slots stay zeroed (§4.E, §6).
func writeDenseOffsets(dataDir string, records map[uint32]OffsetRecord, maxWordID uint32) error {
	size := (uint64(maxWordID) + 1) * offsetRecordSize
	buf := make([]byte, size)
	for wordID, rec := range records {
		slot := uint64(wordID) * offsetRecordSize
		binary.LittleEndian.PutUint32(buf[slot:slot+4], rec.BarrelID)
		binary.LittleEndian.PutUint64(buf[slot+4:slot+12], rec.Offset)
		binary.LittleEndian.PutUint32(buf[slot+12:slot+16], rec.Count)
	}
	return writeFileAtomic(filepath.Join(dataDir, denseOffsetsFileName), buf, 0o644)
}

// writeSparseOffsets emits the legacy sparse form: one 20-byte record per
// assigned word_id, in ascending word_id order, for tooling that wants to
// iterate only assigned words (§4.E, §6).
func writeSparseOffsets(dataDir string, records map[uint32]OffsetRecord, wordIDs []uint32) error {
	buf := make([]byte, sparseRecordSize*len(wordIDs))
	for i, wordID := range wordIDs {
		rec := records[wordID]
		off := i * sparseRecordSize
		binary.LittleEndian.PutUint32(buf[off:off+4], wordID)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], rec.BarrelID)
		binary.LittleEndian.PutUint64(buf[off+8:off+16], rec.Offset)
		binary.LittleEndian.PutUint32(buf[off+16:off+20], rec.Count)
	}
	return writeFileAtomic(filepath.Join(dataDir, sparseOffsetsFileName), buf, 0o644)
}

// invertedIndex is the query-time read path over barrels + dense offsets:
// mmapped, zero-allocation beyond the returned slice view (§4.E "Read
// (query time)").
type invertedIndex struct {
	dataDir    string
	numBarrels uint32
	dense      *mmapFile
	barrels    []*mmapFile // indexed by barrel_id
	logger     *slog.Logger
}

// openInvertedIndex mmaps the dense offset table and every barrel file.
func openInvertedIndex(dataDir string, numBarrels uint32, logger *slog.Logger) (*invertedIndex, error) {
	dense, err := openMmap(filepath.Join(dataDir, denseOffsetsFileName))
	if err != nil {
		return nil, err
	}

	barrels := make([]*mmapFile, numBarrels)
	for i := uint32(0); i < numBarrels; i++ {
		b, err := openMmap(filepath.Join(dataDir, barrelFileName(i)))
		if err != nil {
			dense.Close()
			for _, opened := range barrels {
				if opened != nil {
					opened.Close()
				}
			}
			return nil, err
		}
		barrels[i] = b
	}

	return &invertedIndex{dataDir: dataDir, numBarrels: numBarrels, dense: dense, barrels: barrels, logger: logger}, nil
}

func (idx *invertedIndex) Close() error {
	var firstErr error
	if err := idx.dense.Close(); err != nil {
		firstErr = err
	}
	for _, b := range idx.barrels {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// readOffset reads the 16-byte dense-offset slot for wordID.
func (idx *invertedIndex) readOffset(wordID uint32) (OffsetRecord, bool) {
	slot := uint64(wordID) * offsetRecordSize
	data := idx.dense.Bytes()
	if slot+offsetRecordSize > uint64(len(data)) {
		return OffsetRecord{}, false
	}
	rec := OffsetRecord{
		BarrelID: binary.LittleEndian.Uint32(data[slot : slot+4]),
		Offset:   binary.LittleEndian.Uint64(data[slot+4 : slot+12]),
		Count:    binary.LittleEndian.Uint32(data[slot+12 : slot+16]),
	}
	return rec, true
}

// PostingList returns the ascending, deduplicated doc_id list for wordID.
// A corrupt barrel (offset/count past the barrel's size) is logged and
// treated as a miss rather than failing the caller (§4.G failure modes,
// §7 CorruptStructure propagation policy).
func (idx *invertedIndex) PostingList(wordID uint32) []uint32 {
	rec, ok := idx.readOffset(wordID)
	if !ok || rec.IsEmpty() {
		return nil
	}
	if rec.BarrelID >= uint32(len(idx.barrels)) {
		idx.logCorrupt(wordID, rec, "barrel_id out of range")
		return nil
	}

	barrel := idx.barrels[rec.BarrelID].Bytes()
	end := rec.Offset + uint64(rec.Count)*4
	if end > uint64(len(barrel)) {
		idx.logCorrupt(wordID, rec, "offset+count*4 exceeds barrel size")
		return nil
	}

	out := make([]uint32, rec.Count)
	for i := uint32(0); i < rec.Count; i++ {
		off := rec.Offset + uint64(i)*4
		out[i] = binary.LittleEndian.Uint32(barrel[off : off+4])
	}
	return out
}

// DocFrequency returns the number of documents containing wordID, without
// materializing the posting list — used by autocomplete ranking (§4.H).
func (idx *invertedIndex) DocFrequency(wordID uint32) uint32 {
	rec, ok := idx.readOffset(wordID)
	if !ok {
		return 0
	}
	return rec.Count
}

func (idx *invertedIndex) logCorrupt(wordID uint32, rec OffsetRecord, reason string) {
	if idx.logger != nil {
		idx.logger.Warn("corrupt barrel entry skipped", "word_id", wordID,
			"barrel_id", rec.BarrelID, "offset", rec.Offset, "count", rec.Count,
			"reason", reason, "error", ErrCorruptStructure)
	}
}
