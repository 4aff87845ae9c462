package veridia

import (
	"encoding/binary"
	"math"
	"path/filepath"
)

const docStatsFileName = "doc_stats.bin"

// docStats holds per-document length statistics feeding the optional BM25
// scoring hook (§4.G, §3 "Document term statistics" supplement). It is
// derived once at build time from the forward index, never recomputed per
// query.
type docStats struct {
	lengths []uint32 // lengths[doc_id-1] = token count
	avgLen  float64
}

// buildDocStats derives per-doc lengths from a completed forward index
// pass. lengths maps doc_id to token count; the result is sized to
// maxDocID and entries with a doc_id of 0 or above maxDocID are ignored.
func buildDocStats(lengths map[uint32]uint32, maxDocID uint32) *docStats {
	flat := make([]uint32, maxDocID)
	var total uint64
	for docID, length := range lengths {
		if docID == 0 || docID > maxDocID {
			continue
		}
		flat[docID-1] = length
		total += uint64(length)
	}
	avg := 0.0
	if maxDocID > 0 {
		avg = float64(total) / float64(maxDocID)
	}
	return &docStats{lengths: flat, avgLen: avg}
}

// writeDocStats serializes doc_stats.bin: packed u32 lengths followed by
// an 8-byte float64 trailer holding the corpus-wide average length.
func writeDocStats(dataDir string, s *docStats) error {
	buf := make([]byte, len(s.lengths)*4+8)
	for i, l := range s.lengths {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], l)
	}
	binary.LittleEndian.PutUint64(buf[len(s.lengths)*4:], math.Float64bits(s.avgLen))
	return writeFileAtomic(filepath.Join(dataDir, docStatsFileName), buf, 0o644)
}

// loadDocStats reads doc_stats.bin. A missing file yields an empty,
// zero-average stats value so the scoring hook degrades to "no bonus"
// rather than failing the query.
func loadDocStats(dataDir string) (*docStats, error) {
	m, err := openMmap(filepath.Join(dataDir, docStatsFileName))
	if err != nil {
		return &docStats{}, nil
	}
	defer m.Close()

	data := m.Bytes()
	if len(data) < 8 {
		return &docStats{}, nil
	}

	n := (len(data) - 8) / 4
	lengths := make([]uint32, n)
	for i := 0; i < n; i++ {
		lengths[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	avg := math.Float64frombits(binary.LittleEndian.Uint64(data[len(data)-8:]))
	return &docStats{lengths: lengths, avgLen: avg}, nil
}

// Length returns docID's token count, or 0 if unknown.
func (s *docStats) Length(docID uint32) uint32 {
	if docID == 0 || int(docID) > len(s.lengths) {
		return 0
	}
	return s.lengths[docID-1]
}

// AvgLength returns the corpus-wide average document length.
func (s *docStats) AvgLength() float64 {
	return s.avgLen
}

