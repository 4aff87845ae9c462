package veridia

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// EmbeddingModel is the normalized vector matrix plus cosine-nearest
// lookup of §4.F: row-major F32[V × D], pre-normalized to unit L2.
type EmbeddingModel struct {
	dim     int
	rows    [][]float32
	surface []string          // index -> surface, parallel to rows
	byWord  map[string]int    // surface -> row index
}

// LoadEmbeddingModel loads a GloVe-style text file, or its cached binary
// form whenever that cache is present and loads cleanly; the cache's age
// is not compared with the source text's, so a cache written from an older
// text file is still used. Mirrors the distilled
// source's cache-then-mmap-restore behavior (§4.F, §10.3): first parse
// pays the cost once, every subsequent open is a fast binary read.
//
// A missing model file is not an error here; callers treat a nil model as
// ErrEmbeddingUnavailable and disable semantic expansion.
func LoadEmbeddingModel(path string) (*EmbeddingModel, error) {
	cacheVec := path + ".cache.vec"
	cacheVocab := path + ".cache.vocab"

	if model, err := loadCachedEmbedding(cacheVec, cacheVocab); err == nil {
		return model, nil
	}

	model, err := parseGloveText(path)
	if err != nil {
		return nil, fmt.Errorf("loading embedding model: %w: %v", ErrEmbeddingUnavailable, err)
	}

	// Best-effort cache write; a failure here never blocks serving the
	// model that was just parsed.
	_ = writeCachedEmbedding(cacheVec, cacheVocab, model)

	return model, nil
}

func parseGloveText(path string) (*EmbeddingModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)

	model := &EmbeddingModel{byWord: make(map[string]int)}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		word := fields[0]
		vec := make([]float32, 0, len(fields)-1)
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fmt.Errorf("parsing vector component for %q: %w", word, err)
			}
			vec = append(vec, float32(v))
		}
		if model.dim == 0 {
			model.dim = len(vec)
		} else if len(vec) != model.dim {
			continue // skip malformed rows with inconsistent dimensionality
		}

		l2NormalizeInPlace(vec)

		if _, exists := model.byWord[word]; exists {
			continue
		}
		model.byWord[word] = len(model.rows)
		model.rows = append(model.rows, vec)
		model.surface = append(model.surface, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return model, nil
}

// l2NormalizeInPlace scales vec to unit L2 norm, matching the distilled
// source's in-place normalization (§4.F, §10.3).
func l2NormalizeInPlace(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// writeCachedEmbedding dumps the normalized matrix as raw little-endian
// float32s plus a newline-delimited vocab sidecar, so a warm restart is a
// pure mmap with no parsing.
func writeCachedEmbedding(vecPath, vocabPath string, model *EmbeddingModel) error {
	buf := make([]byte, 4*model.dim*len(model.rows))
	for i, row := range model.rows {
		for j, v := range row {
			off := (i*model.dim + j) * 4
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		}
	}
	if err := writeFileAtomic(vecPath, buf, 0o644); err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d\n", model.dim)
	for _, w := range model.surface {
		sb.WriteString(w)
		sb.WriteByte('\n')
	}
	return writeFileAtomic(vocabPath, []byte(sb.String()), 0o644)
}

// loadCachedEmbedding restores a model from its binary cache via mmap.
func loadCachedEmbedding(vecPath, vocabPath string) (*EmbeddingModel, error) {
	vocabData, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(vocabData), "\n"), "\n")
	if len(lines) < 1 {
		return nil, fmt.Errorf("empty vocab cache")
	}
	dim, err := strconv.Atoi(lines[0])
	if err != nil {
		return nil, fmt.Errorf("parsing cached dimension: %w", err)
	}
	surfaces := lines[1:]

	m, err := openMmap(vecPath)
	if err != nil {
		return nil, err
	}

	data := m.Bytes()
	expected := 4 * dim * len(surfaces)
	if len(data) != expected {
		m.Close()
		return nil, fmt.Errorf("cache size mismatch: got %d bytes, want %d", len(data), expected)
	}

	model := &EmbeddingModel{
		dim:     dim,
		rows:    make([][]float32, len(surfaces)),
		surface: surfaces,
		byWord:  make(map[string]int, len(surfaces)),
	}
	for i, w := range surfaces {
		row := make([]float32, dim)
		for j := 0; j < dim; j++ {
			off := (i*dim + j) * 4
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
		}
		model.rows[i] = row
		model.byWord[w] = i
	}
	m.Close()
	return model, nil
}

// neighbour is one (surface, cosine score) result from Similar.
type neighbour struct {
	Surface string
	Score   float32
}

const minCosineSimilarity = 0.5

// Similar returns up to k nearest neighbours of word by cosine similarity,
// excluding word itself, filtered to score >= 0.5, descending by score
// (§4.F). Returns (nil, false) if word is out of vocabulary.
func (m *EmbeddingModel) Similar(word string, k int) ([]neighbour, bool) {
	idx, ok := m.byWord[strings.ToLower(word)]
	if !ok {
		return nil, false
	}
	query := m.rows[idx]

	candidates := make([]neighbour, 0, len(m.rows))
	for i, row := range m.rows {
		if i == idx {
			continue
		}
		score := dot(query, row)
		if score < minCosineSimilarity {
			continue
		}
		candidates = append(candidates, neighbour{Surface: m.surface[i], Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, true
}

func dot(a, b []float32) float32 {
	var s float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		s += a[i] * b[i]
	}
	return s
}

// embeddingModelPath returns the conventional location of the optional
// embedding file within the data directory.
func embeddingModelPath(dataDir string) string {
	return filepath.Join(dataDir, "embeddings.txt")
}
