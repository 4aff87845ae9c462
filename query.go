package veridia

import (
	"log/slog"
	"math"
	"sort"
)

// Hit is one ranked search result, enriched with metadata (§4.G step 6).
type Hit struct {
	DocID   uint32
	Score   float64
	Title   string
	Authors string
}

// SearchOptions controls a single search call.
type SearchOptions struct {
	// UseSemantic enables embedding-based term expansion (§4.G step 2).
	UseSemantic bool

	// UseScoringHook enables the optional BM25-style re-weighting pass
	// over the already-fetched candidate set, applied before sorting
	// (§4.G "Scoring hook").
	UseScoringHook bool
}

// queryEngine implements §4.G's tokenize → expand → fetch → score → rank
// algorithm over a fixed snapshot of the inverted index, lexicon,
// embedding model, metadata table, and document statistics.
type queryEngine struct {
	cfg       Config
	tokenizer *Tokenizer
	lexicon   *Lexicon
	inverted  *invertedIndex
	embedding *EmbeddingModel // nil if unavailable
	metadata  *metadataTable
	stats     *docStats
	logger    *slog.Logger
}

// Search runs the ranking algorithm in §4.G and returns up to
// cfg.MaxResults hits, enriched with metadata.
func (q *queryEngine) Search(query string, opts SearchOptions) []Hit {
	tokens := q.tokenizer.Tokenize(query)
	if len(tokens) == 0 {
		// Empty query → empty result (§4.G failure modes). Note: an
		// all-stop-word query already loses every token inside
		// Tokenize, which is indistinguishable from "truly empty" at
		// this layer — both degrade to no results, matching the
		// fallback described in §4.G step 1 (stop-words are already
		// gone by construction, so there is nothing left to "retain").
		return nil
	}

	useSemantic := opts.UseSemantic && q.embedding != nil

	docScores := make(map[uint32]float64)
	conceptSets := make(map[string]map[uint32]struct{})

	for _, w := range tokens {
		terms := []weightedTerm{{term: w, weight: 1.0}}
		if useSemantic {
			if neighbours, ok := q.embedding.Similar(w, q.cfg.KExpand); ok {
				for _, n := range neighbours {
					terms = append(terms, weightedTerm{term: n.Surface, weight: q.cfg.ExpansionWeight})
				}
			}
		}

		concept := make(map[uint32]struct{})
		for _, t := range terms {
			wordID, err := q.lexicon.GetID(t.term)
			if err != nil {
				continue // NotInLexicon: contributes no postings, not an error
			}
			postings := q.inverted.PostingList(wordID)
			for _, docID := range postings {
				docScores[docID] += t.weight
				concept[docID] = struct{}{}
			}
		}
		conceptSets[w] = concept
	}

	strictAND := intersectConceptSets(conceptSets)

	var candidates map[uint32]struct{}
	boosted := false
	if len(strictAND) > 0 {
		candidates = strictAND
		boosted = true
	} else {
		candidates = unionAllDocs(docScores)
	}

	if boosted {
		for docID := range candidates {
			docScores[docID] *= q.cfg.StrictANDBoost
		}
	}

	if opts.UseScoringHook {
		q.applyScoringHook(candidates, docScores, tokens)
	}

	ranked := make([]Hit, 0, len(candidates))
	for docID := range candidates {
		ranked = append(ranked, Hit{DocID: docID, Score: docScores[docID]})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].DocID < ranked[j].DocID
	})
	if len(ranked) > q.cfg.MaxResults {
		ranked = ranked[:q.cfg.MaxResults]
	}

	for i := range ranked {
		if meta, err := q.metadata.Get(ranked[i].DocID); err == nil {
			ranked[i].Title = truncateForDisplay(meta.Title, q.cfg.TitleDisplayCap)
			ranked[i].Authors = meta.Authors
		}
	}

	return ranked
}

type weightedTerm struct {
	term   string
	weight float64
}

// intersectConceptSets computes the strict-AND candidate set: documents
// present in every non-empty concept_set[w] (§4.G step 3). An empty
// conceptSets map (shouldn't happen given at least one token) yields no
// candidates.
func intersectConceptSets(conceptSets map[string]map[uint32]struct{}) map[uint32]struct{} {
	var nonEmpty []map[uint32]struct{}
	for _, set := range conceptSets {
		if len(set) > 0 {
			nonEmpty = append(nonEmpty, set)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}

	// Intersect starting from the smallest set for efficiency.
	sort.Slice(nonEmpty, func(i, j int) bool { return len(nonEmpty[i]) < len(nonEmpty[j]) })

	result := make(map[uint32]struct{}, len(nonEmpty[0]))
	for docID := range nonEmpty[0] {
		result[docID] = struct{}{}
	}
	for _, set := range nonEmpty[1:] {
		for docID := range result {
			if _, ok := set[docID]; !ok {
				delete(result, docID)
			}
		}
		if len(result) == 0 {
			break
		}
	}
	return result
}

func unionAllDocs(docScores map[uint32]float64) map[uint32]struct{} {
	out := make(map[uint32]struct{}, len(docScores))
	for docID := range docScores {
		out[docID] = struct{}{}
	}
	return out
}

// applyScoringHook multiplies each candidate's score by (1 + bm25_like),
// the optional secondary pass described in §4.G. bm25_like substitutes
// term presence (1/0) for raw term frequency since barrels retain no
// per-occurrence counts; the IDF/saturation/length-normalization shape
// itself is carried from the teacher's BM25 ranking idiom.
func (q *queryEngine) applyScoringHook(candidates map[uint32]struct{}, docScores map[uint32]float64, tokens []string) {
	const k1 = 1.5
	const b = 0.75

	avgLen := q.stats.AvgLength()
	if avgLen == 0 {
		return
	}

	idf := make(map[string]float64, len(tokens))
	for _, term := range tokens {
		wordID, err := q.lexicon.GetID(term)
		if err != nil {
			idf[term] = 0
			continue
		}
		df := float64(q.inverted.DocFrequency(wordID))
		idf[term] = math.Log((float64(totalDocsForIDF(q))-df+0.5)/(df+0.5) + 1)
	}

	for docID := range candidates {
		docLen := float64(q.stats.Length(docID))
		if docLen == 0 {
			continue
		}
		var bonus float64
		for _, term := range tokens {
			wordID, err := q.lexicon.GetID(term)
			if err != nil {
				continue
			}
			present := false
			for _, id := range q.inverted.PostingList(wordID) {
				if id == docID {
					present = true
					break
				}
			}
			if !present {
				continue
			}
			tf := 1.0
			numerator := tf * (k1 + 1)
			denominator := tf + k1*(1-b+b*(docLen/avgLen))
			bonus += idf[term] * (numerator / denominator)
		}
		docScores[docID] *= 1 + bonus
	}
}

// totalDocsForIDF returns the corpus size used as IDF's document count.
// Derived from the length of the per-doc stats slice, which is sized to
// the highest doc_id seen at the last build/rebuild.
func totalDocsForIDF(q *queryEngine) int {
	return len(q.stats.lengths)
}

func truncateForDisplay(title string, cap int) string {
	if cap <= 0 || len(title) <= cap {
		return title
	}
	return title[:cap]
}
