package veridia

import (
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	autocompleteLimit  = 10
	lcsAcceptRatio     = 0.7
	fuzzyAcceptRatio   = 0.75
	levenshteinAccept  = 0.6
	maxLengthDelta     = 2
	semanticFallbackAt = 3
)

// Suggestion is one ranked autocomplete or correction candidate.
type Suggestion struct {
	Surface string
	Score   float64
}

// suggestEngine implements §4.H: ordered-prefix autocomplete and the
// layered spell corrector.
type suggestEngine struct {
	lexicon   *Lexicon
	inverted  *invertedIndex
	embedding *EmbeddingModel
}

// Autocomplete returns up to 10 surfaces starting with prefix, ranked by
// document frequency descending, ties broken lexicographically (§4.H).
func (s *suggestEngine) Autocomplete(prefix string) []string {
	prefix = strings.ToLower(prefix)
	surfaces := s.lexicon.PrefixScan(prefix, autocompleteLimit*4)
	if len(surfaces) == 0 {
		return nil
	}

	type scored struct {
		surface string
		df      uint32
	}
	items := make([]scored, 0, len(surfaces))
	for _, surf := range surfaces {
		wordID, err := s.lexicon.GetID(surf)
		if err != nil {
			continue
		}
		items = append(items, scored{surface: surf, df: s.inverted.DocFrequency(wordID)})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].df != items[j].df {
			return items[i].df > items[j].df
		}
		return items[i].surface < items[j].surface
	})

	if len(items) > autocompleteLimit {
		items = items[:autocompleteLimit]
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.surface
	}
	return out
}

// CorrectionResult is the output of Correct: ranked candidates plus
// whether the input was already a known surface.
type CorrectionResult struct {
	IsCorrect  bool
	Candidates []Suggestion
}

// Correct runs the layered corrector of §4.H and returns up to
// maxSuggestions ranked (surface, score) pairs, deduplicated by surface
// keeping the best score seen across layers.
func (s *suggestEngine) Correct(word string, maxSuggestions int) CorrectionResult {
	word = strings.ToLower(word)
	pool := make(map[string]float64)

	if _, err := s.lexicon.GetID(word); err == nil {
		pool[word] = 1.0
	}

	s.boundedEditScan(word, pool)
	s.fuzzyTokenSetScan(word, pool)
	s.levenshteinScan(word, pool)

	if len(pool) <= semanticFallbackAt && s.embedding != nil {
		if neighbours, ok := s.embedding.Similar(word, maxSuggestions); ok {
			for _, n := range neighbours {
				if existing, ok := pool[n.Surface]; !ok || float64(n.Score) > existing {
					pool[n.Surface] = float64(n.Score)
				}
			}
		}
	}

	candidates := make([]Suggestion, 0, len(pool))
	for surf, score := range pool {
		candidates = append(candidates, Suggestion{Surface: surf, Score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Surface < candidates[j].Surface
	})
	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}

	_, isCorrect := s.lexicon.backend.Get(word)
	return CorrectionResult{IsCorrect: isCorrect, Candidates: candidates}
}

// boundedEditScan is layer 1: iterate surfaces whose length differs by at
// most 2 from the input, score by an LCS-based similarity ratio, keep
// ratio >= 0.7 weighted by document frequency (§4.H layer 1).
func (s *suggestEngine) boundedEditScan(word string, pool map[string]float64) {
	for _, surf := range s.lexicon.All() {
		if abs(len(surf)-len(word)) > maxLengthDelta {
			continue
		}
		ratio := lcsRatio(word, surf)
		if ratio < lcsAcceptRatio {
			continue
		}
		df := 0.0
		if wordID, err := s.lexicon.GetID(surf); err == nil {
			df = float64(s.inverted.DocFrequency(wordID))
		}
		score := ratio * (1 + math.Log1p(df))
		if existing, ok := pool[surf]; !ok || score > existing {
			pool[surf] = score
		}
	}
}

// fuzzyTokenSetScan is layer 2: a library-grade fuzzy-match rank over the
// lexicon (§4.H layer 2), standing in for the distilled source's
// thefuzz.token_set_ratio call. fuzzy.RankMatch returns a subsequence-edit
// distance, or -1 when word isn't a fuzzy subsequence match of surf at
// all; only true matches are scored.
func (s *suggestEngine) fuzzyTokenSetScan(word string, pool map[string]float64) {
	for _, surf := range s.lexicon.All() {
		dist := fuzzy.RankMatch(word, surf)
		if dist < 0 {
			continue
		}
		maxLen := len(word)
		if len(surf) > maxLen {
			maxLen = len(surf)
		}
		if maxLen == 0 {
			continue
		}
		ratio := 1 - float64(dist)/float64(maxLen)
		if ratio < fuzzyAcceptRatio {
			continue
		}
		if existing, ok := pool[surf]; !ok || ratio > existing {
			pool[surf] = ratio
		}
	}
}

// levenshteinScan is layer 3 (supplemented, §4.H / §10.3): a true
// edit-distance pass over same-length-class candidates, grounded in the
// distilled corrector's "edit_distance" correction-type branch.
func (s *suggestEngine) levenshteinScan(word string, pool map[string]float64) {
	for _, surf := range s.lexicon.All() {
		if abs(len(surf)-len(word)) > maxLengthDelta {
			continue
		}
		dist := levenshtein.ComputeDistance(word, surf)
		maxLen := len(word)
		if len(surf) > maxLen {
			maxLen = len(surf)
		}
		if maxLen == 0 {
			continue
		}
		score := 1 - float64(dist)/float64(maxLen)
		if score < levenshteinAccept {
			continue
		}
		if existing, ok := pool[surf]; !ok || score > existing {
			pool[surf] = score
		}
	}
}

// lcsRatio computes a longest-common-subsequence-based similarity ratio
// in [0, 1]: 2*lcsLen / (len(a)+len(b)), the same shape as
// difflib.SequenceMatcher.ratio() used by the distilled source.
func lcsRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	lcs := lcsLength(a, b)
	return 2 * float64(lcs) / float64(len(a)+len(b))
}

func lcsLength(a, b string) int {
	n, m := len(a), len(b)
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[m]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
