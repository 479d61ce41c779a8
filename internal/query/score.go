package query

import (
	"strings"
	"time"

	"github.com/hpungsan/trove/internal/keywords"
)

// Ranking weights. Relevance blends lexical similarity with keyword overlap;
// the final score blends relevance with stored quality and recency decay.
const (
	textSimilarityWeight = 0.6
	keywordOverlapWeight = 0.4

	relevanceWeight = 0.5
	qualityWeight   = 0.3
	recencyWeight   = 0.2

	// tagJaccardWeight dominates similar-entry scoring; query-word overlap
	// is the tiebreaker.
	tagJaccardWeight  = 0.7
	wordJaccardWeight = 0.3

	// recencyFloor keeps old-but-relevant entries retrievable.
	recencyFloor  = 0.1
	recencyWindow = 30 * 24 * time.Hour

	// DefaultMinRelevance drops candidates that barely match the query.
	DefaultMinRelevance = 0.3
)

// relevance blends lexical similarity and keyword overlap between a query
// and an entry's searchable text, clamped to [0,1]. An empty query scores
// zero so ranking falls through to quality and recency alone.
func relevance(query, text string) float64 {
	sim := textSimilarity(query, text)
	overlap := keywordOverlap(query, text)
	return clamp01(textSimilarityWeight*sim + keywordOverlapWeight*overlap)
}

// finalScore is the ranking value: relevance, stored quality, and recency
// decay, clamped to [0,1].
func finalScore(rel, quality float64, timestamp int64, now time.Time) float64 {
	return clamp01(relevanceWeight*rel + qualityWeight*quality + recencyWeight*recencyFactor(timestamp, now))
}

// textSimilarity is a word-level longest-common-subsequence ratio between
// the lowercased query and text, in [0,1]. Lexical only, word order matters.
func textSimilarity(query, text string) float64 {
	a := strings.Fields(strings.ToLower(query))
	b := strings.Fields(strings.ToLower(text))
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// One-row LCS table; candidates are short enough that quadratic time
	// per pair is acceptable.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}

// keywordOverlap is the fraction of the query's word set present in the
// text's word set.
func keywordOverlap(query, text string) float64 {
	queryWords := keywords.Words(query)
	if len(queryWords) == 0 {
		return 0
	}
	textWords := keywords.Words(text)

	matched := 0
	for w := range queryWords {
		if textWords[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryWords))
}

// recencyFactor decays linearly from 1 at age zero to the floor at the end
// of the recency window, never below the floor.
func recencyFactor(timestamp int64, now time.Time) float64 {
	age := now.Sub(time.Unix(timestamp, 0))
	if age < 0 {
		age = 0
	}
	factor := 1 - float64(age)/float64(recencyWindow)
	if factor < recencyFloor {
		return recencyFloor
	}
	return factor
}

// similarity scores a candidate against a reference by tag-set and
// query-word-set Jaccard overlap.
func similarity(refTags, candTags, refWords, candWords map[string]bool) float64 {
	return clamp01(tagJaccardWeight*jaccard(refTags, candTags) + wordJaccardWeight*jaccard(refWords, candWords))
}

// jaccard is |a ∩ b| / |a ∪ b|; two empty sets score zero.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func setOf(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
