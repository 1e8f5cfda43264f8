package infidex

import (
	"math"
	"strings"
)

// FusionConfig holds the coverage/adjacency/start-of-document tunables
// design note §9(b) leaves as configurable constants rather than fixed
// literals, since the source carried no stable names for them.
type FusionConfig struct {
	DocStartBoost  float32
	AdjacencyBoost float32
	CoverageAlpha  float32
}

// DefaultFusionConfig returns values chosen to reproduce the tier/ranking
// orderings spec §8 scenarios S2-S3 require: a document-start match or an
// adjacent bigram match should outweigh a modest BM25+ gap within the
// same tier, while coverage scales linearly with alpha=1.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{DocStartBoost: 5, AdjacencyBoost: 3, CoverageAlpha: 1}
}

// Fuse adjusts each document's raw BM25+ score with document-start,
// adjacency, and coverage bonuses (spec §4.11). The tier floor is
// deliberately NOT added here — the caller adds it last, after fusion, so
// tier ordering from §4.7 survives unconditionally.
func Fuse(cfg FusionConfig, raw map[int32]float32, documents *DocumentCollection, queryTokens []string) map[int32]float32 {
	out := make(map[int32]float32, len(raw))
	total := len(queryTokens)

	for docID, score := range raw {
		doc, ok := documents.Get(docID)
		if !ok || total == 0 {
			out[docID] = score
			continue
		}
		docTokens := strings.Fields(doc.IndexedText)
		matched := make([]bool, total)
		for i, qt := range queryTokens {
			matched[i] = containsTokenOrPrefix(docTokens, qt)
		}

		matchedCount := 0
		for _, m := range matched {
			if m {
				matchedCount++
			}
		}

		var adjacencyBoost float32
		for i := 0; i+1 < total; i++ {
			if matched[i] && matched[i+1] && adjacentTokens(docTokens, queryTokens[i], queryTokens[i+1]) {
				adjacencyBoost += cfg.AdjacencyBoost
			}
		}

		var startBoost float32
		if len(docTokens) > 0 && strings.HasPrefix(docTokens[0], queryTokens[0]) {
			startBoost = cfg.DocStartBoost
		}

		coverage := float32(math.Pow(float64(matchedCount)/float64(total), float64(cfg.CoverageAlpha)))
		out[docID] = score*coverage + adjacencyBoost + startBoost
	}
	return out
}

// containsTokenOrPrefix reports whether any document token equals qt or
// starts with it — the latter covers a trailing partial query token
// (spec S2's "redemption sh").
func containsTokenOrPrefix(docTokens []string, qt string) bool {
	for _, dt := range docTokens {
		if dt == qt || strings.HasPrefix(dt, qt) {
			return true
		}
	}
	return false
}

// adjacentTokens reports whether some consecutive pair of document tokens
// matches (a, b) — allowing b to be a prefix match, covering a partial
// trailing query token immediately following a.
func adjacentTokens(docTokens []string, a, b string) bool {
	for i := 0; i+1 < len(docTokens); i++ {
		if (docTokens[i] == a || strings.HasPrefix(docTokens[i], a)) &&
			(docTokens[i+1] == b || strings.HasPrefix(docTokens[i+1], b)) {
			return true
		}
	}
	return false
}
