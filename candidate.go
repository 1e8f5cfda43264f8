package infidex

import "strings"

// CandidateTier is one of the four disjoint precedence classes of spec
// §4.7. Lower numeric value is a higher (better) tier.
type CandidateTier int

const (
	TierDocStartPrefix CandidateTier = iota
	TierWordBoundaryPrefix
	TierRareAnd
	TierOrFallback
	tierCount
)

// TierFloors holds the additive score floor for each tier: chosen far
// apart relative to any realistic BM25+/fusion score so that no lower
// tier's best document can ever outscore a higher tier's worst one (spec
// §4.7, §4.11). Left configurable per design note §9(b).
type TierFloors [tierCount]float32

// DefaultTierFloors spaces tiers 1000 apart, comfortably above the score
// range BM25+ plus the §4.11 fusion bonuses can produce for this corpus
// scale.
func DefaultTierFloors() TierFloors {
	return TierFloors{3000, 2000, 1000, 0}
}

// CandidateRequest bundles the query-side inputs the selector needs.
type CandidateRequest struct {
	QueryTokens   []string // whole-word tokens, already lowercased
	RareTermTexts []string // up to the two highest-IDF (rarest) query term texts
	AllTermTexts  []string // every distinct query term text, for the OR fallback
}

// CandidateResult maps a candidate docId to the additive tier floor it
// earned (the highest tier it qualified for).
type CandidateResult struct {
	Candidates map[int32]float32
	Considered int
}

// TieredCandidateSelector runs the §4.7 priority cascade.
type TieredCandidateSelector struct {
	prefixIndex *PositionalPrefixIndex
	fst         *FstIndex
	terms       *TermCollection
	documents   *DocumentCollection
	floors      TierFloors
}

// NewTieredCandidateSelector wires the frozen structures a selector reads.
func NewTieredCandidateSelector(prefixIndex *PositionalPrefixIndex, fst *FstIndex, terms *TermCollection, documents *DocumentCollection, floors TierFloors) *TieredCandidateSelector {
	return &TieredCandidateSelector{prefixIndex: prefixIndex, fst: fst, terms: terms, documents: documents, floors: floors}
}

// Select runs the cascade and returns the combined candidate set with per
// tier floors, or nil if every tier came up empty — signaling the
// caller to fall back to a full posting-list scan.
func (sel *TieredCandidateSelector) Select(req CandidateRequest) *CandidateResult {
	assigned := make(map[int32]float32)
	considered := 0

	assign := func(ids map[int32]struct{}, tier CandidateTier) {
		for id := range ids {
			if _, already := assigned[id]; already {
				continue
			}
			assigned[id] = sel.floors[tier]
			considered++
		}
	}

	tier0 := sel.tier0DocStartPrefix(req.QueryTokens)
	assign(tier0, TierDocStartPrefix)

	tier1 := sel.tier1WordBoundaryPrefix(req.QueryTokens)
	assign(tier1, TierWordBoundaryPrefix)

	tier2 := sel.tier2RareAnd(req.RareTermTexts)
	assign(tier2, TierRareAnd)

	tier3 := sel.tier3OrFallback(req.AllTermTexts)
	assign(tier3, TierOrFallback)

	if len(assigned) == 0 {
		return nil
	}
	return &CandidateResult{Candidates: assigned, Considered: considered}
}

// tier0DocStartPrefix finds documents whose first token starts with the
// query's first token: the PositionalPrefixIndex gives an O(1) candidate
// set from the first two characters, then each candidate's actual first
// token is confirmed against the full query token (the index only tracks
// positions 0 and 1, per spec §4.8's "very short queries" scope).
func (sel *TieredCandidateSelector) tier0DocStartPrefix(queryTokens []string) map[int32]struct{} {
	out := make(map[int32]struct{})
	if len(queryTokens) == 0 || sel.prefixIndex == nil {
		return out
	}
	first := queryTokens[0]
	runes := []rune(first)
	if len(runes) == 0 {
		return out
	}

	var cand []int32
	if len(runes) >= 2 {
		cand = intersectSortedInt32(sel.prefixIndex.Lookup(runes[0], 0), sel.prefixIndex.Lookup(runes[1], 1))
	} else {
		cand = sel.prefixIndex.Lookup(runes[0], 0)
	}

	for _, docID := range cand {
		if sel.documents == nil {
			out[docID] = struct{}{}
			continue
		}
		doc, ok := sel.documents.Get(docID)
		if !ok || doc.Deleted {
			continue
		}
		if strings.HasPrefix(documentFirstToken(doc.IndexedText), first) {
			out[docID] = struct{}{}
		}
	}
	return out
}

// tier1WordBoundaryPrefix enumerates FST outputs whose text starts with
// any query token and unions their postings: any token in a document
// sharing one of those vocabulary entries is a word-boundary prefix
// match. Every query token is tried, not just the first, so a trailing
// partial token (spec S2's "redemption sh") also contributes.
func (sel *TieredCandidateSelector) tier1WordBoundaryPrefix(queryTokens []string) map[int32]struct{} {
	out := make(map[int32]struct{})
	if len(queryTokens) == 0 || sel.fst == nil || sel.terms == nil {
		return out
	}
	for _, qt := range queryTokens {
		var outputs []int32
		sel.fst.GetByPrefix(qt, &outputs)
		for _, o := range outputs {
			term, ok := sel.terms.ByOutput(o)
			if !ok || term.IsStopTerm() {
				continue
			}
			unionTermDocs(term, out)
		}
	}
	return out
}

// tier2RareAnd intersects the postings of the (up to two) rarest query
// terms: documents containing every rare term.
func (sel *TieredCandidateSelector) tier2RareAnd(rareTermTexts []string) map[int32]struct{} {
	var sets []map[int32]struct{}
	for _, text := range rareTermTexts {
		term, ok := sel.terms.Lookup(text)
		if !ok || term.IsStopTerm() {
			return map[int32]struct{}{}
		}
		s := make(map[int32]struct{})
		unionTermDocs(term, s)
		sets = append(sets, s)
	}
	if len(sets) == 0 {
		return map[int32]struct{}{}
	}
	result := sets[0]
	for _, s := range sets[1:] {
		result = intersectSets(result, s)
	}
	return result
}

// tier3OrFallback unions the postings of every query term through a
// RoaringBitmap.Or union (spec §3/§4.7/design note §9's fuzzy-union tier),
// rather than a plain map union: this is the widest, most populous tier,
// the one the bitmap posting-list variant exists for.
func (sel *TieredCandidateSelector) tier3OrFallback(allTermTexts []string) map[int32]struct{} {
	union := NewRoaringBitmap()
	for _, text := range allTermTexts {
		term, ok := sel.terms.Lookup(text)
		if !ok || term.IsStopTerm() {
			continue
		}
		union = union.Or(termPostingsBitmap(term))
	}
	out := make(map[int32]struct{}, int(union.Cardinality()))
	for _, id := range union.ToArray() {
		out[int32(id)] = struct{}{}
	}
	return out
}

// termPostingsBitmap collects one term's live posting ids into a
// RoaringBitmap, walking whichever PostingsEnum backing (array, segment
// cursor, or an already-materialized bitmap) the term currently holds.
func termPostingsBitmap(term *Term) *RoaringBitmap {
	if term.BitmapSource != nil {
		return term.BitmapSource
	}
	bm := NewRoaringBitmap()
	enum := term.Enumerator()
	for d := enum.NextDoc(); d != noMoreDocs; d = enum.NextDoc() {
		bm.Add(uint32(d))
	}
	return bm
}

func unionTermDocs(term *Term, into map[int32]struct{}) {
	enum := term.Enumerator()
	for d := enum.NextDoc(); d != noMoreDocs; d = enum.NextDoc() {
		into[d] = struct{}{}
	}
}

func intersectSets(a, b map[int32]struct{}) map[int32]struct{} {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	out := make(map[int32]struct{}, len(small))
	for k := range small {
		if _, ok := large[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func intersectSortedInt32(a, b []int32) []int32 {
	var out []int32
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

// documentFirstToken extracts the first whitespace-delimited token from
// indexed text, used to confirm tier-0 candidates.
func documentFirstToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
