package infidex

import (
	"fmt"
	"math"
	"sort"
)

// Bm25Config holds the BM25+ constants, mirroring the teacher's
// BM25Parameters{K1,B} shape generalized with the BM25+ delta term (spec
// §4.6, design note §9).
type Bm25Config struct {
	K1    float64
	B     float64
	Delta float64
}

// DefaultBm25Config returns k1=1.2, b=0.75, delta=1.0 per spec §4.6.
func DefaultBm25Config() Bm25Config {
	return Bm25Config{K1: 1.2, B: 0.75, Delta: 1.0}
}

// maxTF is the ceiling BM25+'s per-doc upper bound assumes for any term,
// matching the posting weight's uint8 clamp (spec §4.6, §9).
const maxTF = 255

// QueryTermStat binds one query term to its vocabulary entry and how many
// times it occurred in the query (spec §4.6).
type QueryTermStat struct {
	Term             *Term
	QueryOccurrences int
}

// ScoreRequest bundles every input the MaxScore sweep needs.
type ScoreRequest struct {
	QueryTerms   []QueryTermStat
	TopK         int
	TotalDocs    int
	DocLengths   []int32 // docId -> sum of field-weighted TF
	AvgDocLength float64

	// Candidates restricts the sweep to a tiered candidate set; nil means
	// a full scan of every term's postings.
	Candidates map[int32]struct{}

	// Documents and TrackBestSegments together populate BestSegments in
	// the result: for every accepted update, the segment number is
	// recorded against its logical document's base id (spec §4.6).
	Documents         *DocumentCollection
	TrackBestSegments bool
}

// ScoreResult is the raw BM25+ output handed to the fusion pass.
type ScoreResult struct {
	PartialScores map[int32]float32
	BestSegments  map[int32]int32
	Considered    int
}

// Bm25Scorer runs the MaxScore WAND-style sweep over sorted postings
// described in spec §4.6.
type Bm25Scorer struct {
	cfg Bm25Config
}

// NewBm25Scorer returns a scorer using cfg.
func NewBm25Scorer(cfg Bm25Config) *Bm25Scorer {
	return &Bm25Scorer{cfg: cfg}
}

type termScoreParams struct {
	term         *Term
	idf          float64
	maxTermScore float64
}

// Score runs the sweep and returns every document's partial BM25+ score.
func (s *Bm25Scorer) Score(req ScoreRequest) (*ScoreResult, error) {
	if req.TopK <= 0 {
		return nil, fmt.Errorf("%w: score request topK must be positive", ErrInvalidArgument)
	}

	params := make([]termScoreParams, 0, len(req.QueryTerms))
	for _, qt := range req.QueryTerms {
		t := qt.Term
		if t == nil || t.DocumentFrequency <= 0 {
			continue
		}
		df := float64(t.DocumentFrequency)
		n := float64(req.TotalDocs)
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		maxTermScore := idf * ((maxTF*(s.cfg.K1+1))/(maxTF+s.cfg.K1*(1-s.cfg.B+s.cfg.B/req.AvgDocLength)) + s.cfg.Delta)
		params = append(params, termScoreParams{term: t, idf: idf, maxTermScore: maxTermScore})
	}

	sort.Slice(params, func(i, j int) bool { return params[i].maxTermScore > params[j].maxTermScore })

	suffix := make([]float64, len(params)+1)
	for i := len(params) - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1] + params[i].maxTermScore
	}

	partial := make(map[int32]float32)
	var bestSeg map[int32]int32
	if req.TrackBestSegments {
		bestSeg = make(map[int32]int32)
	}

	threshold, err := NewTopKHeap(req.TopK)
	if err != nil {
		return nil, err
	}

	process := func(i int, docID int32, tf uint8) {
		cur := float64(partial[docID])
		if threshold.Full() && cur+params[i].maxTermScore+suffix[i+1] <= float64(threshold.Threshold()) {
			return
		}
		dl := float64(0)
		if int(docID) < len(req.DocLengths) {
			dl = float64(req.DocLengths[docID])
		}
		tScore := params[i].idf * ((float64(tf)*(s.cfg.K1+1))/(float64(tf)+s.cfg.K1*(1-s.cfg.B+s.cfg.B*dl/req.AvgDocLength)) + s.cfg.Delta)
		next := cur + tScore
		partial[docID] = float32(next)
		threshold.Add(ScoreEntry{Score: float32(next), DocID: int64(docID)})

		if bestSeg != nil && req.Documents != nil {
			if doc, ok := req.Documents.Get(docID); ok {
				baseID := doc.BaseID()
				if prev, seen := bestSeg[baseID]; !seen || doc.SegmentNumber > prev {
					bestSeg[baseID] = doc.SegmentNumber
				}
			}
		}
	}

	for i, p := range params {
		count := p.term.ApproxCount()
		switch {
		case req.Candidates != nil && count < len(req.Candidates):
			enum := p.term.Enumerator()
			for d := enum.NextDoc(); d != noMoreDocs; d = enum.NextDoc() {
				if _, ok := req.Candidates[d]; !ok {
					continue
				}
				process(i, d, enum.Freq())
			}
		case req.Candidates != nil:
			for d := range req.Candidates {
				if w, ok := p.term.HasDoc(d); ok {
					process(i, d, w)
				}
			}
		default:
			enum := p.term.Enumerator()
			for d := enum.NextDoc(); d != noMoreDocs; d = enum.NextDoc() {
				process(i, d, enum.Freq())
			}
		}
	}

	return &ScoreResult{PartialScores: partial, BestSegments: bestSeg, Considered: len(partial)}, nil
}
