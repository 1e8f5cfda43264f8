package infidex

import (
	"container/heap"
	"fmt"
	"sort"
)

// ScoreEntry is one ranked result, ordered lexicographically by
// (Score, Tiebreaker, -DocID) with all three descending — higher score
// wins, ties go to the higher tiebreaker, remaining ties go to the lower
// DocID, guaranteeing a total, deterministic order (spec §3, §4.10, §8
// property 9).
type ScoreEntry struct {
	Score         float32
	DocID         int64
	Tiebreaker    uint8
	SegmentNumber int32
	HasSegment    bool
}

// ranksBelow reports whether a ranks strictly worse than b under
// (Score, Tiebreaker, -DocID) descending order.
func ranksBelow(a, b ScoreEntry) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Tiebreaker != b.Tiebreaker {
		return a.Tiebreaker < b.Tiebreaker
	}
	return a.DocID > b.DocID
}

type scoreEntryHeap []ScoreEntry

func (h scoreEntryHeap) Len() int            { return len(h) }
func (h scoreEntryHeap) Less(i, j int) bool  { return ranksBelow(h[i], h[j]) }
func (h scoreEntryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreEntryHeap) Push(x interface{}) { *h = append(*h, x.(ScoreEntry)) }
func (h *scoreEntryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// TopKHeap is a bounded min-heap over ScoreEntry: the root is always the
// current worst-ranked member of the retained top-K, so a new candidate
// only needs one comparison against the root to decide whether it
// displaces anything (spec §4.10).
type TopKHeap struct {
	limit int
	items scoreEntryHeap
}

// NewTopKHeap returns an empty heap bounded to limit entries. limit must
// be positive.
func NewTopKHeap(limit int) (*TopKHeap, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: topk limit must be positive, got %d", ErrInvalidArgument, limit)
	}
	h := &TopKHeap{limit: limit}
	heap.Init(&h.items)
	return h, nil
}

// Add inserts entry, evicting the current worst member if the heap is
// already at capacity and entry outranks it.
func (h *TopKHeap) Add(entry ScoreEntry) {
	if len(h.items) < h.limit {
		heap.Push(&h.items, entry)
		return
	}
	if ranksBelow(h.items[0], entry) {
		h.items[0] = entry
		heap.Fix(&h.items, 0)
	}
}

// Len reports the number of entries currently retained.
func (h *TopKHeap) Len() int { return len(h.items) }

// Full reports whether the heap holds limit entries.
func (h *TopKHeap) Full() bool { return len(h.items) >= h.limit }

// Threshold returns the score of the current worst retained entry, the
// MaxScore pruning threshold θ, or 0 while the heap has fewer than K
// entries (spec §4.6).
func (h *TopKHeap) Threshold() float32 {
	if len(h.items) < h.limit {
		return 0
	}
	return h.items[0].Score
}

// GetTopK returns the retained entries sorted best-first, without
// mutating the heap.
func (h *TopKHeap) GetTopK() []ScoreEntry {
	out := make([]ScoreEntry, len(h.items))
	copy(out, h.items)
	sort.Slice(out, func(i, j int) bool { return ranksBelow(out[j], out[i]) })
	return out
}
