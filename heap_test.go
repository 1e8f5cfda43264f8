package infidex

import "testing"

// ═══════════════════════════════════════════════════════════════════════════════
// CONSTRUCTION
// ═══════════════════════════════════════════════════════════════════════════════

func TestNewTopKHeap_RejectsNonPositiveLimit(t *testing.T) {
	if _, err := NewTopKHeap(0); err == nil {
		t.Fatal("NewTopKHeap(0): want error, got nil")
	}
	if _, err := NewTopKHeap(-1); err == nil {
		t.Fatal("NewTopKHeap(-1): want error, got nil")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// BOUNDED RETENTION
// ═══════════════════════════════════════════════════════════════════════════════

func TestTopKHeap_RetainsOnlyTopK(t *testing.T) {
	h, err := NewTopKHeap(2)
	if err != nil {
		t.Fatalf("NewTopKHeap() error = %v", err)
	}
	h.Add(ScoreEntry{Score: 1, DocID: 1})
	h.Add(ScoreEntry{Score: 3, DocID: 2})
	h.Add(ScoreEntry{Score: 2, DocID: 3})

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	top := h.GetTopK()
	if top[0].DocID != 2 || top[1].DocID != 3 {
		t.Errorf("GetTopK() = %+v, want docIDs [2,3]", top)
	}
}

func TestTopKHeap_GetTopK_SortedBestFirst(t *testing.T) {
	h, err := NewTopKHeap(5)
	if err != nil {
		t.Fatalf("NewTopKHeap() error = %v", err)
	}
	for _, e := range []ScoreEntry{
		{Score: 5, DocID: 1},
		{Score: 1, DocID: 2},
		{Score: 9, DocID: 3},
		{Score: 3, DocID: 4},
	} {
		h.Add(e)
	}
	top := h.GetTopK()
	for i := 1; i < len(top); i++ {
		if top[i].Score > top[i-1].Score {
			t.Fatalf("GetTopK() not descending at index %d: %+v", i, top)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// TIEBREAK ORDERING — (Score, Tiebreaker, -DocID) ALL DESCENDING
// ═══════════════════════════════════════════════════════════════════════════════

func TestTopKHeap_TiebreaksByTiebreakerThenLowerDocID(t *testing.T) {
	h, err := NewTopKHeap(3)
	if err != nil {
		t.Fatalf("NewTopKHeap() error = %v", err)
	}
	h.Add(ScoreEntry{Score: 1, DocID: 10, Tiebreaker: 1})
	h.Add(ScoreEntry{Score: 1, DocID: 5, Tiebreaker: 1})
	h.Add(ScoreEntry{Score: 1, DocID: 20, Tiebreaker: 0})

	top := h.GetTopK()
	if top[0].DocID != 5 || top[1].DocID != 10 {
		t.Fatalf("GetTopK() = %+v, want docID 5 before 10 (same score/tiebreaker, lower docID wins)", top)
	}
	if top[2].DocID != 20 {
		t.Fatalf("GetTopK() last = %+v, want docID 20 (lower tiebreaker ranks last)", top[2])
	}
}

func TestTopKHeap_Threshold(t *testing.T) {
	h, err := NewTopKHeap(2)
	if err != nil {
		t.Fatalf("NewTopKHeap() error = %v", err)
	}
	if th := h.Threshold(); th != 0 {
		t.Errorf("Threshold() on a not-yet-full heap = %v, want 0", th)
	}
	h.Add(ScoreEntry{Score: 5, DocID: 1})
	h.Add(ScoreEntry{Score: 2, DocID: 2})
	if th := h.Threshold(); th != 2 {
		t.Errorf("Threshold() = %v, want 2 (the worst retained score)", th)
	}
}
