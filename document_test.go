package infidex

import "testing"

// ═══════════════════════════════════════════════════════════════════════════════
// DOCUMENT COLLECTION
// ═══════════════════════════════════════════════════════════════════════════════

func TestDocumentCollection_Add_AssignsDenseIds(t *testing.T) {
	dc := NewDocumentCollection()
	a := dc.Add(Document{DocumentKey: 1, IndexedText: "a"})
	b := dc.Add(Document{DocumentKey: 2, IndexedText: "b"})
	if a.ID != 0 || b.ID != 1 {
		t.Errorf("assigned ids = (%d,%d), want (0,1)", a.ID, b.ID)
	}
	if dc.Count() != 2 {
		t.Errorf("Count() = %d, want 2", dc.Count())
	}
}

func TestDocumentCollection_GetByKey_SkipsDeleted(t *testing.T) {
	dc := NewDocumentCollection()
	dc.Add(Document{DocumentKey: 1, SegmentNumber: 0, IndexedText: "a", Deleted: true})
	dc.Add(Document{DocumentKey: 1, SegmentNumber: 1, IndexedText: "b"})

	doc, ok := dc.GetByKey(1)
	if !ok || doc.SegmentNumber != 1 {
		t.Errorf("GetByKey(1) = %+v, ok=%v; want segment 1", doc, ok)
	}
}

func TestDocumentCollection_GetSegment(t *testing.T) {
	dc := NewDocumentCollection()
	dc.Add(Document{DocumentKey: 1, SegmentNumber: 0, IndexedText: "a"})
	dc.Add(Document{DocumentKey: 1, SegmentNumber: 1, IndexedText: "b"})

	doc, ok := dc.GetSegment(1, 1)
	if !ok || doc.IndexedText != "b" {
		t.Errorf("GetSegment(1,1) = %+v, ok=%v; want text \"b\"", doc, ok)
	}
	if _, ok := dc.GetSegment(1, 5); ok {
		t.Error("GetSegment(1,5) found, want not found")
	}
}

func TestDocumentCollection_DeleteByKey(t *testing.T) {
	dc := NewDocumentCollection()
	dc.Add(Document{DocumentKey: 1, IndexedText: "a"})
	dc.Add(Document{DocumentKey: 1, SegmentNumber: 1, IndexedText: "b"})
	dc.Add(Document{DocumentKey: 2, IndexedText: "c"})

	n := dc.DeleteByKey(1)
	if n != 2 {
		t.Fatalf("DeleteByKey(1) = %d, want 2", n)
	}
	if dc.Count() != 1 {
		t.Errorf("Count() after delete = %d, want 1", dc.Count())
	}
	if n := dc.DeleteByKey(1); n != 0 {
		t.Errorf("DeleteByKey(1) again = %d, want 0 (already tombstoned)", n)
	}
}

func TestDocumentCollection_Compact_ReassignsDenseIdsOverLive(t *testing.T) {
	dc := NewDocumentCollection()
	dc.Add(Document{DocumentKey: 1, IndexedText: "a"})
	dc.Add(Document{DocumentKey: 2, IndexedText: "b"})
	dc.Add(Document{DocumentKey: 3, IndexedText: "c"})
	dc.DeleteByKey(2)

	oldToNew := dc.Compact()

	if dc.Len() != 2 {
		t.Fatalf("Len() after compact = %d, want 2", dc.Len())
	}
	doc, ok := dc.Get(1)
	if !ok || doc.DocumentKey != 3 {
		t.Errorf("Get(1) after compact = %+v, ok=%v; want key 3", doc, ok)
	}
	if len(oldToNew) != 3 || oldToNew[0] != 0 || oldToNew[1] != -1 || oldToNew[2] != 1 {
		t.Errorf("oldToNew = %v, want [0 -1 1]", oldToNew)
	}
}

func TestDocument_BaseID(t *testing.T) {
	d := Document{ID: 7, SegmentNumber: 3}
	if d.BaseID() != 4 {
		t.Errorf("BaseID() = %d, want 4", d.BaseID())
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// TERM COLLECTION
// ═══════════════════════════════════════════════════════════════════════════════

func TestTermCollection_GetOrCreate_ReusesExistingTerm(t *testing.T) {
	tc := NewTermCollection()
	a, isNew, _ := tc.GetOrCreate("fox", 1000, false)
	if !isNew {
		t.Fatal("first GetOrCreate(\"fox\"): isNew = false, want true")
	}
	b, isNew, _ := tc.GetOrCreate("fox", 1000, false)
	if isNew {
		t.Fatal("second GetOrCreate(\"fox\"): isNew = true, want false")
	}
	if a != b {
		t.Error("GetOrCreate(\"fox\") twice returned different *Term values")
	}
}

func TestTermCollection_GetOrCreate_DemotesPastStopLimit(t *testing.T) {
	tc := NewTermCollection()
	var becameStop bool
	for i := 0; i < 5; i++ {
		if _, _, stop := tc.GetOrCreate("the", 3, false); stop {
			becameStop = true
		}
	}
	if !becameStop {
		t.Fatal("term was not demoted to a stop term after exceeding the limit")
	}
	term, _ := tc.Lookup("the")
	if !term.IsStopTerm() {
		t.Error("term.IsStopTerm() = false, want true after demotion")
	}
}

func TestTermCollection_SortedTextsWithOutputs(t *testing.T) {
	tc := NewTermCollection()
	tc.GetOrCreate("zebra", 1000, false)
	tc.GetOrCreate("apple", 1000, false)
	tc.GetOrCreate("mango", 1000, false)

	texts, _ := tc.SortedTextsWithOutputs()
	for i := 1; i < len(texts); i++ {
		if texts[i] < texts[i-1] {
			t.Fatalf("SortedTextsWithOutputs() not sorted: %v", texts)
		}
	}
}

func TestTermCollection_ByOutput_MatchesInsertionOrder(t *testing.T) {
	tc := NewTermCollection()
	tc.GetOrCreate("first", 1000, false)
	tc.GetOrCreate("second", 1000, false)

	term, ok := tc.ByOutput(1)
	if !ok || term.Text != "second" {
		t.Errorf("ByOutput(1) = %+v, ok=%v; want \"second\"", term, ok)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// TERM POSTINGS
// ═══════════════════════════════════════════════════════════════════════════════

func TestTerm_AppendPosting_NoOpOnceStopTerm(t *testing.T) {
	term := &Term{Text: "the", DocumentFrequency: stopTermMarker}
	term.AppendPosting(0, 1)
	if len(term.Postings()) != 0 {
		t.Error("AppendPosting on a stop term added a posting, want no-op")
	}
}

func TestTerm_HasDoc_BinarySearch(t *testing.T) {
	term := &Term{Text: "fox"}
	term.AppendPosting(1, 5)
	term.AppendPosting(4, 9)
	term.AppendPosting(10, 1)

	w, ok := term.HasDoc(4)
	if !ok || w != 9 {
		t.Errorf("HasDoc(4) = (%d,%v), want (9,true)", w, ok)
	}
	if _, ok := term.HasDoc(7); ok {
		t.Error("HasDoc(7) found, want not found")
	}
}

func TestTerm_Enumerator_ArrayBacking(t *testing.T) {
	term := &Term{Text: "fox"}
	term.AppendPosting(1, 5)
	term.AppendPosting(4, 9)

	enum := term.Enumerator()
	var got []int32
	for d := enum.NextDoc(); d != noMoreDocs; d = enum.NextDoc() {
		got = append(got, d)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 4 {
		t.Errorf("Enumerator() walked %v, want [1 4]", got)
	}
}
