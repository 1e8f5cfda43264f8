package infidex

import (
	"bytes"
	"context"
	"testing"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE CONSTRUCTION TESTS
// ═══════════════════════════════════════════════════════════════════════════════

func TestNewEngine_Defaults(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if e == nil {
		t.Fatal("NewEngine() returned nil")
	}
	stats := e.Statistics()
	if stats.DocumentCount != 0 || stats.VocabularySize != 0 {
		t.Errorf("fresh engine stats = %+v, want zero", stats)
	}
}

func TestNewEngine_RejectsBadTokenizerConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Tokenizer.IndexSizes = nil
	if _, err := NewEngine(cfg); err == nil {
		t.Fatal("NewEngine() with no index sizes: want error, got nil")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// INDEX + SEARCH: SPEC §8 SCENARIO S1
// ═══════════════════════════════════════════════════════════════════════════════

func TestEngine_IndexAndSearch_S1(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	docs := []IndexableDocument{
		{Key: 1, Text: "The quick brown fox"},
		{Key: 2, Text: "jumps over the lazy dog"},
	}
	if err := e.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	result, err := e.Search("fox", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("Search(\"fox\") records = %d, want 1", len(result.Records))
	}
	if result.Records[0].DocID != 0 || result.Records[0].Score <= 0 {
		t.Errorf("Search(\"fox\") top = %+v, want docID=0 score>0", result.Records[0])
	}
}

func TestEngine_SaveLoad_RoundTripPreservesSearch(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	docs := []IndexableDocument{
		{Key: 1, Text: "The quick brown fox"},
		{Key: 2, Text: "jumps over the lazy dog"},
	}
	if err := e.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	var buf bytes.Buffer
	if err := e.Save(&buf, DefaultPersistenceConfig()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(&buf, DefaultEngineConfig())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	before, err := e.Search("fox", 10)
	if err != nil {
		t.Fatalf("Search() on original error = %v", err)
	}
	after, err := loaded.Search("fox", 10)
	if err != nil {
		t.Fatalf("Search() on loaded error = %v", err)
	}
	if len(before.Records) != len(after.Records) {
		t.Fatalf("record count mismatch: before=%d after=%d", len(before.Records), len(after.Records))
	}
	for i := range before.Records {
		if before.Records[i].DocID != after.Records[i].DocID {
			t.Errorf("record[%d] docID mismatch: before=%d after=%d", i, before.Records[i].DocID, after.Records[i].DocID)
		}
		// Spec §8 property 6: a save/load round trip must reproduce the
		// identical ranked list element-for-element, including scores —
		// docLengths (and so avgDocLength and every BM25+ term) must
		// survive the round trip, not just doc ids.
		if before.Records[i].Score != after.Records[i].Score {
			t.Errorf("record[%d] score mismatch: before=%v after=%v", i, before.Records[i].Score, after.Records[i].Score)
		}
	}
}

func TestEngine_SaveLoad_RoundTrip_WithoutDocMetaCachePreservesScores(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	docs := []IndexableDocument{
		{Key: 1, Text: "The quick brown fox"},
		{Key: 2, Text: "jumps over the lazy dog"},
		{Key: 3, Text: "the fox and the dog"},
	}
	if err := e.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	before, err := e.Search("fox", 10)
	if err != nil {
		t.Fatalf("Search() on original error = %v", err)
	}

	// IncludeDocumentMetadataCache left false: DocMeta is omitted
	// entirely, so docLengths cannot come from it on load.
	var buf bytes.Buffer
	if err := e.Save(&buf, PersistenceConfig{IncludeFst: true, IncludeShortQueryIndex: true}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(&buf, DefaultEngineConfig())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	after, err := loaded.Search("fox", 10)
	if err != nil {
		t.Fatalf("Search() on loaded error = %v", err)
	}
	if len(before.Records) != len(after.Records) {
		t.Fatalf("record count mismatch: before=%d after=%d", len(before.Records), len(after.Records))
	}
	for i := range before.Records {
		if before.Records[i].Score != after.Records[i].Score {
			t.Errorf("record[%d] score mismatch without doc-meta cache: before=%v after=%v", i, before.Records[i].Score, after.Records[i].Score)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// SPEC §8 SCENARIO S2: PREFIX / FUZZY / TRAILING PARTIAL TOKEN
// ═══════════════════════════════════════════════════════════════════════════════

func movieCorpus() []IndexableDocument {
	return []IndexableDocument{
		{Key: 1, Text: "The Shawshank Redemption"},
		{Key: 2, Text: "The Godfather"},
		{Key: 3, Text: "The Dark Knight"},
		{Key: 4, Text: "Pulp Fiction"},
		{Key: 5, Text: "Forrest Gump"},
	}
}

func TestEngine_Search_ExactTitleToken(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if err := e.Index(context.Background(), movieCorpus()); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	result, err := e.Search("shawshank", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Records) == 0 {
		t.Fatal("Search(\"shawshank\") returned no records")
	}
	top, ok := e.GetDocument(int32(result.Records[0].DocID))
	if !ok || top.IndexedText != "the shawshank redemption" {
		t.Errorf("Search(\"shawshank\") top doc = %+v, want \"the shawshank redemption\"", top)
	}
}

func TestEngine_Search_FuzzyMisspelling(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if err := e.Index(context.Background(), movieCorpus()); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	result, err := e.Search("shaaawshank", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Records) == 0 {
		t.Fatal("Search(\"shaaawshank\") returned no records")
	}
	top, ok := e.GetDocument(int32(result.Records[0].DocID))
	if !ok || top.IndexedText != "the shawshank redemption" {
		t.Errorf("Search(\"shaaawshank\") top doc = %+v, want \"the shawshank redemption\"", top)
	}
}

func TestEngine_Search_TrailingPartialToken(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if err := e.Index(context.Background(), movieCorpus()); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	result, err := e.Search("redemption sh", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Records) < 1 {
		t.Fatal("Search(\"redemption sh\") returned no records")
	}
	top, ok := e.GetDocument(int32(result.Records[0].DocID))
	if !ok || top.IndexedText != "the shawshank redemption" {
		t.Errorf("Search(\"redemption sh\") top doc = %+v, want \"the shawshank redemption\"", top)
	}
	if len(result.Records) > 1 && result.Records[0].Score <= result.Records[1].Score {
		t.Errorf("top score %v not strictly greater than runner-up %v", result.Records[0].Score, result.Records[1].Score)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// SPEC §8 SCENARIO S3: DOCUMENT-START TIER PRECEDENCE
// ═══════════════════════════════════════════════════════════════════════════════

func TestEngine_Search_DocStartTierPrecedesOthers(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	docs := []IndexableDocument{
		{Key: 1, Text: "Star Wars"},
		{Key: 2, Text: "Star Trek"},
		{Key: 3, Text: "A Star Is Born"},
	}
	if err := e.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	result, err := e.Search("star", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Records) < 3 {
		t.Fatalf("Search(\"star\") records = %d, want 3", len(result.Records))
	}

	seenNonStarting := false
	for _, rec := range result.Records {
		doc, ok := e.GetDocument(int32(rec.DocID))
		if !ok {
			continue
		}
		startsWithStar := len(doc.IndexedText) >= 4 && doc.IndexedText[:4] == "star"
		if !startsWithStar {
			seenNonStarting = true
			continue
		}
		if seenNonStarting {
			t.Errorf("document-start match %q ranked after a non-starting match", doc.IndexedText)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// SPEC §8 SCENARIO S7: VERY SHORT QUERIES
// ═══════════════════════════════════════════════════════════════════════════════

func TestEngine_Search_SingleLetterReturnsWholeCorpus(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	docs := []IndexableDocument{
		{Key: 1, Text: "cat"},
		{Key: 2, Text: "dog"},
		{Key: 3, Text: "ape"},
	}
	if err := e.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	result, err := e.Search("a", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Records) != 3 {
		t.Fatalf("Search(\"a\") records = %d, want 3", len(result.Records))
	}
}

func TestEngine_Search_TwoLetterQueryNonEmpty(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	docs := []IndexableDocument{
		{Key: 1, Text: "cat"},
		{Key: 2, Text: "dog"},
		{Key: 3, Text: "ape"},
	}
	if err := e.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	result, err := e.Search("va", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Records) == 0 {
		t.Fatal("Search(\"va\") returned no records, want non-empty")
	}
	top, ok := e.GetDocument(int32(result.Records[0].DocID))
	if !ok || (top.IndexedText != "ape" && top.IndexedText != "cat") {
		t.Errorf("Search(\"va\") top = %+v, want \"ape\" or \"cat\"", top)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// DELETE / COMPACT
// ═══════════════════════════════════════════════════════════════════════════════

func TestEngine_DeleteByKey_RemovesFromSearch(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	docs := []IndexableDocument{
		{Key: 1, Text: "quick brown fox"},
		{Key: 2, Text: "lazy dog"},
	}
	if err := e.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	if n := e.DeleteByKey(1); n != 1 {
		t.Fatalf("DeleteByKey(1) = %d, want 1", n)
	}

	result, err := e.Search("fox", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, rec := range result.Records {
		doc, ok := e.GetDocument(int32(rec.DocID))
		if ok && doc.DocumentKey == 1 {
			t.Errorf("deleted document %d still present in search results", rec.DocID)
		}
	}
}

func TestEngine_Compact_ReassignsDenseIds(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	docs := []IndexableDocument{
		{Key: 1, Text: "quick brown fox"},
		{Key: 2, Text: "lazy dog"},
		{Key: 3, Text: "sly cat"},
	}
	if err := e.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	// Delete the FIRST document (internal id 0) so every surviving
	// document's id shifts down by one: this is the case a coincidental
	// "deleted doc happens to keep its id" compact test would miss.
	e.DeleteByKey(1)
	e.Compact()

	stats := e.Statistics()
	if stats.DocumentCount != 2 {
		t.Fatalf("after compact, DocumentCount = %d, want 2", stats.DocumentCount)
	}

	result, err := e.Search("cat", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("Search(\"cat\") after compact = %d records, want 1", len(result.Records))
	}
	got, ok := e.GetDocument(int32(result.Records[0].DocID))
	if !ok || got.DocumentKey != 3 {
		t.Fatalf("Search(\"cat\") matched document %+v, ok=%v; want the \"sly cat\" document (key 3)", got, ok)
	}

	// The short-query path reads the positional-prefix index directly;
	// a one-character query exercises its remapped doc ids too.
	shortResult, err := e.Search("d", 10)
	if err != nil {
		t.Fatalf("Search(\"d\") error = %v", err)
	}
	foundDog := false
	for _, r := range shortResult.Records {
		d, ok := e.GetDocument(int32(r.DocID))
		if ok && d.DocumentKey == 2 {
			foundDog = true
		}
	}
	if !foundDog {
		t.Errorf("Search(\"d\") after compact didn't surface the \"lazy dog\" document among %+v", shortResult.Records)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// CANCELLATION
// ═══════════════════════════════════════════════════════════════════════════════

func TestEngine_Index_CancelledContextDiscardsPartialState(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := []IndexableDocument{
		{Key: 1, Text: "quick brown fox"},
		{Key: 2, Text: "lazy dog"},
	}
	err = e.Index(ctx, docs)
	if err == nil {
		t.Fatal("Index() with pre-cancelled context: want error, got nil")
	}

	stats := e.Statistics()
	if stats.DocumentCount != 0 {
		t.Errorf("after cancelled Index, DocumentCount = %d, want 0", stats.DocumentCount)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// MULTI-SEGMENT DOCUMENTS
// ═══════════════════════════════════════════════════════════════════════════════

func TestEngine_Index_MultipleSegmentsShareKey(t *testing.T) {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	docs := []IndexableDocument{
		{Key: 1, SegmentNumber: 0, Text: "the quick brown fox"},
		{Key: 1, SegmentNumber: 1, Text: "jumps over the lazy dog"},
	}
	if err := e.Index(context.Background(), docs); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	segs := e.GetAllForKey(1)
	if len(segs) != 2 {
		t.Fatalf("GetAllForKey(1) = %d segments, want 2", len(segs))
	}
	if segs[1].BaseID() != segs[0].ID {
		t.Errorf("segment 1 BaseID() = %d, want %d", segs[1].BaseID(), segs[0].ID)
	}
}
