package infidex

import "testing"

// ═══════════════════════════════════════════════════════════════════════════════
// DOC-START / ADJACENCY / COVERAGE BONUSES
// ═══════════════════════════════════════════════════════════════════════════════

func TestFuse_AppliesDocStartBoost(t *testing.T) {
	docs := NewDocumentCollection()
	docs.Add(Document{DocumentKey: 1, IndexedText: "star wars"})
	docs.Add(Document{DocumentKey: 2, IndexedText: "a star is born"})

	raw := map[int32]float32{0: 1, 1: 1}
	cfg := DefaultFusionConfig()
	fused := Fuse(cfg, raw, docs, []string{"star"})

	if fused[0] <= fused[1] {
		t.Errorf("doc-start match scored %v, non-start match scored %v; want doc-start higher", fused[0], fused[1])
	}
}

func TestFuse_AppliesAdjacencyBoost(t *testing.T) {
	docs := NewDocumentCollection()
	docs.Add(Document{DocumentKey: 1, IndexedText: "the shawshank redemption"})
	docs.Add(Document{DocumentKey: 2, IndexedText: "redemption arc shawshank"})

	raw := map[int32]float32{0: 1, 1: 1}
	cfg := DefaultFusionConfig()
	fused := Fuse(cfg, raw, docs, []string{"shawshank", "redemption"})

	if fused[0] <= fused[1] {
		t.Errorf("adjacent-token doc scored %v, non-adjacent doc scored %v; want adjacent higher", fused[0], fused[1])
	}
}

func TestFuse_CoverageScalesByMatchedFraction(t *testing.T) {
	docs := NewDocumentCollection()
	docs.Add(Document{DocumentKey: 1, IndexedText: "quick brown fox"})
	docs.Add(Document{DocumentKey: 2, IndexedText: "quick silver car"})

	raw := map[int32]float32{0: 10, 1: 10}
	cfg := DefaultFusionConfig()
	cfg.DocStartBoost = 0
	cfg.AdjacencyBoost = 0
	fused := Fuse(cfg, raw, docs, []string{"quick", "fox"})

	if fused[0] <= fused[1] {
		t.Errorf("full-coverage doc scored %v, partial-coverage doc scored %v; want full coverage higher", fused[0], fused[1])
	}
}

func TestFuse_TrailingPrefixTokenCounts(t *testing.T) {
	docs := NewDocumentCollection()
	docs.Add(Document{DocumentKey: 1, IndexedText: "the shawshank redemption"})

	raw := map[int32]float32{0: 10}
	fused := Fuse(DefaultFusionConfig(), raw, docs, []string{"redemption", "sh"})

	plain := Fuse(DefaultFusionConfig(), map[int32]float32{0: 10}, docs, []string{"redemption", "zzz"})
	if fused[0] <= plain[0] {
		t.Errorf("prefix-matching trailing token scored %v, non-matching scored %v; want prefix match higher", fused[0], plain[0])
	}
}

func TestFuse_UnknownDocumentPassesScoreThrough(t *testing.T) {
	docs := NewDocumentCollection()
	raw := map[int32]float32{99: 5}
	fused := Fuse(DefaultFusionConfig(), raw, docs, []string{"anything"})
	if fused[99] != 5 {
		t.Errorf("Fuse() for an unknown docID = %v, want the raw score 5 unchanged", fused[99])
	}
}
