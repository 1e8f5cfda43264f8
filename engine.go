package infidex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// EngineConfig bundles every tunable an Engine needs, each with its own
// DefaultXxx constructor (spec §1, teacher's AnalyzerConfig/BM25Parameters
// shape generalized across the whole pipeline).
type EngineConfig struct {
	Tokenizer     TokenizerConfig
	Bm25          Bm25Config
	Fusion        FusionConfig
	TierFloors    TierFloors
	StopTermLimit int32
	Workers       int
	Normalizer    Normalizer
}

// DefaultEngineConfig wires every component's own defaults together, with
// no normalizer beyond the engine's always-on case-folding and a stop-term
// ceiling generous enough for small/medium corpora.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Tokenizer:     DefaultTokenizerConfig(),
		Bm25:          DefaultBm25Config(),
		Fusion:        DefaultFusionConfig(),
		TierFloors:    DefaultTierFloors(),
		StopTermLimit: 1 << 20,
		Workers:       runtime.GOMAXPROCS(0),
		Normalizer:    IdentityNormalizer,
	}
}

// IndexableDocument is the caller-facing input to Engine.Index: a key that
// may repeat across segments, an explicit segment number the caller
// controls, and the raw text to tokenize (spec §3).
type IndexableDocument struct {
	Key           int64
	SegmentNumber int32
	Text          string
	ClientInfo    string
}

// SearchResult is the public surface's search() return shape (spec §6).
type SearchResult struct {
	Records         []ScoreEntry
	TotalCandidates uint64
}

// Statistics is the public surface's get_statistics() return shape.
type Statistics struct {
	DocumentCount  int64
	VocabularySize int
}

// Engine is the top-level, caller-owned value wiring every component named
// in spec §4 into the operations of spec §6. There is no package-level
// mutable state (design note §9): every Engine is independent.
type Engine struct {
	cfg EngineConfig

	mu sync.RWMutex // serializes Index/Compact/Load against each other and against rebuildDerived

	tokenizer   *Tokenizer
	documents   *DocumentCollection
	terms       *TermCollection
	prefixIndex *PositionalPrefixIndex
	forwardFst  *FstIndex
	reverseFst  *FstIndex
	scorer      *Bm25Scorer

	docLengths   []int32
	avgDocLength float64
}

// NewEngine validates cfg and returns a ready, empty Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	tok, err := NewTokenizer(cfg.Tokenizer)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = IdentityNormalizer
	}
	return &Engine{
		cfg:         cfg,
		tokenizer:   tok,
		documents:   NewDocumentCollection(),
		terms:       NewTermCollection(),
		prefixIndex: NewPositionalPrefixIndex(),
		scorer:      NewBm25Scorer(cfg.Bm25),
	}, nil
}

// normalizeWords lowercases text and applies cfg.Normalizer to each
// whitespace-delimited word, matching the always-on case-folding plus
// optional pluggable normalizer spec §1 describes.
func (e *Engine) normalizeWords(text string) string {
	folded := foldCase(text)
	words := strings.Fields(folded)
	for i, w := range words {
		words[i] = e.cfg.Normalizer(w)
	}
	return strings.Join(words, " ")
}

type localShard struct {
	docs       []Document
	docLengths []int32
	docTokens  [][]string // whole-word tokens per local doc, for the positional prefix index
	termDocs   map[string][]Posting // local docId (shard-relative) -> posting
}

// Index runs the partitioned indexing pipeline of spec §5: the input is
// split across cfg.Workers goroutines, each builds a local document list
// and a local (term -> postings) map, cancellation is polled between
// documents, then a single-threaded merge assigns dense global ids before
// postings are appended to the global TermCollection in parallel across
// distinct terms.
func (e *Engine) Index(ctx context.Context, docs []IndexableDocument) error {
	if len(docs) == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	slog.Info("indexing documents", slog.Int("count", len(docs)))

	shards := e.partitionAndTokenize(ctx, docs)
	for _, s := range shards {
		if s == nil {
			return ErrCancelled
		}
	}

	baseOffsets := make([]int32, len(shards))
	for i, s := range shards {
		baseOffsets[i] = int32(e.documents.Len())
		for j, d := range s.docs {
			stored := e.documents.Add(d)
			if int(stored.ID) >= len(e.docLengths) {
				grown := make([]int32, stored.ID+1)
				copy(grown, e.docLengths)
				e.docLengths = grown
			}
			e.docLengths[stored.ID] = s.docLengths[j]
			e.prefixIndex.Record(stored.ID, s.docTokens[j])
		}
	}

	if err := e.mergeTermsConcurrently(shards, baseOffsets); err != nil {
		return err
	}

	e.rebuildDerived()
	slog.Info("indexing complete", slog.Int64("totalDocuments", e.documents.Count()), slog.Int("vocabularySize", e.terms.Len()))
	return nil
}

// partitionAndTokenize splits docs across cfg.Workers goroutines and
// tokenizes each one locally. A nil entry in the returned slice means that
// shard observed ctx cancellation; the caller discards everything.
func (e *Engine) partitionAndTokenize(ctx context.Context, docs []IndexableDocument) []*localShard {
	workers := e.cfg.Workers
	if workers > len(docs) {
		workers = len(docs)
	}
	chunk := (len(docs) + workers - 1) / workers

	shards := make([]*localShard, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(docs) {
			end = len(docs)
		}
		if start >= end {
			shards[w] = &localShard{termDocs: make(map[string][]Posting)}
			continue
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			shards[w] = e.tokenizeShard(ctx, docs[start:end])
		}(w, start, end)
	}
	wg.Wait()
	return shards
}

func (e *Engine) tokenizeShard(ctx context.Context, docs []IndexableDocument) *localShard {
	shard := &localShard{termDocs: make(map[string][]Posting)}
	for _, in := range docs {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		normalized := e.normalizeWords(in.Text)
		shingles := e.tokenizer.Tokenize(normalized, in.SegmentNumber > 0)

		localID := int32(len(shard.docs))
		shard.docs = append(shard.docs, Document{
			DocumentKey:       in.Key,
			SegmentNumber:     in.SegmentNumber,
			IndexedText:       normalized,
			ClientInformation: in.ClientInfo,
		})

		var length int32
		for _, sh := range shingles {
			w := ClampWeight(sh.Occurrences)
			shard.termDocs[sh.Text] = append(shard.termDocs[sh.Text], Posting{DocID: localID, Weight: w})
			length += int32(sh.Occurrences)
		}
		shard.docLengths = append(shard.docLengths, length)
		shard.docTokens = append(shard.docTokens, strings.Fields(normalized))
	}
	return shard
}

// mergeTermsConcurrently distributes the distinct term-text set across
// cfg.Workers goroutines; each goroutine owns a disjoint set of terms, so
// the per-term append lock is skipped (forFastInsert) without a race,
// while shards are walked in input order per term to preserve the
// posting-list monotonicity invariant (spec §8 property 1).
func (e *Engine) mergeTermsConcurrently(shards []*localShard, baseOffsets []int32) error {
	textSet := make(map[string]struct{})
	for _, s := range shards {
		for text := range s.termDocs {
			textSet[text] = struct{}{}
		}
	}
	texts := make([]string, 0, len(textSet))
	for t := range textSet {
		texts = append(texts, t)
	}

	workers := e.cfg.Workers
	if workers > len(texts) {
		workers = len(texts)
	}
	if workers == 0 {
		return nil
	}
	chunk := (len(texts) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(texts) {
			end = len(texts)
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(bucket []string) {
			defer wg.Done()
			for _, text := range bucket {
				for i, s := range shards {
					postings, ok := s.termDocs[text]
					if !ok {
						continue
					}
					for _, p := range postings {
						term, _, becameStop := e.terms.GetOrCreate(text, e.cfg.StopTermLimit, true)
						if becameStop {
							continue
						}
						term.AppendPosting(p.DocID+baseOffsets[i], p.Weight)
					}
				}
			}
		}(texts[start:end])
	}
	wg.Wait()
	return nil
}

// rebuildDerived recomputes every structure derived from the current
// TermCollection/DocumentCollection snapshot: the forward and reverse
// FSTs, average document length, and the frozen PositionalPrefixIndex
// (spec §2's data flow, §5's "immutable once built" policy). Callers must
// hold e.mu.
func (e *Engine) rebuildDerived() {
	texts, outputs := e.terms.SortedTextsWithOutputs()
	fwd, err := BuildFst(texts, outputs)
	if err == nil {
		e.forwardFst = fwd
	}
	rev, err := BuildSuffixFst(texts, outputs)
	if err == nil {
		e.reverseFst = rev
	}

	e.prefixIndex.Finalize()

	var total int64
	var n int64
	for _, l := range e.docLengths {
		total += int64(l)
		n++
	}
	if n > 0 {
		e.avgDocLength = float64(total) / float64(n)
	} else {
		e.avgDocLength = 1
	}
}

// wordIDF computes BM25's idf for a whole-word query token directly from
// the TermCollection rather than through a separately materialized cache:
// TermCollection reads are already lock-free/O(1), so a cache would only
// risk staleness across repeated Index calls without saving work.
func (e *Engine) wordIDF(text string) (float64, bool) {
	t, ok := e.terms.Lookup(text)
	if !ok || t.IsStopTerm() || t.DocumentFrequency <= 0 {
		return 0, false
	}
	return idf(float64(t.DocumentFrequency), float64(e.documents.Count())), true
}

func idf(df, n float64) float64 {
	return math.Log(((n-df+0.5)/(df+0.5)) + 1)
}

// Search resolves queryText against the frozen structures and returns up
// to maxResults ranked records (spec §6, §4.7, §4.11).
func (e *Engine) Search(queryText string, maxResults int) (SearchResult, error) {
	if maxResults <= 0 {
		return SearchResult{}, fmt.Errorf("%w: search maxResults must be positive", ErrInvalidArgument)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	normalized := e.normalizeWords(queryText)
	queryTokens := strings.Fields(normalized)
	if len(queryTokens) == 0 {
		return SearchResult{}, nil
	}

	slog.Info("search", slog.String("query", queryText), slog.Int("maxResults", maxResults))

	if isShortQuery(queryTokens) {
		return e.searchShort(queryTokens, maxResults)
	}
	return e.searchTiered(queryTokens, maxResults)
}

// isShortQuery reports whether the query is shorter than what the n-gram
// index (minimum configured width 2) can represent at all: a single
// character query has no bigram/trigram of its own, so the ordinary
// FST/tiered path structurally cannot find it (spec §4.8, §8 scenario S7).
func isShortQuery(tokens []string) bool {
	if len(tokens) != 1 {
		return false
	}
	return len([]rune(tokens[0])) <= 1
}

// searchShort implements the dedicated very-short-query path: the
// PositionalPrefixIndex gives a direct positional signal, but since a
// single character cannot be represented by any width->=2 n-gram, the
// candidate set is the whole live corpus (every document is considered,
// scored 0 if it carries no positional hit) rather than an FST-resolved
// term set, matching spec §4.8's rationale and §8 scenario S7 ("single-
// letter query 'a' returns all three" for a three-document corpus).
func (e *Engine) searchShort(queryTokens []string, maxResults int) (SearchResult, error) {
	runes := []rune(queryTokens[0])
	c := runes[0]
	hits := make(map[int32]struct{})
	for _, id := range e.prefixIndex.Lookup(c, 0) {
		hits[id] = struct{}{}
	}
	for _, id := range e.prefixIndex.Lookup(c, 1) {
		hits[id] = struct{}{}
	}

	topK, err := NewTopKHeap(maxResults)
	if err != nil {
		return SearchResult{}, err
	}
	all := e.documents.All()
	for _, doc := range all {
		if doc.Deleted {
			continue
		}
		var score float32
		if _, ok := hits[doc.ID]; ok {
			score = 1
		}
		topK.Add(ScoreEntry{Score: score, DocID: int64(doc.ID), SegmentNumber: doc.SegmentNumber, HasSegment: true})
	}

	return SearchResult{Records: topK.GetTopK(), TotalCandidates: uint64(len(all))}, nil
}

// searchTiered implements the ordinary path: resolve every query token
// against the FST (exact, prefix, fuzzy edit-distance-1), run the tiered
// candidate cascade, score with BM25+/MaxScore, fuse, then add the tier
// floor last so tier precedence survives unconditionally (spec §4.6-§4.11).
func (e *Engine) searchTiered(queryTokens []string, maxResults int) (SearchResult, error) {
	resolved := e.resolveQueryTerms(queryTokens)
	if len(resolved) == 0 {
		return SearchResult{}, nil
	}

	selector := NewTieredCandidateSelector(e.prefixIndex, e.forwardFst, e.terms, e.documents, e.cfg.TierFloors)
	candReq := CandidateRequest{
		QueryTokens:   queryTokens,
		RareTermTexts: e.rareTerms(queryTokens, 2),
		AllTermTexts:  resolved,
	}
	candResult := selector.Select(candReq)

	queryTerms := make([]QueryTermStat, 0, len(resolved))
	for _, text := range resolved {
		t, ok := e.terms.Lookup(text)
		if !ok || t.IsStopTerm() {
			continue
		}
		queryTerms = append(queryTerms, QueryTermStat{Term: t, QueryOccurrences: 1})
	}
	if len(queryTerms) == 0 {
		return SearchResult{}, nil
	}

	var candidates map[int32]struct{}
	var totalCandidates uint64
	if candResult != nil {
		candidates = make(map[int32]struct{}, len(candResult.Candidates))
		for id := range candResult.Candidates {
			candidates[id] = struct{}{}
		}
		totalCandidates = uint64(candResult.Considered)
	}

	scoreReq := ScoreRequest{
		QueryTerms:        queryTerms,
		TopK:              maxResults,
		TotalDocs:         e.documents.Len(),
		DocLengths:        e.docLengths,
		AvgDocLength:      e.avgDocLength,
		Candidates:        candidates,
		Documents:         e.documents,
		TrackBestSegments: true,
	}
	scoreResult, err := e.scorer.Score(scoreReq)
	if err != nil {
		return SearchResult{}, err
	}
	if candResult == nil {
		totalCandidates = uint64(scoreResult.Considered)
	}

	fused := Fuse(e.cfg.Fusion, scoreResult.PartialScores, e.documents, queryTokens)

	topK, err := NewTopKHeap(maxResults)
	if err != nil {
		return SearchResult{}, err
	}
	for docID, score := range fused {
		if candResult != nil {
			score += candResult.Candidates[docID]
		}
		doc, ok := e.documents.Get(docID)
		if !ok || doc.Deleted {
			continue
		}
		entry := ScoreEntry{Score: score, DocID: int64(docID)}
		if best, ok := scoreResult.BestSegments[doc.BaseID()]; ok {
			entry.SegmentNumber = best
			entry.HasSegment = true
		}
		topK.Add(entry)
	}

	return SearchResult{Records: topK.GetTopK(), TotalCandidates: totalCandidates}, nil
}

// resolveQueryTerms expands every query token into the union of its exact,
// word-boundary-prefix, and edit-distance-1 vocabulary matches, deduped.
func (e *Engine) resolveQueryTerms(queryTokens []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(output int32) {
		t, ok := e.terms.ByOutput(output)
		if !ok || t.IsStopTerm() {
			return
		}
		if _, dup := seen[t.Text]; dup {
			return
		}
		seen[t.Text] = struct{}{}
		out = append(out, t.Text)
	}

	for _, qt := range queryTokens {
		if t, ok := e.terms.Lookup(qt); ok && !t.IsStopTerm() {
			if _, dup := seen[qt]; !dup {
				seen[qt] = struct{}{}
				out = append(out, qt)
			}
		}
		if e.forwardFst != nil {
			var outputs []int32
			e.forwardFst.GetByPrefix(qt, &outputs)
			for _, o := range outputs {
				add(o)
			}
			for _, o := range e.forwardFst.WithinEditDistance1(qt) {
				add(o)
			}
		}
	}
	return out
}

// rareTerms returns up to limit query token texts with the highest
// word-IDF (i.e. the rarest), used as tier-2's AND set (spec §4.7, §4.8's
// "word-IDF cache").
func (e *Engine) rareTerms(queryTokens []string, limit int) []string {
	type cand struct {
		text string
		idf  float64
	}
	var cands []cand
	for _, qt := range queryTokens {
		v, ok := e.wordIDF(qt)
		if !ok {
			continue
		}
		cands = append(cands, cand{text: qt, idf: v})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].idf > cands[j].idf })
	if len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.text
	}
	return out
}

// GetDocument returns the document with the given internal id.
func (e *Engine) GetDocument(id int32) (Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.documents.Get(id)
}

// GetAllForKey returns every segment stored under key, including tombstoned
// ones, in insertion order.
func (e *Engine) GetAllForKey(key int64) []Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.documents.GetAllForKey(key)
}

// DeleteByKey tombstones every document sharing key.
func (e *Engine) DeleteByKey(key int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.documents.DeleteByKey(key)
	slog.Info("deleted by key", slog.Int64("key", key), slog.Int("segments", n))
	return n
}

// Compact reassigns dense ids over the non-deleted documents and rebuilds
// every derived structure to match (spec §3's offline, exclusive operation).
// Every structure keyed by the old id space — posting lists, the
// positional-prefix index, docLengths — is remapped through the
// old-id -> new-id map DocumentCollection.Compact returns; leaving any of
// them in the old id space would point postings at the wrong or
// out-of-range documents once ids shift.
func (e *Engine) Compact() {
	e.mu.Lock()
	defer e.mu.Unlock()
	oldToNew := e.documents.Compact()

	newLengths := make([]int32, e.documents.Len())
	for old, length := range e.docLengths {
		if old >= len(oldToNew) {
			continue
		}
		newID := oldToNew[old]
		if newID < 0 {
			continue
		}
		newLengths[newID] = length
	}
	e.docLengths = newLengths

	for _, t := range e.terms.Ordered() {
		t.Remap(oldToNew)
	}
	e.prefixIndex.Remap(oldToNew)

	e.rebuildDerived()
	slog.Info("compacted", slog.Int64("liveDocuments", e.documents.Count()))
}

// Statistics reports the public surface's get_statistics() values.
func (e *Engine) Statistics() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Statistics{DocumentCount: e.documents.Count(), VocabularySize: e.terms.Len()}
}

// Save serializes the engine's current state as an INFDX2 container.
func (e *Engine) Save(w io.Writer, cfg PersistenceConfig) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx := &PersistedIndex{
		Documents:   e.documents.All(),
		ForwardFst:  e.forwardFst,
		ReverseFst:  e.reverseFst,
		PrefixIndex: e.prefixIndex,
	}
	for _, t := range e.terms.Ordered() {
		if t.IsStopTerm() {
			continue
		}
		idx.Terms = append(idx.Terms, persistedTerm{Text: t.Text, DF: t.DocumentFrequency, Postings: t.Postings()})
	}
	if cfg.IncludeDocumentMetadataCache {
		for _, d := range idx.Documents {
			fields := strings.Fields(d.IndexedText)
			var first string
			if len(fields) > 0 {
				first = fields[0]
			}
			idx.DocMeta = append(idx.DocMeta, docMetaEntry{FirstToken: first, TokenCount: uint16(len(fields))})
		}
	}

	slog.Info("saving index", slog.Int("documents", len(idx.Documents)), slog.Int("terms", len(idx.Terms)))
	return SaveIndex(w, idx, cfg)
}

// Load rebuilds an Engine from an INFDX2 container written by Save.
func Load(r io.Reader, cfg EngineConfig) (*Engine, error) {
	idx, err := LoadIndex(r)
	if err != nil {
		return nil, err
	}
	e, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	for _, d := range idx.Documents {
		e.documents.Add(d)
	}
	for _, pt := range idx.Terms {
		term, _, _ := e.terms.GetOrCreate(pt.Text, cfg.StopTermLimit, true)
		term.DocumentFrequency = pt.DF
		for _, p := range pt.Postings {
			term.AppendPosting(p.DocID, p.Weight)
		}
	}
	if idx.ForwardFst != nil {
		e.forwardFst = idx.ForwardFst
	}
	if idx.ReverseFst != nil {
		e.reverseFst = idx.ReverseFst
	}
	if idx.PrefixIndex != nil {
		e.prefixIndex = idx.PrefixIndex
	}

	// docLengths must reproduce the indexing-time quantity (spec §8
	// property 6): the sum of shingle occurrences per document, whole
	// words plus every n-gram. DocMeta's TokenCount is whole-word-only
	// and is absent entirely when IncludeDocumentMetadataCache is off, so
	// it cannot stand in for this. Summing each document's persisted
	// posting weights reconstructs it directly, since each weight is the
	// clamp-saturated occurrence count of one shingle in that document.
	e.docLengths = make([]int32, e.documents.Len())
	for _, pt := range idx.Terms {
		for _, p := range pt.Postings {
			if int(p.DocID) < len(e.docLengths) {
				e.docLengths[p.DocID] += int32(p.Weight)
			}
		}
	}
	var total, n int64
	for _, l := range e.docLengths {
		total += int64(l)
		n++
	}
	if n > 0 {
		e.avgDocLength = float64(total) / float64(n)
	} else {
		e.avgDocLength = 1
	}

	slog.Info("loaded index", slog.Int("documents", e.documents.Len()), slog.Int("terms", e.terms.Len()))
	return e, nil
}

// SaveToPath is a convenience wrapper around Save for callers that want a
// plain file path rather than an io.Writer (spec §6's save(path)).
func (e *Engine) SaveToPath(path string, cfg PersistenceConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return &IoError{Op: "open index file for save", Err: err}
	}
	defer f.Close()
	return e.Save(f, cfg)
}

// LoadFromPath is a convenience wrapper around Load for callers that want a
// plain file path (spec §6's load(path, config)).
func LoadFromPath(path string, cfg EngineConfig) (*Engine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IoError{Op: "open index file for load", Err: err}
	}
	defer f.Close()
	return Load(f, cfg)
}
