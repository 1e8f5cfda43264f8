package infidex

import (
	"sort"
	"sync"
)

// TermCollection owns the term dictionary: a concurrent-read lookup by
// text plus an index-ordered list whose position equals the term's future
// FST output id, per spec §3/§4.5. Reads go through a sync.Map (lock-free
// in the common case); only term creation takes the writer lock, mirroring the teacher's mutex-guarded
// InvertedIndex generalized to the collection's own narrower contract.
type TermCollection struct {
	mu      sync.RWMutex
	byText  sync.Map // string -> *Term
	ordered []*Term
}

// NewTermCollection returns an empty collection.
func NewTermCollection() *TermCollection {
	return &TermCollection{}
}

// Lookup returns the term for text without creating it.
func (tc *TermCollection) Lookup(text string) (*Term, bool) {
	v, ok := tc.byText.Load(text)
	if !ok {
		return nil, false
	}
	return v.(*Term), true
}

// GetOrCreate returns the term for text, creating it on first sight.
// Creation appends to the ordered list under the writer lock so that the
// term's position in Ordered() equals the index it will receive as an FST
// output. The returned becameStop flag fires the one time this call
// pushes the term's documentFrequency past stopTermLimit (spec §4.5, §7);
// forFastInsert skips the per-term lock when the caller already holds
// external exclusivity over this term (bulk partition-merge path).
func (tc *TermCollection) GetOrCreate(text string, stopTermLimit int32, forFastInsert bool) (term *Term, isNew bool, becameStop bool) {
	if v, ok := tc.byText.Load(text); ok {
		t := v.(*Term)
		return t, false, tc.bumpDocFrequency(t, stopTermLimit, forFastInsert)
	}

	tc.mu.Lock()
	if v, ok := tc.byText.Load(text); ok {
		tc.mu.Unlock()
		t := v.(*Term)
		return t, false, tc.bumpDocFrequency(t, stopTermLimit, forFastInsert)
	}
	t := &Term{Text: text}
	tc.ordered = append(tc.ordered, t)
	tc.byText.Store(text, t)
	tc.mu.Unlock()

	return t, true, tc.bumpDocFrequency(t, stopTermLimit, forFastInsert)
}

func (tc *TermCollection) bumpDocFrequency(t *Term, stopTermLimit int32, forFastInsert bool) bool {
	if !forFastInsert {
		t.mu.Lock()
		defer t.mu.Unlock()
	}
	if t.DocumentFrequency == stopTermMarker {
		return false
	}
	t.DocumentFrequency++
	if t.DocumentFrequency > stopTermLimit {
		t.DocumentFrequency = stopTermMarker
		t.postings = nil
		return true
	}
	return false
}

// Ordered returns the index-ordered term list; index i is term i's FST
// output id. The returned slice must not be mutated by the caller.
func (tc *TermCollection) Ordered() []*Term {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.ordered
}

// Len reports the number of distinct terms ever created (including stop
// terms, which keep their slot so output ids stay stable).
func (tc *TermCollection) Len() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return len(tc.ordered)
}

// SortedTextsWithOutputs returns the term texts sorted lexicographically
// together with their matching FST output (insertion index), the shape
// BuildFst and BuildSuffixFst require. Stop terms are included: they
// still occupy a vocabulary slot even though their postings are empty.
func (tc *TermCollection) SortedTextsWithOutputs() ([]string, []int32) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	type pair struct {
		text   string
		output int32
	}
	pairs := make([]pair, len(tc.ordered))
	for i, t := range tc.ordered {
		pairs[i] = pair{text: t.Text, output: int32(i)}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].text < pairs[j].text })

	texts := make([]string, len(pairs))
	outputs := make([]int32, len(pairs))
	for i, p := range pairs {
		texts[i] = p.text
		outputs[i] = p.output
	}
	return texts, outputs
}

// ByOutput returns the term at the given FST output index.
func (tc *TermCollection) ByOutput(output int32) (*Term, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if output < 0 || int(output) >= len(tc.ordered) {
		return nil, false
	}
	return tc.ordered[output], true
}
