package infidex

import (
	"math"
	"sync"
)

// Posting is a (docId, weight) pair recording that a term occurs in a
// document with a clamp-saturated field-weighted frequency (spec §3).
type Posting struct {
	DocID  int32
	Weight uint8
}

// TermSegmentSource is the non-owning handle a segment-backed Term carries
// back to the SegmentReader that owns its postings, per the arena+handle
// shape design note §9 prescribes for the cyclic Term<->SegmentReader
// reference: the reader is the owning arena, the term only holds a
// pointer plus its offset within it.
type TermSegmentSource struct {
	Reader     *SegmentReader
	BaseOffset int32
}

// stopTermMarker is the documentFrequency sentinel meaning "stop term":
// df is permanently -1 and the posting list is empty (spec §3, §7).
const stopTermMarker = int32(-1)

// Term is one vocabulary entry. Its postings live in exactly one of three
// places: the in-memory slice, a persisted segment, or a fuzzy-union
// roaring bitmap (spec §3) — never more than one at a time.
type Term struct {
	mu sync.Mutex

	Text              string
	DocumentFrequency int32

	postings []Posting

	SegmentSource *TermSegmentSource
	BitmapSource  *RoaringBitmap
}

// IsStopTerm reports whether the term has been demoted past stopTermLimit.
func (t *Term) IsStopTerm() bool { return t.DocumentFrequency == stopTermMarker }

// Postings returns a read-only view of the in-memory posting list. Callers
// must not mutate the returned slice.
func (t *Term) Postings() []Posting {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.postings
}

// AppendPosting appends (docId, weight) to the in-memory posting list.
// Callers are responsible for calling this in non-decreasing docId order
// per term (spec §5's per-term append-lock serialization); append is a
// no-op once the term has become a stop term.
func (t *Term) AppendPosting(docID int32, weight uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.DocumentFrequency == stopTermMarker {
		return
	}
	t.postings = append(t.postings, Posting{DocID: docID, Weight: weight})
}

// Remap rewrites the in-memory posting list through oldToNew (indexed by
// pre-compact docId, -1 meaning the document was deleted), dropping
// postings for deleted documents and renumbering the rest. oldToNew is
// assumed order-preserving over kept ids (as DocumentCollection.Compact's
// is), so the result stays sorted ascending with no re-sort needed.
// DocumentFrequency is recomputed from the surviving posting count so
// BM25's idf calculation (spec §4.6) doesn't drift from stale postings.
func (t *Term) Remap(oldToNew []int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.DocumentFrequency == stopTermMarker {
		return
	}
	kept := t.postings[:0]
	for _, p := range t.postings {
		if int(p.DocID) >= len(oldToNew) {
			continue
		}
		newID := oldToNew[p.DocID]
		if newID < 0 {
			continue
		}
		kept = append(kept, Posting{DocID: newID, Weight: p.Weight})
	}
	t.postings = kept
	t.DocumentFrequency = int32(len(kept))
}

// ClampWeight saturates a raw term-frequency count to the uint8 weight
// range the posting format stores, per design note §9.
func ClampWeight(tf int) uint8 {
	if tf > 255 {
		return 255
	}
	if tf < 0 {
		return 0
	}
	return uint8(tf)
}

// noMoreDocs is the PostingsEnum sentinel meaning iteration is exhausted,
// per design note §9.
const noMoreDocs = int32(math.MaxInt32)

// PostingsEnum is the tagged-variant iterator over a term's postings: it
// is backed by exactly one of an in-memory slice, a roaring bitmap, or a
// segment-reader cursor, and exposes the same nextDoc/advance/docId/freq
// surface regardless of backing (design note §9).
type PostingsEnum struct {
	docID int32
	freq  uint8

	kind     postingsKind
	arr      []Posting
	arrPos   int
	iter     roaringIntIterator
	segCur   segmentPostingsCursor
}

type postingsKind int

const (
	postingsArray postingsKind = iota
	postingsBitmap
	postingsSegment
)

// roaringIntIterator is the subset of roaring.IntIterable this file needs,
// kept narrow so term.go does not import the roaring package directly.
type roaringIntIterator interface {
	HasNext() bool
	Next() uint32
}

// segmentPostingsCursor is implemented in segment.go.
type segmentPostingsCursor interface {
	HasNext() bool
	Next() (docID int32, weight uint8)
}

// NewArrayPostingsEnum wraps an in-memory posting slice.
func NewArrayPostingsEnum(postings []Posting) *PostingsEnum {
	return &PostingsEnum{kind: postingsArray, arr: postings, arrPos: -1, docID: -1}
}

// NewBitmapPostingsEnum wraps a roaring bitmap whose members all carry an
// implicit weight of 1 (a fuzzy-union term has no per-doc frequency).
func NewBitmapPostingsEnum(bm *RoaringBitmap) *PostingsEnum {
	return &PostingsEnum{kind: postingsBitmap, iter: bm.Iterator(), docID: -1}
}

// NewSegmentPostingsEnum wraps a segment-backed posting cursor.
func NewSegmentPostingsEnum(cur segmentPostingsCursor) *PostingsEnum {
	return &PostingsEnum{kind: postingsSegment, segCur: cur, docID: -1}
}

// DocID returns the current document id, or noMoreDocs once exhausted.
func (p *PostingsEnum) DocID() int32 { return p.docID }

// Freq returns the current document's weight.
func (p *PostingsEnum) Freq() uint8 { return p.freq }

// NextDoc advances to the next document, returning noMoreDocs at the end.
func (p *PostingsEnum) NextDoc() int32 {
	switch p.kind {
	case postingsArray:
		p.arrPos++
		if p.arrPos >= len(p.arr) {
			p.docID = noMoreDocs
			return noMoreDocs
		}
		p.docID = p.arr[p.arrPos].DocID
		p.freq = p.arr[p.arrPos].Weight
	case postingsBitmap:
		if !p.iter.HasNext() {
			p.docID = noMoreDocs
			return noMoreDocs
		}
		p.docID = int32(p.iter.Next())
		p.freq = 1
	case postingsSegment:
		if !p.segCur.HasNext() {
			p.docID = noMoreDocs
			return noMoreDocs
		}
		p.docID, p.freq = p.segCur.Next()
	}
	return p.docID
}

// Advance moves forward to the first document id >= target, via a linear
// scan for bitmap/segment sources (whose cursors do not expose random
// seeking) and a binary search for the in-memory array.
func (p *PostingsEnum) Advance(target int32) int32 {
	if p.kind == postingsArray {
		lo, hi := p.arrPos+1, len(p.arr)
		for lo < hi {
			mid := (lo + hi) / 2
			if p.arr[mid].DocID < target {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		p.arrPos = lo
		if p.arrPos >= len(p.arr) {
			p.docID = noMoreDocs
			return noMoreDocs
		}
		p.docID = p.arr[p.arrPos].DocID
		p.freq = p.arr[p.arrPos].Weight
		return p.docID
	}
	for {
		if p.NextDoc() == noMoreDocs || p.docID >= target {
			return p.docID
		}
	}
}

// Cost is a cheap upper bound on remaining iteration work, per design note
// §9's PostingsEnum.cost().
func (p *PostingsEnum) Cost() int {
	switch p.kind {
	case postingsArray:
		return len(p.arr)
	default:
		return math.MaxInt32
	}
}

// Enumerator returns the right PostingsEnum variant for however this
// term's postings are currently backed (spec §3, design note §9).
func (t *Term) Enumerator() *PostingsEnum {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.BitmapSource != nil:
		return NewBitmapPostingsEnum(t.BitmapSource)
	case t.SegmentSource != nil:
		return NewSegmentPostingsEnum(t.SegmentSource.Reader.PostingsCursor(t.Text, t.SegmentSource.BaseOffset))
	default:
		return NewArrayPostingsEnum(t.postings)
	}
}

// ApproxCount is a cheap cardinality estimate used to decide, in the
// MaxScore sweep, whether to iterate this term's postings or the
// candidate set (spec §4.6).
func (t *Term) ApproxCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.BitmapSource != nil:
		return int(t.BitmapSource.Cardinality())
	case t.SegmentSource != nil:
		return math.MaxInt32
	default:
		return len(t.postings)
	}
}

// HasDoc reports whether docID appears in this term's postings, returning
// its weight. The in-memory array path binary-searches; bitmap and
// segment paths fall back to a membership/linear scan (spec §4.6's
// "binary-search the postings" path assumes the array backing, the common
// case once a term is part of the live in-memory collection).
func (t *Term) HasDoc(docID int32) (uint8, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.BitmapSource != nil:
		if t.BitmapSource.Contains(uint32(docID)) {
			return 1, true
		}
		return 0, false
	case t.SegmentSource != nil:
		cur := t.SegmentSource.Reader.PostingsCursor(t.Text, t.SegmentSource.BaseOffset)
		for cur.HasNext() {
			id, w := cur.Next()
			if id == docID {
				return w, true
			}
			if id > docID {
				break
			}
		}
		return 0, false
	default:
		lo, hi := 0, len(t.postings)
		for lo < hi {
			mid := (lo + hi) / 2
			if t.postings[mid].DocID < docID {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo < len(t.postings) && t.postings[lo].DocID == docID {
			return t.postings[lo].Weight, true
		}
		return 0, false
	}
}
