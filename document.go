package infidex

import (
	"sync"
	"sync/atomic"
)

// Document is the immutable payload plus mutable housekeeping spec §3
// describes: documentKey is caller-supplied and not unique across
// "segments" of one logical document (segmentNumber distinguishes them).
type Document struct {
	DocumentKey       int64
	SegmentNumber     int32
	IndexedText       string
	ClientInformation string
	ID                int32
	Deleted           bool
}

// BaseID returns the internal id of this document's segment 0, per the
// invariant id - segmentNumber = base id of the logical document.
func (d Document) BaseID() int32 { return d.ID - d.SegmentNumber }

// DocumentCollection owns the dense document vector and a documentKey ->
// internal-id index, mirroring the teacher's InvertedIndex.DocStats
// storage generalized to the multi-segment, mutable-tombstone shape of
// spec §3/§4.5. All mutation holds a single writer lock; count is a
// lock-free atomic read, per spec §5's shared-resource policy.
type DocumentCollection struct {
	mu       sync.RWMutex
	docs     []Document
	byKey    map[int64][]int32
	liveCnt  atomic.Int64
}

// NewDocumentCollection returns an empty collection.
func NewDocumentCollection() *DocumentCollection {
	return &DocumentCollection{byKey: make(map[int64][]int32)}
}

// Add assigns the next dense internal id and appends doc, returning the
// stored copy with its ID populated.
func (dc *DocumentCollection) Add(doc Document) Document {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	doc.ID = int32(len(dc.docs))
	dc.docs = append(dc.docs, doc)
	dc.byKey[doc.DocumentKey] = append(dc.byKey[doc.DocumentKey], doc.ID)
	if !doc.Deleted {
		dc.liveCnt.Add(1)
	}
	return doc
}

// Get returns the document with the given internal id.
func (dc *DocumentCollection) Get(id int32) (Document, bool) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	if id < 0 || int(id) >= len(dc.docs) {
		return Document{}, false
	}
	return dc.docs[id], true
}

// GetByKey returns the first non-deleted document with the given key.
func (dc *DocumentCollection) GetByKey(key int64) (Document, bool) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	for _, id := range dc.byKey[key] {
		d := dc.docs[id]
		if !d.Deleted {
			return d, true
		}
	}
	return Document{}, false
}

// GetAllForKey returns every document (including tombstoned ones) sharing
// the given key, in insertion order.
func (dc *DocumentCollection) GetAllForKey(key int64) []Document {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	ids := dc.byKey[key]
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, dc.docs[id])
	}
	return out
}

// GetSegment returns the document with the given key and segment number.
func (dc *DocumentCollection) GetSegment(key int64, segmentNumber int32) (Document, bool) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	for _, id := range dc.byKey[key] {
		d := dc.docs[id]
		if d.SegmentNumber == segmentNumber {
			return d, true
		}
	}
	return Document{}, false
}

// DeleteByKey tombstones every document sharing key and returns how many
// were newly tombstoned.
func (dc *DocumentCollection) DeleteByKey(key int64) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	n := 0
	for _, id := range dc.byKey[key] {
		if !dc.docs[id].Deleted {
			dc.docs[id].Deleted = true
			dc.liveCnt.Add(-1)
			n++
		}
	}
	return n
}

// Compact reassigns ids densely over the non-deleted documents, preserving
// relative order, and rebuilds the key index. It is an exclusive, offline
// operation per spec §3/§1 Non-goals (no live queries concurrent with it).
//
// It returns oldToNew, indexed by pre-compact id: oldToNew[old] is the
// post-compact id, or -1 if that document was deleted and dropped. Every
// other id-keyed structure derived from the old id space (posting lists,
// the positional-prefix index, docLengths) must be remapped through it —
// Compact only renumbers the documents themselves. Because kept documents
// retain their relative order, oldToNew is non-decreasing over kept ids,
// so remapping a sorted id list through it never requires a re-sort.
func (dc *DocumentCollection) Compact() []int32 {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	oldToNew := make([]int32, len(dc.docs))
	kept := make([]Document, 0, len(dc.docs))
	for _, d := range dc.docs {
		if d.Deleted {
			oldToNew[d.ID] = -1
			continue
		}
		oldID := d.ID
		d.ID = int32(len(kept))
		oldToNew[oldID] = d.ID
		kept = append(kept, d)
	}
	dc.docs = kept

	byKey := make(map[int64][]int32, len(dc.byKey))
	for _, d := range dc.docs {
		byKey[d.DocumentKey] = append(byKey[d.DocumentKey], d.ID)
	}
	dc.byKey = byKey
	dc.liveCnt.Store(int64(len(kept)))
	return oldToNew
}

// Count reports the number of non-deleted documents, without locking.
func (dc *DocumentCollection) Count() int64 { return dc.liveCnt.Load() }

// Len reports the total number of stored document slots (including
// tombstoned ones), used by callers that must walk the raw vector.
func (dc *DocumentCollection) Len() int {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return len(dc.docs)
}

// All returns a snapshot copy of every stored document, deleted or not.
func (dc *DocumentCollection) All() []Document {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	out := make([]Document, len(dc.docs))
	copy(out, dc.docs)
	return out
}
