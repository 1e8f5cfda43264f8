package infidex

import (
	"bufio"
	"encoding/binary"
	"io"
	"sort"
	"sync"
)

// posKey identifies a (character, position) cell of the short-query index:
// position is 0 (first character of a token) or 1 (second character),
// per spec §4.8.
type posKey struct {
	Char rune
	Pos  uint8
}

// PositionalPrefixIndex answers 1-2 character queries in O(1) map access
// plus posting-set intersection, without walking the FST or n-gram
// postings at all. It is built during indexing and frozen once (spec §3,
// §4.8): mutation and query are never concurrent.
type PositionalPrefixIndex struct {
	mu     sync.Mutex
	data   map[posKey][]int32
	frozen bool
}

// NewPositionalPrefixIndex returns an empty, unfrozen index.
func NewPositionalPrefixIndex() *PositionalPrefixIndex {
	return &PositionalPrefixIndex{data: make(map[posKey][]int32)}
}

// Record scans a document's whole-word tokens (not n-grams) and records
// (token[0], 0) and (token[1], 1), when present, against docID.
func (p *PositionalPrefixIndex) Record(docID int32, tokens []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, tok := range tokens {
		runes := []rune(tok)
		if len(runes) == 0 {
			continue
		}
		k0 := posKey{Char: runes[0], Pos: 0}
		p.data[k0] = append(p.data[k0], docID)
		if len(runes) > 1 {
			k1 := posKey{Char: runes[1], Pos: 1}
			p.data[k1] = append(p.data[k1], docID)
		}
	}
}

// Finalize sorts and deduplicates every posting set, then freezes the
// index for unsynchronized concurrent reads (spec §4.8, §5).
func (p *PositionalPrefixIndex) Finalize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, ids := range p.data {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		deduped := ids[:0]
		var prev int32 = -1
		for _, id := range ids {
			if id != prev {
				deduped = append(deduped, id)
				prev = id
			}
		}
		p.data[k] = deduped
	}
	p.frozen = true
}

// Remap rewrites every posting set through oldToNew (indexed by
// pre-compact docId, -1 meaning deleted), keeping the index in sync with
// DocumentCollection's renumbering (used by Engine.Compact). oldToNew is
// assumed order-preserving over kept ids, so each set stays sorted and
// deduplicated without redoing that work.
func (p *PositionalPrefixIndex) Remap(oldToNew []int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, ids := range p.data {
		kept := ids[:0]
		for _, id := range ids {
			if int(id) >= len(oldToNew) {
				continue
			}
			newID := oldToNew[id]
			if newID < 0 {
				continue
			}
			kept = append(kept, newID)
		}
		p.data[k] = kept
	}
}

// Lookup returns the frozen posting set for (c, position). The result
// must not be mutated.
func (p *PositionalPrefixIndex) Lookup(c rune, position uint8) []int32 {
	return p.data[posKey{Char: c, Pos: position}]
}

// Serialize writes one entry per populated (char, position) cell:
// (char:i32, position:u8, count:i32, docIds:i32[count]), sorted by
// (position, char) for determinism.
func (p *PositionalPrefixIndex) Serialize(w io.Writer) error {
	type entry struct {
		key posKey
		ids []int32
	}
	entries := make([]entry, 0, len(p.data))
	for k, ids := range p.data {
		entries = append(entries, entry{key: k, ids: ids})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key.Pos != entries[j].key.Pos {
			return entries[i].key.Pos < entries[j].key.Pos
		}
		return entries[i].key.Char < entries[j].key.Char
	})

	if err := binary.Write(w, binary.LittleEndian, int32(len(entries))); err != nil {
		return &IoError{Op: "write prefix index entry count", Err: err}
	}
	for _, e := range entries {
		if err := binary.Write(w, binary.LittleEndian, int32(e.key.Char)); err != nil {
			return &IoError{Op: "write prefix index char", Err: err}
		}
		if err := binary.Write(w, binary.LittleEndian, e.key.Pos); err != nil {
			return &IoError{Op: "write prefix index position", Err: err}
		}
		if err := binary.Write(w, binary.LittleEndian, int32(len(e.ids))); err != nil {
			return &IoError{Op: "write prefix index posting count", Err: err}
		}
		if len(e.ids) > 0 {
			if err := binary.Write(w, binary.LittleEndian, e.ids); err != nil {
				return &IoError{Op: "write prefix index postings", Err: err}
			}
		}
	}
	return nil
}

// DeserializePositionalPrefixIndex reads the format written by Serialize
// and returns an already-frozen index.
func DeserializePositionalPrefixIndex(r *bufio.Reader) (*PositionalPrefixIndex, error) {
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, &IoError{Op: "read prefix index entry count", Err: err}
	}
	if count < 0 {
		return nil, errInvalidPrefixIndex()
	}
	p := NewPositionalPrefixIndex()
	for i := int32(0); i < count; i++ {
		var char int32
		var pos uint8
		var postingCount int32
		if err := binary.Read(r, binary.LittleEndian, &char); err != nil {
			return nil, &IoError{Op: "read prefix index char", Err: err}
		}
		if err := binary.Read(r, binary.LittleEndian, &pos); err != nil {
			return nil, &IoError{Op: "read prefix index position", Err: err}
		}
		if err := binary.Read(r, binary.LittleEndian, &postingCount); err != nil {
			return nil, &IoError{Op: "read prefix index posting count", Err: err}
		}
		if postingCount < 0 {
			return nil, errInvalidPrefixIndex()
		}
		ids := make([]int32, postingCount)
		if postingCount > 0 {
			if err := binary.Read(r, binary.LittleEndian, ids); err != nil {
				return nil, &IoError{Op: "read prefix index postings", Err: err}
			}
		}
		p.data[posKey{Char: rune(char), Pos: pos}] = ids
	}
	p.frozen = true
	return p, nil
}

func errInvalidPrefixIndex() error {
	return &IoError{Op: "decode positional prefix index", Err: ErrInvalidIndexFormat}
}
