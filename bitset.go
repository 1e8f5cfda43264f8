package infidex

import (
	bbbitset "github.com/bits-and-blooms/bitset"
)

// BitSet is a dense bit vector. It wraps bits-and-blooms/bitset, the
// teacher's own transitive dependency (pulled in via RoaringBitmap/roaring),
// promoted here to a direct dependency backing spec §4.4's BitSet component.
type BitSet struct {
	bits *bbbitset.BitSet
	n    uint
}

// NewBitSet allocates a bit vector of n bits, all initially clear.
func NewBitSet(n uint) *BitSet {
	return &BitSet{bits: bbbitset.New(n), n: n}
}

// Len reports the number of addressable bits.
func (b *BitSet) Len() uint { return b.n }

// Set sets bit i to 1.
func (b *BitSet) Set(i uint) { b.bits.Set(i) }

// Clear sets bit i to 0.
func (b *BitSet) Clear(i uint) { b.bits.Clear(i) }

// Get reports whether bit i is set.
func (b *BitSet) Get(i uint) bool { return b.bits.Test(i) }

// PopCount returns the number of set bits.
func (b *BitSet) PopCount() uint { return b.bits.Count() }

// NextSet returns the index of the next set bit at or after i, and
// whether one was found — used by DArray to build its block index.
func (b *BitSet) NextSet(i uint) (uint, bool) {
	return b.bits.NextSet(i)
}
