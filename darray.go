package infidex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// darray block tuning, per Okanohara & Sadakane's "darray" (dense array):
// ones are grouped into blocks of blockOnes set bits; a block whose total
// bit-span is large (sparse) stores absolute positions directly for O(1)
// select, otherwise positions are sampled every subBlockOnes ones and the
// remainder found by a short linear scan bounded by subBlockOnes.
const (
	darrayBlockOnes    = 1024
	darraySubBlockOnes = 32
	darraySparseSpan   = darrayBlockOnes * darrayBlockOnes
)

// darraySide is the select support for one bit value (1s or 0s) over a
// BitSet, built in a single forward pass per spec §4.4.
type darraySide struct {
	blockFirst []int32   // position of the first one in each block
	sparse     [][]int32 // absolute positions, for blocks flagged sparse
	sub        [][]int32 // sub-block samples (relative offsets), for dense blocks
	isSparse   []bool
	total      int
}

func buildDarraySide(bits *BitSet, wantOne bool) *darraySide {
	n := bits.Len()
	var positions []int32
	for i := uint(0); i < n; i++ {
		v := bits.Get(i)
		if v == wantOne {
			positions = append(positions, int32(i))
		}
	}

	d := &darraySide{total: len(positions)}
	for start := 0; start < len(positions); start += darrayBlockOnes {
		end := start + darrayBlockOnes
		if end > len(positions) {
			end = len(positions)
		}
		block := positions[start:end]
		d.blockFirst = append(d.blockFirst, block[0])
		span := int(block[len(block)-1] - block[0])
		sparse := span >= darraySparseSpan
		d.isSparse = append(d.isSparse, sparse)
		if sparse {
			cp := make([]int32, len(block))
			copy(cp, block)
			d.sparse = append(d.sparse, cp)
			d.sub = append(d.sub, nil)
			continue
		}
		var samples []int32
		for i := 0; i < len(block); i += darraySubBlockOnes {
			samples = append(samples, block[i]-block[0])
		}
		d.sub = append(d.sub, samples)
		d.sparse = append(d.sparse, nil)
	}
	return d
}

// selectRank returns the 0-indexed position of the rank-th set bit (of the
// flavor this side was built for), using bits to resolve the bounded linear
// scan inside dense sub-blocks.
func (d *darraySide) selectRank(bits *BitSet, wantOne bool, rank int) (int, bool) {
	if rank < 0 || rank >= d.total {
		return 0, false
	}
	blockIdx := rank / darrayBlockOnes
	within := rank % darrayBlockOnes

	if d.isSparse[blockIdx] {
		return int(d.sparse[blockIdx][within]), true
	}

	samples := d.sub[blockIdx]
	sampleIdx := within / darraySubBlockOnes
	rem := within % darraySubBlockOnes
	pos := uint(d.blockFirst[blockIdx] + samples[sampleIdx])

	// Scan forward from pos (itself a set bit of the right flavor, except
	// when rem==0 in which case pos already is the answer) skipping rem
	// further matching bits.
	count := 0
	for i := pos; i < bits.Len(); i++ {
		if bits.Get(i) == wantOne {
			if count == rem {
				return int(i), true
			}
			count++
		}
	}
	return 0, false
}

// DArray provides constant-time select1/select0 over a BitSet, built in a
// single pass, per spec §4.4.
type DArray struct {
	bits  *BitSet
	ones  *darraySide
	zeros *darraySide
}

// NewDArray builds select support for both ones and zeros over bits.
func NewDArray(bits *BitSet) *DArray {
	return &DArray{
		bits:  bits,
		ones:  buildDarraySide(bits, true),
		zeros: buildDarraySide(bits, false),
	}
}

// Select1 returns the position of the i-th set bit (0-indexed).
func (d *DArray) Select1(i int) (int, bool) { return d.ones.selectRank(d.bits, true, i) }

// Select0 returns the position of the i-th clear bit (0-indexed).
func (d *DArray) Select0(i int) (int, bool) { return d.zeros.selectRank(d.bits, false, i) }

// Serialize writes the underlying bitset length and raw words; select
// support is rebuilt on load rather than persisted, since it is derived
// entirely from the bits and rebuilding is a single linear pass.
func (d *DArray) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(d.bits.Len())); err != nil {
		return &IoError{Op: "write darray bit length", Err: err}
	}
	words := (d.bits.Len() + 63) / 64
	buf := make([]uint64, words)
	for i := uint(0); i < d.bits.Len(); i++ {
		if d.bits.Get(i) {
			buf[i/64] |= 1 << (i % 64)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, buf); err != nil {
		return &IoError{Op: "write darray words", Err: err}
	}
	return nil
}

// DeserializeDArray reads the format written by Serialize and rebuilds
// select support.
func DeserializeDArray(r *bufio.Reader) (*DArray, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, &IoError{Op: "read darray bit length", Err: err}
	}
	words := (n + 63) / 64
	buf := make([]uint64, words)
	if words > 0 {
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return nil, &IoError{Op: "read darray words", Err: err}
		}
	}
	if n > 1<<32 {
		return nil, fmt.Errorf("%w: darray bit length implausibly large", ErrInvalidIndexFormat)
	}
	bits := NewBitSet(uint(n))
	for i := uint(0); i < uint(n); i++ {
		if buf[i/64]&(1<<(i%64)) != 0 {
			bits.Set(i)
		}
	}
	return NewDArray(bits), nil
}
