package infidex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// EliasFano is a succinct encoding of a monotone non-decreasing sequence of
// n integers bounded by universe U. The low floor(log2(U/n)) bits of each
// value are packed in a CompactArray; the high bits are unary-encoded in a
// BitSet of length n + 2^highBits, with a DArray giving O(1) select1. Per
// spec §4.4: get(i) = (select1(i) - i) * 2^low + low_bits[i].
type EliasFano struct {
	low      *CompactArray
	high     *BitSet
	darray   *DArray
	n        int
	u        uint64
	lowWidth int
}

// BuildEliasFano encodes a sorted (non-decreasing) sequence bounded above
// by u (every value must satisfy 0 <= v <= u).
func BuildEliasFano(values []uint64, u uint64) (*EliasFano, error) {
	n := len(values)
	if n == 0 {
		return &EliasFano{n: 0, u: u, lowWidth: 0, high: NewBitSet(1), low: mustCompact(0, 1)}, nil
	}
	for i := 1; i < n; i++ {
		if values[i] < values[i-1] {
			return nil, fmt.Errorf("%w: elias-fano input not sorted at index %d", ErrInvalidArgument, i)
		}
	}
	if values[n-1] > u {
		return nil, fmt.Errorf("%w: elias-fano value exceeds universe bound", ErrInvalidArgument)
	}

	lowWidth := 0
	if n > 0 {
		ratio := u / uint64(n)
		if ratio > 0 {
			lowWidth = WidthFor(ratio) - 1 // floor(log2(ratio))
		}
	}

	low, err := NewCompactArray(n, maxInt(lowWidth, 1))
	if err != nil {
		return nil, err
	}
	if lowWidth == 0 {
		// CompactArray requires width>=1; store zeros and treat width as 0
		// logically via lowWidth field below.
	}

	highBitsLen := (u>>uint(lowWidth))+ uint64(n)+1
	high := NewBitSet(uint(highBitsLen))

	for i, v := range values {
		if lowWidth > 0 {
			lowMask := uint64(1)<<uint(lowWidth) - 1
			low.Set(i, v&lowMask)
		}
		highPart := v >> uint(lowWidth)
		high.Set(uint(highPart) + uint(i))
	}

	return &EliasFano{
		low:      low,
		high:     high,
		darray:   NewDArray(high),
		n:        n,
		u:        u,
		lowWidth: lowWidth,
	}, nil
}

func mustCompact(count, width int) *CompactArray {
	ca, _ := NewCompactArray(count, width)
	return ca
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Len reports the number of encoded values.
func (ef *EliasFano) Len() int { return ef.n }

// Get returns the i-th value of the encoded sequence.
func (ef *EliasFano) Get(i int) uint64 {
	pos, _ := ef.darray.Select1(i)
	high := uint64(pos - i)
	if ef.lowWidth == 0 {
		return high
	}
	return (high << uint(ef.lowWidth)) | ef.low.Get(i)
}

// Serialize writes the universe, count, low width, packed low bits, and
// the high-bit BitSet (select support is rebuilt on load).
func (ef *EliasFano) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, ef.u); err != nil {
		return &IoError{Op: "write elias-fano universe", Err: err}
	}
	if err := binary.Write(w, binary.LittleEndian, int32(ef.n)); err != nil {
		return &IoError{Op: "write elias-fano count", Err: err}
	}
	if err := binary.Write(w, binary.LittleEndian, int32(ef.lowWidth)); err != nil {
		return &IoError{Op: "write elias-fano low width", Err: err}
	}
	if err := ef.low.Serialize(w); err != nil {
		return err
	}
	return ef.darray.Serialize(w)
}

// DeserializeEliasFano reads the format written by Serialize.
func DeserializeEliasFano(r *bufio.Reader) (*EliasFano, error) {
	var u uint64
	var n, lowWidth int32
	if err := binary.Read(r, binary.LittleEndian, &u); err != nil {
		return nil, &IoError{Op: "read elias-fano universe", Err: err}
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, &IoError{Op: "read elias-fano count", Err: err}
	}
	if err := binary.Read(r, binary.LittleEndian, &lowWidth); err != nil {
		return nil, &IoError{Op: "read elias-fano low width", Err: err}
	}
	low, err := DeserializeCompactArray(r)
	if err != nil {
		return nil, err
	}
	darray, err := DeserializeDArray(r)
	if err != nil {
		return nil, err
	}
	return &EliasFano{
		low:      low,
		high:     darray.bits,
		darray:   darray,
		n:        int(n),
		u:        u,
		lowWidth: int(lowWidth),
	}, nil
}
