package infidex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// CompactArray is a bit-packed fixed-width integer array: each value
// occupies `width` contiguous bits within a []uint64 backing store.
// Width is chosen as ceil(log2(max+1)), clamped to at least 1, giving
// constant-time random access with no per-value allocation.
//
// Grounded on the teacher's hybrid-storage philosophy in index.go (pack
// data densely, expose O(1) access) generalized from bitmaps to arbitrary
// bounded integers, matching spec §4.4 and scenario S4.
type CompactArray struct {
	data  []uint64
	width int
	count int
}

// NewCompactArray allocates a packed array of `count` zero values with the
// given bit width. width must be in [1, 64].
func NewCompactArray(count, width int) (*CompactArray, error) {
	if width < 1 || width > 64 {
		return nil, fmt.Errorf("%w: compact array width %d out of range [1,64]", ErrInvalidArgument, width)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrInvalidArgument, count)
	}
	words := (count*width + 63) / 64
	return &CompactArray{data: make([]uint64, words), width: width, count: count}, nil
}

// WidthFor returns ceil(log2(max+1)) clamped to >= 1, the minimum width
// that can represent every value in [0, max].
func WidthFor(max uint64) int {
	if max == 0 {
		return 1
	}
	w := 0
	for (uint64(1) << uint(w)) <= max {
		w++
	}
	return w
}

// NewCompactArrayFromValues builds a CompactArray sized to the tightest
// width that fits every input value, and stores them in order.
func NewCompactArrayFromValues(values []uint64) (*CompactArray, error) {
	var max uint64
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	width := WidthFor(max)
	ca, err := NewCompactArray(len(values), width)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		ca.Set(i, v)
	}
	return ca, nil
}

// Width reports the fixed bit width of every element.
func (c *CompactArray) Width() int { return c.width }

// Len reports the number of stored elements.
func (c *CompactArray) Len() int { return c.count }

// Get returns the value at index i.
func (c *CompactArray) Get(i int) uint64 {
	bitPos := i * c.width
	word := bitPos / 64
	offset := uint(bitPos % 64)

	if offset+uint(c.width) <= 64 {
		mask := uint64(1)<<uint(c.width) - 1
		if c.width == 64 {
			mask = ^uint64(0)
		}
		return (c.data[word] >> offset) & mask
	}

	// Value straddles two words.
	lowBits := 64 - offset
	mask := uint64(1)<<lowBits - 1
	low := (c.data[word] >> offset) & mask
	highBits := uint(c.width) - lowBits
	highMask := uint64(1)<<highBits - 1
	high := c.data[word+1] & highMask
	return low | (high << lowBits)
}

// Set stores v at index i. v must fit within the configured width.
func (c *CompactArray) Set(i int, v uint64) {
	bitPos := i * c.width
	word := bitPos / 64
	offset := uint(bitPos % 64)

	var mask uint64 = uint64(1)<<uint(c.width) - 1
	if c.width == 64 {
		mask = ^uint64(0)
	}
	v &= mask

	if offset+uint(c.width) <= 64 {
		c.data[word] &^= mask << offset
		c.data[word] |= v << offset
		return
	}

	lowBits := 64 - offset
	c.data[word] &^= mask << offset
	c.data[word] |= v << offset

	highBits := uint(c.width) - lowBits
	highMask := uint64(1)<<highBits - 1
	c.data[word+1] &^= highMask
	c.data[word+1] |= v >> lowBits
}

// Serialize writes (width:i32, count:i32, dataLen:i32, data:u64[dataLen])
// per spec §4.4.
func (c *CompactArray) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, int32(c.width)); err != nil {
		return &IoError{Op: "write compact array width", Err: err}
	}
	if err := binary.Write(w, binary.LittleEndian, int32(c.count)); err != nil {
		return &IoError{Op: "write compact array count", Err: err}
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(c.data))); err != nil {
		return &IoError{Op: "write compact array data length", Err: err}
	}
	if err := binary.Write(w, binary.LittleEndian, c.data); err != nil {
		return &IoError{Op: "write compact array data", Err: err}
	}
	return nil
}

// DeserializeCompactArray reads the format written by Serialize.
func DeserializeCompactArray(r *bufio.Reader) (*CompactArray, error) {
	var width, count, dataLen int32
	if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
		return nil, &IoError{Op: "read compact array width", Err: err}
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, &IoError{Op: "read compact array count", Err: err}
	}
	if err := binary.Read(r, binary.LittleEndian, &dataLen); err != nil {
		return nil, &IoError{Op: "read compact array data length", Err: err}
	}
	if width < 1 || width > 64 || count < 0 || dataLen < 0 {
		return nil, fmt.Errorf("%w: corrupt compact array header", ErrInvalidIndexFormat)
	}
	data := make([]uint64, dataLen)
	if dataLen > 0 {
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, &IoError{Op: "read compact array data", Err: err}
		}
	}
	return &CompactArray{data: data, width: int(width), count: int(count)}, nil
}
