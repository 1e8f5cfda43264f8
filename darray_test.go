package infidex

import (
	"bufio"
	"bytes"
	"testing"
)

func TestDArray_Select1(t *testing.T) {
	bits := NewBitSet(20)
	ones := []uint{1, 4, 7, 15, 19}
	for _, i := range ones {
		bits.Set(i)
	}
	d := NewDArray(bits)

	for rank, want := range ones {
		pos, ok := d.Select1(rank)
		if !ok || uint(pos) != want {
			t.Errorf("Select1(%d) = (%d,%v), want (%d,true)", rank, pos, ok, want)
		}
	}
	if _, ok := d.Select1(len(ones)); ok {
		t.Error("Select1(out of range) found a position, want none")
	}
	if _, ok := d.Select1(-1); ok {
		t.Error("Select1(-1) found a position, want none")
	}
}

func TestDArray_Select0(t *testing.T) {
	bits := NewBitSet(10)
	bits.Set(2)
	bits.Set(3)
	d := NewDArray(bits)

	// clear bits, in order, are 0,1,4,5,6,7,8,9
	want := []uint{0, 1, 4, 5, 6, 7, 8, 9}
	for rank, w := range want {
		pos, ok := d.Select0(rank)
		if !ok || uint(pos) != w {
			t.Errorf("Select0(%d) = (%d,%v), want (%d,true)", rank, pos, ok, w)
		}
	}
}

func TestDArray_SerializeRoundTrip(t *testing.T) {
	bits := NewBitSet(100)
	for _, i := range []uint{0, 10, 20, 30, 99} {
		bits.Set(i)
	}
	d := NewDArray(bits)

	var buf bytes.Buffer
	if err := d.Serialize(&buf); err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	loaded, err := DeserializeDArray(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("DeserializeDArray() error = %v", err)
	}
	for rank, want := range []uint{0, 10, 20, 30, 99} {
		pos, ok := loaded.Select1(rank)
		if !ok || uint(pos) != want {
			t.Errorf("loaded.Select1(%d) = (%d,%v), want (%d,true)", rank, pos, ok, want)
		}
	}
}

func TestDArray_DenseBlockManySetBits(t *testing.T) {
	// Exercise the dense (non-sparse) sub-block-sampled path: many evenly
	// spaced set bits spread over several darrayBlockOnes-sized blocks.
	n := uint(5000)
	bits := NewBitSet(n)
	var expected []uint
	for i := uint(0); i < n; i += 2 {
		bits.Set(i)
		expected = append(expected, i)
	}
	d := NewDArray(bits)
	for rank := 0; rank < len(expected); rank += 37 {
		pos, ok := d.Select1(rank)
		if !ok || uint(pos) != expected[rank] {
			t.Fatalf("Select1(%d) = (%d,%v), want (%d,true)", rank, pos, ok, expected[rank])
		}
	}
}
