package infidex

import (
	"bufio"
	"bytes"
	"testing"
)

func TestRoaringBitmap_AddContainsCardinality(t *testing.T) {
	bm := NewRoaringBitmap()
	bm.Add(1)
	bm.Add(5)
	bm.Add(100)

	if !bm.Contains(5) {
		t.Error("Contains(5) = false, want true")
	}
	if bm.Contains(6) {
		t.Error("Contains(6) = true, want false")
	}
	if bm.Cardinality() != 3 {
		t.Errorf("Cardinality() = %d, want 3", bm.Cardinality())
	}
}

func TestRoaringFromSlice_ToArray(t *testing.T) {
	bm := RoaringFromSlice([]uint32{5, 1, 3})
	got := bm.ToArray()
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Errorf("ToArray() = %v, want sorted [1 3 5]", got)
	}
}

func TestRoaringBitmap_SetOps(t *testing.T) {
	a := RoaringFromSlice([]uint32{1, 2, 3})
	b := RoaringFromSlice([]uint32{2, 3, 4})

	or := a.Or(b)
	if or.Cardinality() != 4 {
		t.Errorf("Or() cardinality = %d, want 4", or.Cardinality())
	}

	and := a.And(b)
	if and.Cardinality() != 2 || !and.Contains(2) || !and.Contains(3) {
		t.Errorf("And() = %v, want {2,3}", and.ToArray())
	}

	andNot := a.AndNot(b)
	if andNot.Cardinality() != 1 || !andNot.Contains(1) {
		t.Errorf("AndNot() = %v, want {1}", andNot.ToArray())
	}

	xor := a.Xor(b)
	if xor.Cardinality() != 2 || !xor.Contains(1) || !xor.Contains(4) {
		t.Errorf("Xor() = %v, want {1,4}", xor.ToArray())
	}
}

func TestRoaringBitmap_Clone_IsIndependent(t *testing.T) {
	a := RoaringFromSlice([]uint32{1, 2})
	clone := a.Clone()
	clone.Add(3)

	if a.Contains(3) {
		t.Error("original bitmap gained a member added to its clone")
	}
	if !clone.Contains(3) {
		t.Error("clone.Contains(3) = false after Add(3)")
	}
}

func TestRoaringBitmap_Iterator(t *testing.T) {
	bm := RoaringFromSlice([]uint32{7, 2, 9})
	it := bm.Iterator()
	var got []uint32
	for it.HasNext() {
		got = append(got, it.Next())
	}
	if len(got) != 3 || got[0] != 2 || got[1] != 7 || got[2] != 9 {
		t.Errorf("Iterator() walked %v, want sorted [2 7 9]", got)
	}
}

func TestRoaringBitmap_SerializeRoundTrip(t *testing.T) {
	bm := RoaringFromSlice([]uint32{1, 2, 3, 1000, 100000})
	var buf bytes.Buffer
	if err := bm.Serialize(&buf); err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	loaded, err := DeserializeRoaringBitmap(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("DeserializeRoaringBitmap() error = %v", err)
	}
	if loaded.Cardinality() != bm.Cardinality() {
		t.Fatalf("loaded cardinality = %d, want %d", loaded.Cardinality(), bm.Cardinality())
	}
	for _, id := range []uint32{1, 2, 3, 1000, 100000} {
		if !loaded.Contains(id) {
			t.Errorf("loaded bitmap missing member %d", id)
		}
	}
}
