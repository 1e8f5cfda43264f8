package infidex

import (
	"bufio"
	"bytes"
	"testing"
)

func TestBuildEliasFano_RejectsUnsorted(t *testing.T) {
	if _, err := BuildEliasFano([]uint64{5, 3, 9}, 100); err == nil {
		t.Error("BuildEliasFano(unsorted): want error, got nil")
	}
}

func TestBuildEliasFano_RejectsValueAboveUniverse(t *testing.T) {
	if _, err := BuildEliasFano([]uint64{1, 2, 500}, 100); err == nil {
		t.Error("BuildEliasFano(value > universe): want error, got nil")
	}
}

func TestEliasFano_GetRoundTrip(t *testing.T) {
	values := []uint64{0, 3, 3, 7, 20, 21, 1000}
	ef, err := BuildEliasFano(values, 1000)
	if err != nil {
		t.Fatalf("BuildEliasFano() error = %v", err)
	}
	if ef.Len() != len(values) {
		t.Fatalf("Len() = %d, want %d", ef.Len(), len(values))
	}
	for i, want := range values {
		if got := ef.Get(i); got != want {
			t.Errorf("Get(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestEliasFano_EmptySequence(t *testing.T) {
	ef, err := BuildEliasFano(nil, 100)
	if err != nil {
		t.Fatalf("BuildEliasFano(nil) error = %v", err)
	}
	if ef.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ef.Len())
	}
}

func TestEliasFano_SerializeRoundTrip(t *testing.T) {
	values := []uint64{1, 2, 2, 50, 999}
	ef, err := BuildEliasFano(values, 1000)
	if err != nil {
		t.Fatalf("BuildEliasFano() error = %v", err)
	}

	var buf bytes.Buffer
	if err := ef.Serialize(&buf); err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	loaded, err := DeserializeEliasFano(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("DeserializeEliasFano() error = %v", err)
	}
	if loaded.Len() != len(values) {
		t.Fatalf("loaded Len() = %d, want %d", loaded.Len(), len(values))
	}
	for i, want := range values {
		if got := loaded.Get(i); got != want {
			t.Errorf("loaded.Get(%d) = %d, want %d", i, got, want)
		}
	}
}
