package bitpack_test

import (
	"bytes"
	"testing"

	"github.com/msicodec/pico/internal/bitpack"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint32{
		0, 1, 127, 128, 1151, 1152, 9343, 9344, 74879, 74880,
		599167, 599168, 4793471, 4793472, 38347903, 38347904,
		306783359, 306783360, 2454267007, 2454267008,
		3000000000, 4294967295,
	}
	buf := new(bytes.Buffer)
	w := bitpack.NewWriter(buf)
	for _, v := range values {
		if err := w.WriteVarint(v); err != nil {
			t.Fatalf("WriteVarint(%d): %v", v, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := bitpack.NewReader(buf)
	for _, want := range values {
		got, err := r.ReadVarint()
		if err != nil {
			t.Fatalf("ReadVarint: %v", err)
		}
		if got != want {
			t.Fatalf("ReadVarint mismatch: want %d, got %d", want, got)
		}
	}
}

func TestVarintTerminator(t *testing.T) {
	buf := new(bytes.Buffer)
	w := bitpack.NewWriter(buf)
	if err := w.WriteVarint(5); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteTerminator(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r := bitpack.NewReader(buf)
	got, err := r.ReadVarint()
	if err != nil || got != 5 {
		t.Fatalf("first value: got %d, %v", got, err)
	}
	got, err = r.ReadVarint()
	if err != nil || got != 0 {
		t.Fatalf("terminator: got %d, %v", got, err)
	}
}

func TestVarintExhaustive(t *testing.T) {
	// A denser sweep across range boundaries catches off-by-one errors in
	// the threshold/valueBits tables.
	var values []uint32
	for _, edge := range []uint32{128, 1152, 9344, 74880} {
		for delta := -2; delta <= 2; delta++ {
			values = append(values, uint32(int64(edge)+int64(delta)))
		}
	}
	buf := new(bytes.Buffer)
	w := bitpack.NewWriter(buf)
	for _, v := range values {
		if err := w.WriteVarint(v); err != nil {
			t.Fatalf("WriteVarint(%d): %v", v, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	r := bitpack.NewReader(buf)
	for _, want := range values {
		got, err := r.ReadVarint()
		if err != nil {
			t.Fatalf("ReadVarint: %v", err)
		}
		if got != want {
			t.Fatalf("mismatch: want %d, got %d", want, got)
		}
	}
}
