package bitmath_test

import (
	"bytes"
	"testing"

	"github.com/icza/bitio"
	"github.com/msicodec/pico/internal/bitmath"
)

func TestUnaryRoundTrip(t *testing.T) {
	for want := 0; want < 300; want++ {
		buf := new(bytes.Buffer)
		bw := bitio.NewWriter(buf)
		if err := bitmath.WriteUnary(bw, want); err != nil {
			t.Fatalf("WriteUnary(%d): %v", want, err)
		}
		if err := bw.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		br := bitio.NewReader(buf)
		got, err := bitmath.ReadUnary(br, want+1)
		if err != nil {
			t.Fatalf("ReadUnary after WriteUnary(%d): %v", want, err)
		}
		if got != want {
			t.Fatalf("ReadUnary/WriteUnary mismatch: want %d, got %d", want, got)
		}
	}
}

func TestReadUnaryOverflow(t *testing.T) {
	buf := new(bytes.Buffer)
	bw := bitio.NewWriter(buf)
	if err := bitmath.WriteUnary(bw, 10); err != nil {
		t.Fatal(err)
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
	br := bitio.NewReader(buf)
	if _, err := bitmath.ReadUnary(br, 5); err == nil {
		t.Fatalf("expected error when stop bit falls outside the allowed range")
	}
}
