package family_test

import (
	"math"
	"testing"

	"github.com/msicodec/pico/family"
)

func TestBruker1RoundTrip(t *testing.T) {
	const n = 1000
	mz := make([]float64, n)
	intensity := make([]uint32, n)
	for i := 0; i < n; i++ {
		mz[i] = 100.0 + 0.001*float64(i)
		if i%2 == 0 {
			intensity[i] = 400
		}
	}

	blob, err := family.EncodeBruker1(mz, intensity, family.DefaultLSBFactor)
	if err != nil {
		t.Fatalf("EncodeBruker1: %v", err)
	}
	if len(blob) > 2500 {
		t.Errorf("encoded blob is %d bytes, want <= 2500", len(blob))
	}

	gotMZ, gotIntensity, err := family.DecodeBruker1(blob)
	if err != nil {
		t.Fatalf("DecodeBruker1: %v", err)
	}
	if len(gotMZ) != n || len(gotIntensity) != n {
		t.Fatalf("decoded lengths = %d/%d, want %d", len(gotMZ), len(gotIntensity), n)
	}
	for i := range mz {
		if math.Abs(gotMZ[i]-mz[i]) > 1e-9 {
			t.Fatalf("mz[%d] = %v, want %v", i, gotMZ[i], mz[i])
		}
		if gotIntensity[i] != intensity[i] {
			t.Fatalf("intensity[%d] = %v, want %v", i, gotIntensity[i], intensity[i])
		}
	}
}

func TestBruker1AllZeroIntensity(t *testing.T) {
	mz := []float64{1, 2, 3, 4}
	intensity := []uint32{0, 0, 0, 0}
	blob, err := family.EncodeBruker1(mz, intensity, 0)
	if err != nil {
		t.Fatalf("EncodeBruker1: %v", err)
	}
	gotMZ, gotIntensity, err := family.DecodeBruker1(blob)
	if err != nil {
		t.Fatalf("DecodeBruker1: %v", err)
	}
	for i := range intensity {
		if gotIntensity[i] != 0 {
			t.Errorf("intensity[%d] = %v, want 0", i, gotIntensity[i])
		}
		_ = gotMZ
	}
}

func TestBruker1LengthMismatch(t *testing.T) {
	if _, err := family.EncodeBruker1([]float64{1, 2}, []uint32{1}, 1); err == nil {
		t.Fatalf("expected error for mismatched mz/intensity lengths")
	}
}
