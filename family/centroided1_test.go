package family_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/msicodec/pico/family"
)

func TestCentroided1SmallTakesNoCompressionPath(t *testing.T) {
	mz := []float64{100.0, 100.5, 101.0}
	intensity := []uint32{1, 2, 3}

	mzBlob, intensBlob, warn, err := family.EncodeCentroided1(mz, intensity)
	if err != nil {
		t.Fatalf("EncodeCentroided1: %v", err)
	}
	if warn {
		t.Fatalf("unexpected reorder warning for already-sorted input")
	}

	header := binary.LittleEndian.Uint32(mzBlob[:4])
	if header&0x80000000 == 0 {
		t.Fatalf("expected no-compression flag set in header 0x%08x", header)
	}
	if header&^0x80000000 != 3 {
		t.Fatalf("header length = %d, want 3", header&^0x80000000)
	}

	gotMZ, gotIntensity, err := family.DecodeCentroided1(mzBlob, intensBlob)
	if err != nil {
		t.Fatalf("DecodeCentroided1: %v", err)
	}
	for i := range mz {
		if gotMZ[i] != mz[i] {
			t.Errorf("mz[%d] = %v, want %v", i, gotMZ[i], mz[i])
		}
		if gotIntensity[i] != intensity[i] {
			t.Errorf("intensity[%d] = %v, want %v", i, gotIntensity[i], intensity[i])
		}
	}
}

func TestCentroided1CompressedRoundTrip(t *testing.T) {
	const n = 50
	mz := make([]float64, n)
	intensity := make([]uint32, n)
	for i := 0; i < n; i++ {
		mz[i] = 200.0 + 0.5*float64(i)
		intensity[i] = uint32(100 + (i%7)*37)
	}

	mzBlob, intensBlob, _, err := family.EncodeCentroided1(mz, intensity)
	if err != nil {
		t.Fatalf("EncodeCentroided1: %v", err)
	}
	gotMZ, gotIntensity, err := family.DecodeCentroided1(mzBlob, intensBlob)
	if err != nil {
		t.Fatalf("DecodeCentroided1: %v", err)
	}
	if len(gotMZ) != n {
		t.Fatalf("decoded length = %d, want %d", len(gotMZ), n)
	}
	for i := range mz {
		if math.Abs(gotMZ[i]-mz[i]) > 1e-6*math.Max(1, math.Abs(mz[i])) {
			t.Errorf("mz[%d] = %v, want %v", i, gotMZ[i], mz[i])
		}
		if gotIntensity[i] != intensity[i] {
			t.Errorf("intensity[%d] = %v, want %v", i, gotIntensity[i], intensity[i])
		}
	}
}

func TestCentroided1ReordersMisorderedPeaks(t *testing.T) {
	mz := []float64{101.0, 100.0, 100.5}
	intensity := []uint32{3, 1, 2}
	_, _, warn, err := family.EncodeCentroided1(mz, intensity)
	if err != nil {
		t.Fatalf("EncodeCentroided1: %v", err)
	}
	if !warn {
		t.Fatalf("expected reorder warning for misordered input")
	}
}
