package family_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/msicodec/pico/family"
	"github.com/msicodec/pico/internal/mzcodec"
)

func denseFromPeaks(n int, peaks map[int]uint32, mzAt func(int) float64) ([]float64, []uint32) {
	mz := make([]float64, n)
	intensity := make([]uint32, n)
	for i := 0; i < n; i++ {
		mz[i] = mzAt(i)
	}
	for pos, v := range peaks {
		intensity[pos] = v
	}
	return mz, intensity
}

func TestWaters1NoCompressionFiveSmallPeaks(t *testing.T) {
	mz := []float64{500.0, 500.25, 500.5, 500.75, 501.0}
	intensity := []uint32{10, 10, 10, 10, 10}

	blob, err := family.EncodeWaters1(mz, intensity, family.Waters1Options{})
	if err != nil {
		t.Fatalf("EncodeWaters1: %v", err)
	}
	header := binary.LittleEndian.Uint32(blob[:4])
	if header&0x80000000 == 0 {
		t.Fatalf("expected no-compression flag, header=0x%08x", header)
	}
	if header&^uint32(0x80000000) != 5 {
		t.Fatalf("header length = %d, want 5", header&^uint32(0x80000000))
	}

	gotMZ, gotIntensity, err := family.DecodeWaters1(blob, family.Waters1Options{})
	if err != nil {
		t.Fatalf("DecodeWaters1: %v", err)
	}
	if len(gotMZ) != 5 {
		t.Fatalf("decoded length = %d, want 5", len(gotMZ))
	}
	for i := range mz {
		if gotMZ[i] != mz[i] || gotIntensity[i] != intensity[i] {
			t.Fatalf("peak %d: got (%v,%v), want (%v,%v)", i, gotMZ[i], gotIntensity[i], mz[i], intensity[i])
		}
	}
}

func TestWaters1EmptySpectrum(t *testing.T) {
	blob, err := family.EncodeWaters1(nil, nil, family.Waters1Options{})
	if err != nil {
		t.Fatalf("EncodeWaters1: %v", err)
	}
	if len(blob) != 4 {
		t.Fatalf("empty spectrum blob length = %d, want 4", len(blob))
	}
	header := binary.LittleEndian.Uint32(blob)
	if header != 0x80000000 {
		t.Fatalf("empty spectrum header = 0x%08x, want 0x80000000", header)
	}
}

func TestWaters1CompressedRoundTripSparse(t *testing.T) {
	const n = 2000
	peaks := map[int]uint32{}
	for i := 0; i < 40; i++ {
		peaks[i*40] = uint32(100 + (i%5)*20)
	}
	mz, intensity := denseFromPeaks(n, peaks, func(i int) float64 { return 500.0 + 0.05*float64(i) })

	blob, err := family.EncodeWaters1(mz, intensity, family.Waters1Options{})
	if err != nil {
		t.Fatalf("EncodeWaters1: %v", err)
	}
	if binary.LittleEndian.Uint32(blob[:4])&0x80000000 != 0 {
		t.Fatalf("expected compressed path for this wide-span spectrum")
	}

	gotMZ, gotIntensity, err := family.DecodeWaters1(blob, family.Waters1Options{})
	if err != nil {
		t.Fatalf("DecodeWaters1: %v", err)
	}

	var wantMZ []float64
	var wantIntensity []uint32
	for i := 0; i < n; i++ {
		if intensity[i] != 0 {
			wantMZ = append(wantMZ, mz[i])
			wantIntensity = append(wantIntensity, intensity[i])
		}
	}
	if len(gotMZ) != len(wantMZ) {
		t.Fatalf("decoded peak count = %d, want %d", len(gotMZ), len(wantMZ))
	}
	for i := range wantMZ {
		if math.Abs(gotMZ[i]-wantMZ[i]) > 1e-3 {
			t.Errorf("peak %d m/z = %v, want %v", i, gotMZ[i], wantMZ[i])
		}
		if gotIntensity[i] != wantIntensity[i] {
			t.Errorf("peak %d intensity = %v, want %v", i, gotIntensity[i], wantIntensity[i])
		}
	}
}

func TestWaters1CalibrationDifferential(t *testing.T) {
	const n = 2000
	peaks := map[int]uint32{}
	for i := 0; i < 40; i++ {
		peaks[i*40] = 100
	}
	mz, intensity := denseFromPeaks(n, peaks, func(i int) float64 { return 500.0 + 0.05*float64(i) })

	calBase := &mzcodec.Poly{Type: mzcodec.PolyT1, Coeffs: []float64{0, 1, 0, 0, 0, 0}}
	calShift := &mzcodec.Poly{Type: mzcodec.PolyT1, Coeffs: []float64{0, 1.0001, 0, 0, 0, 0}}

	blobBase, err := family.EncodeWaters1(mz, intensity, family.Waters1Options{Calibration: calBase})
	if err != nil {
		t.Fatalf("EncodeWaters1 (base): %v", err)
	}
	blobShift, err := family.EncodeWaters1(mz, intensity, family.Waters1Options{Calibration: calShift})
	if err != nil {
		t.Fatalf("EncodeWaters1 (shifted): %v", err)
	}

	gotBase, _, err := family.DecodeWaters1(blobBase, family.Waters1Options{})
	if err != nil {
		t.Fatalf("DecodeWaters1 (base): %v", err)
	}
	gotShift, _, err := family.DecodeWaters1(blobShift, family.Waters1Options{})
	if err != nil {
		t.Fatalf("DecodeWaters1 (shifted): %v", err)
	}
	if len(gotBase) != len(gotShift) {
		t.Fatalf("peak counts differ: %d vs %d", len(gotBase), len(gotShift))
	}
	// Both coefficient vectors carry a non-negative c1, so both evaluate
	// through the sqrt(val)-based branch: result = (c1*sqrt(val))^2 here,
	// so the two calibrations differ by (1.0001^2 - 1) * base, not by a
	// bare 0.0001 fraction (see mzcodec's own differential test).
	for i := range gotBase {
		diff := gotShift[i] - gotBase[i]
		want := (1.0001*1.0001 - 1) * gotBase[i]
		if math.Abs(diff-want) > 1e-6*math.Max(1, gotBase[i]) {
			t.Errorf("peak %d calibration differential = %v, want %v", i, diff, want)
		}
	}
}

func TestWaters1ZeroRestorationInsertsBetweenPeaks(t *testing.T) {
	// 30 peaks a uniform 1.0 Da apart, then one peak 10 Da past the last.
	// The step cubic fitted to this profile fails the new-style check, so
	// restoration uses the constant step (the smallest peak gap, 1.0 Da):
	// the 10 Da gap clears the 2.5x threshold and zero samples are
	// inserted across it.
	const denseCount = 30
	peaks := map[int]uint32{denseCount: 999}
	for i := 0; i < denseCount; i++ {
		peaks[i] = uint32(10 + i)
	}
	mz, intensity := denseFromPeaks(denseCount+1, peaks, func(i int) float64 {
		if i == denseCount {
			return 500.0 + float64(denseCount-1) + 10.0
		}
		return 500.0 + float64(i)
	})

	blob, err := family.EncodeWaters1(mz, intensity, family.Waters1Options{})
	if err != nil {
		t.Fatalf("EncodeWaters1: %v", err)
	}
	header := binary.LittleEndian.Uint32(blob[:4])
	if header&0x80000000 != 0 {
		t.Fatalf("expected compressed path, got no-compression header 0x%08x", header)
	}

	mzOut, intensOut, err := family.DecodeWaters1(blob, family.Waters1Options{RestoreZeros: true})
	if err != nil {
		t.Fatalf("DecodeWaters1: %v", err)
	}
	if len(mzOut) <= denseCount+1 {
		t.Fatalf("expected restoration to add samples beyond the %d original peaks, got %d", denseCount+1, len(mzOut))
	}
	sawZero := false
	for _, v := range intensOut {
		if v == 0 {
			sawZero = true
		}
	}
	if !sawZero {
		t.Errorf("expected at least one restored zero-intensity sample across the large gap")
	}
}
