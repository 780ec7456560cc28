package pipeline_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/msicodec/pico"
	"github.com/msicodec/pico/meta"
	"github.com/msicodec/pico/pipeline"
)

func TestEncodeScanDecodeScanRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := meta.NewMemStore()
	p := &pipeline.Pipeline{Store: store}

	s := pico.Spectrum{
		MZ:        []float64{500.0, 500.1, 500.2, 500.3},
		Intensity: []float32{10, 20, 30, 40},
	}
	if err := p.EncodeScan(ctx, 1, s, pico.FamilyBruker1); err != nil {
		t.Fatalf("EncodeScan: %v", err)
	}

	got, err := p.DecodeScan(ctx, 1, pico.FamilyBruker1, pico.DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeScan: %v", err)
	}
	if len(got.MZ) != len(s.MZ) {
		t.Fatalf("decoded length = %d, want %d", len(got.MZ), len(s.MZ))
	}

	if sum, ok := store.IntensitySum(1); !ok || sum != 100 {
		t.Errorf("IntensitySum = %v, %v; want 100, true", sum, ok)
	}
}

func TestRunEncodeThenDecode(t *testing.T) {
	ctx := context.Background()
	raw := meta.NewMemStore()
	compressed := meta.NewMemStore()
	restored := meta.NewMemStore()

	const numScans = 3
	specs := make(map[int64]pico.Spectrum, numScans)
	for i := int64(1); i <= numScans; i++ {
		n := 20
		s := pico.Spectrum{MZ: make([]float64, n), Intensity: make([]float32, n)}
		for j := 0; j < n; j++ {
			s.MZ[j] = 300.0 + float64(i)*10 + float64(j)*0.1
			s.Intensity[j] = float32(50 + j)
		}
		specs[i] = s

		mzBuf := encodeFloat64LE(s.MZ)
		if err := raw.WriteBlob(ctx, i, meta.BlobPrimary, mzBuf); err != nil {
			t.Fatalf("seed WriteBlob mz: %v", err)
		}
		intensBuf := encodeFloat32LE(s.Intensity)
		if err := raw.WriteBlob(ctx, i, meta.BlobPosition, intensBuf); err != nil {
			t.Fatalf("seed WriteBlob intensity: %v", err)
		}
		if err := compressed.Set(ctx, fmt.Sprintf("ScanFamily %d", i), fmt.Sprintf("%d", uint8(pico.FamilyBruker1))); err != nil {
			t.Fatalf("seed target family: %v", err)
		}
	}

	p := &pipeline.Pipeline{Store: compressed}
	encStats, err := p.Run(ctx, raw, compressed, pipeline.Encode)
	if err != nil {
		t.Fatalf("Run(Encode): %v", err)
	}
	if encStats.ScansProcessed != numScans {
		t.Errorf("ScansProcessed = %d, want %d", encStats.ScansProcessed, numScans)
	}

	decStats, err := p.Run(ctx, compressed, restored, pipeline.Decode)
	if err != nil {
		t.Fatalf("Run(Decode): %v", err)
	}
	if decStats.ScansProcessed != numScans {
		t.Errorf("ScansProcessed = %d, want %d", decStats.ScansProcessed, numScans)
	}

	for i := int64(1); i <= numScans; i++ {
		mzBlob, err := restored.ReadBlob(ctx, i, meta.BlobPrimary)
		if err != nil {
			t.Fatalf("scan %d: ReadBlob mz: %v", i, err)
		}
		want := specs[i]
		if len(mzBlob) != len(want.MZ)*8 {
			t.Errorf("scan %d: restored mz blob length = %d, want %d", i, len(mzBlob), len(want.MZ)*8)
		}
	}
}

func encodeFloat64LE(vals []float64) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, vals)
	return buf.Bytes()
}

func encodeFloat32LE(vals []float32) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, vals)
	return buf.Bytes()
}
