package family

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/mewkiz/pkg/errutil"

	"github.com/msicodec/pico/internal/bitpack"
	"github.com/msicodec/pico/internal/predictor"
)

// absciexGapTag classifies the zero-run separating two consecutive real
// peaks in the original dense array: 0 for directly adjacent peaks, 1 for a
// single intervening zero sample, 2 for two or more. The reference decoder
// never materializes more than two filler samples regardless of how long
// the original zero run actually was, so the encoder only needs to record
// this three-way class rather than an exact run length.
type absciexGapTag uint32

const (
	absciexGapNone absciexGapTag = 0
	absciexGapOne  absciexGapTag = 1
	absciexGapMany absciexGapTag = 2
)

// EncodeAbSciex1 packs a profile spectrum using AB SCIEX's long-zero-run
// scheme: a cubic fit in log10(m/z) predicts the gap to the next sample,
// letting the decoder regenerate m/z for both real peaks and the filler
// samples between them purely by walking the fit forward from a single
// anchor value. Only the anchor, the fit, and the zero-run classification
// between peaks are stored; no other m/z value is carried in the blob,
// which is why AbSciex1 trades m/z precision for a very compact encoding.
func EncodeAbSciex1(mz []float64, intensity []uint32) ([]byte, error) {
	if len(mz) != len(intensity) {
		return nil, errutil.Newf("family.EncodeAbSciex1: mz/intensity length mismatch (%d vs %d)", len(mz), len(intensity))
	}

	var peaksIdx []int
	for i, v := range intensity {
		if v != 0 {
			peaksIdx = append(peaksIdx, i)
		}
	}

	coeffs := fitAbSciexPredictor(mz, intensity)

	buf := new(bytes.Buffer)
	if len(peaksIdx) == 0 {
		binary.Write(buf, binary.LittleEndian, 0.0)
		binary.Write(buf, binary.LittleEndian, 0.0)
		binary.Write(buf, binary.LittleEndian, coeffs.D)
		binary.Write(buf, binary.LittleEndian, coeffs.C)
		binary.Write(buf, binary.LittleEndian, coeffs.B)
		binary.Write(buf, binary.LittleEndian, coeffs.A)
		binary.Write(buf, binary.LittleEndian, uint32(0))
		binary.Write(buf, binary.LittleEndian, uint16(0))
		binary.Write(buf, binary.LittleEndian, uint32(len(mz)))
		return buf.Bytes(), nil
	}

	mz0 := mz[peaksIdx[0]]
	mzn := mz[peaksIdx[len(peaksIdx)-1]]

	tags := make([]absciexGapTag, len(peaksIdx)-1)
	packSize := 1
	for i := 0; i < len(peaksIdx)-1; i++ {
		zeroRun := peaksIdx[i+1] - peaksIdx[i] - 1
		switch {
		case zeroRun <= 0:
			tags[i] = absciexGapNone
			packSize++
		case zeroRun == 1:
			tags[i] = absciexGapOne
			packSize += 2
		default:
			tags[i] = absciexGapMany
			packSize += 3
		}
	}

	peakIntensities := make([]uint32, len(peaksIdx))
	for i, p := range peaksIdx {
		peakIntensities[i] = intensity[p]
	}
	levels := buildDict(peakIntensities)
	if len(levels) > 0xFFFF {
		return nil, errutil.Newf("family.EncodeAbSciex1: intensity dictionary of %d entries exceeds u16 count", len(levels))
	}

	binary.Write(buf, binary.LittleEndian, mz0)
	binary.Write(buf, binary.LittleEndian, mzn)
	binary.Write(buf, binary.LittleEndian, coeffs.D)
	binary.Write(buf, binary.LittleEndian, coeffs.C)
	binary.Write(buf, binary.LittleEndian, coeffs.B)
	binary.Write(buf, binary.LittleEndian, coeffs.A)
	binary.Write(buf, binary.LittleEndian, uint32(packSize))
	binary.Write(buf, binary.LittleEndian, uint16(len(levels)))
	binary.Write(buf, binary.LittleEndian, uint32(len(mz)))

	bw := bitpack.NewWriter(buf)

	// Level 0: the skip-index stream, one tag per peak-to-peak transition,
	// offset by one so the terminator (value 0) never collides with a real
	// tag (0, 1 or 2).
	for _, tag := range tags {
		if err := bw.WriteVarint(uint32(tag) + 1); err != nil {
			return nil, errutil.Err(err)
		}
	}
	if err := bw.WriteTerminator(); err != nil {
		return nil, errutil.Err(err)
	}

	// One stream per distinct real-peak intensity value: the value itself,
	// then the peak-sequence indices it occurs at (delta from the previous
	// occurrence, offset by one), terminated by a 0 delta.
	for _, level := range levels {
		if err := bw.WriteVarint(level); err != nil {
			return nil, errutil.Err(err)
		}
		prev := 0
		for seq, v := range peakIntensities {
			if v != level {
				continue
			}
			if err := bw.WriteVarint(uint32(seq-prev) + 1); err != nil {
				return nil, errutil.Err(err)
			}
			prev = seq
		}
		if err := bw.WriteTerminator(); err != nil {
			return nil, errutil.Err(err)
		}
	}

	if err := bw.Flush(); err != nil {
		return nil, errutil.Err(err)
	}
	return buf.Bytes(), nil
}

// fitAbSciexPredictor fits the cubic in log10(m/z) the reference encoder
// uses to predict the gap to the next sample: delta = mz[i] - mz[i-1],
// regressed against log10(mz[i-1]), over every adjacent dense-grid pair
// bordering at least one non-zero sample.
func fitAbSciexPredictor(mz []float64, intensity []uint32) predictor.Coeffs {
	var xs, ys []float64
	for i := 1; i < len(mz); i++ {
		if intensity[i] == 0 && intensity[i-1] == 0 {
			continue
		}
		if mz[i-1] <= 0 {
			continue
		}
		xs = append(xs, math.Log10(mz[i-1]))
		ys = append(ys, mz[i]-mz[i-1])
	}
	return predictor.Fit(xs, ys)
}

// DecodeAbSciex1 reverses EncodeAbSciex1. Every sample's m/z, real peak or
// filler alike, is regenerated by walking the stored cubic forward from the
// anchor; only the intensity values and the zero-run classification between
// peaks come from the blob itself.
func DecodeAbSciex1(blob []byte) (mz []float64, intensity []uint32, err error) {
	r := bytes.NewReader(blob)
	var mz0, mzn float64
	if err := binary.Read(r, binary.LittleEndian, &mz0); err != nil {
		return nil, nil, errutil.Err(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &mzn); err != nil {
		return nil, nil, errutil.Err(err)
	}
	_ = mzn

	var coeffs predictor.Coeffs
	for _, p := range []*float64{&coeffs.D, &coeffs.C, &coeffs.B, &coeffs.A} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, nil, errutil.Err(err)
		}
	}

	var packSize uint32
	if err := binary.Read(r, binary.LittleEndian, &packSize); err != nil {
		return nil, nil, errutil.Err(err)
	}
	var levelCount uint16
	if err := binary.Read(r, binary.LittleEndian, &levelCount); err != nil {
		return nil, nil, errutil.Err(err)
	}
	// uncompressedLength records the original dense grid length for
	// reference; it plays no role in reconstructing the peak sequence.
	var uncompressedLength uint32
	if err := binary.Read(r, binary.LittleEndian, &uncompressedLength); err != nil {
		return nil, nil, errutil.Err(err)
	}
	_ = uncompressedLength

	if levelCount == 0 {
		return nil, nil, nil
	}

	br := bitpack.NewReader(r)

	var tags []absciexGapTag
	for {
		v, err := br.ReadVarint()
		if err != nil {
			return nil, nil, errutil.Err(err)
		}
		if v == 0 {
			break
		}
		tags = append(tags, absciexGapTag(v-1))
	}

	numPeaks := len(tags) + 1
	peakValues := make([]uint32, numPeaks)
	for l := 0; l < int(levelCount); l++ {
		value, err := br.ReadVarint()
		if err != nil {
			return nil, nil, errutil.Err(err)
		}
		prev := 0
		for {
			d, err := br.ReadVarint()
			if err != nil {
				return nil, nil, errutil.Err(err)
			}
			if d == 0 {
				break
			}
			seq := prev + int(d-1)
			if seq < 0 || seq >= numPeaks {
				return nil, nil, errutil.Newf("family.DecodeAbSciex1: peak index %d out of range (%d peaks)", seq, numPeaks)
			}
			peakValues[seq] = value
			prev = seq
		}
	}

	pid := mz0
	zid := math.Log10(pid)
	mz = make([]float64, 0, packSize)
	intensity = make([]uint32, 0, packSize)
	mz = append(mz, pid)
	intensity = append(intensity, peakValues[0])

	for i, tag := range tags {
		fillers := 0
		switch tag {
		case absciexGapOne:
			fillers = 1
		case absciexGapMany:
			fillers = 2
		}
		for f := 0; f < fillers; f++ {
			dzi := coeffs.Eval(zid)
			pid = math.Pow(10, zid) + dzi
			zid = math.Log10(pid)
			mz = append(mz, pid)
			intensity = append(intensity, 0)
		}
		dzi := coeffs.Eval(zid)
		pid = math.Pow(10, zid) + dzi
		zid = math.Log10(pid)
		mz = append(mz, pid)
		intensity = append(intensity, peakValues[i+1])
	}

	if uint32(len(mz)) != packSize {
		return nil, nil, errutil.Newf("family.DecodeAbSciex1: reconstructed length %d does not match header pack size %d", len(mz), packSize)
	}
	return mz, intensity, nil
}
