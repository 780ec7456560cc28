package family

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/mewkiz/pkg/errutil"

	"github.com/msicodec/pico/internal/bitpack"
	"github.com/msicodec/pico/internal/predictor"
)

// noCompressionFlag marks the top bit of a Centroided1 blob's leading u32
// length field, signalling that the rest of the blob is a raw, unquantised
// copy of the input rather than a compressed stream.
const noCompressionFlag = 0x80000000

// minCompressiblePeaks and minCompressibleSpan gate the no-compression
// fallback: small or narrow spectra aren't worth fitting a predictor over.
const (
	minCompressiblePeaks = 10
	minCompressibleSpan  = 2.0
)

// kScale rescales an m/z offset into an integer space fine enough that
// rounding to the nearest integer loses no practical precision.
const kScale = 1e8

// EncodeCentroided1 compresses a sparse, centroided spectrum into a pair of
// blobs (m/z and intensity). Peaks are re-sorted by m/z first since vendor
// centroiders occasionally misorder adjacent peaks (IntegrityWarning-worthy
// but not fatal).
func EncodeCentroided1(mz []float64, intensity []uint32) (mzBlob, intensBlob []byte, warn bool, err error) {
	if len(mz) != len(intensity) {
		return nil, nil, false, errutil.Newf("family.EncodeCentroided1: mz/intensity length mismatch (%d vs %d)", len(mz), len(intensity))
	}
	mz, intensity, warn = sortByMZ(mz, intensity)

	span := 0.0
	if len(mz) > 0 {
		span = mz[len(mz)-1] - mz[0]
	}
	if len(mz) < minCompressiblePeaks || span < minCompressibleSpan {
		return encodeCentroided1NoCompression(mz, intensity), encodeIntensityNoCompression(intensity), warn, nil
	}

	mzBlob, err = encodeCentroided1MZ(mz)
	if err != nil {
		return nil, nil, warn, err
	}
	intensBlob, err = encodeCentroided1Intensity(intensity)
	if err != nil {
		return nil, nil, warn, err
	}
	return mzBlob, intensBlob, warn, nil
}

// sortByMZ returns mz/intensity re-sorted by ascending m/z if they weren't
// already, reporting whether a reorder was necessary.
func sortByMZ(mz []float64, intensity []uint32) ([]float64, []uint32, bool) {
	sorted := true
	for i := 1; i < len(mz); i++ {
		if mz[i] < mz[i-1] {
			sorted = false
			break
		}
	}
	if sorted {
		return mz, intensity, false
	}
	type peak struct {
		mz        float64
		intensity uint32
	}
	peaks := make([]peak, len(mz))
	for i := range mz {
		peaks[i] = peak{mz[i], intensity[i]}
	}
	for i := 1; i < len(peaks); i++ {
		j := i
		for j > 0 && peaks[j].mz < peaks[j-1].mz {
			peaks[j], peaks[j-1] = peaks[j-1], peaks[j]
			j--
		}
	}
	outMZ := make([]float64, len(peaks))
	outIntens := make([]uint32, len(peaks))
	for i, p := range peaks {
		outMZ[i] = p.mz
		outIntens[i] = p.intensity
	}
	return outMZ, outIntens, true
}

func encodeCentroided1NoCompression(mz []float64, intensity []uint32) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(len(mz))|noCompressionFlag)
	for _, v := range mz {
		binary.Write(buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func encodeIntensityNoCompression(intensity []uint32) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(len(intensity))|noCompressionFlag)
	for _, v := range intensity {
		binary.Write(buf, binary.LittleEndian, float32(v))
	}
	return buf.Bytes()
}

func encodeCentroided1MZ(mz []float64) ([]byte, error) {
	n := len(mz)
	ks := make([]int64, n)
	mz0 := mz[0]
	for i, v := range mz {
		ks[i] = int64(math.Round((v - mz0) * kScale))
	}
	xs := make([]float64, n)
	for i, k := range ks {
		xs[i] = float64(k)
	}
	coeffs := predictor.Fit(xs, mz)

	deltas := make([]int64, n)
	deltas[0] = ks[0]
	for i := 1; i < n; i++ {
		deltas[i] = ks[i] - ks[i-1]
	}
	kMin := deltas[0]
	for _, d := range deltas[1:] {
		if d < kMin {
			kMin = d
		}
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(n))
	binary.Write(buf, binary.LittleEndian, coeffs.D)
	binary.Write(buf, binary.LittleEndian, coeffs.C)
	binary.Write(buf, binary.LittleEndian, coeffs.B)
	binary.Write(buf, binary.LittleEndian, coeffs.A)
	binary.Write(buf, binary.LittleEndian, uint32(kMin+1))

	bw := bitpack.NewWriter(buf)
	for _, d := range deltas {
		if err := bw.WriteVarint(uint32(d - kMin)); err != nil {
			return nil, errutil.Err(err)
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, errutil.Err(err)
	}
	return buf.Bytes(), nil
}

func encodeCentroided1Intensity(intensity []uint32) ([]byte, error) {
	sFactor := float32(1.0)
	maxIntens := uint32(0)
	for _, v := range intensity {
		if v > maxIntens {
			maxIntens = v
		}
	}
	scaled := make([]uint32, len(intensity))
	if maxIntens > 0 && maxIntens < 1000 {
		sFactor = 1000.0
		for i, v := range intensity {
			scaled[i] = uint32(float32(v) * sFactor)
		}
	} else {
		copy(scaled, intensity)
	}

	dict := buildDict(scaled)
	scaleFact := largestPow2Divisor(dict)
	minIntens := uint32(0)
	if len(dict) > 0 {
		minIntens = dict[0]
		for _, v := range dict {
			if v < minIntens {
				minIntens = v
			}
		}
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(len(intensity)))
	binary.Write(buf, binary.LittleEndian, sFactor)
	binary.Write(buf, binary.LittleEndian, minIntens)
	if len(dict) > 0xFFFF {
		return nil, errutil.Newf("family.EncodeCentroided1: intensity dictionary of %d entries exceeds u16 count", len(dict))
	}
	binary.Write(buf, binary.LittleEndian, uint16(len(dict)))
	if scaleFact > 0xFF {
		return nil, errutil.Newf("family.EncodeCentroided1: scale factor %d exceeds a byte", scaleFact)
	}
	buf.WriteByte(byte(scaleFact))

	bw := bitpack.NewWriter(buf)
	for _, v := range dict {
		if err := bw.WriteVarint((v - minIntens) / scaleFact); err != nil {
			return nil, errutil.Err(err)
		}
	}
	for _, v := range scaled {
		idx := indexOf(dict, v)
		if err := bw.WriteVarint(uint32(idx)); err != nil {
			return nil, errutil.Err(err)
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, errutil.Err(err)
	}
	return buf.Bytes(), nil
}

// largestPow2Divisor returns the largest power of two in {1,2,4,...,256}
// that evenly divides every value in dict.
func largestPow2Divisor(dict []uint32) uint32 {
	factor := uint32(256)
	for factor > 1 {
		ok := true
		for _, v := range dict {
			if v%factor != 0 {
				ok = false
				break
			}
		}
		if ok {
			return factor
		}
		factor /= 2
	}
	return 1
}

// DecodeCentroided1 reverses EncodeCentroided1.
func DecodeCentroided1(mzBlob, intensBlob []byte) (mz []float64, intensity []uint32, err error) {
	mzR := bytes.NewReader(mzBlob)
	var mzLen uint32
	if err := binary.Read(mzR, binary.LittleEndian, &mzLen); err != nil {
		return nil, nil, errutil.Err(err)
	}
	noCompression := mzLen&noCompressionFlag != 0
	mzLen &^= noCompressionFlag

	if noCompression {
		mz = make([]float64, mzLen)
		for i := range mz {
			if err := binary.Read(mzR, binary.LittleEndian, &mz[i]); err != nil {
				return nil, nil, errutil.Err(err)
			}
		}
		intensR := bytes.NewReader(intensBlob)
		var intensLen uint32
		if err := binary.Read(intensR, binary.LittleEndian, &intensLen); err != nil {
			return nil, nil, errutil.Err(err)
		}
		intensLen &^= noCompressionFlag
		intensity = make([]uint32, intensLen)
		for i := range intensity {
			var f float32
			if err := binary.Read(intensR, binary.LittleEndian, &f); err != nil {
				return nil, nil, errutil.Err(err)
			}
			intensity[i] = uint32(f)
		}
		return mz, intensity, nil
	}

	var coeffs predictor.Coeffs
	for _, p := range []*float64{&coeffs.D, &coeffs.C, &coeffs.B, &coeffs.A} {
		if err := binary.Read(mzR, binary.LittleEndian, p); err != nil {
			return nil, nil, errutil.Err(err)
		}
	}
	var kMinPlus1 uint32
	if err := binary.Read(mzR, binary.LittleEndian, &kMinPlus1); err != nil {
		return nil, nil, errutil.Err(err)
	}
	kMin := int64(kMinPlus1) - 1

	mzBr := bitpack.NewReader(mzR)
	mz = make([]float64, mzLen)
	k := int64(0)
	for i := range mz {
		v, err := mzBr.ReadVarint()
		if err != nil {
			return nil, nil, errutil.Err(err)
		}
		k += int64(v) + kMin
		mz[i] = coeffs.Eval(float64(k))
	}

	intensR := bytes.NewReader(intensBlob)
	var intensLen uint32
	if err := binary.Read(intensR, binary.LittleEndian, &intensLen); err != nil {
		return nil, nil, errutil.Err(err)
	}
	noCompressionI := intensLen&noCompressionFlag != 0
	intensLen &^= noCompressionFlag
	if noCompressionI {
		intensity = make([]uint32, intensLen)
		for i := range intensity {
			var f float32
			if err := binary.Read(intensR, binary.LittleEndian, &f); err != nil {
				return nil, nil, errutil.Err(err)
			}
			intensity[i] = uint32(f)
		}
		return mz, intensity, nil
	}

	var sFactor float32
	if err := binary.Read(intensR, binary.LittleEndian, &sFactor); err != nil {
		return nil, nil, errutil.Err(err)
	}
	var minIntens uint32
	if err := binary.Read(intensR, binary.LittleEndian, &minIntens); err != nil {
		return nil, nil, errutil.Err(err)
	}
	var dictSize uint16
	if err := binary.Read(intensR, binary.LittleEndian, &dictSize); err != nil {
		return nil, nil, errutil.Err(err)
	}
	scaleFactByte, err := intensR.ReadByte()
	if err != nil {
		return nil, nil, errutil.Err(err)
	}
	scaleFact := uint32(scaleFactByte)

	intensBr := bitpack.NewReader(intensR)
	dict := make([]uint32, dictSize)
	for i := range dict {
		v, err := intensBr.ReadVarint()
		if err != nil {
			return nil, nil, errutil.Err(err)
		}
		dict[i] = v*scaleFact + minIntens
	}

	intensity = make([]uint32, intensLen)
	for i := range intensity {
		idx, err := intensBr.ReadVarint()
		if err != nil {
			return nil, nil, errutil.Err(err)
		}
		if int(idx) >= len(dict) {
			return nil, nil, errutil.Newf("family.DecodeCentroided1: dictionary index %d out of range", idx)
		}
		v := dict[idx]
		if sFactor != 0 && sFactor != 1.0 {
			v = uint32(float32(v) / sFactor)
		}
		intensity[i] = v
	}
	return mz, intensity, nil
}
