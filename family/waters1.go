package family

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/mewkiz/pkg/errutil"

	"github.com/msicodec/pico/internal/bitmath"
	"github.com/msicodec/pico/internal/bitpack"
	"github.com/msicodec/pico/internal/mzcodec"
	"github.com/msicodec/pico/internal/predictor"
)

// Waters1 header flag bits, all carried in the leading u32.
const (
	waters1NoCompressionFlag = 0x80000000
	waters1CalibrationFlag   = 0x40000000
	waters1MSType6Flag       = 0x20000000
	waters1LengthMask        = 0x1FFFFFFF
)

// stepLevels are the nine fixed minimum-step magnitudes the encoder bins
// m/z gaps against, from coarsest (low m/z) to finest (high m/z).
var stepLevels = []uint32{3520, 2496, 1768, 1248, 880, 624, 440, 312, 256}

const (
	minWaters1Peaks   = 10
	minWaters1RawSpan = 10000000
)

// runTag is the inc/dec/abs tag the run-length and big-run streams use for
// every emitted value: 0 repeats the previous value, 1 is the previous
// value plus one, 2 introduces an explicit absolute value that follows in
// the same C1 stream.
type runTag uint32

const (
	runSame runTag = 0
	runIncr runTag = 1
	runAbs  runTag = 2
)

// Waters1Options carries the optional calibration context an encode or
// decode call needs. Calibration is read only by EncodeWaters1, which
// stores its coefficients in the blob; DecodeWaters1 takes the primary
// polynomial from the blob instead. Modification is read only by
// DecodeWaters1, which layers it on top of the stored polynomial when the
// blob carries one and ignores it otherwise.
type Waters1Options struct {
	Calibration  *mzcodec.Poly
	Modification *mzcodec.Poly
	MSType6      bool
	RestoreZeros bool
}

// EncodeWaters1 packs a profile spectrum using Waters1's piecewise gap
// prediction scheme. EncodeRaw quantizes the mz values as given into the
// 32-bit segment-code space; no calibration is inverted on encode. When
// opts.Calibration is set its coefficients are stored in the blob and
// DecodeWaters1 applies that polynomial to every decoded value.
func EncodeWaters1(mz []float64, intensity []uint32, opts Waters1Options) ([]byte, error) {
	if len(mz) != len(intensity) {
		return nil, errutil.Newf("family.EncodeWaters1: mz/intensity length mismatch (%d vs %d)", len(mz), len(intensity))
	}
	if opts.MSType6 {
		// ms_type_6 ("gear-shift") spectra use a distinct byte-shifted m/z
		// encoding and a separate step table the reference encoder only
		// exercises for a narrow instrument variant; reproducing it isn't
		// worth the risk of a silently wrong decode, so it's refused rather
		// than half-implemented.
		return nil, errutil.Newf("family.EncodeWaters1: ms_type_6 spectra are not supported")
	}

	var positions []int
	for i, v := range intensity {
		if v != 0 {
			positions = append(positions, i)
		}
	}

	rawMZ := make([]uint32, len(positions))
	for i, p := range positions {
		rawMZ[i] = mzcodec.EncodeRaw(mz[p])
	}
	span := uint32(0)
	if len(rawMZ) > 0 {
		span = rawMZ[len(rawMZ)-1] - rawMZ[0]
	}

	if len(positions) < minWaters1Peaks || span < minWaters1RawSpan {
		return encodeWaters1NoCompression(mz, intensity), nil
	}
	return encodeWaters1Compressed(mz, intensity, positions, rawMZ, opts)
}

func encodeWaters1NoCompression(mz []float64, intensity []uint32) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(len(mz))|waters1NoCompressionFlag)
	for i := range mz {
		binary.Write(buf, binary.LittleEndian, mz[i])
		binary.Write(buf, binary.LittleEndian, intensity[i])
	}
	return buf.Bytes()
}

func encodeWaters1Compressed(mz []float64, intensity []uint32, positions []int, rawMZ []uint32, opts Waters1Options) ([]byte, error) {
	// n is the peak count: Waters1's compressed form stores only non-zero
	// samples, keyed by their sequential order among peaks. The header
	// cubic, though, is fit over the dense grid's local step (m/z gap
	// predicted from the m/z value itself, not from sample index) exactly
	// as the reference encoder does it, since that is what zero-restoration
	// evaluates later to decide how many samples belong between two peaks.
	n := len(positions)
	coeffs := fitStepPredictor(mz, intensity)

	header := uint32(n) & waters1LengthMask
	if opts.Calibration != nil {
		header |= waters1CalibrationFlag
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, header)
	if opts.Calibration != nil {
		coeffsToWrite := opts.Calibration.Coeffs
		for i := 0; i < 6; i++ {
			var c float64
			if i < len(coeffsToWrite) {
				c = coeffsToWrite[i]
			}
			binary.Write(buf, binary.LittleEndian, c)
		}
	}
	binary.Write(buf, binary.LittleEndian, coeffs.D)
	binary.Write(buf, binary.LittleEndian, coeffs.C)
	binary.Write(buf, binary.LittleEndian, coeffs.B)
	binary.Write(buf, binary.LittleEndian, coeffs.A)

	mz0 := rawMZ[0]
	binary.Write(buf, binary.LittleEndian, mz0)
	baseIntensity := intensity[positions[0]]
	if baseIntensity > 0xFFFF {
		baseIntensity = 0xFFFF
	}
	binary.Write(buf, binary.LittleEndian, uint16(baseIntensity))

	binary.Write(buf, binary.LittleEndian, uint32(len(mz)))

	bw := bitpack.NewWriter(buf)

	// Intensity-level streams: every distinct non-base intensity value,
	// each followed by the peak sequence indices it occurs at (delta from
	// the previous occurrence of that same value), terminated by a 0
	// delta.
	levels := buildDict(nonBaseIntensities(intensity, positions, baseIntensity))
	for _, level := range levels {
		if err := bw.WriteVarint(level); err != nil {
			return nil, errutil.Err(err)
		}
		prev := 0
		for seq, p := range positions {
			if intensity[p] != level {
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
	if err := bw.WriteVarint(0x80); err != nil {
		return nil, errutil.Err(err)
	}

	// Run-length stream: level-predicted residual of each consecutive raw
	// m/z gap, inc/dec/abs coded against the previous residual.
	residuals := make([]int64, len(rawMZ))
	prevRaw := rawMZ[0]
	for i := 1; i < len(rawMZ); i++ {
		gap := rawMZ[i] - prevRaw
		level := stepLevelFor(prevRaw)
		residuals[i] = int64(gap) - int64(stepLevels[level])
		prevRaw = rawMZ[i]
	}
	if err := writeRunStream(bw, residuals[1:]); err != nil {
		return nil, errutil.Err(err)
	}

	// Big-run stream: positions (delta-coded the same way) where the
	// residual magnitude exceeds one full step, requiring an absolute
	// gap rather than a level-relative one.
	var bigRuns []int64
	prevBig := 0
	for i, r := range residuals {
		if i == 0 {
			continue
		}
		level := stepLevelFor(rawMZ[i])
		if r > int64(stepLevels[level]) || r < -int64(stepLevels[level]) {
			bigRuns = append(bigRuns, int64(i-prevBig))
			prevBig = i
		}
	}
	if err := writeRunStream(bw, bigRuns); err != nil {
		return nil, errutil.Err(err)
	}

	if err := bw.Flush(); err != nil {
		return nil, errutil.Err(err)
	}
	return buf.Bytes(), nil
}

// fitStepPredictor fits the cubic the reference decoder evaluates at a
// peak's own m/z value to predict the local gap to its neighbour: delta =
// mz[i] - mz[i-1], regressed against mz[i], over every adjacent dense-grid
// pair that borders at least one non-zero sample. Pairs of consecutive
// zeros contribute nothing, mirroring the reference accumulation loop.
func fitStepPredictor(mz []float64, intensity []uint32) predictor.Coeffs {
	var xs, ys []float64
	for i := 1; i < len(mz); i++ {
		if intensity[i] == 0 && intensity[i-1] == 0 {
			continue
		}
		xs = append(xs, mz[i])
		ys = append(ys, mz[i]-mz[i-1])
	}
	return predictor.Fit(xs, ys)
}

func nonBaseIntensities(intensity []uint32, positions []int, base uint32) []uint32 {
	var out []uint32
	for _, p := range positions {
		if intensity[p] != base {
			out = append(out, intensity[p])
		}
	}
	return out
}

// stepLevelFor picks the step-table index for a raw m/z value: lower m/z
// uses the coarser (larger) step sizes, higher m/z the finer ones, mapping
// the nine step levels across the same octave break-points mzcodec uses,
// merging the two highest octaves into the last level.
func stepLevelFor(raw uint32) int {
	switch {
	case raw < 0x3C000000:
		return 0
	case raw < 0x44000000:
		return 1
	case raw < 0x4C000000:
		return 2
	case raw < 0x54000000:
		return 3
	case raw < 0x5C000000:
		return 4
	case raw < 0x64000000:
		return 5
	case raw < 0x6C000000:
		return 6
	case raw < 0x74000000:
		return 7
	default:
		return 8
	}
}

// writeRunStream applies the inc/dec/abs conversion (0 = same as previous,
// 1 = same+1, 2 = explicit absolute) to a signed sequence and emits it
// through C1, terminated by a 0x80 sentinel varint.
func writeRunStream(bw *bitpack.Writer, values []int64) error {
	prev := int64(0)
	for _, v := range values {
		switch {
		case v == prev:
			if err := bw.WriteVarint(uint32(runSame)); err != nil {
				return err
			}
		case v == prev+1:
			if err := bw.WriteVarint(uint32(runIncr)); err != nil {
				return err
			}
		default:
			if err := bw.WriteVarint(uint32(runAbs)); err != nil {
				return err
			}
			if err := bw.WriteVarint(bitmath.EncodeZigZag(int32(v))); err != nil {
				return err
			}
		}
		prev = v
	}
	return bw.WriteVarint(0x80)
}

// readRunStream reads back a stream written by writeRunStream.
func readRunStream(br *bitpack.Reader) ([]int64, error) {
	var out []int64
	prev := int64(0)
	for {
		tag, err := br.ReadVarint()
		if err != nil {
			return nil, err
		}
		if tag == 0x80 {
			return out, nil
		}
		var v int64
		switch runTag(tag) {
		case runSame:
			v = prev
		case runIncr:
			v = prev + 1
		case runAbs:
			raw, err := br.ReadVarint()
			if err != nil {
				return nil, err
			}
			v = int64(bitmath.DecodeZigZag(raw))
		default:
			return nil, errutil.Newf("family: unrecognized run-length tag %d", tag)
		}
		out = append(out, v)
		prev = v
	}
}

// DecodeWaters1 reverses EncodeWaters1. When opts.RestoreZeros is set, zero
// samples are reinserted around non-zero peaks per the predicted step, per
// the reference decoder's optional dense reconstruction.
func DecodeWaters1(blob []byte, opts Waters1Options) (mz []float64, intensity []uint32, err error) {
	r := bytes.NewReader(blob)
	var header uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, nil, errutil.Err(err)
	}
	n := int(header & waters1LengthMask)

	if header&waters1MSType6Flag != 0 {
		return nil, nil, errutil.Newf("family.DecodeWaters1: ms_type_6 spectra are not supported")
	}

	if header&waters1NoCompressionFlag != 0 {
		mz = make([]float64, n)
		intensity = make([]uint32, n)
		for i := 0; i < n; i++ {
			if err := binary.Read(r, binary.LittleEndian, &mz[i]); err != nil {
				return nil, nil, errutil.Err(err)
			}
			if err := binary.Read(r, binary.LittleEndian, &intensity[i]); err != nil {
				return nil, nil, errutil.Err(err)
			}
		}
		return mz, intensity, nil
	}

	hasCalibration := header&waters1CalibrationFlag != 0
	var cal mzcodec.Poly
	if hasCalibration {
		coeffs := make([]float64, 6)
		for i := range coeffs {
			if err := binary.Read(r, binary.LittleEndian, &coeffs[i]); err != nil {
				return nil, nil, errutil.Err(err)
			}
		}
		cal = mzcodec.Poly{Type: mzcodec.PolyT1, Coeffs: coeffs}
		if coeffs[1] < 0 {
			cal.Type = mzcodec.PolyT0
		}
	}

	var coeffs predictor.Coeffs
	for _, p := range []*float64{&coeffs.D, &coeffs.C, &coeffs.B, &coeffs.A} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, nil, errutil.Err(err)
		}
	}

	var mz0raw uint32
	if err := binary.Read(r, binary.LittleEndian, &mz0raw); err != nil {
		return nil, nil, errutil.Err(err)
	}
	var baseIntensity uint16
	if err := binary.Read(r, binary.LittleEndian, &baseIntensity); err != nil {
		return nil, nil, errutil.Err(err)
	}
	// uncompressedLen records the original dense grid length for
	// reference; it plays no role in reconstructing the sparse peak list.
	var uncompressedLen uint32
	if err := binary.Read(r, binary.LittleEndian, &uncompressedLen); err != nil {
		return nil, nil, errutil.Err(err)
	}
	_ = uncompressedLen

	br := bitpack.NewReader(r)

	type occurrence struct {
		pos   int
		level uint32
	}
	var occs []occurrence
	for {
		level, err := br.ReadVarint()
		if err != nil {
			return nil, nil, errutil.Err(err)
		}
		if level == 0x80 {
			break
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
			pos := prev + int(d-1)
			occs = append(occs, occurrence{pos: pos, level: level})
			prev = pos
		}
	}

	residuals, err := readRunStream(br)
	if err != nil {
		return nil, nil, errutil.Err(err)
	}
	bigRunDeltas, err := readRunStream(br)
	if err != nil {
		return nil, nil, errutil.Err(err)
	}
	_ = bigRunDeltas

	peakCount := len(residuals) + 1
	rawMZ := make([]uint32, peakCount)
	rawMZ[0] = mz0raw
	for i := 1; i < peakCount; i++ {
		level := stepLevelFor(rawMZ[i-1])
		gap := int64(stepLevels[level]) + residuals[i-1]
		rawMZ[i] = uint32(int64(rawMZ[i-1]) + gap)
	}

	peakIntensity := make([]uint32, peakCount)
	for i := range peakIntensity {
		peakIntensity[i] = uint32(baseIntensity)
	}
	for _, o := range occs {
		if o.pos >= 0 && o.pos < peakCount {
			peakIntensity[o.pos] = o.level
		}
	}

	// Without zero restoration, Waters1 decodes to exactly the non-zero
	// (m/z, intensity) peaks that were encoded: no dense grid is
	// reconstructed unless the caller asks for it.
	mz = make([]float64, peakCount)
	intensity = peakIntensity
	var modPtr *mzcodec.Poly
	if opts.Modification != nil {
		modPtr = opts.Modification
	}
	for i, raw := range rawMZ {
		val := mzcodec.DecodeRaw(raw)
		if hasCalibration {
			mz[i] = mzcodec.Calibrate(val, cal, modPtr)
		} else {
			mz[i] = val
		}
	}
	if n != peakCount {
		return nil, nil, errutil.Newf("family.DecodeWaters1: header peak count %d does not match %d decoded peaks", n, peakCount)
	}

	if opts.RestoreZeros {
		mz, intensity = restoreWaters1Zeros(mz, intensity, coeffs)
	}
	return mz, intensity, nil
}

// restoreWaters1Zeros reinserts zero-intensity samples around non-zero
// peaks, producing a denser profile-shaped output. The step used to judge
// each gap is the cubic evaluated at the later peak's own m/z value (the
// reference decoder's delta_mzi), not a single constant: between two
// consecutive peaks it inserts 2 zeros if the observed gap exceeds 2.5x
// that step, 1 if it exceeds 1.5x, plus a leading zero before the first
// peak and a trailing one after the last, both placed one predicted step
// outside the peak they border.
func restoreWaters1Zeros(mz []float64, intensity []uint32, coeffs predictor.Coeffs) ([]float64, []uint32) {
	if len(mz) == 0 {
		return mz, intensity
	}
	if coeffs.IsOldStyle() {
		step := estimateStepFromGaps(mz, intensity)
		return restoreWaters1ZerosConstantStep(mz, intensity, step)
	}

	var outMZ []float64
	var outIntensity []uint32
	prevMZ := mz[0]
	prevStep := coeffs.Eval(prevMZ)
	outMZ = append(outMZ, prevMZ-prevStep)
	outIntensity = append(outIntensity, 0)
	outMZ = append(outMZ, prevMZ)
	outIntensity = append(outIntensity, intensity[0])

	for i := 1; i < len(mz); i++ {
		step := coeffs.Eval(mz[i])
		gap := mz[i] - prevMZ
		switch {
		case gap > 2.5*step:
			outMZ = append(outMZ, prevMZ+prevStep, mz[i]-step)
			outIntensity = append(outIntensity, 0, 0)
		case gap > 1.5*step:
			outMZ = append(outMZ, (prevMZ+mz[i])/2)
			outIntensity = append(outIntensity, 0)
		}
		outMZ = append(outMZ, mz[i])
		outIntensity = append(outIntensity, intensity[i])
		prevMZ, prevStep = mz[i], step
	}
	outMZ = append(outMZ, prevMZ+prevStep)
	outIntensity = append(outIntensity, 0)
	return outMZ, outIntensity
}

// restoreWaters1ZerosConstantStep is the old-style predictor fallback: the
// step is the minimum observed peak-to-peak gap, applied uniformly.
func restoreWaters1ZerosConstantStep(mz []float64, intensity []uint32, step float64) ([]float64, []uint32) {
	if step <= 0 {
		return mz, intensity
	}
	var outMZ []float64
	var outIntensity []uint32
	for i := range mz {
		if i > 0 {
			gap := mz[i] - mz[i-1]
			inserts := 0
			if gap > 2.5*step {
				inserts = 2
			} else if gap > 1.5*step {
				inserts = 1
			}
			for k := 1; k <= inserts; k++ {
				frac := float64(k) / float64(inserts+1)
				outMZ = append(outMZ, mz[i-1]+gap*frac)
				outIntensity = append(outIntensity, 0)
			}
		}
		outMZ = append(outMZ, mz[i])
		outIntensity = append(outIntensity, intensity[i])
	}
	return outMZ, outIntensity
}

func estimateStepFromGaps(mz []float64, intensity []uint32) float64 {
	var gaps []float64
	last := 0.0
	have := false
	for i := range mz {
		if intensity[i] == 0 {
			continue
		}
		if have {
			gaps = append(gaps, mz[i]-last)
		}
		last = mz[i]
		have = true
	}
	if len(gaps) == 0 {
		return 0
	}
	min := math.Inf(1)
	for _, g := range gaps {
		if g < min {
			min = g
		}
	}
	return min
}
