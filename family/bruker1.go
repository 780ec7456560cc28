package family

import (
	"bytes"
	"encoding/binary"

	"github.com/mewkiz/pkg/errutil"

	"github.com/msicodec/pico/internal/predictor"
)

// DefaultLSBFactor is the intensity quantisation divisor Bruker1 applies
// when the caller doesn't request a different one.
const DefaultLSBFactor = 4

// EncodeBruker1 packs a dense profile spectrum using a per-sample cubic m/z
// predictor plus a hop dictionary (gaps between non-zero samples) and an
// intensity dictionary (values scaled down by lsbFactor). intensity[i] == 0
// marks a sample with no peak; mz is still expected to be present and
// increasing for every index (profile data retains its x-axis grid even
// where intensity drops to zero).
func EncodeBruker1(mz []float64, intensity []uint32, lsbFactor uint8) ([]byte, error) {
	if lsbFactor == 0 {
		lsbFactor = DefaultLSBFactor
	}
	n := len(mz)
	if n != len(intensity) {
		return nil, errutil.Newf("family.EncodeBruker1: mz/intensity length mismatch (%d vs %d)", n, len(intensity))
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	coeffs := predictor.Fit(xs, mz)

	var positions []int
	var scaledIntens []uint32
	for i, v := range intensity {
		if v == 0 {
			continue
		}
		positions = append(positions, i)
		scaledIntens = append(scaledIntens, v/uint32(lsbFactor))
	}

	hops := make([]uint32, len(positions))
	prev := 0
	for i, p := range positions {
		hops[i] = uint32(p - prev)
		prev = p
	}

	hopDict := buildDict(hops)
	intensDict := buildDict(scaledIntens)

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(n))
	binary.Write(buf, binary.LittleEndian, coeffs.D)
	binary.Write(buf, binary.LittleEndian, coeffs.C)
	binary.Write(buf, binary.LittleEndian, coeffs.B)
	binary.Write(buf, binary.LittleEndian, coeffs.A)

	if len(hopDict) > 0xFFFF {
		return nil, errutil.Newf("family.EncodeBruker1: hop dictionary of %d entries exceeds u16 count", len(hopDict))
	}
	binary.Write(buf, binary.LittleEndian, uint16(len(hopDict)))
	for i, v := range hopDict {
		binary.Write(buf, binary.LittleEndian, uint16(i))
		if v > 0xFFFF {
			return nil, errutil.Newf("family.EncodeBruker1: hop value %d exceeds u16", v)
		}
		binary.Write(buf, binary.LittleEndian, uint16(v))
	}

	buf.WriteByte(lsbFactor)

	binary.Write(buf, binary.LittleEndian, uint32(len(intensDict)))
	for i, v := range intensDict {
		binary.Write(buf, binary.LittleEndian, uint16(i))
		if err := writeWideIntensity(buf, v); err != nil {
			return nil, err
		}
	}

	binary.Write(buf, binary.LittleEndian, uint32(len(positions)))
	payload := buf.Bytes()
	for i := range positions {
		hopIdx := indexOf(hopDict, hops[i])
		intensIdx := indexOf(intensDict, scaledIntens[i])
		payload = writeByteIndex(payload, hopIdx)
		payload = writeByteIndex(payload, intensIdx)
	}
	return payload, nil
}

// writeWideIntensity implements the 15-bit-direct / 23-bit-extended
// intensity dictionary value encoding: a u16 with its top bit set carries a
// value under 0x8000 directly; otherwise the top bit is clear and the value
// occupies the low 15 bits of that u16 plus a trailing byte (23 bits total),
// which covers every intensity this codec's LSB-divided dictionaries
// produce in practice.
func writeWideIntensity(buf *bytes.Buffer, v uint32) error {
	if v < 0x8000 {
		binary.Write(buf, binary.LittleEndian, uint16(v)|0x8000)
		return nil
	}
	if v >= 1<<23 {
		return errutil.Newf("family: intensity dictionary value %d exceeds the 23-bit wide encoding", v)
	}
	hi := uint16(v >> 8)
	lo := byte(v)
	binary.Write(buf, binary.LittleEndian, hi)
	buf.WriteByte(lo)
	return nil
}

// DecodeBruker1 reverses EncodeBruker1.
func DecodeBruker1(blob []byte) (mz []float64, intensity []uint32, err error) {
	r := bytes.NewReader(blob)
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, nil, errutil.Err(err)
	}
	var coeffs predictor.Coeffs
	for _, p := range []*float64{&coeffs.D, &coeffs.C, &coeffs.B, &coeffs.A} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, nil, errutil.Err(err)
		}
	}

	var hopCount uint16
	if err := binary.Read(r, binary.LittleEndian, &hopCount); err != nil {
		return nil, nil, errutil.Err(err)
	}
	hopDict := make([]uint32, hopCount)
	for range hopDict {
		var idx, v uint16
		if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
			return nil, nil, errutil.Err(err)
		}
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, nil, errutil.Err(err)
		}
		if int(idx) >= len(hopDict) {
			return nil, nil, errutil.Newf("family.DecodeBruker1: hop dictionary index %d out of range", idx)
		}
		hopDict[idx] = uint32(v)
	}

	lsbFactor, err := r.ReadByte()
	if err != nil {
		return nil, nil, errutil.Err(err)
	}

	var intensCount uint32
	if err := binary.Read(r, binary.LittleEndian, &intensCount); err != nil {
		return nil, nil, errutil.Err(err)
	}
	intensDict := make([]uint32, intensCount)
	for range intensDict {
		var idx uint16
		if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
			return nil, nil, errutil.Err(err)
		}
		var word uint16
		if err := binary.Read(r, binary.LittleEndian, &word); err != nil {
			return nil, nil, errutil.Err(err)
		}
		var v uint32
		if word&0x8000 != 0 {
			v = uint32(word &^ 0x8000)
		} else {
			b3, err := r.ReadByte()
			if err != nil {
				return nil, nil, errutil.Err(err)
			}
			v = uint32(word)<<8 | uint32(b3)
		}
		if int(idx) >= len(intensDict) {
			return nil, nil, errutil.Newf("family.DecodeBruker1: intensity dictionary index %d out of range", idx)
		}
		intensDict[idx] = v
	}

	var payloadCount uint32
	if err := binary.Read(r, binary.LittleEndian, &payloadCount); err != nil {
		return nil, nil, errutil.Err(err)
	}
	rest := blob[len(blob)-r.Len():]

	mz = make([]float64, n)
	intensity = make([]uint32, n)
	for i := range mz {
		mz[i] = coeffs.Eval(float64(i))
	}

	pos := 0
	for i := uint32(0); i < payloadCount; i++ {
		hopIdx, adv, err := readByteIndex(rest)
		if err != nil {
			return nil, nil, errutil.Err(err)
		}
		rest = rest[adv:]
		intensIdx, adv2, err := readByteIndex(rest)
		if err != nil {
			return nil, nil, errutil.Err(err)
		}
		rest = rest[adv2:]

		if hopIdx >= len(hopDict) {
			return nil, nil, errutil.Newf("family.DecodeBruker1: hop index %d out of range", hopIdx)
		}
		if intensIdx >= len(intensDict) {
			return nil, nil, errutil.Newf("family.DecodeBruker1: intensity index %d out of range", intensIdx)
		}
		pos += int(hopDict[hopIdx])
		if pos < 0 || pos >= len(intensity) {
			return nil, nil, errutil.Newf("family.DecodeBruker1: reconstructed position %d out of range", pos)
		}
		intensity[pos] = intensDict[intensIdx] * uint32(lsbFactor)
	}
	return mz, intensity, nil
}
