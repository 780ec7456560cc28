package family

import (
	"bytes"
	"encoding/binary"

	"github.com/mewkiz/pkg/errutil"

	"github.com/msicodec/pico/internal/bitpack"
	"github.com/msicodec/pico/internal/predictor"
)

// widthTiers are the intensity-dictionary bit widths Bruker2 groups values
// into, from smallest to largest. A value lands in the first tier wide
// enough to hold it.
var widthTiers = []int{12, 16, 20, 24}

// EncodeBruker2 is Bruker1's more compact sibling: it drops the separate
// hop dictionary in favor of per-intensity-bucket position streams, and
// groups the intensity dictionary into width tiers instead of a flat
// 15/24-bit split.
func EncodeBruker2(mz []float64, intensity []uint32, lsbFactor uint8) ([]byte, error) {
	if lsbFactor == 0 {
		lsbFactor = DefaultLSBFactor
	}
	n := len(mz)
	if n != len(intensity) {
		return nil, errutil.Newf("family.EncodeBruker2: mz/intensity length mismatch (%d vs %d)", n, len(intensity))
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
	dict := buildDict(scaledIntens)
	tiered, boundaries, err := groupByWidth(dict)
	if err != nil {
		return nil, err
	}
	// DecodeBruker2 rebuilds the dictionary tier by tier, so the position
	// streams below follow that same order.
	dict = make([]uint32, 0, len(dict))
	for _, t := range tiered {
		dict = append(dict, t...)
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(n))
	binary.Write(buf, binary.LittleEndian, coeffs.D)
	binary.Write(buf, binary.LittleEndian, coeffs.C)
	binary.Write(buf, binary.LittleEndian, coeffs.B)
	binary.Write(buf, binary.LittleEndian, coeffs.A)
	buf.WriteByte(lsbFactor)

	for _, b := range boundaries {
		binary.Write(buf, binary.LittleEndian, uint32(b))
	}
	for i, width := range widthTiers {
		buf.Write(packPairs(tiered[i], width))
	}

	// One position stream per dictionary entry, in tier order and
	// most-to-least common within a tier, each terminated by a zero-delta
	// varint written through the same C1 scheme as the gaps (a stop bit
	// followed by seven zero bits). No separate 0xF nibble terminator is
	// written.
	posByIdx := make(map[int][]int, len(dict))
	for i, pos := range positions {
		idx := indexOf(dict, scaledIntens[i])
		posByIdx[idx] = append(posByIdx[idx], pos)
	}

	bw := bitpack.NewWriter(buf)
	for idx := range dict {
		prev := 0
		for _, pos := range posByIdx[idx] {
			gap := uint32(pos - prev)
			if err := bw.WriteVarint(gap + 1); err != nil {
				return nil, errutil.Err(err)
			}
			prev = pos
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

// groupByWidth partitions dict into the four width tiers and returns the
// per-tier value slices plus their cumulative boundary counts
// (idx, idx1, idx2, total), matching the header layout the wire format
// serializes explicitly so the decoder can size each group before reading
// it.
func groupByWidth(dict []uint32) (tiers [4][]uint32, boundaries [4]int, err error) {
	for _, v := range dict {
		placed := false
		for i, width := range widthTiers {
			if v < 1<<uint(width) {
				tiers[i] = append(tiers[i], v)
				placed = true
				break
			}
		}
		if !placed {
			return tiers, boundaries, errutil.Newf("family.EncodeBruker2: intensity %d exceeds the widest (24-bit) tier", v)
		}
	}
	running := 0
	for i, t := range tiers {
		running += len(t)
		boundaries[i] = running
	}
	return tiers, boundaries, nil
}

// packPairs packs consecutive pairs of bit-width values into
// ceil(2*width/8) bytes per pair; an odd final value is packed alone into
// ceil(width/8) bytes.
func packPairs(values []uint32, width int) []byte {
	var out []byte
	i := 0
	for ; i+1 < len(values); i += 2 {
		combined := uint64(values[i])<<uint(width) | uint64(values[i+1])
		nbytes := (2*width + 7) / 8
		out = appendBigEndian(out, combined, nbytes)
	}
	if i < len(values) {
		nbytes := (width + 7) / 8
		out = appendBigEndian(out, uint64(values[i]), nbytes)
	}
	return out
}

func appendBigEndian(buf []byte, v uint64, nbytes int) []byte {
	start := len(buf)
	buf = append(buf, make([]byte, nbytes)...)
	for i := nbytes - 1; i >= 0; i-- {
		buf[start+i] = byte(v)
		v >>= 8
	}
	return buf
}

// unpackPairs is the inverse of packPairs.
func unpackPairs(data []byte, width, count int) (values []uint32, consumed int, err error) {
	values = make([]uint32, 0, count)
	i := 0
	for ; i+1 < count; i += 2 {
		nbytes := (2*width + 7) / 8
		if consumed+nbytes > len(data) {
			return nil, 0, errutil.Newf("family: truncated width-tiered dictionary group")
		}
		var combined uint64
		for _, b := range data[consumed : consumed+nbytes] {
			combined = combined<<8 | uint64(b)
		}
		consumed += nbytes
		mask := uint64(1)<<uint(width) - 1
		values = append(values, uint32(combined>>uint(width)), uint32(combined&mask))
	}
	if i < count {
		nbytes := (width + 7) / 8
		if consumed+nbytes > len(data) {
			return nil, 0, errutil.Newf("family: truncated width-tiered dictionary group")
		}
		var v uint64
		for _, b := range data[consumed : consumed+nbytes] {
			v = v<<8 | uint64(b)
		}
		consumed += nbytes
		values = append(values, uint32(v))
	}
	return values, consumed, nil
}

// DecodeBruker2 reverses EncodeBruker2.
func DecodeBruker2(blob []byte) (mz []float64, intensity []uint32, err error) {
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
	lsbFactor, err := r.ReadByte()
	if err != nil {
		return nil, nil, errutil.Err(err)
	}

	var boundaries [4]uint32
	for i := range boundaries {
		if err := binary.Read(r, binary.LittleEndian, &boundaries[i]); err != nil {
			return nil, nil, errutil.Err(err)
		}
	}
	counts := [4]int{
		int(boundaries[0]),
		int(boundaries[1]) - int(boundaries[0]),
		int(boundaries[2]) - int(boundaries[1]),
		int(boundaries[3]) - int(boundaries[2]),
	}
	for _, c := range counts {
		if c < 0 {
			return nil, nil, errutil.Newf("family.DecodeBruker2: malformed width-tier boundaries %v", boundaries)
		}
	}

	rest := blob[len(blob)-r.Len():]
	var dict []uint32
	for i, width := range widthTiers {
		vals, consumed, err := unpackPairs(rest, width, counts[i])
		if err != nil {
			return nil, nil, errutil.Err(err)
		}
		dict = append(dict, vals...)
		rest = rest[consumed:]
	}

	br := bitpack.NewReader(bytes.NewReader(rest))
	intensity = make([]uint32, n)
	for idx := range dict {
		pos := 0
		for {
			gap, err := br.ReadVarint()
			if err != nil {
				return nil, nil, errutil.Err(err)
			}
			if gap == 0 {
				break
			}
			pos += int(gap - 1)
			if pos < 0 || pos >= len(intensity) {
				return nil, nil, errutil.Newf("family.DecodeBruker2: reconstructed position %d out of range", pos)
			}
			intensity[pos] = dict[idx] * uint32(lsbFactor)
		}
	}

	mz = make([]float64, n)
	for i := range mz {
		mz[i] = coeffs.Eval(float64(i))
	}
	return mz, intensity, nil
}
