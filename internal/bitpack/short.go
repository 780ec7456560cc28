package bitpack

import (
	"io"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
)

// shortRange is one tier of the byte-aligned short variant: unlike the main
// scheme, each tier occupies a whole number of bytes and carries its own
// leading tag bits, so no sub-byte carry ever persists between values.
type shortRange struct {
	threshold uint64
	tag       byte // high bits of the first byte
	tagBits   uint8
	nbytes    uint8
}

// shortRanges implements the v<128/v<1152/v<9344 tiers from the wire
// format (tags 0x80, 0x40, 0x20). The third tier's upper bound is not
// pinned down by the wire format beyond "3 bytes tagged 0x20"; this module
// reuses the main scheme's v<9344 threshold and rejects larger values
// explicitly rather than guessing a fourth tier.
var shortRanges = []shortRange{
	{threshold: 0, tag: 0x80, tagBits: 1, nbytes: 1},
	{threshold: 128, tag: 0x40, tagBits: 2, nbytes: 2},
	{threshold: 1152, tag: 0x20, tagBits: 3, nbytes: 3},
}

// ShortWriter emits the simpler byte-aligned variant. No family codec in
// this module calls it; Bruker2 writes its position series with Writer.
type ShortWriter struct {
	w io.Writer
}

// NewShortWriter returns a ShortWriter over w.
func NewShortWriter(w io.Writer) *ShortWriter {
	return &ShortWriter{w: w}
}

// WriteShort packs v using the byte-aligned tiered scheme.
func (w *ShortWriter) WriteShort(v uint32) error {
	val := uint64(v)
	for i, r := range shortRanges {
		upper := uint64(9344)
		if i+1 < len(shortRanges) {
			upper = shortRanges[i+1].threshold
		}
		if val >= r.threshold && val < upper {
			off := val - r.threshold
			buf := make([]byte, r.nbytes)
			for i := int(r.nbytes) - 1; i >= 0; i-- {
				buf[i] = byte(off)
				off >>= 8
			}
			buf[0] = (buf[0] &^ (0xFF << (8 - r.tagBits))) | r.tag
			_, err := w.w.Write(buf)
			if err != nil {
				return errutil.Err(err)
			}
			return nil
		}
	}
	return errutil.Newf("bitpack.WriteShort: value %d exceeds the short variant's largest tier", v)
}

// ShortReader decodes values written by ShortWriter.
type ShortReader struct {
	br *bitio.Reader
}

// NewShortReader returns a ShortReader over r.
func NewShortReader(r io.Reader) *ShortReader {
	return &ShortReader{br: bitio.NewReader(r)}
}

// ReadShort decodes the next value from the stream.
func (r *ShortReader) ReadShort() (uint32, error) {
	first, err := r.br.ReadByte()
	if err != nil {
		return 0, errutil.Err(err)
	}
	for _, rg := range shortRanges {
		mask := byte(0xFF << (8 - rg.tagBits))
		if first&mask == rg.tag {
			off := uint64(first &^ mask)
			for i := 1; i < int(rg.nbytes); i++ {
				b, err := r.br.ReadByte()
				if err != nil {
					return 0, errutil.Err(err)
				}
				off = off<<8 | uint64(b)
			}
			return uint32(rg.threshold + off), nil
		}
	}
	return 0, errutil.Newf("bitpack.ReadShort: unrecognized tag in leading byte 0x%02x", first)
}
