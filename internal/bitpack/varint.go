// Package bitpack implements the variable-length unsigned-integer scheme
// shared by every family codec in this module. It is built directly on top
// of github.com/icza/bitio, the same bit-level reader/writer the teacher
// codec (mewkiz/flac) uses for its residual and header fields: bitio already
// accumulates writes smaller than a byte and carries the remainder into the
// next write, which is exactly the "4-bit half-byte carry" the wire format
// describes, so no separate nibble-holding state needs to be hand-rolled
// here.
//
// The main scheme (Writer/Reader) escalates through ten ranges, each wider
// than the last, selected by a unary run of zero bits terminated by a one
// bit (see internal/bitmath). The short variant (ShortWriter/ShortReader) is
// a simpler, byte-aligned cousin that no family codec in this module calls.
package bitpack

import (
	"io"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"

	"github.com/msicodec/pico/internal/bitmath"
)

// vrange describes one escalating tier of the main varint scheme: values in
// [threshold, threshold+2^valueBits) are written as a unary prefix of
// rangeIndex zero bits, a one-bit stop, then valueBits bits of (v-threshold).
type vrange struct {
	threshold uint64
	valueBits uint8
}

// ranges mirrors the thresholds from the wire format: 128, 1152, 9344,
// 74880, 599168, 4793472, 38347904, 306783360, 2454267008. Range i is
// selected by i leading zero bits followed by a one bit.
var ranges = []vrange{
	{threshold: 0, valueBits: 7},
	{threshold: 128, valueBits: 10},
	{threshold: 1152, valueBits: 13},
	{threshold: 9344, valueBits: 16},
	{threshold: 74880, valueBits: 19},
	{threshold: 599168, valueBits: 22},
	{threshold: 4793472, valueBits: 25},
	{threshold: 38347904, valueBits: 28},
	{threshold: 306783360, valueBits: 31},
}

// escapeZeros is the number of leading zero bits that identify the terminal
// "otherwise" range: once a reader has seen this many zero bits without a
// stop bit, the remaining 32 bits are the raw, unoffset value. Chosen so the
// escape code's total width (escapeZeros + 32 bits) lands on the 5.5-byte
// (44-bit) figure called out in the wire format.
const escapeZeros = 12

// maxMainValue is the largest value representable before falling back to
// the escape range.
const maxMainValue = 2454267008

// Writer emits values using the main C1 scheme onto an underlying bitio.Writer.
type Writer struct {
	bw *bitio.Writer
}

// NewWriter returns a Writer that packs varints into w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bitio.NewWriter(w)}
}

// WriteVarint packs v using the escalating range scheme.
func (w *Writer) WriteVarint(v uint32) error {
	val := uint64(v)
	if val < maxMainValue {
		for i, r := range ranges {
			next := uint64(1) << r.valueBits
			if val-r.threshold < next {
				if err := bitmath.WriteUnary(w.bw, i); err != nil {
					return errutil.Err(err)
				}
				if err := w.bw.WriteBits(val-r.threshold, r.valueBits); err != nil {
					return errutil.Err(err)
				}
				return nil
			}
		}
	}
	// Escape range: escapeZeros zero bits, no stop bit, followed by the raw
	// 32-bit value.
	for i := 0; i < escapeZeros; i++ {
		if err := w.bw.WriteBits(0, 1); err != nil {
			return errutil.Err(err)
		}
	}
	if err := w.bw.WriteBits(val, 32); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// Flush pads any pending sub-byte bits with zeros so the stream ends on a
// byte boundary. Equivalent to the wire format's
// description of emitting "(hold<<4)" when a nibble remains pending at the
// end of a sub-block.
func (w *Writer) Flush() error {
	_, err := w.bw.Align()
	if err != nil {
		return errutil.Err(err)
	}
	return nil
}

// WriteTerminator writes the sentinel value used to close a bucket or
// level (e.g. Bruker2 position buckets, Waters1/AbSciex1 levels): the
// ordinary encoding of zero under the main scheme.
func (w *Writer) WriteTerminator() error {
	return w.WriteVarint(0)
}

// Reader decodes values written by Writer.
type Reader struct {
	br *bitio.Reader
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bitio.NewReader(r)}
}

// ReadVarint decodes the next value from the stream.
func (r *Reader) ReadVarint() (uint32, error) {
	i, stopped, err := bitmath.ReadUnaryBounded(r.br, len(ranges))
	if err != nil {
		return 0, errutil.Err(err)
	}
	if !stopped {
		return r.readEscape()
	}
	rg := ranges[i]
	off, err := r.br.ReadBits(rg.valueBits)
	if err != nil {
		return 0, errutil.Err(err)
	}
	return uint32(rg.threshold + off), nil
}

// readEscape is invoked by ReadVarint once len(ranges) leading zero bits
// have been seen without a stop bit, signalling the escape range.
func (r *Reader) readEscape() (uint32, error) {
	if err := bitmath.SkipZeros(r.br, escapeZeros-len(ranges)); err != nil {
		return 0, errutil.Err(err)
	}
	v, err := r.br.ReadBits(32)
	if err != nil {
		return 0, errutil.Err(err)
	}
	return uint32(v), nil
}
