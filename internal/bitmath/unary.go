// Package bitmath provides small signed/unsigned integer transforms shared
// by the bit-level codecs in this module: unary run-length prefixes and
// ZigZag folding.
package bitmath

import (
	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
)

// ReadUnary decodes a run of zero bits terminated by a one bit and returns
// the number of zeros observed. It is the building block of the C1 range
// prefix (bitpack package): range i is selected by observing i leading zero
// bits followed by a one bit.
//
// max bounds the number of zero bits tolerated before the stream is
// considered malformed; callers pass the number of escalating ranges they
// support.
//
//	1       => 0
//	01      => 1
//	001     => 2
//	0001    => 3
func ReadUnary(br *bitio.Reader, max int) (x int, err error) {
	for x = 0; x < max; x++ {
		bit, err := br.ReadBits(1)
		if err != nil {
			return 0, errutil.Err(err)
		}
		if bit == 1 {
			return x, nil
		}
	}
	return 0, errutil.Newf("bitmath.ReadUnary: no stop bit within %d leading zero bits", max)
}

// WriteUnary encodes x as x zero bits followed by a one bit.
func WriteUnary(bw *bitio.Writer, x int) error {
	if x < 0 {
		return errutil.Newf("bitmath.WriteUnary: negative run length %d", x)
	}
	for x >= 8 {
		if err := bw.WriteByte(0x0); err != nil {
			return errutil.Err(err)
		}
		x -= 8
	}
	// x zero bits followed by a single one bit, packed as an (x+1)-bit field.
	if err := bw.WriteBits(1, uint8(x+1)); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// ReadUnaryBounded counts leading zero bits up to max of them. If a one bit
// terminates the run before max zeros are seen, it returns (count, true,
// nil). If max zero bits are consumed without a stop bit, it returns (max,
// false, nil) instead of failing, letting the caller fall back to an escape
// encoding rather than treating the long zero run as malformed input.
func ReadUnaryBounded(br *bitio.Reader, max int) (x int, stopped bool, err error) {
	for x = 0; x < max; x++ {
		bit, err := br.ReadBits(1)
		if err != nil {
			return 0, false, errutil.Err(err)
		}
		if bit == 1 {
			return x, true, nil
		}
	}
	return max, false, nil
}

// SkipZeros reads and discards n zero bits, used past the point where the
// caller already knows no stop bit can appear (the C1 escape range).
func SkipZeros(br *bitio.Reader, n int) error {
	for i := 0; i < n; i++ {
		bit, err := br.ReadBits(1)
		if err != nil {
			return errutil.Err(err)
		}
		if bit != 0 {
			return errutil.Newf("bitmath.SkipZeros: expected zero padding bit, got 1")
		}
	}
	return nil
}
