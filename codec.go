package pico

import (
	"fmt"
	"math"
	"strings"

	"github.com/msicodec/pico/family"
	"github.com/msicodec/pico/internal/mzcodec"
)

// DecodeOptions carries the per-call context DecodeSpectrum needs beyond the
// blob itself: the calibration context spec.md's decode_spectrum(family,
// bytes, cal_ctx, restore_zeros) names as a single opaque parameter, split
// here into its three constituent fields the way the teacher's NewEncoder
// takes explicit struct fields rather than a single packed context value.
type DecodeOptions struct {
	// Calibration is the instrument function's primary calibration
	// polynomial. It has no effect on decoding: a Waters1 blob with its
	// calibration flag set carries its own primary polynomial, which
	// DecodeWaters1 uses, and no other family applies calibration.
	Calibration *mzcodec.Poly
	// Modification is the secondary calibration polynomial, scoped per
	// instrument function. It is applied only to Waters1 blobs that carry
	// their own calibration, on top of that stored polynomial.
	Modification *mzcodec.Poly
	// RestoreZeros asks Waters1 to reinsert the zero-intensity samples its
	// encoder stripped between sparse peaks.
	RestoreZeros bool
}

// EncodeResult is everything EncodeSpectrum produces beyond the bytes
// themselves: Centroided1 splits its payload into two blobs (mirroring
// meta.BlobKind's Primary/Position split), and a Centroided1 encode that
// falls back to its no-compression path persists under a different family
// tag than the one requested.
type EncodeResult struct {
	// Primary is always present.
	Primary []byte
	// Secondary is non-nil only for families that split their payload
	// (Centroided1's intensity blob); nil otherwise.
	Secondary []byte
	// PersistFamily is the tag that should actually be written to the
	// metadata store. Equal to the requested family except when a
	// Centroided1 encode falls back to its no-compression path, in which
	// case it is FamilyGenericNoCompression.
	PersistFamily Family
	// Warn reports an IntegrityWarning-worthy anomaly of a Centroided1
	// encode: unsorted peaks (auto-sorted) or its no-compression fallback.
	// No other family sets it.
	Warn bool
}

// EncodeSpectrum compresses s with the family codec fam names. mz values
// are expected already calibrated (physical m/z); families with an m/z
// segment codec (Waters1) re-quantize internally.
func EncodeSpectrum(fam Family, s Spectrum) (EncodeResult, error) {
	if !fam.Valid() {
		return EncodeResult{}, fmt.Errorf("pico.EncodeSpectrum: family tag %d: %w", fam, ErrUnsupported)
	}
	intensity, err := toUint32Intensity(s.Intensity)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("pico.EncodeSpectrum: %v: %w", err, ErrMalformedBlob)
	}

	switch fam {
	case family.Bruker1:
		blob, err := family.EncodeBruker1(s.MZ, intensity, 0)
		if err != nil {
			return EncodeResult{}, wrapEncodeErr("Bruker1", err)
		}
		return EncodeResult{Primary: blob, PersistFamily: fam}, nil

	case family.Bruker2:
		blob, err := family.EncodeBruker2(s.MZ, intensity, 0)
		if err != nil {
			return EncodeResult{}, wrapEncodeErr("Bruker2", err)
		}
		return EncodeResult{Primary: blob, PersistFamily: fam}, nil

	case family.Centroided1, family.GenericNoCompression:
		mzBlob, intensBlob, warn, err := family.EncodeCentroided1(s.MZ, intensity)
		if err != nil {
			return EncodeResult{}, wrapEncodeErr("Centroided1", err)
		}
		persist := Family(family.Centroided1)
		if usesCentroided1NoCompression(s.MZ) {
			persist = family.GenericNoCompression
			warn = true
		}
		return EncodeResult{Primary: mzBlob, Secondary: intensBlob, PersistFamily: persist, Warn: warn}, nil

	case family.Waters1:
		blob, err := family.EncodeWaters1(s.MZ, intensity, family.Waters1Options{})
		if err != nil {
			return EncodeResult{}, wrapEncodeErr("Waters1", err)
		}
		return EncodeResult{Primary: blob, PersistFamily: fam}, nil

	case family.AbSciex1:
		blob, err := family.EncodeAbSciex1(s.MZ, intensity)
		if err != nil {
			return EncodeResult{}, wrapEncodeErr("AbSciex1", err)
		}
		return EncodeResult{Primary: blob, PersistFamily: fam}, nil

	default:
		return EncodeResult{}, fmt.Errorf("pico.EncodeSpectrum: family tag %d: %w", fam, ErrUnsupported)
	}
}

// usesCentroided1NoCompression mirrors EncodeCentroided1's own fallback
// gate (minCompressiblePeaks/minCompressibleSpan) so the pipeline can decide
// which family tag to persist without the family package exporting its
// internal thresholds.
func usesCentroided1NoCompression(mz []float64) bool {
	const minPeaks = 10
	const minSpan = 2.0
	if len(mz) < minPeaks {
		return true
	}
	span := 0.0
	if len(mz) > 0 {
		lo, hi := mz[0], mz[0]
		for _, v := range mz {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		span = hi - lo
	}
	return span < minSpan
}

// DecodeSpectrum reverses EncodeSpectrum. secondary is required for
// Centroided1/GenericNoCompression blobs (the intensity blob EncodeSpectrum
// returned as Secondary) and ignored otherwise.
func DecodeSpectrum(fam Family, primary, secondary []byte, opts DecodeOptions) (Spectrum, error) {
	if !fam.Valid() {
		return Spectrum{}, fmt.Errorf("pico.DecodeSpectrum: family tag %d: %w", fam, ErrUnsupported)
	}

	switch fam {
	case family.Bruker1:
		mz, intensity, err := family.DecodeBruker1(primary)
		if err != nil {
			return Spectrum{}, wrapDecodeErr("Bruker1", err)
		}
		return Spectrum{MZ: mz, Intensity: toFloat32Intensity(intensity)}, nil

	case family.Bruker2:
		mz, intensity, err := family.DecodeBruker2(primary)
		if err != nil {
			return Spectrum{}, wrapDecodeErr("Bruker2", err)
		}
		return Spectrum{MZ: mz, Intensity: toFloat32Intensity(intensity)}, nil

	case family.Centroided1, family.GenericNoCompression:
		mz, intensity, err := family.DecodeCentroided1(primary, secondary)
		if err != nil {
			return Spectrum{}, wrapDecodeErr("Centroided1", err)
		}
		return Spectrum{MZ: mz, Intensity: toFloat32Intensity(intensity)}, nil

	case family.Waters1:
		mz, intensity, err := family.DecodeWaters1(primary, family.Waters1Options{
			Calibration:  opts.Calibration,
			Modification: opts.Modification,
			RestoreZeros: opts.RestoreZeros,
		})
		if err != nil {
			if strings.Contains(err.Error(), "ms_type_6") {
				return Spectrum{}, fmt.Errorf("pico.DecodeSpectrum: Waters1: %v: %w", err, ErrUnsupported)
			}
			return Spectrum{}, wrapDecodeErr("Waters1", err)
		}
		return Spectrum{MZ: mz, Intensity: toFloat32Intensity(intensity)}, nil

	case family.AbSciex1:
		mz, intensity, err := family.DecodeAbSciex1(primary)
		if err != nil {
			return Spectrum{}, wrapDecodeErr("AbSciex1", err)
		}
		return Spectrum{MZ: mz, Intensity: toFloat32Intensity(intensity)}, nil

	default:
		return Spectrum{}, fmt.Errorf("pico.DecodeSpectrum: family tag %d: %w", fam, ErrUnsupported)
	}
}

func wrapEncodeErr(fam string, err error) error {
	return fmt.Errorf("pico.EncodeSpectrum: %s: %v: %w", fam, err, ErrMalformedBlob)
}

func wrapDecodeErr(fam string, err error) error {
	return fmt.Errorf("pico.DecodeSpectrum: %s: %v: %w", fam, err, ErrMalformedBlob)
}

// toUint32Intensity rounds vendor intensities to the non-negative integer
// domain every family codec's dictionary machinery is built on.
func toUint32Intensity(vals []float32) ([]uint32, error) {
	out := make([]uint32, len(vals))
	for i, v := range vals {
		if v < 0 {
			return nil, fmt.Errorf("negative intensity %v at index %d", v, i)
		}
		out[i] = uint32(math.Round(float64(v)))
	}
	return out, nil
}

func toFloat32Intensity(vals []uint32) []float32 {
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out
}
