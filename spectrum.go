// Package pico is the root of the spectrum codec: it ties the five family
// codecs (package family), the m/z segment/calibration codec (package
// internal/mzcodec) and the companion metadata store (package meta) into
// the two library entry points a caller actually needs — EncodeSpectrum and
// DecodeSpectrum — plus a Pipeline driver (package pipeline) that walks a whole
// acquisition scan by scan. It plays the role the teacher's top-level flac
// package plays for a FLAC stream: the other packages are the codec
// internals, this one is what an application imports.
package pico

import "github.com/msicodec/pico/family"

// Spectrum is one scan's decoded (m/z, intensity) pairs, index-aligned:
// MZ[i] is the m/z of the sample with intensity Intensity[i]. Intensity is
// carried as float32 rather than the family codecs' native uint32 since
// vendor acquisition intensities are themselves floats before any
// quantisation this codec applies.
type Spectrum struct {
	MZ        []float64
	Intensity []float32
}

// Family identifies which of the five compression schemes produced a blob.
// It is an alias of family.Tag rather than a parallel enum, so the two
// packages' constants are always in lockstep and a Family value can be
// passed directly to anything expecting a family.Tag.
type Family = family.Tag

// Family tag values, re-exported from package family for callers that don't
// want to import it directly. These integers are persisted in archived
// metadata stores and must never be renumbered; see family.Tag.
const (
	FamilyBruker1              = family.Bruker1
	FamilyCentroided1          = family.Centroided1
	FamilyGenericNoCompression = family.GenericNoCompression
	FamilyAbSciex1             = family.AbSciex1
	FamilyBruker2              = family.Bruker2
	FamilyWaters1              = family.Waters1
)
