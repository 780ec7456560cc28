// Package pipeline drives the pico codec over a whole acquisition: one
// scan at a time, through a meta.Store, with the same "walk every block,
// log what's recoverable, abort on what isn't" shape the teacher's
// flac.NewStream uses to walk a FLAC stream's metadata blocks and frames.
package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"

	"github.com/mewkiz/pkg/errutil"
	pkgerrors "github.com/pkg/errors"

	"github.com/msicodec/pico"
	"github.com/msicodec/pico/meta"
)

// Direction selects which way Run converts a whole store. Encode reads
// raw, uncompressed spectra from src (staged as headerless little-endian
// arrays: f64 m/z in BlobPrimary, f32 intensity in BlobPosition) and
// writes compressed blobs to dst; Decode reads compressed blobs from src
// and writes raw spectra back to dst in that same layout.
type Direction int

const (
	Encode Direction = iota
	Decode
)

// Stats accumulates the outcome of a Run call across every scan it visited.
type Stats struct {
	ScansProcessed    int
	IntegrityWarnings int
}

// Pipeline drives EncodeScan/DecodeScan against a Store, generalizing the
// teacher's top-level Stream/Encoder: where flac.NewStream owns an
// io.Reader and loops its metadata blocks then frames in one pass, Pipeline
// owns a meta.Store and loops scan IDs, dispatching each one through
// pico.EncodeSpectrum/DecodeSpectrum.
type Pipeline struct {
	Store meta.Store
	// Logger receives one line per IntegrityWarning-worthy anomaly
	// (teacher precedent: flac.go's log.Printf for an unrecognized
	// metadata block). Defaults to log.Default() when nil.
	Logger *log.Logger
}

func (p *Pipeline) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

// EncodeScan compresses s under fam and writes the resulting blob(s),
// persisted family tag, and total ion current to the pipeline's Store for
// scanID. A no-compression fallback or an unsorted-centroided reorder is
// logged and, once every write has succeeded, returned as an error
// wrapping pico.ErrIntegrityWarning, which Run counts instead of aborting.
func (p *Pipeline) EncodeScan(ctx context.Context, scanID int64, s pico.Spectrum, fam pico.Family) error {
	res, err := pico.EncodeSpectrum(fam, s)
	if err != nil {
		return fmt.Errorf("pipeline.EncodeScan: scan %d: %w", scanID, err)
	}
	if res.Warn {
		p.logger().Printf("pipeline: scan %d: %v", scanID, pico.ErrIntegrityWarning)
	}

	if err := p.Store.WriteBlob(ctx, scanID, meta.BlobPrimary, res.Primary); err != nil {
		return errutil.Err(err)
	}
	if res.Secondary != nil {
		if err := p.Store.WriteBlob(ctx, scanID, meta.BlobPosition, res.Secondary); err != nil {
			return errutil.Err(err)
		}
	}
	if err := p.Store.Set(ctx, scanFamilyKey(scanID), fmt.Sprintf("%d", uint8(res.PersistFamily))); err != nil {
		return errutil.Err(err)
	}

	sum := 0.0
	for _, v := range s.Intensity {
		sum += float64(v)
	}
	if err := p.Store.SetIntensitySum(ctx, scanID, sum); err != nil {
		return errutil.Err(err)
	}
	if res.Warn {
		return fmt.Errorf("pipeline.EncodeScan: scan %d: %w", scanID, pico.ErrIntegrityWarning)
	}
	return nil
}

// DecodeScan reads scanID's blob(s) under fam and reverses EncodeScan.
func (p *Pipeline) DecodeScan(ctx context.Context, scanID int64, fam pico.Family, opts pico.DecodeOptions) (pico.Spectrum, error) {
	primary, err := p.Store.ReadBlob(ctx, scanID, meta.BlobPrimary)
	if err != nil {
		return pico.Spectrum{}, errutil.Err(err)
	}
	var secondary []byte
	if fam == pico.FamilyCentroided1 || fam == pico.FamilyGenericNoCompression {
		secondary, err = p.Store.ReadBlob(ctx, scanID, meta.BlobPosition)
		if err != nil {
			return pico.Spectrum{}, errutil.Err(err)
		}
	}

	s, err := pico.DecodeSpectrum(fam, primary, secondary, opts)
	if err != nil {
		return pico.Spectrum{}, fmt.Errorf("pipeline.DecodeScan: scan %d: %w", scanID, err)
	}
	return s, nil
}

// Run drives every scan ID in src through EncodeScan or DecodeScan
// (according to direction) and writes the result to dst, which may be the
// same Store as src. It returns on the first MalformedBlob or Unsupported
// error; IntegrityWarnings are logged and tallied in the returned Stats
// instead of aborting, per the error taxonomy's abort/continue split. A
// genuine abort is returned wrapped in a stack trace (pkg/errors.WithStack,
// the teacher's own cmd/wav2flac idiom) since an operator diagnosing a
// failed whole-artifact conversion needs more than the innermost message.
func (p *Pipeline) Run(ctx context.Context, src, dst meta.Store, direction Direction) (Stats, error) {
	var stats Stats
	ids, err := src.ScanIDs(ctx)
	if err != nil {
		return stats, errutil.Err(err)
	}

	srcPipeline := &Pipeline{Store: src, Logger: p.logger()}
	dstPipeline := &Pipeline{Store: dst, Logger: p.logger()}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stats, errutil.Err(err)
		}

		switch direction {
		case Encode:
			// The target family for each scan is read from dst, not src:
			// callers pre-populate dst's ScanFamily rows with the family
			// they want each scan compressed into before calling Run.
			fam, err := scanFamily(ctx, dst, id)
			if err != nil {
				return stats, fmt.Errorf("pipeline.Run: scan %d: %w", id, err)
			}
			s, err := readRawSpectrum(ctx, src, id)
			if err != nil {
				return stats, fmt.Errorf("pipeline.Run: scan %d: %w", id, err)
			}
			if err := dstPipeline.EncodeScan(ctx, id, s, fam); err != nil {
				if errors.Is(err, pico.ErrIntegrityWarning) {
					stats.IntegrityWarnings++
				} else {
					return stats, pkgerrors.WithStack(err)
				}
			}

		case Decode:
			fam, err := scanFamily(ctx, src, id)
			if err != nil {
				return stats, fmt.Errorf("pipeline.Run: scan %d: %w", id, err)
			}
			s, err := srcPipeline.DecodeScan(ctx, id, fam, pico.DecodeOptions{RestoreZeros: true})
			if err != nil {
				return stats, pkgerrors.WithStack(err)
			}
			if err := writeRawSpectrum(ctx, dst, id, s); err != nil {
				return stats, fmt.Errorf("pipeline.Run: scan %d: %w", id, err)
			}
		}
		stats.ScansProcessed++
	}
	return stats, nil
}

// scanFamilyKey templates the per-scan persisted-family metadata key.
func scanFamilyKey(scanID int64) string {
	return fmt.Sprintf("ScanFamily %d", scanID)
}

// scanFamily reads the persisted family tag EncodeScan wrote for scanID.
func scanFamily(ctx context.Context, s meta.Store, scanID int64) (pico.Family, error) {
	v, ok, err := s.Get(ctx, scanFamilyKey(scanID))
	if err != nil {
		return 0, errutil.Err(err)
	}
	if !ok {
		return 0, fmt.Errorf("pipeline: scan %d: missing family tag: %w", scanID, pico.ErrMalformedBlob)
	}
	var raw uint8
	if _, err := fmt.Sscanf(v, "%d", &raw); err != nil {
		return 0, fmt.Errorf("pipeline: scan %d: malformed family tag %q: %w", scanID, v, pico.ErrMalformedBlob)
	}
	fam := pico.Family(raw)
	if !fam.Valid() {
		return 0, fmt.Errorf("pipeline: scan %d: family tag %d: %w", scanID, raw, pico.ErrUnsupported)
	}
	return fam, nil
}

// readRawSpectrum/writeRawSpectrum stage an uncompressed Spectrum through
// the same BlobPrimary/BlobPosition kinds EncodeScan/DecodeScan use for
// compressed payloads, but as plain little-endian arrays (f64 m/z, f32
// intensity) rather than a family wire format — the simplest "no codec at
// all" layout, reusing encoding/binary the way the rest of this module
// does for every other fixed-width header field.
func readRawSpectrum(ctx context.Context, s meta.Store, scanID int64) (pico.Spectrum, error) {
	mzBlob, err := s.ReadBlob(ctx, scanID, meta.BlobPrimary)
	if err != nil {
		return pico.Spectrum{}, errutil.Err(err)
	}
	intensBlob, err := s.ReadBlob(ctx, scanID, meta.BlobPosition)
	if err != nil {
		return pico.Spectrum{}, errutil.Err(err)
	}
	if len(mzBlob)%8 != 0 {
		return pico.Spectrum{}, fmt.Errorf("pipeline: scan %d: raw m/z blob length %d not a multiple of 8: %w", scanID, len(mzBlob), pico.ErrMalformedBlob)
	}
	if len(intensBlob)%4 != 0 {
		return pico.Spectrum{}, fmt.Errorf("pipeline: scan %d: raw intensity blob length %d not a multiple of 4: %w", scanID, len(intensBlob), pico.ErrMalformedBlob)
	}

	mz := make([]float64, len(mzBlob)/8)
	r := bytes.NewReader(mzBlob)
	if err := binary.Read(r, binary.LittleEndian, &mz); err != nil {
		return pico.Spectrum{}, fmt.Errorf("pipeline: scan %d: %v: %w", scanID, err, pico.ErrMalformedBlob)
	}
	intensity := make([]float32, len(intensBlob)/4)
	r = bytes.NewReader(intensBlob)
	if err := binary.Read(r, binary.LittleEndian, &intensity); err != nil {
		return pico.Spectrum{}, fmt.Errorf("pipeline: scan %d: %v: %w", scanID, err, pico.ErrMalformedBlob)
	}
	return pico.Spectrum{MZ: mz, Intensity: intensity}, nil
}

func writeRawSpectrum(ctx context.Context, s meta.Store, scanID int64, spec pico.Spectrum) error {
	mzBuf := new(bytes.Buffer)
	if err := binary.Write(mzBuf, binary.LittleEndian, spec.MZ); err != nil {
		return errutil.Err(err)
	}
	intensBuf := new(bytes.Buffer)
	if err := binary.Write(intensBuf, binary.LittleEndian, spec.Intensity); err != nil {
		return errutil.Err(err)
	}
	if err := s.WriteBlob(ctx, scanID, meta.BlobPrimary, mzBuf.Bytes()); err != nil {
		return errutil.Err(err)
	}
	return s.WriteBlob(ctx, scanID, meta.BlobPosition, intensBuf.Bytes())
}
