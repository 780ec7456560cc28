// Package meta implements the companion metadata store (C5 in the design):
// a small key/value table alongside the compressed blobs, carrying version
// strings, per-function calibration polynomials, the compression-family tag,
// and per-scan intensity sums. It plays the role the teacher codec's
// metadata blocks (meta.Block, meta.VorbisComment) play for a FLAC stream,
// except the backing store here is an arbitrary external database reached
// through the Store interface rather than a block format embedded in the
// file itself.
package meta

import "context"

// BlobKind identifies which of a scan's one or two compressed blobs a
// ReadBlob/WriteBlob call addresses. Most families write a single combined
// blob; Centroided1 (and its GenericNoCompression fallback) splits its
// payload into an m/z blob and an intensity blob. The pipeline's raw
// staging uses the same two kinds for m/z and intensity arrays.
type BlobKind int

const (
	// BlobPrimary is the only blob for single-blob families, and the m/z
	// blob for Centroided1.
	BlobPrimary BlobKind = iota
	// BlobPosition is the second blob Centroided1 writes, carrying its
	// intensity payload.
	BlobPosition
)

// Store is the persistence boundary this module assumes: a key/value table
// for scalar metadata, plus per-scan blob and intensity-sum storage. A
// caller backs it with whatever database the artifact lives in; this
// package makes no assumption about SQL, file layout, or transactions
// beyond what each method documents.
type Store interface {
	// Get reads a metadata value by key. found is false if the key is
	// absent, which is not itself an error.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set writes a metadata value, creating or overwriting the key.
	Set(ctx context.Context, key, value string) error

	// ReadBlob reads the compressed blob of the given kind for a scan.
	ReadBlob(ctx context.Context, scanID int64, kind BlobKind) ([]byte, error)
	// WriteBlob writes the compressed blob of the given kind for a scan.
	WriteBlob(ctx context.Context, scanID int64, kind BlobKind, blob []byte) error

	// SetIntensitySum records a scan's total ion current, computed once at
	// encode time rather than recomputed on every decode.
	SetIntensitySum(ctx context.Context, scanID int64, sum float64) error

	// ScanIDs returns every scan ID known to the store, in no particular
	// order. Used by the pipeline to drive a full-artifact run.
	ScanIDs(ctx context.Context) ([]int64, error)
}
