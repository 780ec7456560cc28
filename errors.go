package pico

import "errors"

// Sentinel errors every exported pico function wraps its failures with, so
// callers can branch with errors.Is regardless of which family codec or
// pipeline stage actually produced the error.
var (
	// ErrMalformedBlob marks any read that would overrun a blob, any
	// dictionary index out of range, or any predictor state that fails to
	// invert. Never recoverable; the blob itself is bad.
	ErrMalformedBlob = errors.New("pico: malformed blob")
	// ErrUnsupported marks a request for behaviour this codec deliberately
	// does not implement (ms_type_6 spectra, an unrecognized family tag).
	ErrUnsupported = errors.New("pico: unsupported")
	// ErrIntegrityWarning marks a recoverable anomaly worth logging but not
	// worth aborting over. It is reported for a Centroided1 encode's
	// unsorted peaks and for its no-compression fallback; Waters1 reports
	// neither its own no-compression fallback nor any other anomaly.
	ErrIntegrityWarning = errors.New("pico: integrity warning")
)
