package meta

import (
	"strconv"
	"strings"

	"github.com/mewkiz/pkg/errutil"

	"github.com/msicodec/pico/internal/mzcodec"
)

// ParseCalString parses a "Cal Function N" / "Cal Modification N" metadata
// value: a comma-separated list of doubles followed by a trailing type tag
// of the form "Tx0" or "Tx1" ("1.0,0.5,0.0,Tx0"). The tag's digit selects
// mzcodec.PolyT0 or mzcodec.PolyT1.
func ParseCalString(s string) (mzcodec.Poly, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return mzcodec.Poly{}, errutil.Newf("meta.ParseCalString: %q has no coefficients and type tag", s)
	}
	tag := strings.TrimSpace(parts[len(parts)-1])
	if !strings.HasPrefix(tag, "Tx") || len(tag) != 3 {
		return mzcodec.Poly{}, errutil.Newf("meta.ParseCalString: %q does not end in a Tx0/Tx1 tag", s)
	}
	var typ mzcodec.PolyType
	switch tag[2] {
	case '0':
		typ = mzcodec.PolyT0
	case '1':
		typ = mzcodec.PolyT1
	default:
		return mzcodec.Poly{}, errutil.Newf("meta.ParseCalString: unrecognized type tag %q", tag)
	}

	coeffs := make([]float64, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return mzcodec.Poly{}, errutil.Newf("meta.ParseCalString: invalid coefficient %q in %q", p, s)
		}
		coeffs = append(coeffs, v)
	}
	if len(coeffs) > 6 {
		return mzcodec.Poly{}, errutil.Newf("meta.ParseCalString: %d coefficients exceeds the 6-coefficient limit", len(coeffs))
	}
	return mzcodec.Poly{Type: typ, Coeffs: coeffs}, nil
}

// FormatCalString is the inverse of ParseCalString, used when the encoder
// writes a calibration polynomial back out to the metadata store.
func FormatCalString(p mzcodec.Poly) string {
	var b strings.Builder
	for _, c := range p.Coeffs {
		b.WriteString(strconv.FormatFloat(c, 'g', -1, 64))
		b.WriteByte(',')
	}
	switch p.Type {
	case mzcodec.PolyT1:
		b.WriteString("Tx1")
	default:
		b.WriteString("Tx0")
	}
	return b.String()
}
