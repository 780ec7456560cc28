package meta_test

import (
	"testing"

	"github.com/msicodec/pico/internal/mzcodec"
	"github.com/msicodec/pico/meta"
)

func TestParseCalStringT0(t *testing.T) {
	p, err := meta.ParseCalString("1.0,0.5,0.0,Tx0")
	if err != nil {
		t.Fatalf("ParseCalString: %v", err)
	}
	if p.Type != mzcodec.PolyT0 {
		t.Fatalf("type = %v, want PolyT0", p.Type)
	}
	want := []float64{1.0, 0.5, 0.0}
	if len(p.Coeffs) != len(want) {
		t.Fatalf("coeffs = %v, want %v", p.Coeffs, want)
	}
	for i, c := range want {
		if p.Coeffs[i] != c {
			t.Errorf("coeffs[%d] = %v, want %v", i, p.Coeffs[i], c)
		}
	}
}

func TestParseCalStringT1(t *testing.T) {
	p, err := meta.ParseCalString("0,1.0001,0,0,0,0,Tx1")
	if err != nil {
		t.Fatalf("ParseCalString: %v", err)
	}
	if p.Type != mzcodec.PolyT1 {
		t.Fatalf("type = %v, want PolyT1", p.Type)
	}
	if len(p.Coeffs) != 6 {
		t.Fatalf("coeffs len = %d, want 6", len(p.Coeffs))
	}
}

func TestParseCalStringRejectsTooManyCoefficients(t *testing.T) {
	if _, err := meta.ParseCalString("0,0,0,0,0,0,0,Tx0"); err == nil {
		t.Fatalf("expected error for 7 coefficients")
	}
}

func TestParseCalStringRejectsMalformed(t *testing.T) {
	cases := []string{"", "1.0", "1.0,2.0,Tz0", "abc,Tx0"}
	for _, c := range cases {
		if _, err := meta.ParseCalString(c); err == nil {
			t.Errorf("ParseCalString(%q): expected error, got none", c)
		}
	}
}

func TestFormatCalStringRoundTrip(t *testing.T) {
	p := mzcodec.Poly{Type: mzcodec.PolyT1, Coeffs: []float64{0, 1.0001, 0, 0, 0, 0}}
	s := meta.FormatCalString(p)
	got, err := meta.ParseCalString(s)
	if err != nil {
		t.Fatalf("round trip parse: %v", err)
	}
	if got.Type != p.Type || len(got.Coeffs) != len(p.Coeffs) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, p)
	}
	for i := range p.Coeffs {
		if got.Coeffs[i] != p.Coeffs[i] {
			t.Errorf("coeffs[%d]: got %v, want %v", i, got.Coeffs[i], p.Coeffs[i])
		}
	}
}
