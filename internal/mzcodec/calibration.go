package mzcodec

import "math"

// PolyType tags which monomial basis a calibration polynomial's coefficients
// are expressed in.
type PolyType int

const (
	// PolyNone marks the absence of a calibration polynomial.
	PolyNone PolyType = iota
	// PolyT0 evaluates the coefficients as monomials in mz directly.
	PolyT0
	// PolyT1 evaluates the coefficients as monomials in sqrt(mz), then
	// squares the result.
	PolyT1
)

// Poly is one calibration polynomial: an ordered coefficient list and the
// basis it is expressed in. Coeffs[0] is the constant term.
type Poly struct {
	Type   PolyType
	Coeffs []float64
}

// Calibrate applies the primary calibration polynomial to an already
// segment-decoded m/z value, then the modification polynomial if one is
// present. The order is fixed: segment-decode (by the caller) -> primary ->
// modification.
//
// The primary polynomial's effective basis is not taken from cal.Type: the
// reference decoder picks the branch by the sign of the linear
// coefficient alone. When Coeffs[1] < 0 it evaluates the quartic-in-mz form
// with the sign of the linear term flipped; otherwise it evaluates the
// sqrt(mz) form and squares it. This is preserved bit-exactly — do not
// "fix" it to dispatch on cal.Type instead.
func Calibrate(val float64, cal Poly, mod *Poly) float64 {
	out := val
	if len(cal.Coeffs) > 0 {
		out = evalPrimary(val, cal.Coeffs)
	}
	if mod != nil && mod.Type != PolyNone {
		out = evalModification(out, *mod)
	}
	return out
}

// evalPrimary reproduces decodeAndCalibrateMzType1's two hard-coded
// five/six-coefficient forms.
func evalPrimary(val float64, c []float64) float64 {
	get := func(i int) float64 {
		if i < len(c) {
			return c[i]
		}
		return 0
	}
	if get(1) < 0 {
		val2 := val * val
		return get(0) - get(1)*val + get(2)*val2 + get(3)*val2*val + get(4)*val2*val2
	}
	vsq := math.Sqrt(val)
	val2 := val * val
	out := get(0) + get(1)*vsq + get(2)*val + get(3)*vsq*val + get(4)*val2 + get(5)*val2*vsq
	return out * out
}

// evalModification applies a second, arbitrary-length calibration
// polynomial over the already-primary-calibrated value, per the coefficient
// count and Type recorded for the spectrum's instrument function.
func evalModification(mzi float64, mod Poly) float64 {
	if mod.Type == PolyT0 {
		out := 0.0
		p := 1.0
		for _, c := range mod.Coeffs {
			out += c * p
			p *= mzi
		}
		return out
	}
	vsq := math.Sqrt(mzi)
	out := 0.0
	p := 1.0
	for _, c := range mod.Coeffs {
		out += c * p
		p *= vsq
	}
	return out * out
}
