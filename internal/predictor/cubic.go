// Package predictor implements the cubic least-squares predictor shared by
// several family codecs (C2 in the design). It plays the same structural
// role the teacher codec's fixed and LPC predictors play in frame/subframe
// encoding: a small, stateless fit computed once per subframe (here, once
// per spectrum) whose coefficients are then
// serialized ahead of the residual stream.
package predictor

import "math"

// Coeffs holds the four coefficients of a cubic y = a*x^3 + b*x^2 + c*x + d,
// always carried in wire order (d, c, b, a) per the design's Predictor
// state layout.
type Coeffs struct {
	D, C, B, A float64
}

// Eval evaluates the cubic at x.
func (p Coeffs) Eval(x float64) float64 {
	return p.D + x*(p.C+x*(p.B+x*p.A))
}

// IsOldStyle reproduces the heuristic the reference implementation
// (PicoLocalDecompress.cpp:2203/:2436) uses to pick new-style versus
// old-style prediction: new style requires every coefficient to be
// non-negligible (abs > 1e-30) and the cubic evaluated at x=100 to fall in
// (1e-6, 100) in absolute value; old style is everything else, including
// the degenerate (0,1,0,0) vector Fit returns for an unfittable input. This
// is not a principled test, just the bit-exact rule preserved from the
// original encoder; do not generalize it.
func (p Coeffs) IsOldStyle() bool {
	dz100 := p.D + 100*p.C + 10000*p.B + 1e6*p.A
	newStyle := math.Abs(p.D) > 1e-30 && math.Abs(p.C) > 1e-30 && math.Abs(p.B) > 1e-30 && math.Abs(p.A) > 1e-30 &&
		math.Abs(dz100) > 1e-6 && math.Abs(dz100) < 100.0
	return !newStyle
}

// degenerate is the coefficient vector Fit returns for fewer than two points
// or when every x is equal: identity in the linear term, matching the
// "old-style / not-a-real-fit" sentinel downstream callers check for via
// IsOldStyle.
var degenerate = Coeffs{D: 0, C: 1, B: 0, A: 0}

// Fit computes the least-squares cubic through the given (x, y) observations
// using the normal equations, solved by Gauss-Jordan elimination with
// partial row swaps (first non-zero pivot row, no further pivoting
// heuristics). Returns the degenerate identity vector for fewer than two
// points or when all x values coincide.
func Fit(xs, ys []float64) Coeffs {
	n := len(xs)
	if n < 2 || allEqual(xs) {
		return degenerate
	}

	// Accumulate power sums: sx[k] = sum(x^k) for k=0..6, sxy[k] = sum(x^k*y)
	// for k=0..3.
	var sx [7]float64
	var sxy [4]float64
	for i := 0; i < n; i++ {
		x := xs[i]
		y := ys[i]
		xp := 1.0
		for k := 0; k < 7; k++ {
			sx[k] += xp
			if k < 4 {
				sxy[k] += xp * y
			}
			xp *= x
		}
	}

	// Normal equations for y = d + c*x + b*x^2 + a*x^3:
	//   [sx0 sx1 sx2 sx3] [d]   [sxy0]
	//   [sx1 sx2 sx3 sx4] [c] = [sxy1]
	//   [sx2 sx3 sx4 sx5] [b]   [sxy2]
	//   [sx3 sx4 sx5 sx6] [a]   [sxy3]
	var m [4][5]float64
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			m[row][col] = sx[row+col]
		}
		m[row][4] = sxy[row]
	}

	coeffs, ok := gaussJordan(m)
	if !ok {
		return degenerate
	}
	return Coeffs{D: coeffs[0], C: coeffs[1], B: coeffs[2], A: coeffs[3]}
}

func allEqual(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

// gaussJordan solves a 4x4 augmented system in place, swapping to the first
// non-zero pivot row in each column. Returns ok=false if a column has no
// usable pivot (singular system).
func gaussJordan(m [4][5]float64) (x [4]float64, ok bool) {
	const n = 4
	for col := 0; col < n; col++ {
		pivot := col
		for pivot < n && m[pivot][col] == 0 {
			pivot++
		}
		if pivot == n {
			return x, false
		}
		if pivot != col {
			m[pivot], m[col] = m[col], m[pivot]
		}

		pv := m[col][col]
		for k := col; k <= n; k++ {
			m[col][k] /= pv
		}

		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := m[row][col]
			if factor == 0 {
				continue
			}
			for k := col; k <= n; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}
	for i := 0; i < n; i++ {
		x[i] = m[i][n]
	}
	return x, true
}
