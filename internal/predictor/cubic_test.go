package predictor_test

import (
	"math"
	"testing"

	"github.com/msicodec/pico/internal/predictor"
)

func TestFitExactCubic(t *testing.T) {
	want := predictor.Coeffs{D: 2, C: -1.5, B: 0.25, A: 0.01}
	var xs, ys []float64
	for i := 0; i < 8; i++ {
		x := float64(i)
		xs = append(xs, x)
		ys = append(ys, want.Eval(x))
	}

	got := predictor.Fit(xs, ys)
	const tol = 1e-9
	check := func(name string, got, want float64) {
		if math.Abs(got-want) > tol*math.Max(1, math.Abs(want)) {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
	}
	check("D", got.D, want.D)
	check("C", got.C, want.C)
	check("B", got.B, want.B)
	check("A", got.A, want.A)
}

func TestFitDegenerate(t *testing.T) {
	cases := [][]float64{
		{},
		{1},
		{5, 5, 5},
	}
	for _, xs := range cases {
		ys := make([]float64, len(xs))
		got := predictor.Fit(xs, ys)
		want := predictor.Coeffs{D: 0, C: 1, B: 0, A: 0}
		if got != want {
			t.Errorf("Fit(%v, ...) = %+v, want %+v", xs, got, want)
		}
		if !got.IsOldStyle() {
			t.Errorf("degenerate fit %+v should be flagged old-style", got)
		}
	}
}

func TestEval(t *testing.T) {
	p := predictor.Coeffs{D: 1, C: 2, B: 3, A: 4}
	got := p.Eval(2)
	want := 1 + 2*2 + 3*4 + 4*8.0
	if got != want {
		t.Errorf("Eval(2) = %v, want %v", got, want)
	}
}
