package metrics

import (
	"errors"
	"math"
)

// ErrDegeneratePolyfit is returned when the normal equations are singular
// (too few distinct x values for a degree-2 fit).
var ErrDegeneratePolyfit = errors.New("degenerate polynomial fit")

// polyfit2 fits y = c0 + c1*x + c2*x^2 by least squares and returns the
// coefficients. Requires at least 3 points with 3 distinct x values.
func polyfit2(xs, ys []float64) (c0, c1, c2 float64, err error) {
	n := len(xs)
	if n < 3 || len(ys) != n {
		return 0, 0, 0, ErrDegeneratePolyfit
	}

	// Power sums for the 3x3 normal equations.
	var s0, s1, s2, s3, s4 float64
	var t0, t1, t2 float64
	s0 = float64(n)
	for i := 0; i < n; i++ {
		x := xs[i]
		x2 := x * x
		s1 += x
		s2 += x2
		s3 += x2 * x
		s4 += x2 * x2
		t0 += ys[i]
		t1 += ys[i] * x
		t2 += ys[i] * x2
	}

	// Solve:
	//   | s0 s1 s2 | | c0 |   | t0 |
	//   | s1 s2 s3 | | c1 | = | t1 |
	//   | s2 s3 s4 | | c2 |   | t2 |
	det := s0*(s2*s4-s3*s3) - s1*(s1*s4-s3*s2) + s2*(s1*s3-s2*s2)
	if math.Abs(det) < 1e-12 {
		return 0, 0, 0, ErrDegeneratePolyfit
	}

	c0 = (t0*(s2*s4-s3*s3) - s1*(t1*s4-s3*t2) + s2*(t1*s3-s2*t2)) / det
	c1 = (s0*(t1*s4-s3*t2) - t0*(s1*s4-s3*s2) + s2*(s1*t2-t1*s2)) / det
	c2 = (s0*(s2*t2-t1*s3) - s1*(s1*t2-t1*s2) + t0*(s1*s3-s2*s2)) / det

	return c0, c1, c2, nil
}
