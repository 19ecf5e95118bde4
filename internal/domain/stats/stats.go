// Package stats holds the small statistics kernel behind the results
// report: means and the two-sided paired-samples t-test.
package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrLengthMismatch is returned when paired samples differ in length.
var ErrLengthMismatch = errors.New("paired samples differ in length")

// Mean returns the arithmetic mean of xs, or NaN when xs is empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// Paired is the outcome of a paired t-test of x against y.
type Paired struct {
	N        int     // number of pairs
	MeanDiff float64 // mean(x - y)
	T        float64 // t statistic; NaN when undefined
	P        float64 // two-sided p-value; NaN when undefined
}

// Defined reports whether the test produced a p-value.
func (p Paired) Defined() bool { return !math.IsNaN(p.P) }

// PairedTTest runs a two-sided paired-samples t-test on x and y.
//
// The p-value is NaN with fewer than two pairs, or when every difference is
// zero. Constant non-zero differences give an infinite statistic and p = 0.
func PairedTTest(x, y []float64) (Paired, error) {
	if len(x) != len(y) {
		return Paired{}, ErrLengthMismatch
	}
	n := len(x)
	res := Paired{N: n, MeanDiff: math.NaN(), T: math.NaN(), P: math.NaN()}
	if n == 0 {
		return res, nil
	}

	d := make([]float64, n)
	for i := range x {
		d[i] = x[i] - y[i]
	}
	res.MeanDiff = stat.Mean(d, nil)
	if n < 2 {
		return res, nil
	}

	sd := stat.StdDev(d, nil)
	if sd == 0 {
		if res.MeanDiff == 0 {
			return res, nil
		}
		res.T = math.Copysign(math.Inf(1), res.MeanDiff)
		res.P = 0
		return res, nil
	}

	res.T = res.MeanDiff / (sd / math.Sqrt(float64(n)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	res.P = math.Min(1, 2*dist.Survival(math.Abs(res.T)))
	return res, nil
}
