package bond

import "math"

// Solver finds a root of f within [lo, hi]. Implementations are
// strictly sequential; each step depends on the previous bracket.
// ok is false when no root was found within the iteration budget —
// callers must treat that as "no answer", never as an approximate one.
type Solver interface {
	Solve(f func(float64) float64, lo, hi, tolerance float64, maxIterations int) (root float64, ok bool)
}

// Bisection is the default ranged root solver.
type Bisection struct{}

// Solve bisects [lo, hi] until |f(mid)| <= tolerance or the iteration
// budget is exhausted.
func (Bisection) Solve(f func(float64) float64, lo, hi, tolerance float64, maxIterations int) (float64, bool) {
	flo, fhi := f(lo), f(hi)
	if math.IsNaN(flo) || math.IsNaN(fhi) || flo*fhi > 0 {
		return math.NaN(), false
	}
	if math.Abs(flo) <= tolerance {
		return lo, true
	}
	if math.Abs(fhi) <= tolerance {
		return hi, true
	}
	for i := 0; i < maxIterations; i++ {
		mid := 0.5 * (lo + hi)
		fmid := f(mid)
		if math.IsNaN(fmid) {
			return math.NaN(), false
		}
		if math.Abs(fmid) <= tolerance {
			return mid, true
		}
		if flo*fmid < 0 {
			hi = mid
		} else {
			lo, flo = mid, fmid
		}
	}
	return math.NaN(), false
}

// Secant is a faster alternative for smooth repricing functions. It
// falls outside the bracket on pathological inputs, so it clamps each
// iterate back into [lo, hi].
type Secant struct{}

// Solve iterates the secant rule from the bracket endpoints.
func (Secant) Solve(f func(float64) float64, lo, hi, tolerance float64, maxIterations int) (float64, bool) {
	x0, x1 := lo, hi
	f0, f1 := f(x0), f(x1)
	if math.IsNaN(f0) || math.IsNaN(f1) {
		return math.NaN(), false
	}
	for i := 0; i < maxIterations; i++ {
		if math.Abs(f1) <= tolerance {
			return x1, true
		}
		if f1 == f0 {
			return math.NaN(), false
		}
		x2 := x1 - f1*(x1-x0)/(f1-f0)
		if x2 < lo {
			x2 = lo
		} else if x2 > hi {
			x2 = hi
		}
		x0, f0 = x1, f1
		x1 = x2
		f1 = f(x1)
		if math.IsNaN(f1) {
			return math.NaN(), false
		}
	}
	return math.NaN(), false
}
