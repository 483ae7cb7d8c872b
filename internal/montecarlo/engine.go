package montecarlo

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// PathEngine simulates one underlying over a sequence of event-time
// offsets (ascending fractional years from the valuation date).
// datesUsed echoes the offsets the engine actually simulated; callers
// must verify it matches the request before trusting the paths.
type PathEngine interface {
	GeneratePaths(offsets []float64, pathCount int) (datesUsed []float64, paths [][]float64)
}

// GBMEngine is the default single-factor continuous-compounding
// drift/volatility process.
//
// Path i draws from a source seeded with Seed+i, so a path is
// deterministic given (seed, index) and results are reproducible
// across runs and worker counts.
type GBMEngine struct {
	Spot  float64
	Drift float64
	Vol   float64
	Seed  uint64
}

// GeneratePaths simulates pathCount independent paths aligned to the
// requested offsets.
func (e *GBMEngine) GeneratePaths(offsets []float64, pathCount int) ([]float64, [][]float64) {
	n := len(offsets)
	datesUsed := append([]float64(nil), offsets...)
	paths := make([][]float64, pathCount)

	for i := 0; i < pathCount; i++ {
		normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(e.Seed + uint64(i))}
		path := make([]float64, n)
		s := e.Spot
		prev := 0.0
		for k, t := range offsets {
			dt := t - prev
			prev = t
			if dt > 0 {
				z := 0.0
				if e.Vol > 0 {
					z = normal.Rand()
				}
				s *= math.Exp((e.Drift-0.5*e.Vol*e.Vol)*dt + e.Vol*math.Sqrt(dt)*z)
			}
			path[k] = s
		}
		paths[i] = path
	}
	return datesUsed, paths
}

// Forward returns the deterministic forward level at offset t, i.e.
// the zero-volatility path value. Closed-form evaluation prices off
// this.
func (e *GBMEngine) Forward(t float64) float64 {
	return e.Spot * math.Exp(e.Drift*t)
}
