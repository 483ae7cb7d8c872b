package montecarlo

import (
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantfold/structpricer/internal/payoff"
)

// LegPricer estimates the expected per-period cash amounts of a bond
// leg by plain Monte Carlo: evaluate the full leg on every simulated
// path, sum per period, divide by path count.
type LegPricer struct {
	numWorkers int
	log        zerolog.Logger
}

// NewLegPricer creates a leg pricer with the given evaluation
// parallelism.
func NewLegPricer(numWorkers int, log zerolog.Logger) *LegPricer {
	if numWorkers <= 0 {
		numWorkers = 8
	}
	return &LegPricer{
		numWorkers: numWorkers,
		log:        log.With().Str("module", "montecarlo").Logger(),
	}
}

// Request describes one pricing run.
type Request struct {
	Leg     payoff.Leg
	Engines map[string]PathEngine // per underlying
	// Offsets are the event-time offsets in fractional years, one per
	// leg entry, aligned by index.
	Offsets []float64
	// Seeds optionally carries the bond's canonical knock states; each
	// path scenario starts from a copy of them.
	Seeds     []*payoff.State
	PathCount int
}

// Price runs the simulation and returns per-period expected amounts.
// It fails soft: any structural problem (no engines, engine offset
// mismatch) yields (nil, false) with a logged diagnostic rather than
// silently mis-aligned cash flows.
func (p *LegPricer) Price(req Request) ([]float64, bool) {
	if len(req.Leg) == 0 || req.PathCount <= 0 {
		return nil, false
	}
	if len(req.Offsets) != len(req.Leg) {
		p.log.Warn().
			Int("offsets", len(req.Offsets)).
			Int("leg", len(req.Leg)).
			Msg("Offset count does not match leg, refusing to price")
		return nil, false
	}

	// Simulate on the sorted distinct offsets; each leg entry maps to
	// its offset's position in that grid.
	grid := sortedDistinct(req.Offsets)
	gridIdx := make([]int, len(req.Offsets))
	for i, t := range req.Offsets {
		gridIdx[i] = sort.SearchFloat64s(grid, t)
	}

	variables := req.Leg.Variables()
	paths := make(map[string][][]float64, len(variables))
	for _, name := range variables {
		engine, ok := req.Engines[name]
		if !ok {
			p.log.Warn().Str("underlying", name).Msg("No path engine for underlying")
			return nil, false
		}
		used, px := engine.GeneratePaths(grid, req.PathCount)
		if !offsetsEqual(used, grid) {
			p.log.Warn().
				Str("underlying", name).
				Floats64("requested", grid).
				Floats64("used", used).
				Msg("Engine dates differ from requested offsets, discarding result")
			return nil, false
		}
		paths[name] = px
	}

	sums := make([]float64, len(req.Leg))
	var mu sync.Mutex

	jobs := make(chan int, req.PathCount)
	var wg sync.WaitGroup

	workers := p.numWorkers
	if req.PathCount < workers {
		workers = req.PathCount
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]float64, len(req.Leg))
			for l := range jobs {
				p.evaluatePath(req, variables, paths, gridIdx, l, local)
			}
			mu.Lock()
			for i, v := range local {
				sums[i] += v
			}
			mu.Unlock()
		}()
	}
	for l := 0; l < req.PathCount; l++ {
		jobs <- l
	}
	close(jobs)
	wg.Wait()

	out := make([]float64, len(sums))
	for i, v := range sums {
		out[i] = v / float64(req.PathCount)
	}
	return out, true
}

// evaluatePath prices the whole leg on path l and accumulates into
// acc. Each path is an independent scenario whose knock states start
// from a copy of the canonical seeds.
func (p *LegPricer) evaluatePath(req Request, variables []string, paths map[string][][]float64, gridIdx []int, l int, acc []float64) {
	leg := req.Leg
	gridLen := 0
	if len(variables) > 0 {
		gridLen = len(paths[variables[0]][l])
	}

	// Fixing history along the path, shared by all leg entries.
	history := make([]map[string]float64, gridLen)
	for k := 0; k < gridLen; k++ {
		snap := make(map[string]float64, len(variables))
		for _, name := range variables {
			snap[name] = paths[name][l][k]
		}
		history[k] = snap
	}

	for i, sp := range leg {
		if sp.Note == nil {
			acc[i] += math.NaN()
			continue
		}
		st := payoff.NewState()
		if i < len(req.Seeds) && req.Seeds[i] != nil {
			st = req.Seeds[i].Clone()
		}
		upto := gridIdx[i] + 1
		if upto > len(history) {
			upto = len(history)
		}
		acc[i] += sp.Note.EvaluatePath(st, history[:upto])
	}
}

func sortedDistinct(offsets []float64) []float64 {
	out := append([]float64(nil), offsets...)
	sort.Float64s(out)
	j := 0
	for i := 0; i < len(out); i++ {
		if i == 0 || out[i] != out[i-1] {
			out[j] = out[i]
			j++
		}
	}
	return out[:j]
}

func offsetsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
