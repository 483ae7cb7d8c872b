package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/structpricer/internal/dates"
	"github.com/quantfold/structpricer/internal/market"
	"github.com/quantfold/structpricer/internal/montecarlo"
	"github.com/quantfold/structpricer/internal/payoff"
)

// DefaultPathCount is the path count a freshly initialized Monte
// Carlo model starts with. Owners that configured a different count
// must restore it after reinitializing the model.
const DefaultPathCount = 10000

// Model prices a bond leg. Implementations own their calibration
// state, path count and a nested value cache.
type Model interface {
	// Price returns the expected per-period cash amounts, discounted
	// by curve when one is supplied (nil attempts a curve-free price).
	// ok is false when no price could be produced.
	Price(curve market.Curve) (values []float64, ok bool)
	// Calibrate fits the model to the market snapshot.
	Calibrate(mkt *market.Market)
	// Calibrated reports whether Calibrate has run.
	Calibrated() bool
	// SetPathCount hot-swaps the simulation path count without a full
	// recalibration.
	SetPathCount(n int)
	// PathCount returns the active path count.
	PathCount() int
	// ClearCache transitively invalidates the model's nested cache.
	ClearCache()
}

// HistoryProvider supplies historical fixing series for calibration.
type HistoryProvider interface {
	Series(name string, limit int) ([]float64, error)
}

// MonteCarloModel estimates leg prices by simulation over per-path
// deterministic GBM engines.
type MonteCarloModel struct {
	valuation time.Time
	leg       payoff.Leg
	states    []*payoff.State
	offsets   []float64
	engines   map[string]montecarlo.PathEngine

	history HistoryProvider
	pricer  *montecarlo.LegPricer
	cache   *GenCache

	pathCount  int
	seed       uint64
	calibrated bool
	log        zerolog.Logger
}

// NewMonteCarloModel builds an uncalibrated Monte Carlo model for a
// leg. Event-time offsets are measured from the valuation date on
// ACT/365F. states is the bond's canonical knock-state slice; each
// simulated path starts from a copy of it.
func NewMonteCarloModel(valuation time.Time, leg payoff.Leg, states []*payoff.State, history HistoryProvider, seed uint64, log zerolog.Logger) *MonteCarloModel {
	return &MonteCarloModel{
		valuation: valuation,
		leg:       leg,
		states:    states,
		offsets:   eventOffsets(valuation, leg),
		history:   history,
		pricer:    montecarlo.NewLegPricer(0, log),
		cache:     NewGenCache(),
		pathCount: DefaultPathCount,
		seed:      seed,
		log:       log.With().Str("model", "montecarlo").Logger(),
	}
}

// Calibrate rebuilds the per-underlying engines from the market
// snapshot, preferring historically estimated volatility over the
// index reference when a series is available.
func (m *MonteCarloModel) Calibrate(mkt *market.Market) {
	m.engines = calibrateEngines(mkt, m.leg.Variables(), m.history, m.seed, m.log)
	m.calibrated = true
	m.cache.Bump()
}

// Calibrated reports whether the engines have been built.
func (m *MonteCarloModel) Calibrated() bool { return m.calibrated }

// SetPathCount hot-swaps the path count. The memoized result is
// invalidated; calibration is untouched.
func (m *MonteCarloModel) SetPathCount(n int) {
	if n > 0 && n != m.pathCount {
		m.pathCount = n
		m.cache.Bump()
	}
}

// PathCount returns the active path count.
func (m *MonteCarloModel) PathCount() int { return m.pathCount }

// ClearCache invalidates the nested value cache.
func (m *MonteCarloModel) ClearCache() { m.cache.Bump() }

// Price estimates per-period expected amounts, memoized per
// (generation, path count).
func (m *MonteCarloModel) Price(curve market.Curve) ([]float64, bool) {
	if !m.calibrated {
		m.log.Warn().Msg("Model not calibrated, no price")
		return nil, false
	}
	key := cacheKey("mc", m.pathCount, curve != nil)
	if v, ok := m.cache.Get(key); ok {
		return v, true
	}

	values, ok := m.pricer.Price(montecarlo.Request{
		Leg:       m.leg,
		Engines:   m.engines,
		Offsets:   m.offsets,
		Seeds:     m.states,
		PathCount: m.pathCount,
	})
	if !ok {
		return nil, false
	}
	discountLeg(values, m.leg, curve)
	m.cache.Put(key, values)
	return values, true
}

// ClosedFormModel evaluates the leg against the deterministic forward
// path, i.e. the zero-volatility limit of the simulation.
type ClosedFormModel struct {
	valuation  time.Time
	leg        payoff.Leg
	states     []*payoff.State
	offsets    []float64
	engines    map[string]montecarlo.PathEngine
	cache      *GenCache
	calibrated bool
	log        zerolog.Logger
}

// NewClosedFormModel builds an uncalibrated closed-form model seeded
// from the bond's canonical knock states.
func NewClosedFormModel(valuation time.Time, leg payoff.Leg, states []*payoff.State, log zerolog.Logger) *ClosedFormModel {
	return &ClosedFormModel{
		valuation: valuation,
		leg:       leg,
		states:    states,
		offsets:   eventOffsets(valuation, leg),
		cache:     NewGenCache(),
		log:       log.With().Str("model", "closedform").Logger(),
	}
}

// Calibrate captures forward parameters from the market snapshot.
func (m *ClosedFormModel) Calibrate(mkt *market.Market) {
	m.engines = calibrateEngines(mkt, m.leg.Variables(), nil, 0, m.log)
	m.calibrated = true
	m.cache.Bump()
}

// Calibrated reports whether forwards have been captured.
func (m *ClosedFormModel) Calibrated() bool { return m.calibrated }

// SetPathCount is a no-op: the closed form does not simulate.
func (m *ClosedFormModel) SetPathCount(int) {}

// PathCount returns zero: the closed form does not simulate.
func (m *ClosedFormModel) PathCount() int { return 0 }

// ClearCache invalidates the nested value cache.
func (m *ClosedFormModel) ClearCache() { m.cache.Bump() }

// Price evaluates each scheduled payoff against the deterministic
// forward fixing history up to its event date.
func (m *ClosedFormModel) Price(curve market.Curve) ([]float64, bool) {
	if !m.calibrated {
		m.log.Warn().Msg("Model not calibrated, no price")
		return nil, false
	}
	key := cacheKey("cf", 0, curve != nil)
	if v, ok := m.cache.Get(key); ok {
		return v, true
	}

	variables := m.leg.Variables()
	values := make([]float64, len(m.leg))
	for i, sp := range m.leg {
		if sp.Note == nil {
			values[i] = math.NaN()
			continue
		}
		history := m.forwardHistory(variables, i)
		st := payoff.NewState()
		if i < len(m.states) && m.states[i] != nil {
			st = m.states[i].Clone()
		}
		values[i] = sp.Note.EvaluatePath(st, history)
	}
	discountLeg(values, m.leg, curve)
	m.cache.Put(key, values)
	return values, true
}

// forwardHistory builds the deterministic fixing history covering all
// event offsets up to and including leg entry i's.
func (m *ClosedFormModel) forwardHistory(variables []string, i int) []map[string]float64 {
	var history []map[string]float64
	for k, t := range m.offsets {
		if k > i {
			break
		}
		snap := make(map[string]float64, len(variables))
		for _, name := range variables {
			if fe, ok := m.engines[name].(interface{ Forward(float64) float64 }); ok {
				snap[name] = fe.Forward(t)
			}
		}
		history = append(history, snap)
	}
	return history
}

func eventOffsets(valuation time.Time, leg payoff.Leg) []float64 {
	out := make([]float64, len(leg))
	for i, sp := range leg {
		out[i] = dates.YearFraction(valuation, sp.Period.EventDate, dates.Act365F)
	}
	return out
}

func discountLeg(values []float64, leg payoff.Leg, curve market.Curve) {
	if curve == nil {
		return
	}
	for i := range values {
		values[i] *= curve(leg[i].Period.PaymentDate)
	}
}

func cacheKey(kind string, paths int, discounted bool) string {
	return fmt.Sprintf("%s:%d:%t", kind, paths, discounted)
}
