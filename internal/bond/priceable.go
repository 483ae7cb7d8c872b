package bond

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/structpricer/internal/dates"
	"github.com/quantfold/structpricer/internal/market"
	"github.com/quantfold/structpricer/internal/payoff"
	"github.com/quantfold/structpricer/internal/pricing"
)

// ModelFactory builds a pricing model for a leg against a market
// snapshot. The bond's canonical knock states are shared with the
// model so resolved fixings flow into every evaluation.
type ModelFactory func(mkt *market.Market, leg payoff.Leg, states []*payoff.State) pricing.Model

// Config assembles a Priceable.
type Config struct {
	ID          string
	Description string
	// Currency is the domestic pricing currency; LegCurrency the
	// currency the leg's cash amounts are denominated in.
	Currency    string
	LegCurrency string

	Market   *market.Market
	Leg      payoff.Leg
	Resolver payoff.FixingResolver

	Models    map[string]ModelFactory
	ModelName string
	PathCount int
	Solver    Solver

	Log zerolog.Logger
}

// Priceable is the bond-level orchestration: it owns the market
// reference, the active pricing model, the model registry and two
// independently scoped caches, and exposes price, risk and
// root-finding operations.
//
// All mutable state is one critical section; every public method
// takes the bond mutex, so concurrent pricing calls against the same
// instance are serialized.
type Priceable struct {
	mu  sync.Mutex
	log zerolog.Logger

	id          string
	desc        string
	currency    string
	legCurrency string

	market   *market.Market
	leg      payoff.Leg
	states   []*payoff.State
	resolver payoff.FixingResolver

	registry  map[string]ModelFactory
	modelName string
	model     pricing.Model
	pathCount int

	// generalCache is cleared on every recalibration and by explicit
	// request; calibCache only on recalibration.
	generalCache *pricing.GenCache
	calibCache   *pricing.GenCache

	earlyTermination time.Time
	solver           Solver
}

// NewPriceable assembles a bond and initializes its model with a full
// calibration.
func NewPriceable(cfg Config) *Priceable {
	p := &Priceable{
		log:          cfg.Log.With().Str("module", "bond").Str("bond", cfg.ID).Logger(),
		id:           cfg.ID,
		desc:         cfg.Description,
		currency:     cfg.Currency,
		legCurrency:  cfg.LegCurrency,
		market:       cfg.Market,
		leg:          cfg.Leg,
		states:       cfg.Leg.NewStates(),
		resolver:     cfg.Resolver,
		registry:     cfg.Models,
		modelName:    cfg.ModelName,
		pathCount:    cfg.PathCount,
		generalCache: pricing.NewGenCache(),
		calibCache:   pricing.NewGenCache(),
		solver:       cfg.Solver,
	}
	if p.legCurrency == "" {
		p.legCurrency = p.currency
	}
	if p.pathCount <= 0 {
		p.pathCount = pricing.DefaultPathCount
	}
	if p.solver == nil {
		p.solver = Bisection{}
	}

	p.refreshFixingsLocked()
	p.recomputeEarlyTerminationLocked()
	p.initModelLocked(p.modelName, true)
	return p
}

// ID returns the bond identifier.
func (p *Priceable) ID() string { return p.id }

// ModelName returns the active model's registry name.
func (p *Priceable) ModelName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modelName
}

// SetMarket installs a new market snapshot. A snapshot with the same
// valuation date is a calibration-eligible update; a different date is
// a full reset. Either way the payoffs' fixings are refreshed, the
// early-termination status recomputed, the model reinitialized and the
// configured path count restored.
func (p *Priceable) SetMarket(m *market.Market) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sameDate := p.market != nil && p.market.ValuationDate().Equal(m.ValuationDate())
	p.market = m
	if !sameDate {
		// Full reset: realized knock decisions belong to the old
		// valuation date's scenario.
		p.leg.ResetStates(p.states)
	}

	p.refreshFixingsLocked()
	p.recomputeEarlyTerminationLocked()
	p.initModelLocked(p.modelName, true)
}

// SwitchModel activates the named model. On failure the previous model
// is reinitialized and kept: a bond with a previously valid model is
// never left without one.
func (p *Priceable) SwitchModel(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.modelName
	if p.initModelLocked(name, true) {
		return true
	}
	p.log.Warn().Str("model", name).Str("previous", prev).Msg("Model switch failed, rolling back")
	p.initModelLocked(prev, true)
	return false
}

// SetPathCount hot-swaps the Monte Carlo path count. No recalibration
// happens; the general cache is invalidated.
func (p *Priceable) SetPathCount(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 0 {
		return
	}
	p.pathCount = n
	if p.model != nil {
		p.model.SetPathCount(n)
	}
	p.generalCache.Bump()
}

// InvalidateCache clears the general value cache (and, transitively,
// the active model's nested cache). The calibration cache is left
// intact.
func (p *Priceable) InvalidateCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generalCache.Bump()
	if p.model != nil {
		p.model.ClearCache()
	}
}

// DirtyPrice returns the bond's dirty price in the domestic currency.
// ok is false for every expected failure (non-priceable leg,
// terminated bond, missing model, undefined simulation result); each
// case logs its own diagnostic and none of them aborts batch work.
func (p *Priceable) DirtyPrice() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.generalCache.Get("dirty"); ok {
		return v[0], !math.IsNaN(v[0])
	}
	price, ok := p.dirtyPriceLocked(p.market)
	p.generalCache.Put("dirty", []float64{price})
	return price, ok
}

// CleanPrice is the dirty price less accrued interest.
func (p *Priceable) CleanPrice() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dirty, ok := p.dirtyPriceLocked(p.market)
	if !ok {
		return math.NaN(), false
	}
	accrued := p.accruedAmountLocked()
	if math.IsNaN(accrued) {
		return math.NaN(), false
	}
	return dirty - accrued, true
}

// AccruedAmount returns accrued interest at the valuation date, NaN
// when it cannot be determined.
func (p *Priceable) AccruedAmount() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accruedAmountLocked()
}

// dirtyPriceLocked drives the full pricing pipeline against the given
// market snapshot. Simulation faults are caught here and converted
// into an undefined result so surrounding batch valuation continues.
func (p *Priceable) dirtyPriceLocked(mkt *market.Market) (price float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("Pricing failed with a fault, returning undefined")
			price, ok = math.NaN(), false
		}
	}()

	if !p.leg.IsPriceable() {
		p.log.Warn().Msg("Leg is not structurally priceable")
		return math.NaN(), false
	}
	if !p.earlyTermination.IsZero() && !p.earlyTermination.After(mkt.ValuationDate()) {
		p.log.Warn().
			Time("terminated", p.earlyTermination).
			Msg("Bond already terminated at valuation date")
		return math.NaN(), false
	}
	if p.model == nil {
		p.log.Warn().Msg("No active pricing model")
		return math.NaN(), false
	}

	curve := mkt.DiscountCurve(p.currency)
	if curve == nil {
		p.log.Warn().Str("currency", p.currency).Msg("No discount curve, attempting curve-free price")
	}

	values, ok := p.model.Price(curve)
	if !ok {
		return math.NaN(), false
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	if math.IsNaN(sum) {
		p.log.Warn().Msg("Undefined amount in price vector")
		return math.NaN(), false
	}

	fx := 1.0
	if p.legCurrency != p.currency {
		rate, okFX := mkt.FX(p.legCurrency, p.currency)
		if !okFX {
			p.log.Warn().
				Str("from", p.legCurrency).
				Str("to", p.currency).
				Msg("Unresolved FX rate")
			return math.NaN(), false
		}
		fx = rate
	}
	return sum * fx, true
}

// accruedAmountLocked computes accrued interest off the undiscounted
// per-period price vector.
func (p *Priceable) accruedAmountLocked() float64 {
	if p.model == nil {
		return math.NaN()
	}
	values, ok := p.model.Price(nil)
	if !ok {
		return math.NaN()
	}
	valuation := p.market.ValuationDate()

	// Identify the remaining coupon periods.
	remaining := -1
	count := 0
	for i, sp := range p.leg {
		if sp.Period.Redemption() {
			continue
		}
		if sp.Period.EndDate.After(valuation) {
			count++
			remaining = i
		}
	}
	if count == 0 {
		return 0
	}

	// Final-period special case: one coupon period left, ending at the
	// schedule's termination date.
	if count == 1 {
		sp := p.leg[remaining]
		if last := p.lastCouponEnd(); sp.Period.EndDate.Equal(last) {
			return prorate(sp.Period.StartDate, sp.Period.EndDate, valuation, sp.Period.DayCount) * values[remaining]
		}
	}

	sum := 0.0
	seen := false
	for i, sp := range p.leg {
		if sp.Period.Redemption() {
			continue
		}
		if sp.Period.StartDate.After(valuation) || !sp.Period.EndDate.After(valuation) {
			continue
		}
		seen = true
		sum += prorate(sp.Period.StartDate, sp.Period.EndDate, valuation, sp.Period.DayCount) * values[i]
	}
	if !seen {
		return 0
	}
	return sum
}

func (p *Priceable) lastCouponEnd() time.Time {
	var last time.Time
	for _, sp := range p.leg {
		if sp.Period.Redemption() {
			continue
		}
		if sp.Period.EndDate.After(last) {
			last = sp.Period.EndDate
		}
	}
	return last
}

// prorate is the elapsed accrual fraction of [start, end] at t.
func prorate(start, end, t time.Time, dc dates.DayCount) float64 {
	total := dates.YearFraction(start, end, dc)
	if total <= 0 {
		return 0
	}
	elapsed := dates.YearFraction(start, t, dc)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > total {
		elapsed = total
	}
	return elapsed / total
}

// refreshFixingsLocked feeds the current fixing snapshot into the
// canonical knock states and transitively invalidates the model's
// nested cache.
func (p *Priceable) refreshFixingsLocked() {
	if p.resolver == nil {
		return
	}
	snapshot := make(map[string]float64)
	for _, name := range p.leg.Variables() {
		if v, ok := p.resolver.UpdateCompute(name); ok {
			snapshot[name] = v
		}
	}
	p.leg.AssignFixings(p.states, snapshot)
	if p.model != nil {
		p.model.ClearCache()
	}
}

// recomputeEarlyTerminationLocked derives the early-termination date:
// the earliest Bermudan call date whose payoff has knocked in.
func (p *Priceable) recomputeEarlyTerminationLocked() {
	p.earlyTermination = time.Time{}
	for i, sp := range p.leg {
		if sp.Call == nil || i >= len(p.states) {
			continue
		}
		if p.states[i].Knocked() {
			if p.earlyTermination.IsZero() || sp.Call.Date.Before(p.earlyTermination) {
				p.earlyTermination = sp.Call.Date
			}
		}
	}
}

// initModelLocked builds and installs the named model, recalibrating
// when asked, and restores the configured path count (model
// initialization resets it to the model default). Both caches follow
// the scoping rules: the general cache clears on any reinit, the
// calibration cache only when recalibrating.
func (p *Priceable) initModelLocked(name string, recalibrate bool) bool {
	factory, ok := p.registry[name]
	if !ok {
		p.log.Warn().Str("model", name).Msg("Unknown model name")
		return false
	}
	model := factory(p.market, p.leg, p.states)
	if model == nil {
		p.log.Warn().Str("model", name).Msg("Model factory produced no model")
		return false
	}
	if recalibrate {
		model.Calibrate(p.market)
		p.calibCache.Bump()
	}
	p.model = model
	p.modelName = name
	p.model.SetPathCount(p.pathCount)
	p.generalCache.Bump()
	return true
}

// FrontierRequest parametrizes an implied FX frontier solve.
type FrontierRequest struct {
	Currency      string
	Target        float64 // dirty price target, default 100
	LowRange      float64
	HighRange     float64
	Accuracy      float64
	MaxIterations int
}

func (r *FrontierRequest) applyDefaults() {
	if r.Target == 0 {
		r.Target = 100
	}
	if r.LowRange == 0 {
		r.LowRange = 0.1
	}
	if r.HighRange == 0 {
		r.HighRange = 10
	}
	if r.Accuracy == 0 {
		r.Accuracy = 1e-6
	}
	if r.MaxIterations == 0 {
		r.MaxIterations = 100
	}
}

// FXFrontier solves for the FX level of the requested currency at
// which the dirty price equals the target. Repricing under the solver
// shifts the market without recalibration. Returns NaN when the
// solver exhausts its budget without converging.
func (p *Priceable) FXFrontier(req FrontierRequest) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	req.applyDefaults()
	return p.fxFrontierLocked(req)
}

func (p *Priceable) fxFrontierLocked(req FrontierRequest) float64 {
	f := func(y float64) float64 {
		shifted := p.market.FXShifted(map[string]float64{req.Currency: y})
		price, ok := p.dirtyPriceLocked(shifted)
		if !ok {
			return math.NaN()
		}
		return price - req.Target
	}

	y, ok := p.solver.Solve(f, req.LowRange, req.HighRange, req.Accuracy, req.MaxIterations)
	if !ok {
		p.log.Warn().
			Str("currency", req.Currency).
			Int("max_iterations", req.MaxIterations).
			Msg("FX frontier solver did not converge")
		return math.NaN()
	}

	fx, okFX := p.market.FX(req.Currency, p.currency)
	if !okFX {
		p.log.Warn().Str("currency", req.Currency).Msg("Unresolved FX rate for frontier level")
		return math.NaN()
	}
	return fx / y
}

// FXFrontiers solves the frontier at every live Bermudan date, in
// strictly reverse chronological order: the solved trigger outcome at
// each later date is fed back as a fixed input before an earlier date
// is solved, because later knock decisions affect earlier valuation.
// The canonical knock states are restored afterwards; the replay is
// counterfactual.
func (p *Priceable) FXFrontiers(req FrontierRequest) map[time.Time]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	req.applyDefaults()

	valuation := p.market.ValuationDate()
	var callDates []time.Time
	for _, d := range p.leg.CallDates() {
		if d.After(valuation) {
			callDates = append(callDates, d)
		}
	}
	// Reverse chronological. This ordering is a correctness
	// requirement, not an optimization.
	sort.Slice(callDates, func(i, j int) bool { return callDates[i].After(callDates[j]) })

	saved := payoff.CloneStates(p.states)
	defer func() {
		payoff.RestoreStates(p.states, saved)
		if p.model != nil {
			p.model.ClearCache()
		}
		p.generalCache.Bump()
	}()

	out := make(map[time.Time]float64, len(callDates))
	for _, d := range callDates {
		level := p.fxFrontierLocked(req)
		out[d] = level

		if math.IsNaN(level) {
			continue
		}
		// Fix this date's solved outcome before solving earlier ones:
		// assume the underlying sits at the implied level on d.
		snapshot := make(map[string]float64)
		for _, name := range p.leg.Variables() {
			snapshot[name] = level
		}
		for i, sp := range p.leg {
			if sp.Call != nil && sp.Call.Date.Equal(d) && sp.Note != nil && i < len(p.states) {
				sp.Note.AssignFixings(p.states[i], snapshot)
			}
		}
		if p.model != nil {
			p.model.ClearCache()
		}
	}
	return out
}
