package bond

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/structpricer/internal/bond/store"
	"github.com/quantfold/structpricer/internal/dates"
	"github.com/quantfold/structpricer/internal/events"
	"github.com/quantfold/structpricer/internal/market"
	"github.com/quantfold/structpricer/internal/payoff"
	"github.com/quantfold/structpricer/internal/pricing"
	"github.com/quantfold/structpricer/internal/schedule"
)

const dateLayout = "2006-01-02"

// Fixing name prefixes that carry market structure rather than
// underlying levels: "FX:USD" is the USD rate against the base
// currency, "RATE:EUR" a flat discount rate for EUR.
const (
	fxPrefix   = "FX:"
	ratePrefix = "RATE:"
)

// ModelClosedForm and ModelMonteCarlo are the registry names of the
// built-in model strategies.
const (
	ModelClosedForm = "closedform"
	ModelMonteCarlo = "montecarlo"
)

// Service owns the live Priceable instances, builds market snapshots
// from the fixing store and exposes pricing operations to the HTTP
// and scheduler layers.
type Service struct {
	mu sync.Mutex

	log      zerolog.Logger
	bonds    *store.BondRepository
	fixings  *store.FixingRepository
	events   *events.Manager
	calendar *dates.Calendar
	gen      *schedule.Generator

	base      string
	seed      uint64
	pathCount int

	priceables map[string]*Priceable
}

// ServiceConfig assembles a bond service.
type ServiceConfig struct {
	Log          zerolog.Logger
	Bonds        *store.BondRepository
	Fixings      *store.FixingRepository
	Events       *events.Manager
	Calendar     *dates.Calendar
	BaseCurrency string
	Seed         uint64
	PathCount    int
}

// NewService creates the bond service.
func NewService(cfg ServiceConfig) *Service {
	log := cfg.Log.With().Str("module", "bond").Logger()
	cal := cfg.Calendar
	if cal == nil {
		cal = dates.NewCalendar("WEEKENDS", nil)
	}
	base := cfg.BaseCurrency
	if base == "" {
		base = "EUR"
	}
	return &Service{
		log:        log,
		bonds:      cfg.Bonds,
		fixings:    cfg.Fixings,
		events:     cfg.Events,
		calendar:   cal,
		gen:        schedule.NewGenerator(log),
		base:       base,
		seed:       cfg.Seed,
		pathCount:  cfg.PathCount,
		priceables: make(map[string]*Priceable),
	}
}

// Load builds a Priceable for every stored bond definition against a
// fresh market snapshot. Individual failures are logged and skipped so
// one broken definition does not block the book.
func (s *Service) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs, err := s.bonds.List()
	if err != nil {
		return fmt.Errorf("failed to load bond definitions: %w", err)
	}
	mkt := s.buildMarketLocked(time.Now())

	for _, def := range defs {
		p, err := s.assembleLocked(def, mkt)
		if err != nil {
			s.log.Error().Err(err).Str("bond", def.ID).Msg("Failed to assemble bond, skipping")
			continue
		}
		s.priceables[def.ID] = p
	}
	s.log.Info().Int("bonds", len(s.priceables)).Msg("Bond book loaded")
	return nil
}

// Create persists a definition and activates it.
func (s *Service) Create(def *store.Bond) error {
	if err := s.bonds.Create(def); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	mkt := s.buildMarketLocked(time.Now())
	p, err := s.assembleLocked(def, mkt)
	if err != nil {
		return err
	}
	s.priceables[def.ID] = p
	if s.events != nil {
		s.events.Emit(events.BondCreated, "bond", map[string]interface{}{"id": def.ID})
	}
	return nil
}

// Get returns the live Priceable for a bond id.
func (s *Service) Get(id string) (*Priceable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.priceables[id]
	return p, ok
}

// IDs lists the loaded bond ids.
func (s *Service) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.priceables))
	for id := range s.priceables {
		out = append(out, id)
	}
	return out
}

// PriceResult is the service-level pricing envelope.
type PriceResult struct {
	Dirty   *float64 `json:"dirty"`
	Clean   *float64 `json:"clean"`
	Accrued *float64 `json:"accrued"`
	Model   string   `json:"model"`
}

// Price prices one bond. Undefined components come back as null, not
// as an error: expected domain failures must not abort batch work.
func (s *Service) Price(id string) (*PriceResult, error) {
	p, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown bond %s", id)
	}

	res := &PriceResult{Model: p.ModelName()}
	if dirty, ok := p.DirtyPrice(); ok {
		res.Dirty = &dirty
	}
	if clean, ok := p.CleanPrice(); ok {
		res.Clean = &clean
	}
	if accrued := p.AccruedAmount(); !math.IsNaN(accrued) {
		res.Accrued = &accrued
	}
	if s.events != nil {
		s.events.Emit(events.BondPriced, "bond", map[string]interface{}{"id": id})
	}
	return res, nil
}

// SwitchModel switches a bond's active pricing model.
func (s *Service) SwitchModel(id, model string) error {
	p, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("unknown bond %s", id)
	}
	if !p.SwitchModel(model) {
		return fmt.Errorf("model %s could not be initialized", model)
	}
	if s.events != nil {
		s.events.Emit(events.ModelSwitched, "bond", map[string]interface{}{"id": id, "model": model})
	}
	return nil
}

// RefreshMarket rebuilds the market snapshot from the fixing store and
// pushes it into every live bond. Used by the fixing sync job.
func (s *Service) RefreshMarket() {
	s.mu.Lock()
	mkt := s.buildMarketLocked(time.Now())
	bonds := make([]*Priceable, 0, len(s.priceables))
	for _, p := range s.priceables {
		bonds = append(bonds, p)
	}
	s.mu.Unlock()

	for _, p := range bonds {
		p.SetMarket(mkt)
	}
	if s.events != nil {
		s.events.Emit(events.MarketUpdated, "bond", map[string]interface{}{"bonds": len(bonds)})
	}
}

// buildMarketLocked derives a market snapshot from the fixing store:
// plain names become index references, FX:/RATE: prefixed names become
// exchange rates and flat discount curves.
func (s *Service) buildMarketLocked(valuation time.Time) *market.Market {
	valuation = valuation.Truncate(24 * time.Hour)

	fx := make(map[string]float64)
	rates := make(map[string]float64)
	var indexNames []string

	names, err := s.fixings.Names()
	if err != nil {
		s.log.Warn().Err(err).Msg("Could not list fixings, market snapshot is empty")
	}
	for _, name := range names {
		v, ok := s.fixings.Latest(name)
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(name, fxPrefix):
			fx[strings.TrimPrefix(name, fxPrefix)] = v
		case strings.HasPrefix(name, ratePrefix):
			rates[strings.TrimPrefix(name, ratePrefix)] = v
		default:
			indexNames = append(indexNames, name)
		}
	}

	mkt := market.New(valuation, s.base, fx)
	for ccy, rate := range rates {
		mkt.SetCurve(ccy, market.FlatCurve(valuation, rate, dates.Act365F))
	}
	for _, name := range indexNames {
		spot, _ := s.fixings.Latest(name)
		mkt.SetIndex(&market.IndexRef{
			Name:     name,
			Currency: s.base,
			Spot:     spot,
			Vol:      0.2,
		})
	}
	return mkt
}

// assembleLocked turns one stored definition into a live Priceable.
func (s *Service) assembleLocked(def *store.Bond, mkt *market.Market) (*Priceable, error) {
	cfg, err := s.scheduleConfig(def.Schedule)
	if err != nil {
		return nil, err
	}
	sched := s.gen.Generate(cfg)

	leg, err := buildLeg(sched, def.Payoffs, def.Schedule.CallDates)
	if err != nil {
		return nil, err
	}

	resolver := &repoResolver{fixings: s.fixings}

	return NewPriceable(Config{
		ID:          def.ID,
		Description: def.Name,
		Currency:    def.Currency,
		LegCurrency: def.LegCurrency,
		Market:      mkt,
		Leg:         leg,
		Resolver:    resolver,
		Models:      s.modelRegistry(),
		ModelName:   def.Model,
		PathCount:   s.pathCount,
		Log:         s.log,
	}), nil
}

func (s *Service) modelRegistry() map[string]ModelFactory {
	return map[string]ModelFactory{
		ModelClosedForm: func(mkt *market.Market, leg payoff.Leg, states []*payoff.State) pricing.Model {
			return pricing.NewClosedFormModel(mkt.ValuationDate(), leg, states, s.log)
		},
		ModelMonteCarlo: func(mkt *market.Market, leg payoff.Leg, states []*payoff.State) pricing.Model {
			return pricing.NewMonteCarloModel(mkt.ValuationDate(), leg, states, s.fixings, s.seed, s.log)
		},
	}
}

func (s *Service) scheduleConfig(spec store.ScheduleSpec) (schedule.Config, error) {
	effective, err := time.Parse(dateLayout, spec.EffectiveDate)
	if err != nil {
		return schedule.Config{}, fmt.Errorf("bad effective date %q: %w", spec.EffectiveDate, err)
	}
	termination, err := time.Parse(dateLayout, spec.TerminationDate)
	if err != nil {
		return schedule.Config{}, fmt.Errorf("bad termination date %q: %w", spec.TerminationDate, err)
	}

	cfg := schedule.Config{
		EffectiveDate:         effective,
		TerminationDate:       termination,
		TenorLength:           spec.TenorLength,
		TenorUnit:             dates.Unit(spec.TenorUnit),
		Calendar:              s.calendar,
		CalendarConvention:    convOrDefault(spec.CalendarConvention),
		PaymentConvention:     convOrDefault(spec.PaymentConvention),
		TerminationConvention: convOrDefault(spec.TerminationConvention),
		Rule:                  schedule.Rule(spec.Rule),
		InArrears:             spec.InArrears,
		NoticeDays:            spec.NoticeDays,
		DayCount:              dates.DayCount(spec.DayCount),
		Redemption:            spec.Redemption,
		MaturityNoticeDays:    spec.MaturityNoticeDays,
	}
	if spec.FirstDate != "" {
		if cfg.FirstDate, err = time.Parse(dateLayout, spec.FirstDate); err != nil {
			return schedule.Config{}, fmt.Errorf("bad first date %q: %w", spec.FirstDate, err)
		}
	}
	if spec.NextToLastDate != "" {
		if cfg.NextToLastDate, err = time.Parse(dateLayout, spec.NextToLastDate); err != nil {
			return schedule.Config{}, fmt.Errorf("bad next-to-last date %q: %w", spec.NextToLastDate, err)
		}
	}
	return cfg, nil
}

func convOrDefault(s string) dates.Convention {
	if s == "" {
		return dates.ModifiedFollowing
	}
	return dates.Convention(s)
}

// buildLeg pairs periods with payoff definitions. Specs are cycled in
// generation order, so a backward-generated schedule assigns them from
// the termination end inward; a redemption period takes the last spec.
// Call dates attach Bermudan descriptors to matching event dates.
func buildLeg(sched schedule.Schedule, specs []payoff.Spec, callDates []string) (payoff.Leg, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no payoff specs")
	}
	notes := make([]*payoff.Note, len(specs))
	for i, sp := range specs {
		n, err := payoff.FromSpec(sp)
		if err != nil {
			return nil, fmt.Errorf("payoff %d: %w", i, err)
		}
		notes[i] = n
	}

	calls := make(map[string]struct{}, len(callDates))
	for _, d := range callDates {
		calls[d] = struct{}{}
	}

	leg := make(payoff.Leg, len(sched.Periods))
	for i, period := range sched.Periods {
		gen := i
		if i < len(sched.Order) {
			gen = sched.Order[i]
		}
		note := notes[gen%len(notes)]
		if period.Redemption() {
			note = notes[len(notes)-1]
		}
		sp := payoff.ScheduledPayoff{Period: period, Note: note}
		if _, ok := calls[period.EventDate.Format(dateLayout)]; ok {
			sp.Call = &payoff.CallDescriptor{Date: period.EventDate}
		}
		leg[i] = sp
	}
	return leg, nil
}

// repoResolver adapts the fixing store to the FixingResolver
// contract.
type repoResolver struct {
	fixings *store.FixingRepository
}

func (r *repoResolver) Update(formula string) string {
	names, err := r.fixings.Names()
	if err != nil {
		return formula
	}
	resolver := make(payoff.MapResolver, len(names))
	for _, name := range names {
		if v, ok := r.fixings.Latest(name); ok {
			resolver[name] = v
		}
	}
	return resolver.Update(formula)
}

func (r *repoResolver) UpdateCompute(formula string) (float64, bool) {
	if v, ok := r.fixings.Latest(strings.TrimSpace(formula)); ok {
		return v, true
	}
	resolver := payoff.MapResolver{}
	if names, err := r.fixings.Names(); err == nil {
		for _, name := range names {
			if v, ok := r.fixings.Latest(name); ok {
				resolver[name] = v
			}
		}
	}
	return resolver.UpdateCompute(formula)
}
