package schedule

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/structpricer/internal/dates"
)

// Rule selects the date generation algorithm.
type Rule string

const (
	Zero     Rule = "ZERO"
	Backward Rule = "BACKWARD"
	Forward  Rule = "FORWARD"
)

// stubMergeToleranceDays is the tolerance within which a generated
// stub boundary is merged into the effective or termination date. The
// value is inherited from the upstream system without a documented
// rationale; keep it unless the business confirms otherwise.
const stubMergeToleranceDays = 14

// Config holds the high-level conventions a schedule is generated from.
type Config struct {
	EffectiveDate   time.Time
	TerminationDate time.Time

	TenorLength int
	TenorUnit   dates.Unit

	Calendar              *dates.Calendar
	CalendarConvention    dates.Convention
	PaymentConvention     dates.Convention
	TerminationConvention dates.Convention

	Rule       Rule
	InArrears  bool
	NoticeDays int
	DayCount   dates.DayCount

	// FirstDate is an optional forward stub boundary, strictly after
	// EffectiveDate. NextToLastDate is an optional backward stub
	// boundary, strictly before TerminationDate.
	FirstDate      time.Time
	NextToLastDate time.Time

	Redemption         bool
	MaturityNoticeDays int
}

// Generator turns schedule conventions into concrete calculation
// periods.
type Generator struct {
	log zerolog.Logger
}

// NewGenerator creates a schedule generator.
func NewGenerator(log zerolog.Logger) *Generator {
	return &Generator{
		log: log.With().Str("module", "schedule").Logger(),
	}
}

// Generate produces the ordered period schedule for the given
// conventions. Configuration problems (unknown rule, non-positive
// tenor, violated stub preconditions) yield an empty coupon schedule
// with a logged diagnostic, never a failure.
func (g *Generator) Generate(cfg Config) Schedule {
	var coupons []Period

	switch cfg.Rule {
	case Zero:
		coupons = []Period{g.makePeriod(cfg, cfg.EffectiveDate, cfg.TerminationDate)}
	case Backward:
		coupons = g.generateBackward(cfg)
	case Forward:
		coupons = g.generateForward(cfg)
	default:
		g.log.Warn().
			Str("rule", string(cfg.Rule)).
			Msg("Unknown schedule generation rule, coupon schedule is empty")
	}

	// Sort coupons by event date, remembering generation order.
	order := make([]int, len(coupons))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return coupons[order[a]].EventDate.Before(coupons[order[b]].EventDate)
	})
	sorted := make([]Period, len(coupons))
	for i, idx := range order {
		sorted[i] = coupons[idx]
	}

	s := Schedule{Periods: sorted, Order: order}

	if cfg.Redemption {
		red := Period{
			EventDate:   cfg.Calendar.Advance(cfg.TerminationDate, -cfg.MaturityNoticeDays, dates.Days, cfg.CalendarConvention),
			StartDate:   cfg.EffectiveDate,
			EndDate:     cfg.TerminationDate,
			PaymentDate: cfg.Calendar.Adjust(cfg.TerminationDate, cfg.TerminationConvention),
			DayCount:    dates.UnitDayCount,
		}
		s.Periods = append(s.Periods, red)
		s.Order = append(s.Order, len(s.Order))
	}

	return s
}

// generateBackward rolls start dates back from the termination date
// (or the next-to-last stub boundary) until the effective date is
// reached.
func (g *Generator) generateBackward(cfg Config) []Period {
	if !g.tenorValid(cfg) {
		return nil
	}
	anchor := cfg.TerminationDate
	var periods []Period

	if !cfg.NextToLastDate.IsZero() {
		if !cfg.NextToLastDate.Before(cfg.TerminationDate) {
			g.log.Warn().
				Time("next_to_last", cfg.NextToLastDate).
				Time("termination", cfg.TerminationDate).
				Msg("Next-to-last date is not before termination date, coupon schedule is empty")
			return nil
		}
		periods = append(periods, g.makePeriod(cfg, cfg.NextToLastDate, cfg.TerminationDate))
		anchor = cfg.NextToLastDate
	}

	end := anchor
	for n := 1; ; n++ {
		start := cfg.Calendar.Advance(anchor, -n*cfg.TenorLength, cfg.TenorUnit, cfg.CalendarConvention)
		if !start.After(cfg.EffectiveDate) || withinMergeTolerance(start, cfg.EffectiveDate) {
			periods = append(periods, g.makePeriod(cfg, cfg.EffectiveDate, end))
			break
		}
		periods = append(periods, g.makePeriod(cfg, start, end))
		end = start
	}
	return periods
}

// generateForward rolls end dates forward from the effective date (or
// the first stub boundary) until the termination date is reached.
func (g *Generator) generateForward(cfg Config) []Period {
	if !g.tenorValid(cfg) {
		return nil
	}
	anchor := cfg.EffectiveDate
	var periods []Period

	if !cfg.FirstDate.IsZero() {
		if !cfg.FirstDate.After(cfg.EffectiveDate) {
			g.log.Warn().
				Time("first", cfg.FirstDate).
				Time("effective", cfg.EffectiveDate).
				Msg("First date is not after effective date, coupon schedule is empty")
			return nil
		}
		periods = append(periods, g.makePeriod(cfg, cfg.EffectiveDate, cfg.FirstDate))
		anchor = cfg.FirstDate
	}

	start := anchor
	for n := 1; ; n++ {
		end := cfg.Calendar.Advance(anchor, n*cfg.TenorLength, cfg.TenorUnit, cfg.CalendarConvention)
		if !end.Before(cfg.TerminationDate) || withinMergeTolerance(end, cfg.TerminationDate) {
			periods = append(periods, g.makePeriod(cfg, start, cfg.TerminationDate))
			break
		}
		periods = append(periods, g.makePeriod(cfg, start, end))
		start = end
	}
	return periods
}

// tenorValid rejects a non-positive tenor length before the rolling
// loops run. A zero tenor never advances the anchor, so the loops
// would append periods without ever reaching the schedule boundary.
func (g *Generator) tenorValid(cfg Config) bool {
	if cfg.TenorLength >= 1 {
		return true
	}
	g.log.Warn().
		Int("tenor_length", cfg.TenorLength).
		Msg("Tenor length must be at least one, coupon schedule is empty")
	return false
}

func (g *Generator) makePeriod(cfg Config, start, end time.Time) Period {
	obs := start
	if cfg.InArrears {
		obs = end
	}

	payConv := cfg.PaymentConvention
	if end.Equal(cfg.TerminationDate) {
		payConv = cfg.TerminationConvention
	}

	return Period{
		EventDate:   cfg.Calendar.Advance(obs, -cfg.NoticeDays, dates.Days, cfg.CalendarConvention),
		StartDate:   start,
		EndDate:     end,
		PaymentDate: cfg.Calendar.Adjust(end, payConv),
		DayCount:    cfg.DayCount,
	}
}

func withinMergeTolerance(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= stubMergeToleranceDays*24*time.Hour
}
