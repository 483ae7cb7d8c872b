package schedule

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/structpricer/internal/dates"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func baseConfig() Config {
	return Config{
		EffectiveDate:         d(2024, time.January, 15),
		TerminationDate:       d(2026, time.January, 15),
		TenorLength:           6,
		TenorUnit:             dates.Months,
		Calendar:              dates.NewCalendar("TEST", nil),
		CalendarConvention:    dates.Unadjusted,
		PaymentConvention:     dates.Unadjusted,
		TerminationConvention: dates.Unadjusted,
		Rule:                  Backward,
		InArrears:             true,
		DayCount:              dates.Act365F,
	}
}

func TestGenerateBackward(t *testing.T) {
	g := NewGenerator(zerolog.Nop())
	s := g.Generate(baseConfig())

	require.Len(t, s.Periods, 4)

	// Periods come back sorted by event date and contiguous.
	assert.Equal(t, d(2024, time.January, 15), s.Periods[0].StartDate)
	for i := 1; i < len(s.Periods); i++ {
		assert.Equal(t, s.Periods[i-1].EndDate, s.Periods[i].StartDate, "periods must be contiguous")
	}
	assert.Equal(t, d(2026, time.January, 15), s.Periods[len(s.Periods)-1].EndDate)

	// In arrears, zero notice: event date is the period end.
	for _, p := range s.Periods {
		assert.Equal(t, p.EndDate, p.EventDate)
	}

	// Backward generation emits the last period first; the order
	// permutation must invert that.
	assert.Equal(t, []int{3, 2, 1, 0}, s.Order)
}

func TestGenerateBackwardMergesShortStub(t *testing.T) {
	cfg := baseConfig()
	// Ten days before the natural roll date: within the merge window,
	// so the stub is absorbed into the first period.
	cfg.EffectiveDate = d(2024, time.January, 5)

	g := NewGenerator(zerolog.Nop())
	s := g.Generate(cfg)

	require.Len(t, s.Periods, 4)
	assert.Equal(t, d(2024, time.January, 5), s.Periods[0].StartDate)
	assert.Equal(t, d(2024, time.July, 15), s.Periods[0].EndDate)
}

func TestGenerateBackwardKeepsLongStub(t *testing.T) {
	cfg := baseConfig()
	// Two months before the natural roll date: a real stub period.
	cfg.EffectiveDate = d(2023, time.November, 15)

	g := NewGenerator(zerolog.Nop())
	s := g.Generate(cfg)

	require.Len(t, s.Periods, 5)
	assert.Equal(t, d(2023, time.November, 15), s.Periods[0].StartDate)
	assert.Equal(t, d(2024, time.January, 15), s.Periods[0].EndDate)
}

func TestGenerateBackwardNextToLastStub(t *testing.T) {
	cfg := baseConfig()
	cfg.NextToLastDate = d(2025, time.October, 15)

	g := NewGenerator(zerolog.Nop())
	s := g.Generate(cfg)

	require.NotEmpty(t, s.Periods)
	last := s.Periods[len(s.Periods)-1]
	assert.Equal(t, d(2025, time.October, 15), last.StartDate)
	assert.Equal(t, d(2026, time.January, 15), last.EndDate)
	for i := 1; i < len(s.Periods); i++ {
		assert.Equal(t, s.Periods[i-1].EndDate, s.Periods[i].StartDate)
	}
}

func TestGenerateBackwardRejectsBadNextToLast(t *testing.T) {
	cfg := baseConfig()
	cfg.NextToLastDate = cfg.TerminationDate

	g := NewGenerator(zerolog.Nop())
	s := g.Generate(cfg)
	assert.Empty(t, s.Periods)
}

func TestGenerateForward(t *testing.T) {
	cfg := baseConfig()
	cfg.Rule = Forward

	g := NewGenerator(zerolog.Nop())
	s := g.Generate(cfg)

	require.Len(t, s.Periods, 4)
	assert.Equal(t, d(2024, time.January, 15), s.Periods[0].StartDate)
	assert.Equal(t, d(2026, time.January, 15), s.Periods[len(s.Periods)-1].EndDate)
	for i := 1; i < len(s.Periods); i++ {
		assert.Equal(t, s.Periods[i-1].EndDate, s.Periods[i].StartDate)
	}
	// Forward generation already emits ascending periods.
	assert.Equal(t, []int{0, 1, 2, 3}, s.Order)
}

func TestGenerateForwardFirstDateStub(t *testing.T) {
	cfg := baseConfig()
	cfg.Rule = Forward
	cfg.FirstDate = d(2024, time.April, 15)

	g := NewGenerator(zerolog.Nop())
	s := g.Generate(cfg)

	require.NotEmpty(t, s.Periods)
	assert.Equal(t, d(2024, time.January, 15), s.Periods[0].StartDate)
	assert.Equal(t, d(2024, time.April, 15), s.Periods[0].EndDate)
}

func TestGenerateZero(t *testing.T) {
	cfg := baseConfig()
	cfg.Rule = Zero

	g := NewGenerator(zerolog.Nop())
	s := g.Generate(cfg)

	require.Len(t, s.Periods, 1)
	assert.Equal(t, cfg.EffectiveDate, s.Periods[0].StartDate)
	assert.Equal(t, cfg.TerminationDate, s.Periods[0].EndDate)
}

func TestGenerateUnknownRule(t *testing.T) {
	cfg := baseConfig()
	cfg.Rule = Rule("SPIRAL")
	cfg.Redemption = true

	g := NewGenerator(zerolog.Nop())
	s := g.Generate(cfg)

	// No coupons, but the redemption leg is still appended.
	require.Len(t, s.Periods, 1)
	red, ok := s.RedemptionPeriod()
	require.True(t, ok)
	assert.Equal(t, dates.UnitDayCount, red.DayCount)
	assert.Empty(t, s.CouponPeriods())
}

func TestGenerateNonPositiveTenorFailsSoft(t *testing.T) {
	g := NewGenerator(zerolog.Nop())

	for _, rule := range []Rule{Backward, Forward} {
		for _, tenor := range []int{0, -3} {
			cfg := baseConfig()
			cfg.Rule = rule
			cfg.TenorLength = tenor
			cfg.Redemption = true

			// A zero tenor never advances the rolling anchor; Generate
			// must still return, with an empty coupon schedule and the
			// redemption leg intact.
			done := make(chan Schedule, 1)
			go func() { done <- g.Generate(cfg) }()
			select {
			case s := <-done:
				assert.Empty(t, s.CouponPeriods(), "%s tenor %d", rule, tenor)
				_, ok := s.RedemptionPeriod()
				assert.True(t, ok, "%s tenor %d", rule, tenor)
			case <-time.After(2 * time.Second):
				t.Fatalf("%s tenor %d: generator did not return", rule, tenor)
			}
		}
	}
}

func TestGenerateRedemptionLeg(t *testing.T) {
	cfg := baseConfig()
	cfg.Redemption = true
	cfg.MaturityNoticeDays = 2

	g := NewGenerator(zerolog.Nop())
	s := g.Generate(cfg)

	require.Len(t, s.Periods, 5)
	red, ok := s.RedemptionPeriod()
	require.True(t, ok)
	assert.True(t, red.Redemption())
	assert.Equal(t, cfg.EffectiveDate, red.StartDate)
	assert.Equal(t, cfg.TerminationDate, red.EndDate)
	// Event date is notice days before termination, in business days.
	assert.True(t, red.EventDate.Before(cfg.TerminationDate))
	assert.Len(t, s.CouponPeriods(), 4)
}

func TestGenerateNoticeDays(t *testing.T) {
	cfg := baseConfig()
	cfg.NoticeDays = 2

	g := NewGenerator(zerolog.Nop())
	s := g.Generate(cfg)

	require.NotEmpty(t, s.Periods)
	for _, p := range s.Periods {
		assert.True(t, p.EventDate.Before(p.EndDate), "event date must precede the in-arrears observation")
	}
}
