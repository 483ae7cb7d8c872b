package bond

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/structpricer/internal/bond/store"
	"github.com/quantfold/structpricer/internal/database"
	"github.com/quantfold/structpricer/internal/dates"
	"github.com/quantfold/structpricer/internal/payoff"
	"github.com/quantfold/structpricer/internal/schedule"
)

func testService(t *testing.T) (*Service, *store.FixingRepository) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	bonds := store.NewBondRepository(db.Conn(), zerolog.Nop())
	fixings := store.NewFixingRepository(db.Conn(), zerolog.Nop())
	svc := NewService(ServiceConfig{
		Log:       zerolog.Nop(),
		Bonds:     bonds,
		Fixings:   fixings,
		PathCount: 100,
	})
	return svc, fixings
}

func testDefinition(id string) *store.Bond {
	now := time.Now()
	return &store.Bond{
		ID:       id,
		Name:     "Service Test Note",
		Currency: "EUR",
		Model:    ModelClosedForm,
		Schedule: store.ScheduleSpec{
			EffectiveDate:   now.AddDate(0, -6, 0).Format("2006-01-02"),
			TerminationDate: now.AddDate(1, 6, 0).Format("2006-01-02"),
			TenorLength:     6,
			TenorUnit:       "M",
			Rule:            "BACKWARD",
			InArrears:       true,
			DayCount:        "ACT/365F",
			Redemption:      true,
		},
		Payoffs: []payoff.Spec{
			{
				Type:        "range",
				Variables:   []string{"SX5E"},
				TriggerLow:  payoff.Levels{"": 0},
				TriggerHigh: payoff.Levels{"": 95},
				Strike:      payoff.Levels{"": 100},
				Amount:      f64(4),
			},
			{Type: "fixed", Amount: f64(100)},
		},
	}
}

func TestServiceCreateAndPrice(t *testing.T) {
	svc, fixings := testService(t)
	require.NoError(t, fixings.Upsert("SX5E", time.Now(), 120))
	require.NoError(t, fixings.Upsert("RATE:EUR", time.Now(), 0.02))

	require.NoError(t, svc.Create(testDefinition("SVC-1")))
	assert.Equal(t, []string{"SVC-1"}, svc.IDs())

	res, err := svc.Price("SVC-1")
	require.NoError(t, err)
	assert.Equal(t, ModelClosedForm, res.Model)
	require.NotNil(t, res.Dirty)
	assert.Greater(t, *res.Dirty, 0.0)
}

func TestServicePriceUnknownBond(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.Price("missing")
	assert.Error(t, err)
}

func TestServiceLoad(t *testing.T) {
	svc, fixings := testService(t)
	require.NoError(t, fixings.Upsert("SX5E", time.Now(), 120))

	require.NoError(t, svc.Create(testDefinition("SVC-1")))

	// A second service over the same store rebuilds the book.
	reloaded := NewService(ServiceConfig{
		Log:       zerolog.Nop(),
		Bonds:     svc.bonds,
		Fixings:   fixings,
		PathCount: 100,
	})
	require.NoError(t, reloaded.Load())
	_, ok := reloaded.Get("SVC-1")
	assert.True(t, ok)
}

func TestServiceLoadSkipsBrokenDefinitions(t *testing.T) {
	svc, _ := testService(t)

	broken := testDefinition("SVC-BAD")
	broken.Payoffs = nil
	require.NoError(t, svc.bonds.Create(broken))

	require.NoError(t, svc.Load())
	_, ok := svc.Get("SVC-BAD")
	assert.False(t, ok, "a broken definition must be skipped, not loaded")
}

func TestServiceSwitchModel(t *testing.T) {
	svc, fixings := testService(t)
	require.NoError(t, fixings.Upsert("SX5E", time.Now(), 120))
	require.NoError(t, svc.Create(testDefinition("SVC-1")))

	require.NoError(t, svc.SwitchModel("SVC-1", ModelMonteCarlo))
	p, ok := svc.Get("SVC-1")
	require.True(t, ok)
	assert.Equal(t, ModelMonteCarlo, p.ModelName())

	assert.Error(t, svc.SwitchModel("SVC-1", "astrology"))
	assert.Equal(t, ModelMonteCarlo, p.ModelName())
}

func TestServiceRefreshMarket(t *testing.T) {
	svc, fixings := testService(t)
	require.NoError(t, fixings.Upsert("SX5E", time.Now(), 120))
	require.NoError(t, svc.Create(testDefinition("SVC-1")))

	before, err := svc.Price("SVC-1")
	require.NoError(t, err)

	// A barrier breach in the store must flow through on refresh.
	require.NoError(t, fixings.Upsert("SX5E", time.Now().AddDate(0, 0, 1), 50))
	svc.RefreshMarket()

	after, err := svc.Price("SVC-1")
	require.NoError(t, err)
	require.NotNil(t, before.Dirty)
	require.NotNil(t, after.Dirty)
	assert.Less(t, *after.Dirty, *before.Dirty)
}

func TestBuildLeg(t *testing.T) {
	cal := dates.NewCalendar("TEST", nil)
	gen := schedule.NewGenerator(zerolog.Nop())
	sched := gen.Generate(schedule.Config{
		EffectiveDate:         time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		TerminationDate:       time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		TenorLength:           6,
		TenorUnit:             dates.Months,
		Calendar:              cal,
		CalendarConvention:    dates.Unadjusted,
		PaymentConvention:     dates.Unadjusted,
		TerminationConvention: dates.Unadjusted,
		Rule:                  schedule.Backward,
		InArrears:             true,
		DayCount:              dates.Act365F,
		Redemption:            true,
	})

	specs := []payoff.Spec{
		{
			Type: "range", Variables: []string{"X"},
			TriggerLow: payoff.Levels{"": 0}, TriggerHigh: payoff.Levels{"": 95},
			Strike: payoff.Levels{"": 100}, Amount: f64(4),
		},
		{Type: "fixed", Amount: f64(100)},
	}
	leg, err := buildLeg(sched, specs, []string{"2025-01-15"})
	require.NoError(t, err)
	require.Len(t, leg, len(sched.Periods))

	// The redemption period carries the last spec.
	last := leg[len(leg)-1]
	require.True(t, last.Period.Redemption())
	assert.Equal(t, payoff.KindFixed, last.Note.Kind())

	// The matching event date carries a call descriptor.
	calls := leg.CallDates()
	require.Len(t, calls, 1)
	assert.Equal(t, time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), calls[0])
}

func TestBuildLegPairsSpecsByGenerationOrder(t *testing.T) {
	gen := schedule.NewGenerator(zerolog.Nop())
	sched := gen.Generate(schedule.Config{
		EffectiveDate:         time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		TerminationDate:       time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		TenorLength:           6,
		TenorUnit:             dates.Months,
		Calendar:              dates.NewCalendar("TEST", nil),
		CalendarConvention:    dates.Unadjusted,
		PaymentConvention:     dates.Unadjusted,
		TerminationConvention: dates.Unadjusted,
		Rule:                  schedule.Backward,
		InArrears:             true,
		DayCount:              dates.Act365F,
	})
	require.Equal(t, []int{3, 2, 1, 0}, sched.Order)

	specs := []payoff.Spec{
		{Type: "fixed", Amount: f64(1)},
		{Type: "fixed", Amount: f64(2)},
	}
	leg, err := buildLeg(sched, specs, nil)
	require.NoError(t, err)
	require.Len(t, leg, 4)

	// Backward generation emits the final period first, so spec zero
	// lands on the final coupon and the cycle runs from the termination
	// end inward, not along the sorted sequence.
	want := []float64{2, 1, 2, 1}
	for i, sp := range leg {
		assert.Equal(t, want[i], sp.Note.Amount(), "period %d", i)
	}
}

func TestBuildLegNoSpecs(t *testing.T) {
	_, err := buildLeg(schedule.Schedule{}, nil, nil)
	assert.Error(t, err)
}

func TestScheduleConfigRejectsBadDates(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.scheduleConfig(store.ScheduleSpec{
		EffectiveDate:   "not-a-date",
		TerminationDate: "2026-01-15",
	})
	assert.Error(t, err)

	_, err = svc.scheduleConfig(store.ScheduleSpec{
		EffectiveDate:   "2024-01-15",
		TerminationDate: "2026-13-45",
	})
	assert.Error(t, err)
}
