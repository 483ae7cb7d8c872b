package schedule

import (
	"time"

	"github.com/quantfold/structpricer/internal/dates"
)

// Period is one calculation period of a bond leg. Immutable once
// generated.
type Period struct {
	EventDate   time.Time
	StartDate   time.Time
	EndDate     time.Time
	PaymentDate time.Time
	DayCount    dates.DayCount
}

// Redemption reports whether the period is a redemption leg spanning
// the whole schedule (unit day count).
func (p Period) Redemption() bool {
	return p.DayCount == dates.UnitDayCount
}

// Schedule is an ordered sequence of calculation periods sorted by
// event date. Order records each period's original generation-order
// index so coupon legs can be correlated with an appended redemption
// leg after sorting.
type Schedule struct {
	Periods []Period
	Order   []int
}

// CouponPeriods returns the periods excluding any redemption leg.
func (s Schedule) CouponPeriods() []Period {
	out := make([]Period, 0, len(s.Periods))
	for _, p := range s.Periods {
		if !p.Redemption() {
			out = append(out, p)
		}
	}
	return out
}

// RedemptionPeriod returns the redemption leg, if present.
func (s Schedule) RedemptionPeriod() (Period, bool) {
	for _, p := range s.Periods {
		if p.Redemption() {
			return p, true
		}
	}
	return Period{}, false
}

// EventDates returns all event dates in schedule order.
func (s Schedule) EventDates() []time.Time {
	out := make([]time.Time, len(s.Periods))
	for i, p := range s.Periods {
		out[i] = p.EventDate
	}
	return out
}
