package dates

import "time"

// Convention is a business day adjustment convention.
type Convention string

const (
	Unadjusted        Convention = "UNADJUSTED"
	Following         Convention = "FOLLOWING"
	ModifiedFollowing Convention = "MODIFIED_FOLLOWING"
	Preceding         Convention = "PRECEDING"
)

// Unit is a tenor unit for date arithmetic.
type Unit string

const (
	Days   Unit = "D"
	Weeks  Unit = "W"
	Months Unit = "M"
	Years  Unit = "Y"
)

// Calendar is a business day calendar: weekends plus a holiday set.
type Calendar struct {
	name     string
	holidays map[string]struct{}
}

const dayKeyLayout = "2006-01-02"

// NewCalendar creates a calendar with the given holiday dates.
func NewCalendar(name string, holidays []time.Time) *Calendar {
	h := make(map[string]struct{}, len(holidays))
	for _, d := range holidays {
		h[d.Format(dayKeyLayout)] = struct{}{}
	}
	return &Calendar{name: name, holidays: h}
}

// Name returns the calendar identifier.
func (c *Calendar) Name() string {
	return c.name
}

// IsBusinessDay checks weekends and the holiday set.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	_, holiday := c.holidays[t.Format(dayKeyLayout)]
	return !holiday
}

// Adjust moves t to a business day according to the convention.
func (c *Calendar) Adjust(t time.Time, conv Convention) time.Time {
	switch conv {
	case Unadjusted:
		return t
	case Following:
		for !c.IsBusinessDay(t) {
			t = t.AddDate(0, 0, 1)
		}
		return t
	case Preceding:
		for !c.IsBusinessDay(t) {
			t = t.AddDate(0, 0, -1)
		}
		return t
	case ModifiedFollowing:
		origMonth := t.Month()
		adj := c.Adjust(t, Following)
		if adj.Month() != origMonth {
			return c.Adjust(t, Preceding)
		}
		return adj
	default:
		return t
	}
}

// Advance moves t by n units, then adjusts the result.
// For Days the count is in business days; other units use calendar
// arithmetic with a final adjustment.
func (c *Calendar) Advance(t time.Time, n int, unit Unit, conv Convention) time.Time {
	switch unit {
	case Days:
		return c.addBusinessDays(t, n)
	case Weeks:
		return c.Adjust(t.AddDate(0, 0, 7*n), conv)
	case Months:
		return c.Adjust(addMonths(t, n), conv)
	case Years:
		return c.Adjust(addMonths(t, 12*n), conv)
	default:
		return t
	}
}

func (c *Calendar) addBusinessDays(t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
	}
	for n != 0 {
		t = t.AddDate(0, 0, step)
		if c.IsBusinessDay(t) {
			n -= step
		}
	}
	return t
}

// addMonths behaves like Excel's EDATE, clamping to month end instead
// of letting Go normalize Jan 31 + 1M into Mar 2/3.
func addMonths(t time.Time, months int) time.Time {
	d := t.AddDate(0, months, 0)
	firstOfTarget := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	if d.Month() == firstOfTarget.Month() {
		return d
	}
	origMonth := d.Month()
	for d.Month() == origMonth {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
