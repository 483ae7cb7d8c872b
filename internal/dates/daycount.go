package dates

import "time"

// DayCount is a day count convention for accrual fractions.
type DayCount string

const (
	Act360     DayCount = "ACT/360"
	Act365F    DayCount = "ACT/365F"
	Thirty360E DayCount = "30E/360"
	// UnitDayCount marks periods that pay a whole amount regardless of
	// elapsed time, used for redemption legs.
	UnitDayCount DayCount = "UNIT"
)

// YearFraction computes the accrual fraction between two dates under
// the given convention.
func YearFraction(start, end time.Time, dc DayCount) float64 {
	switch dc {
	case Act360:
		return daysBetween(start, end) / 360.0
	case Act365F:
		return daysBetween(start, end) / 365.0
	case Thirty360E:
		d1 := start.Day()
		if d1 > 30 {
			d1 = 30
		}
		d2 := end.Day()
		if d2 > 30 {
			d2 = 30
		}
		y1, m1 := start.Year(), int(start.Month())
		y2, m2 := end.Year(), int(end.Month())
		return float64(360*(y2-y1)+30*(m2-m1)+(d2-d1)) / 360.0
	case UnitDayCount:
		return 1.0
	default:
		return daysBetween(start, end) / 365.0
	}
}

func daysBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24
}
