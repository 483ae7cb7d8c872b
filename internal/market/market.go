package market

import (
	"math"
	"time"

	"github.com/quantfold/structpricer/internal/dates"
)

// Curve is a discount curve collaborator: a callable from date to
// discount factor.
type Curve func(t time.Time) float64

// FlatCurve builds a continuously compounded flat-rate discount curve
// anchored at the valuation date.
func FlatCurve(valuation time.Time, rate float64, dc dates.DayCount) Curve {
	return func(t time.Time) float64 {
		tau := dates.YearFraction(valuation, t, dc)
		if tau <= 0 {
			return 1.0
		}
		return math.Exp(-rate * tau)
	}
}

// IndexRef describes one underlying reference: spot level, currency
// and the calibrated single-factor process parameters.
type IndexRef struct {
	Name     string
	Currency string
	Spot     float64
	Drift    float64
	Vol      float64
}

// Market is a snapshot of market data: valuation date, FX rates
// against a base currency, underlying references and discount curves
// by currency.
type Market struct {
	valuationDate time.Time
	base          string
	fx            map[string]float64
	indices       map[string]*IndexRef
	curves        map[string]Curve
}

// New creates a market snapshot. fx maps currency to its rate against
// the base currency (base itself is implicitly 1).
func New(valuation time.Time, base string, fx map[string]float64) *Market {
	m := &Market{
		valuationDate: valuation,
		base:          base,
		fx:            make(map[string]float64, len(fx)+1),
		indices:       make(map[string]*IndexRef),
		curves:        make(map[string]Curve),
	}
	for ccy, rate := range fx {
		m.fx[ccy] = rate
	}
	m.fx[base] = 1.0
	return m
}

// ValuationDate returns the snapshot's valuation date.
func (m *Market) ValuationDate() time.Time {
	return m.valuationDate
}

// Base returns the base currency.
func (m *Market) Base() string {
	return m.base
}

// FX returns the exchange rate from ccyA into ccyB.
func (m *Market) FX(ccyA, ccyB string) (float64, bool) {
	a, okA := m.fx[ccyA]
	b, okB := m.fx[ccyB]
	if !okA || !okB || b == 0 {
		return 0, false
	}
	return a / b, true
}

// FXShifted returns a copy of the market with the given currencies'
// rates multiplied by the supplied factors. The receiver is not
// modified.
func (m *Market) FXShifted(shifts map[string]float64) *Market {
	out := &Market{
		valuationDate: m.valuationDate,
		base:          m.base,
		fx:            make(map[string]float64, len(m.fx)),
		indices:       m.indices,
		curves:        m.curves,
	}
	for ccy, rate := range m.fx {
		out.fx[ccy] = rate
	}
	for ccy, mult := range shifts {
		if rate, ok := out.fx[ccy]; ok {
			out.fx[ccy] = rate * mult
		}
	}
	return out
}

// SetIndex registers an underlying reference.
func (m *Market) SetIndex(ref *IndexRef) {
	m.indices[ref.Name] = ref
}

// Index resolves an underlying reference by name.
func (m *Market) Index(name string) (*IndexRef, bool) {
	ref, ok := m.indices[name]
	return ref, ok
}

// SetCurve registers a discount curve for a currency.
func (m *Market) SetCurve(ccy string, c Curve) {
	m.curves[ccy] = c
}

// DiscountCurve returns the discount curve for a currency, or nil when
// none is available (callers may attempt a curve-free price).
func (m *Market) DiscountCurve(ccy string) Curve {
	return m.curves[ccy]
}
