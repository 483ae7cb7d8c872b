package payoff

import (
	"encoding/json"
	"math"
)

// Levels maps underlying variable names to numeric levels. A scalar in
// the source document is accepted as the single-entry specialization:
// it binds to every variable of the payoff.
type Levels map[string]float64

// UnmarshalJSON accepts either a bare number or a name→value object.
// The scalar form is stored under the empty key and expanded against
// the payoff's variable list at construction time.
func (l *Levels) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		*l = Levels{"": scalar}
		return nil
	}
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		// Malformed levels mark the payoff non-priceable downstream
		// instead of failing the whole document.
		*l = nil
		return nil
	}
	*l = m
	return nil
}

// resolve expands a scalar level against the variable list and fills
// missing entries with NaN (the "could not evaluate" sentinel).
func (l Levels) resolve(variables []string) map[string]float64 {
	out := make(map[string]float64, len(variables))
	scalar, hasScalar := l[""]
	for _, v := range variables {
		switch {
		case l == nil:
			out[v] = math.NaN()
		case hasScalar:
			out[v] = scalar
		default:
			if x, ok := l[v]; ok {
				out[v] = x
			} else {
				out[v] = math.NaN()
			}
		}
	}
	return out
}

// Spec is the declarative payoff record consumed from configuration or
// the bond store. Unrecognized or missing numeric fields resolve to
// NaN, which marks the payoff non-priceable rather than raising.
type Spec struct {
	Type        string   `json:"type"`
	Variables   []string `json:"variable"`
	TriggerLow  Levels   `json:"triggerlow"`
	TriggerHigh Levels   `json:"triggerhigh"`
	Strike      Levels   `json:"strike"`
	RangeType   string   `json:"range_type"` // "in" | "out"
	Physical    int      `json:"physical"`   // 0 = cash, 1 = physical
	Amount      *float64 `json:"amount"`
	Description string   `json:"description"`
}

func (s Spec) amount() float64 {
	if s.Amount == nil {
		return math.NaN()
	}
	return *s.Amount
}
