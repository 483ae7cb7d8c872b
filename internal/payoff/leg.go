package payoff

import (
	"time"

	"github.com/quantfold/structpricer/internal/schedule"
)

// CallDescriptor marks a Bermudan early-termination right exercisable
// on the period's event date.
type CallDescriptor struct {
	Date time.Time
}

// ScheduledPayoff pairs one calculation period with one payoff
// definition, plus an optional call descriptor.
type ScheduledPayoff struct {
	Period schedule.Period
	Note   *Note
	Call   *CallDescriptor
}

// Leg is the ordered sequence of scheduled payoffs of a bond.
type Leg []ScheduledPayoff

// IsPriceable reports whether every payoff in the leg is structurally
// priceable. An empty leg is not priceable.
func (l Leg) IsPriceable() bool {
	if len(l) == 0 {
		return false
	}
	for _, sp := range l {
		if sp.Note == nil || !sp.Note.IsPriceable() {
			return false
		}
	}
	return true
}

// Variables returns the union of underlying names referenced by the
// leg, in first-seen order.
func (l Leg) Variables() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sp := range l {
		if sp.Note == nil {
			continue
		}
		for _, v := range sp.Note.Variables() {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	return out
}

// CallDates returns the Bermudan dates of the leg in ascending order
// of event date (the leg is schedule-ordered already).
func (l Leg) CallDates() []time.Time {
	var out []time.Time
	for _, sp := range l {
		if sp.Call != nil {
			out = append(out, sp.Call.Date)
		}
	}
	return out
}

// NewStates allocates one fresh evaluation state per leg entry,
// representing a single pricing scenario.
func (l Leg) NewStates() []*State {
	states := make([]*State, len(l))
	for i := range states {
		states[i] = NewState()
	}
	return states
}

// AssignFixings feeds one fixing snapshot into every leg state.
func (l Leg) AssignFixings(states []*State, snapshot map[string]float64) {
	for i, sp := range l {
		if sp.Note != nil && i < len(states) {
			sp.Note.AssignFixings(states[i], snapshot)
		}
	}
}

// ResetStates reverts all scenario states for counterfactual replay.
func (l Leg) ResetStates(states []*State) {
	for _, st := range states {
		if st != nil {
			st.Reset()
		}
	}
}
