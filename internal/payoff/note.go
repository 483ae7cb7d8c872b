package payoff

import (
	"fmt"
	"math"
)

// Kind tags the closed set of payoff variants.
type Kind string

const (
	// KindRange is the range/barrier family: full nominal until the
	// trigger condition knocks in, then worst-of downside ratio.
	KindRange Kind = "range"
	// KindFixed pays the nominal amount unconditionally.
	KindFixed Kind = "fixed"
)

// Settlement distinguishes cash from physical delivery.
type Settlement int

const (
	CashSettled Settlement = iota
	PhysicalSettled
)

// Note is an immutable payoff definition, one of the closed variant
// set identified by Kind. Mutable knock state lives in State, not
// here.
type Note struct {
	kind       Kind
	variables  []string
	low        map[string]float64
	high       map[string]float64
	strike     map[string]float64
	inRange    bool
	settlement Settlement
	amount     float64
	desc       string
	priceable  bool
}

// FromSpec resolves a declarative spec into an immutable payoff
// definition. Missing or non-finite numeric inputs do not fail; they
// mark the payoff non-priceable. Structural contradictions (unknown
// type, trigger and strike variables fully disjoint) are errors.
func FromSpec(s Spec) (*Note, error) {
	switch Kind(s.Type) {
	case KindFixed:
		amt := s.amount()
		return &Note{
			kind:       KindFixed,
			settlement: settlementOf(s),
			amount:     amt,
			desc:       s.Description,
			priceable:  isFinite(amt),
		}, nil

	case KindRange:
		if len(s.Variables) == 0 {
			return nil, fmt.Errorf("range payoff %q: no variables", s.Description)
		}
		n := &Note{
			kind:       KindRange,
			variables:  append([]string(nil), s.Variables...),
			low:        s.TriggerLow.resolve(s.Variables),
			high:       s.TriggerHigh.resolve(s.Variables),
			strike:     s.Strike.resolve(s.Variables),
			inRange:    s.RangeType != "out",
			settlement: settlementOf(s),
			amount:     s.amount(),
			desc:       s.Description,
		}
		// A strike set disjoint from the trigger set would price off
		// variables that never decide the knock, yielding an
		// unintended NaN. Upstream never specified this; reject it.
		if disjoint(n.low, n.strike) {
			return nil, fmt.Errorf("range payoff %q: trigger and strike variables are disjoint", s.Description)
		}
		n.priceable = n.structurallyPriceable()
		return n, nil

	default:
		return nil, fmt.Errorf("unknown payoff type %q", s.Type)
	}
}

func settlementOf(s Spec) Settlement {
	if s.Physical != 0 {
		return PhysicalSettled
	}
	return CashSettled
}

func (n *Note) structurallyPriceable() bool {
	if !isFinite(n.amount) {
		return false
	}
	for _, v := range n.variables {
		if !isFinite(n.low[v]) || !isFinite(n.high[v]) || !isFinite(n.strike[v]) {
			return false
		}
	}
	return true
}

// Kind returns the variant tag.
func (n *Note) Kind() Kind { return n.kind }

// Variables returns the referenced underlying names.
func (n *Note) Variables() []string { return n.variables }

// Settlement returns the settlement mode.
func (n *Note) Settlement() Settlement { return n.settlement }

// Amount returns the nominal amount.
func (n *Note) Amount() float64 { return n.amount }

// Description returns the human-readable payoff description.
func (n *Note) Description() string { return n.desc }

// IsPriceable reports whether every numeric input resolved to a finite
// value and the definition is structurally complete.
func (n *Note) IsPriceable() bool { return n.priceable }

// IsFixed reports whether the knock state is resolved and immutable
// for the payoff's remaining life.
func (n *Note) IsFixed(st *State) bool {
	if n.kind == KindFixed {
		return true
	}
	return st.Knocked()
}

// Evaluate prices the payoff against a multi-underlying fixing
// snapshot using the scenario's knock state. The state is not
// mutated; AssignFixings owns state transitions.
func (n *Note) Evaluate(st *State, snapshot map[string]float64) float64 {
	switch n.kind {
	case KindFixed:
		return n.amount
	case KindRange:
		knocked := st.Knocked()
		if !knocked {
			k, ok := n.knockFrom(snapshot)
			if !ok {
				// Undetermined knock decision: undefined, not "full
				// nominal by default".
				return math.NaN()
			}
			knocked = k
		}
		return n.priceGivenKnock(knocked, snapshot)
	default:
		return math.NaN()
	}
}

// EvaluateScalar prices a single-underlying payoff against one fixing
// value. It is the single-entry-mapping specialization of Evaluate,
// not a separate rule set.
func (n *Note) EvaluateScalar(st *State, fixing float64) float64 {
	snapshot := make(map[string]float64, len(n.variables))
	for _, v := range n.variables {
		snapshot[v] = fixing
	}
	return n.Evaluate(st, snapshot)
}

// EvaluatePath prices the payoff against a full fixing-path history.
// Cash settlement derives the knock decision from the latest fixing.
// Physical settlement requires the knock to be resolved one step back
// (the second-to-last fixing); with fewer than two fixings the price
// is undefined.
func (n *Note) EvaluatePath(st *State, history []map[string]float64) float64 {
	if n.kind == KindFixed {
		return n.amount
	}
	if len(history) == 0 {
		return math.NaN()
	}

	last := history[len(history)-1]

	knockObs := last
	if n.settlement == PhysicalSettled {
		if len(history) < 2 {
			return math.NaN()
		}
		knockObs = history[len(history)-2]
	}

	knocked := st.Knocked()
	if !knocked {
		k, ok := n.knockFrom(knockObs)
		if !ok {
			return math.NaN()
		}
		knocked = k
	}
	return n.priceGivenKnock(knocked, last)
}

// AssignFixings feeds a fixing snapshot into the scenario state.
// Idempotent for non-triggering input, strictly monotone for
// triggering input: once knocked, later snapshots cannot un-knock.
func (n *Note) AssignFixings(st *State, snapshot map[string]float64) {
	if n.kind != KindRange || st.Knocked() {
		return
	}
	if k, ok := n.knockFrom(snapshot); ok && k {
		st.knockIn()
	}
}

// knockFrom determines the knock decision for one snapshot. The ok
// result is false when any required variable is missing or non-finite
// (undetermined; existing state is left to stand).
func (n *Note) knockFrom(snapshot map[string]float64) (knocked, ok bool) {
	allIn := true
	anyOut := false
	for _, v := range n.variables {
		x, present := snapshot[v]
		if !present || !isFinite(x) || !isFinite(n.low[v]) || !isFinite(n.high[v]) {
			return false, false
		}
		in := x >= n.low[v] && x <= n.high[v]
		if !in {
			allIn = false
			anyOut = true
		}
	}
	if n.inRange {
		return allIn, true
	}
	return anyOut, true
}

// priceGivenKnock prices off the resolved knock decision: full nominal
// if not knocked, worst-of downside ratio if knocked. Missing or
// non-finite required fixings yield NaN, never a silent zero.
func (n *Note) priceGivenKnock(knocked bool, snapshot map[string]float64) float64 {
	if !n.priceable {
		return math.NaN()
	}
	if !knocked {
		return n.amount
	}
	worst := math.Inf(1)
	for _, v := range n.variables {
		k := n.strike[v]
		if k == 0 {
			return math.NaN()
		}
		x, present := snapshot[v]
		if !present || !isFinite(x) {
			return math.NaN()
		}
		if r := x / k; r < worst {
			worst = r
		}
	}
	return n.amount * worst
}

func disjoint(a, b map[string]float64) bool {
	for k, v := range a {
		if !isFinite(v) {
			continue
		}
		if w, ok := b[k]; ok && isFinite(w) {
			return false
		}
	}
	// Only disjoint if both sides actually bind something.
	return anyFinite(a) && anyFinite(b)
}

func anyFinite(m map[string]float64) bool {
	for _, v := range m {
		if isFinite(v) {
			return true
		}
	}
	return false
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
