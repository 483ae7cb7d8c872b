package payoff

// State is the mutable per-scenario evaluation state of a payoff. The
// payoff definition itself is immutable and can be shared across
// scenarios; each scenario owns its own State.
//
// The knock flag is monotone: once set it stays set for every
// subsequent observation. Reset is the only way back and exists solely
// for counterfactual scenario replay.
type State struct {
	knocked bool
}

// NewState returns a fresh, un-knocked evaluation state.
func NewState() *State {
	return &State{}
}

// Knocked reports whether the knock-in condition has been observed.
func (s *State) Knocked() bool {
	return s.knocked
}

func (s *State) knockIn() {
	s.knocked = true
}

// Reset reverts the knock state for scenario replay. Never called
// during normal forward evaluation.
func (s *State) Reset() {
	s.knocked = false
}

// Clone returns an independent copy, used to seed per-path scenario
// states from the bond's canonical state.
func (s *State) Clone() *State {
	return &State{knocked: s.knocked}
}

// RestoreStates copies the knock flags of src back into dst after a
// counterfactual replay. Both slices must be index-aligned.
func RestoreStates(dst, src []*State) {
	for i := range dst {
		if i < len(src) && dst[i] != nil && src[i] != nil {
			dst[i].knocked = src[i].knocked
		}
	}
}

// CloneStates clones a scenario state slice.
func CloneStates(states []*State) []*State {
	out := make([]*State, len(states))
	for i, s := range states {
		if s != nil {
			out[i] = s.Clone()
		}
	}
	return out
}
