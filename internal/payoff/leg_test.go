package payoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/structpricer/internal/schedule"
)

func mustNote(t *testing.T, s Spec) *Note {
	t.Helper()
	n, err := FromSpec(s)
	require.NoError(t, err)
	return n
}

func TestLegVariablesFirstSeenOrder(t *testing.T) {
	a := mustNote(t, Spec{
		Type: "range", Variables: []string{"B", "A"},
		TriggerLow: Levels{"": 0}, TriggerHigh: Levels{"": 95}, Strike: Levels{"": 100},
		Amount: f64(1),
	})
	b := mustNote(t, Spec{
		Type: "range", Variables: []string{"A", "C"},
		TriggerLow: Levels{"": 0}, TriggerHigh: Levels{"": 95}, Strike: Levels{"": 100},
		Amount: f64(1),
	})
	leg := Leg{{Note: a}, {Note: b}}
	assert.Equal(t, []string{"B", "A", "C"}, leg.Variables())
}

func TestLegIsPriceable(t *testing.T) {
	assert.False(t, Leg{}.IsPriceable(), "empty leg must not be priceable")

	good := mustNote(t, Spec{Type: "fixed", Amount: f64(1)})
	bad := mustNote(t, Spec{Type: "fixed"})
	assert.True(t, Leg{{Note: good}}.IsPriceable())
	assert.False(t, Leg{{Note: good}, {Note: bad}}.IsPriceable())
	assert.False(t, Leg{{Note: good}, {}}.IsPriceable(), "nil payoff must not be priceable")
}

func TestLegCallDates(t *testing.T) {
	d1 := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	n := mustNote(t, Spec{Type: "fixed", Amount: f64(1)})
	leg := Leg{
		{Note: n},
		{Note: n, Call: &CallDescriptor{Date: d1}},
	}
	require.Len(t, leg.CallDates(), 1)
	assert.Equal(t, d1, leg.CallDates()[0])
}

func TestLegStateLifecycle(t *testing.T) {
	n := mustNote(t, Spec{
		Type: "range", Variables: []string{"X"},
		TriggerLow: Levels{"": 0}, TriggerHigh: Levels{"": 95}, Strike: Levels{"": 100},
		Amount: f64(100),
	})
	leg := Leg{
		{Period: schedule.Period{}, Note: n},
		{Period: schedule.Period{}, Note: n},
	}

	states := leg.NewStates()
	require.Len(t, states, 2)

	leg.AssignFixings(states, map[string]float64{"X": 50})
	assert.True(t, states[0].Knocked())
	assert.True(t, states[1].Knocked())

	// Clone, reset, restore round trip.
	saved := CloneStates(states)
	leg.ResetStates(states)
	assert.False(t, states[0].Knocked())
	RestoreStates(states, saved)
	assert.True(t, states[0].Knocked())
}
