package payoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapResolverUpdate(t *testing.T) {
	r := MapResolver{"SX5E": 4917.5}
	assert.Equal(t, "4917.5 * 0.5", r.Update("SX5E * 0.5"))
	assert.Equal(t, "UKX * 0.5", r.Update("UKX * 0.5"), "unknown names pass through")
}

func TestMapResolverUpdateCompute(t *testing.T) {
	r := MapResolver{"SX5E": 4917.5}

	v, ok := r.UpdateCompute("SX5E")
	require.True(t, ok)
	assert.Equal(t, 4917.5, v)

	_, ok = r.UpdateCompute("UKX")
	assert.False(t, ok, "unresolved text must not reduce")
}

func TestMapResolverSnapshot(t *testing.T) {
	r := MapResolver{"A": 1, "B": 2}
	snap := r.Snapshot([]string{"A", "C"})
	assert.Equal(t, map[string]float64{"A": 1}, snap)
}
