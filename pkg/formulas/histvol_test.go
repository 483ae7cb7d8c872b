package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoricalVolatilityConstantSeries(t *testing.T) {
	closes := make([]float64, 61)
	for i := range closes {
		closes[i] = 100
	}
	hv := HistoricalVolatility(closes, 60)
	require.NotNil(t, hv)
	assert.Equal(t, 0.0, *hv)
}

func TestHistoricalVolatilityInsufficientData(t *testing.T) {
	assert.Nil(t, HistoricalVolatility([]float64{100, 101}, 60))
	assert.Nil(t, HistoricalVolatility(nil, 60))
	assert.Nil(t, HistoricalVolatility([]float64{100, 101, 102}, 1))
}

func TestHistoricalVolatilityRejectsNonPositiveFixings(t *testing.T) {
	closes := make([]float64, 61)
	for i := range closes {
		closes[i] = 100
	}
	closes[30] = 0
	assert.Nil(t, HistoricalVolatility(closes, 60))
}

func TestHistoricalVolatilityAlternatingSeries(t *testing.T) {
	// Alternate up/down 1%: volatility is clearly positive.
	closes := make([]float64, 61)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 1 {
			closes[i] = closes[i-1] * 1.01
		} else {
			closes[i] = closes[i-1] * 0.99
		}
	}
	hv := HistoricalVolatility(closes, 60)
	require.NotNil(t, hv)
	assert.Greater(t, *hv, 0.05)
}

func TestMeanAndStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
	assert.Equal(t, 0.0, StdDev(nil))
	assert.InDelta(t, 1.0, StdDev([]float64{1, 2, 3}), 1e-12)
}

func TestAnnualizedVolatility(t *testing.T) {
	assert.Equal(t, 0.0, AnnualizedVolatility(nil))
	returns := []float64{0.01, -0.01, 0.01, -0.01}
	want := StdDev(returns) * math.Sqrt(252)
	assert.InDelta(t, want, AnnualizedVolatility(returns), 1e-12)
}

func TestCalculateReturns(t *testing.T) {
	assert.Empty(t, CalculateReturns([]float64{100}))

	got := CalculateReturns([]float64{100, 110, 99})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.10, got[0], 1e-12)
	assert.InDelta(t, -0.10, got[1], 1e-12)
}
