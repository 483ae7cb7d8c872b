package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns
// Formula: Std Dev of Daily Returns × sqrt(252 trading days)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}

	stdDev := StdDev(dailyReturns)
	return stdDev * math.Sqrt(252) // 252 trading days per year
}

// CalculateReturns converts fixings to percentage returns
// Returns[i] = (Fixing[i] - Fixing[i-1]) / Fixing[i-1]
func CalculateReturns(fixings []float64) []float64 {
	if len(fixings) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(fixings)-1)
	for i := 1; i < len(fixings); i++ {
		if fixings[i-1] != 0 {
			returns[i-1] = (fixings[i] - fixings[i-1]) / fixings[i-1]
		}
	}

	return returns
}
