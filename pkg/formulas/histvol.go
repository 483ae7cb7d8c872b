package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// HistoricalVolatility estimates annualized volatility from a series
// of closing fixings using a rolling standard deviation of log
// returns.
//
// Args:
//   closes: Array of closing fixings, oldest first
//   length: Rolling window (number of returns)
//
// Returns:
//   Annualized volatility or nil if insufficient data
func HistoricalVolatility(closes []float64, length int) *float64 {
	if length < 2 || len(closes) < length+1 {
		return nil
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return nil
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}

	// Use go-talib for the rolling standard deviation
	sd := talib.StdDev(returns, length, 1.0)
	if len(sd) == 0 {
		return nil
	}

	last := sd[len(sd)-1]
	if isNaN(last) {
		return nil
	}

	annualized := last * math.Sqrt(252)
	return &annualized
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return math.IsNaN(f)
}
