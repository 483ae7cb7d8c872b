package pricing

import (
	"github.com/rs/zerolog"

	"github.com/quantfold/structpricer/internal/market"
	"github.com/quantfold/structpricer/internal/montecarlo"
	"github.com/quantfold/structpricer/pkg/formulas"
)

// histVolWindow is the lookback used when estimating volatility from
// stored fixing history.
const histVolWindow = 60

// calibrateEngines builds one GBM engine per referenced underlying.
// Volatility comes from the stored fixing series when enough history
// exists, otherwise from the index reference. Underlyings the market
// cannot resolve get no engine; pricing then fails soft downstream.
func calibrateEngines(mkt *market.Market, variables []string, history HistoryProvider, seed uint64, log zerolog.Logger) map[string]montecarlo.PathEngine {
	engines := make(map[string]montecarlo.PathEngine, len(variables))
	for _, name := range variables {
		ref, ok := mkt.Index(name)
		if !ok {
			log.Warn().Str("underlying", name).Msg("Market has no index reference, underlying not calibrated")
			continue
		}
		vol := ref.Vol
		if history != nil {
			if closes, err := history.Series(name, histVolWindow+1); err == nil {
				if hv := formulas.HistoricalVolatility(closes, histVolWindow); hv != nil {
					vol = *hv
				}
			} else {
				log.Debug().Err(err).Str("underlying", name).Msg("No fixing history, using reference volatility")
			}
		}
		engines[name] = &montecarlo.GBMEngine{
			Spot:  ref.Spot,
			Drift: ref.Drift,
			Vol:   vol,
			Seed:  seed,
		}
	}
	return engines
}
