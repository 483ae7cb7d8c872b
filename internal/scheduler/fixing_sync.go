package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/structpricer/internal/bond"
	"github.com/quantfold/structpricer/internal/events"
)

// FixingSyncJob rebuilds the market snapshot from the fixing store,
// pushes it into the live bond book and reprices everything.
type FixingSyncJob struct {
	log    zerolog.Logger
	bonds  *bond.Service
	events *events.Manager
}

// FixingSyncConfig holds configuration for the fixing sync job
type FixingSyncConfig struct {
	Log    zerolog.Logger
	Bonds  *bond.Service
	Events *events.Manager
}

// NewFixingSyncJob creates a new fixing sync job
func NewFixingSyncJob(cfg FixingSyncConfig) *FixingSyncJob {
	return &FixingSyncJob{
		log:    cfg.Log.With().Str("job", "fixing_sync").Logger(),
		bonds:  cfg.Bonds,
		events: cfg.Events,
	}
}

// Name returns the job name
func (j *FixingSyncJob) Name() string {
	return "fixing_sync"
}

// Run executes the fixing sync cycle
func (j *FixingSyncJob) Run() error {
	j.log.Info().Msg("Starting fixing sync")
	startTime := time.Now()
	if j.events != nil {
		j.events.Emit(events.FixingSyncStart, "scheduler", nil)
	}

	// Step 1: Rebuild the market and recalibrate the book
	j.bonds.RefreshMarket()

	// Step 2: Reprice every bond. Pricing failures are logged per bond
	// and do not stop the cycle.
	priced := 0
	for _, id := range j.bonds.IDs() {
		if _, err := j.bonds.Price(id); err != nil {
			j.log.Error().Err(err).Str("bond", id).Msg("Repricing failed")
			continue
		}
		priced++
	}

	duration := time.Since(startTime)
	if j.events != nil {
		j.events.Emit(events.FixingSyncComplete, "scheduler", map[string]interface{}{
			"bonds":       priced,
			"duration_ms": duration.Milliseconds(),
		})
	}
	j.log.Info().
		Int("bonds", priced).
		Dur("duration", duration).
		Msg("Fixing sync completed")

	return nil
}
