package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantfold/structpricer/internal/bond"
	"github.com/quantfold/structpricer/internal/bond/store"
	"github.com/quantfold/structpricer/internal/config"
	"github.com/quantfold/structpricer/internal/database"
	"github.com/quantfold/structpricer/internal/events"
	"github.com/quantfold/structpricer/internal/scheduler"
	"github.com/quantfold/structpricer/internal/server"
	"github.com/quantfold/structpricer/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	log.Info().Msg("Starting structpricer")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Repositories and event manager
	bondRepo := store.NewBondRepository(db.Conn(), log)
	fixingRepo := store.NewFixingRepository(db.Conn(), log)
	eventMgr := events.NewManager(log)

	// Bond service: load the persisted book
	bonds := bond.NewService(bond.ServiceConfig{
		Log:          log,
		Bonds:        bondRepo,
		Fixings:      fixingRepo,
		Events:       eventMgr,
		BaseCurrency: cfg.BaseCurrency,
		Seed:         cfg.Seed,
		PathCount:    cfg.PathCount,
	})
	if err := bonds.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load bond book")
	}

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	// Register background jobs
	syncJob := scheduler.NewFixingSyncJob(scheduler.FixingSyncConfig{
		Log:    log,
		Bonds:  bonds,
		Events: eventMgr,
	})
	if err := sched.AddJob(cfg.SyncSchedule, syncJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register fixing sync job")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		DB:      db,
		Config:  cfg,
		Bonds:   bonds,
		Fixings: fixingRepo,
		DevMode: cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
