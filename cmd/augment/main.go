package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"harshcond-go/internal/config"
	"harshcond-go/internal/logging"
	"harshcond-go/internal/pipeline"
	"harshcond-go/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logging.Setup(cfg)

	log.Info().
		Str("run_id", cfg.RunID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Str("input", cfg.RawVideo).
		Str("output", cfg.DegradedVideo).
		Uint64("seed", cfg.DegradeSeed).
		Msg("Starting video degradation")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Degradation failed")
	}
}

// run releases all services before returning.
func run(cfg *config.Config) error {
	sc, err := services.NewServiceContainer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sc.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Service shutdown failed")
		}
	}()

	return pipeline.NewJobs(sc).Augment()
}
