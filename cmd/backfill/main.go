package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/adapters/database"
	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/pgfinder/internal/infrastructure/observability"
	"github.com/zatekoja/pgfinder/pkg/config"
)

func main() {
	var (
		workers    int
		maxRetries int
		listingID  string
	)
	flag.IntVar(&workers, "workers", 3, "Number of concurrent workers")
	flag.IntVar(&maxRetries, "max-retries", 3, "Max attempts per listing")
	flag.StringVar(&listingID, "listing", "", "Single listing ID to backfill")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("pgfinder-backfill", cfg.Environment)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	svc := services.NewListingBackfillService(
		database.NewListingAdapter(pgClient),
		database.NewReviewAdapter(pgClient),
		workers,
		maxRetries,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()

	if listingID != "" {
		changed, err := svc.BackfillSingle(ctx, listingID)
		if err != nil {
			log.Error().Err(err).Str("listing_id", listingID).Msg("Failed to backfill listing")
			return
		}
		log.Info().Str("listing_id", listingID).Bool("changed", changed).Msg("Backfilled listing")
		return
	}

	log.Info().Int("workers", workers).Msg("Starting backfill")
	summary, err := svc.BackfillAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Backfill stopped early")
	}
	log.Info().
		Dur("took", time.Since(start)).
		Int("processed", summary.TotalProcessed).
		Int("updated", summary.UpdatedCount).
		Int("failed", summary.FailureCount).
		Msg("Backfill complete")
}
