package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/pgfinder/internal/adapters/database"
	"github.com/zatekoja/pgfinder/internal/adapters/search"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/pgfinder/internal/infrastructure/observability"
	"github.com/zatekoja/pgfinder/pkg/config"
)

const pageSize = 200

func main() {
	var (
		reset        bool
		intervalFlag string
		workers      int
	)
	flag.BoolVar(&reset, "reset", false, "delete the existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.IntVar(&workers, "workers", 4, "number of concurrent index writers")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		var err error
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("Invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("Interval must be greater than zero")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("pgfinder-indexer", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset, workers); err != nil {
			log.Error().Err(err).Msg("Reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_run_in", interval).Msg("Reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool, workers int) error {
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Msg("Deleting listings collection")
		if err := tsClient.DropCollection(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to delete collection")
		}
	}

	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	listings := database.NewListingAdapter(pgClient)
	index := search.NewTypesenseAdapter(tsClient)

	var indexed, failed atomic.Int64
	start := time.Now()

	for offset := 0; ; offset += pageSize {
		page, err := listings.List(ctx, pageSize, offset)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(workers, 1))
		for _, listing := range page {
			g.Go(func() error {
				if err := index.Index(gctx, listing); err != nil {
					failed.Add(1)
					log.Warn().Err(err).Str("listing_id", listing.ID).Msg("Failed to index listing")
					return nil
				}
				indexed.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(page) < pageSize {
			break
		}
	}

	log.Info().
		Int64("indexed", indexed.Load()).
		Int64("failed", failed.Load()).
		Dur("took", time.Since(start)).
		Msg("Indexing complete")
	return nil
}
