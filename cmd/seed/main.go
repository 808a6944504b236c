package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/adapters/database"
	"github.com/zatekoja/pgfinder/internal/adapters/search"
	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/pgfinder/internal/infrastructure/observability"
	"github.com/zatekoja/pgfinder/pkg/config"
	"github.com/zatekoja/pgfinder/pkg/validation"
)

func main() {
	var path string
	flag.StringVar(&path, "file", "cmd/seed/testdata/seed.json", "seed document with users and listings")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("pgfinder-seed", cfg.Environment)

	file, err := loadSeedFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load seed file")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()
	if err := pgClient.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	var searchRepo repositories.ListingSearchRepository
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err == nil {
			err = tsClient.InitSchema(ctx)
		}
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, listings will not be indexed")
		} else {
			searchRepo = search.NewTypesenseAdapter(tsClient)
		}
	}

	validator := validation.New()
	userRepo := database.NewUserAdapter(pgClient)
	listingRepo := database.NewListingAdapter(pgClient)

	s := &seeder{
		users:    services.NewUserService(userRepo, listingRepo, nil, validator),
		finder:   userRepo,
		listings: services.NewListingService(listingRepo, searchRepo, nil, nil, validator),
	}

	res, err := s.run(ctx, file)
	if err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}
	log.Info().
		Int("users_created", res.UsersCreated).
		Int("users_existing", res.UsersExisting).
		Int("listings_created", res.ListingsCreated).
		Msg("Seeding complete")
}
