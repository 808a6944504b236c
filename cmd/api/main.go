package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/adapters/cache"
	"github.com/zatekoja/pgfinder/internal/adapters/database"
	"github.com/zatekoja/pgfinder/internal/adapters/events"
	"github.com/zatekoja/pgfinder/internal/adapters/media"
	"github.com/zatekoja/pgfinder/internal/adapters/oauth"
	"github.com/zatekoja/pgfinder/internal/adapters/search"
	"github.com/zatekoja/pgfinder/internal/api/handlers"
	"github.com/zatekoja/pgfinder/internal/api/middleware"
	"github.com/zatekoja/pgfinder/internal/api/routes"
	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/cloudinary"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/redis"
	"github.com/zatekoja/pgfinder/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/pgfinder/internal/infrastructure/notifications"
	"github.com/zatekoja/pgfinder/internal/infrastructure/observability"
	"github.com/zatekoja/pgfinder/pkg/config"
	"github.com/zatekoja/pgfinder/pkg/secrets"
	"github.com/zatekoja/pgfinder/pkg/validation"
)

func main() {
	ctx := context.Background()

	res, err := secrets.Apply(ctx, secrets.VaultConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load secrets from Vault")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)
	if res.Enabled {
		log.Info().Str("path", res.Path).Int("loaded", len(res.Loaded)).Int("skipped", len(res.Skipped)).Msg("Applied Vault secrets")
	}

	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to setup OpenTelemetry")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	// Postgres is required
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pgClient.Close()
	if err := pgClient.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	log.Info().Msg("Connected to PostgreSQL")

	// Redis backs the response cache, the refresh token store and listing events
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	cacheProvider := cache.NewRedisAdapter(redisClient)
	tokenStore := cache.NewRedisTokenStore(redisClient)
	eventBus := events.NewRedisEventBus(redisClient)
	log.Info().Msg("Connected to Redis")

	var (
		searchRepo     repositories.ListingSearchRepository
		typesenseCheck handlers.Pinger
	)
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Typesense, falling back to database search")
		} else if err := tsClient.InitSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Typesense schema, falling back to database search")
		} else {
			searchRepo = search.NewTypesenseAdapter(tsClient)
			typesenseCheck = tsClient
			log.Info().Msg("Connected to Typesense")
		}
	}

	var (
		mediaStore      providers.MediaStore
		cloudinaryCheck handlers.Pinger
	)
	if cfg.Cloudinary.Enabled() {
		cldClient, err := cloudinary.NewClient(&cfg.Cloudinary)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to configure Cloudinary, image uploads disabled")
		} else {
			mediaStore = media.NewCloudinaryAdapter(cldClient)
			cloudinaryCheck = cldClient
		}
	}

	var oauthProvider providers.OAuthProvider
	if cfg.OAuth.Enabled() {
		oauthProvider = oauth.NewGoogleProvider(&cfg.OAuth)
		log.Info().Msg("Google sign-in enabled")
	}

	var mailer providers.Mailer = notifications.LogMailer{}
	if !cfg.IsDevelopment() {
		sender, err := notifications.NewSMTPSender(&cfg.SMTP)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure SMTP")
		}
		mailer = sender
	}

	// Repositories
	listingRepo := database.NewCachedListingAdapter(database.NewListingAdapter(pgClient), cacheProvider, metrics)
	userRepo := database.NewUserAdapter(pgClient)
	reviewRepo := database.NewReviewAdapter(pgClient)

	// Services
	validator := validation.New()
	tokens := services.NewTokenManager(cfg.Auth)
	authService := services.NewAuthService(userRepo, tokenStore, mailer, oauthProvider, tokens, validator)
	userService := services.NewUserService(userRepo, listingRepo, tokenStore, validator)
	listingService := services.NewListingService(listingRepo, searchRepo, mediaStore, eventBus, validator)
	reviewService := services.NewReviewService(reviewRepo, listingRepo, searchRepo, eventBus, validator)
	imageService := services.NewImageService(mediaStore, cfg.Upload, metrics)

	invalidation := services.NewCacheInvalidationService(cacheProvider, eventBus)
	if err := invalidation.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start cache invalidation")
	}
	defer invalidation.Stop()

	// Handlers
	cookies := middleware.Cookies{Secure: cfg.Auth.SecureCookies}
	checks := map[string]handlers.Pinger{
		"postgres":   pgClient,
		"redis":      redisClient,
		"typesense":  typesenseCheck,
		"cloudinary": cloudinaryCheck,
	}

	router := routes.NewRouter(
		handlers.NewListingHandler(listingService),
		handlers.NewReviewHandler(reviewService),
		handlers.NewAuthHandler(authService, cookies, cfg.Server.PublicURL, cfg.Server.ClientURL, metrics),
		handlers.NewUserHandler(userService),
		handlers.NewImageHandler(imageService, cfg.Upload),
		handlers.NewHealthHandler(checks),
		middleware.NewAuth(authService, cookies),
		middleware.NewCacheMiddleware(cacheProvider, metrics),
		userRepo,
		metrics,
		routes.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			AuthRequests:   cfg.RateLimit.AuthRequests,
			AuthWindow:     cfg.RateLimit.AuthWindow,
		},
	)

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("env", cfg.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
