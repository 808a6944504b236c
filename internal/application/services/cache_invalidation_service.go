package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
)

// Response cache key patterns; the HTTP cache middleware keys entries as
// "http:cache:{path}?{query}"
const (
	searchCachePattern = "http:cache:*pg/search*"
	nearCachePattern   = "http:cache:*pg/near*"
)

// CacheInvalidationService evicts cached responses when listings or their reviews change
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for listing events
func (s *CacheInvalidationService) Start() error {
	events, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelListingUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to listing updates: %w", err)
	}

	s.started = true
	go s.processEvents(events)
	log.Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	log.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(events <-chan *entities.ListingEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event != nil {
				s.handleEvent(event)
			}
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.ListingEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Debug().Str("event_id", event.ID).Str("listing_id", event.ListingID).
		Str("event_type", string(event.EventType)).Msg("invalidating caches")

	var err error
	if event.EventType == entities.ListingEventReviewed {
		err = s.InvalidateReviewCaches(ctx, event.ListingID)
	}
	if err == nil {
		err = s.InvalidateListingCache(ctx, event.ListingID)
	}
	if err == nil && event.Slug != "" {
		err = s.InvalidateSlugCache(ctx, event.Slug)
	}
	if err == nil {
		err = s.InvalidateSearchCaches(ctx)
	}
	if err != nil {
		log.Warn().Err(err).Str("listing_id", event.ListingID).Msg("cache invalidation failed")
	}
}

// InvalidateListingCache evicts the cached responses of one listing
func (s *CacheInvalidationService) InvalidateListingCache(ctx context.Context, listingID string) error {
	pattern := fmt.Sprintf("http:cache:*pg*%s*", listingID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		return fmt.Errorf("failed to invalidate listing cache: %w", err)
	}
	return nil
}

// InvalidateSlugCache evicts the cached responses of GET /pg/{slug}, with and
// without a query string
func (s *CacheInvalidationService) InvalidateSlugCache(ctx context.Context, slug string) error {
	for _, pattern := range []string{
		fmt.Sprintf("http:cache:*pg/%s", slug),
		fmt.Sprintf(`http:cache:*pg/%s\?*`, slug),
	} {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate slug cache: %w", err)
		}
	}
	return nil
}

// InvalidateReviewCaches evicts the cached review pages of one listing
func (s *CacheInvalidationService) InvalidateReviewCaches(ctx context.Context, listingID string) error {
	pattern := fmt.Sprintf("http:cache:*review/pg/%s*", listingID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		return fmt.Errorf("failed to invalidate review cache: %w", err)
	}
	return nil
}

// InvalidateSearchCaches evicts every cached search and nearby response
func (s *CacheInvalidationService) InvalidateSearchCaches(ctx context.Context) error {
	for _, pattern := range []string{searchCachePattern, nearCachePattern} {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
		}
	}
	return nil
}
