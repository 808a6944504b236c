package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	"github.com/zatekoja/pgfinder/internal/infrastructure/observability"
)

const (
	listingByIDTTL    = 600 // seconds
	cacheWriteTimeout = 2 * time.Second
	listingCacheKind  = "listing"
)

func listingCacheKey(id string) string {
	return "listing:" + id
}

// CachedListingAdapter wraps a ListingRepository with a read-through cache on GetByID
type CachedListingAdapter struct {
	repositories.ListingRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCachedListingAdapter creates a new cached listing adapter; metrics may be nil
func NewCachedListingAdapter(adapter repositories.ListingRepository, cache providers.CacheProvider, metrics *observability.Metrics) repositories.ListingRepository {
	return &CachedListingAdapter{
		ListingRepository: adapter,
		cache:             cache,
		metrics:           metrics,
	}
}

// GetByID retrieves a listing by ID with caching
func (a *CachedListingAdapter) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	cacheKey := listingCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var listing entities.Listing
		if err := json.Unmarshal(cached, &listing); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, listingCacheKind)
			return &listing, nil
		}
		log.Warn().Err(err).Str("listing_id", id).Msg("failed to unmarshal cached listing")
	}
	observability.RecordCacheMiss(ctx, a.metrics, listingCacheKind)

	listing, err := a.ListingRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(listing)
	if err != nil {
		return listing, nil
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()
		if err := a.cache.Set(bgCtx, cacheKey, data, listingByIDTTL); err != nil {
			log.Warn().Err(err).Str("listing_id", id).Msg("failed to cache listing")
		}
	}()

	return listing, nil
}

// Update updates a listing and evicts its cache entry
func (a *CachedListingAdapter) Update(ctx context.Context, listing *entities.Listing) error {
	if err := a.ListingRepository.Update(ctx, listing); err != nil {
		return err
	}
	a.evict(ctx, listing.ID)
	return nil
}

// Delete deletes a listing and evicts its cache entry
func (a *CachedListingAdapter) Delete(ctx context.Context, id string) error {
	if err := a.ListingRepository.Delete(ctx, id); err != nil {
		return err
	}
	a.evict(ctx, id)
	return nil
}

// UpdateRatings stores the review aggregate and evicts the cache entry
func (a *CachedListingAdapter) UpdateRatings(ctx context.Context, id string, summary entities.RatingSummary) error {
	if err := a.ListingRepository.UpdateRatings(ctx, id, summary); err != nil {
		return err
	}
	a.evict(ctx, id)
	return nil
}

func (a *CachedListingAdapter) evict(ctx context.Context, id string) {
	if err := a.cache.Delete(ctx, listingCacheKey(id)); err != nil {
		log.Warn().Err(err).Str("listing_id", id).Msg("failed to evict cached listing")
	}
}
