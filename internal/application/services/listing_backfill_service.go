package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	"github.com/zatekoja/pgfinder/pkg/retry"
	"github.com/zatekoja/pgfinder/pkg/textutil"
)

// BackfillBatchSize is the page size used when walking every listing
const BackfillBatchSize = 100

// BackfillSummary counts the outcome of a backfill run
type BackfillSummary struct {
	TotalProcessed int
	UpdatedCount   int
	FailureCount   int
}

// ListingBackfillService recomputes the derived fields of stored listings:
// the price range, the rating aggregate and a missing slug.
type ListingBackfillService struct {
	listings    repositories.ListingRepository
	reviews     repositories.ReviewRepository
	workerCount int
	retry       retry.Config
}

// NewListingBackfillService creates a new backfill service
func NewListingBackfillService(
	listings repositories.ListingRepository,
	reviews repositories.ReviewRepository,
	workers int,
	maxRetries int,
) *ListingBackfillService {
	if workers <= 0 {
		workers = 1
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &ListingBackfillService{
		listings:    listings,
		reviews:     reviews,
		workerCount: workers,
		retry:       retry.Fixed(maxRetries, 200*time.Millisecond),
	}
}

// BackfillAll walks every listing and fixes its derived fields
func (s *ListingBackfillService) BackfillAll(ctx context.Context) (*BackfillSummary, error) {
	var processed, updated, failure atomic.Int64

	ids := make(chan string, BackfillBatchSize)
	var wg sync.WaitGroup

	for range s.workerCount {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				changed, err := s.BackfillSingle(ctx, id)
				processed.Add(1)
				switch {
				case err != nil:
					failure.Add(1)
					log.Warn().Err(err).Str("listing_id", id).Msg("failed to backfill listing")
				case changed:
					updated.Add(1)
				}
			}
		}()
	}

	produceErr := s.produce(ctx, ids)
	close(ids)
	wg.Wait()

	summary := &BackfillSummary{
		TotalProcessed: int(processed.Load()),
		UpdatedCount:   int(updated.Load()),
		FailureCount:   int(failure.Load()),
	}
	return summary, produceErr
}

func (s *ListingBackfillService) produce(ctx context.Context, ids chan<- string) error {
	for offset := 0; ; offset += BackfillBatchSize {
		page, err := s.listings.List(ctx, BackfillBatchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to list listings: %w", err)
		}

		for _, listing := range page {
			select {
			case ids <- listing.ID:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if len(page) < BackfillBatchSize {
			return nil
		}
	}
}

// BackfillSingle fixes one listing and reports whether anything changed
func (s *ListingBackfillService) BackfillSingle(ctx context.Context, listingID string) (bool, error) {
	var changed bool
	err := retry.Do(ctx, s.retry, func() error {
		var err error
		changed, err = s.backfill(ctx, listingID)
		return err
	})
	return changed, err
}

func (s *ListingBackfillService) backfill(ctx context.Context, listingID string) (bool, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return false, retry.Permanent(fmt.Errorf("failed to get listing %s: %w", listingID, err))
	}

	minPrice, maxPrice := listing.MinPrice, listing.MaxPrice
	listing.ComputePriceRange()
	fieldsChanged := listing.MinPrice != minPrice || listing.MaxPrice != maxPrice

	if listing.Slug == "" {
		slug, err := s.freeSlug(ctx, listing)
		if err != nil {
			return false, err
		}
		listing.Slug = slug
		fieldsChanged = true
	}

	if fieldsChanged {
		listing.UpdatedAt = time.Now().UTC()
		if err := s.listings.Update(ctx, listing); err != nil {
			return false, fmt.Errorf("failed to update listing %s: %w", listingID, err)
		}
	}

	summary, err := s.reviews.Summary(ctx, listingID)
	if err != nil {
		return false, fmt.Errorf("failed to summarize reviews of %s: %w", listingID, err)
	}
	current := entities.RatingSummary{Average: listing.RatingsAverage, Quantity: listing.RatingsQuantity}
	if summary == current {
		return fieldsChanged, nil
	}
	if err := s.listings.UpdateRatings(ctx, listingID, summary); err != nil {
		return false, fmt.Errorf("failed to update ratings of %s: %w", listingID, err)
	}
	return true, nil
}

// freeSlug prefers the bare name slug and falls back to the id prefix
func (s *ListingBackfillService) freeSlug(ctx context.Context, listing *entities.Listing) (string, error) {
	base := textutil.Slugify(listing.Name)
	candidates := []string{base}
	if len(listing.ID) >= 8 {
		candidates = append(candidates, base+"-"+listing.ID[:8])
	}
	for _, slug := range candidates {
		taken, err := s.listings.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
	}
	return base + "-" + listing.ID, nil
}
