package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
	"github.com/zatekoja/pgfinder/pkg/validation"
)

// ReviewsPerPage is the page size of a listing's reviews
const ReviewsPerPage = 9

// ReviewPatch holds the mutable fields of a review
type ReviewPatch struct {
	Review *string `json:"review"`
	Rating *int    `json:"rating"`
}

// ReviewService handles reviews and keeps listing ratings in step with them
type ReviewService struct {
	reviews    repositories.ReviewRepository
	listings   repositories.ListingRepository
	searchRepo repositories.ListingSearchRepository
	eventBus   providers.EventBus
	validator  *validation.Validator
}

// NewReviewService creates a new review service
func NewReviewService(
	reviews repositories.ReviewRepository,
	listings repositories.ListingRepository,
	searchRepo repositories.ListingSearchRepository,
	eventBus providers.EventBus,
	validator *validation.Validator,
) *ReviewService {
	return &ReviewService{
		reviews:    reviews,
		listings:   listings,
		searchRepo: searchRepo,
		eventBus:   eventBus,
		validator:  validator,
	}
}

// GetAllReviews returns one page of a listing's reviews, newest first
func (s *ReviewService) GetAllReviews(ctx context.Context, listingID string, page int) ([]*entities.Review, error) {
	if page < 1 {
		page = 1
	}
	return s.reviews.ListByListing(ctx, listingID, ReviewsPerPage, (page-1)*ReviewsPerPage)
}

// CreateReview records userID's review of a listing
func (s *ReviewService) CreateReview(ctx context.Context, userID, listingID string, review *entities.Review) (*entities.Review, error) {
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	review.ID = uuid.NewString()
	review.UserID = userID
	review.ListingID = listingID
	review.Review = s.validator.Sanitize(review.Review)
	review.Author = nil
	review.CreatedAt = now
	review.UpdatedAt = now

	if err := s.validator.Struct(review); err != nil {
		return nil, err
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}

	if err := s.RecalculateRatings(ctx, listingID); err != nil {
		return nil, err
	}
	return review, nil
}

// GetReview retrieves a review by ID
func (s *ReviewService) GetReview(ctx context.Context, id string) (*entities.Review, error) {
	return s.reviews.GetByID(ctx, id)
}

// UpdateReview changes rating or text of a review written by userID
func (s *ReviewService) UpdateReview(ctx context.Context, userID, id string, patch ReviewPatch) (*entities.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewBadRequestError("Invalid Request")
		}
		return nil, err
	}
	if review.UserID != userID {
		return nil, apperrors.NewBadRequestError("Invalid Request")
	}

	if patch.Review != nil {
		review.Review = s.validator.Sanitize(*patch.Review)
	}
	if patch.Rating != nil {
		review.Rating = *patch.Rating
	}
	review.UpdatedAt = time.Now().UTC()

	if err := s.validator.Struct(review); err != nil {
		return nil, err
	}

	if err := s.reviews.UpdateOwned(ctx, review); err != nil {
		return nil, err
	}

	if patch.Rating != nil {
		if err := s.RecalculateRatings(ctx, review.ListingID); err != nil {
			return nil, err
		}
	}
	return review, nil
}

// DeleteReview removes a review written by userID
func (s *ReviewService) DeleteReview(ctx context.Context, userID, id string) error {
	listingID, err := s.reviews.DeleteOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	return s.RecalculateRatings(ctx, listingID)
}

// RecalculateRatings stores the current rating aggregate on the listing
func (s *ReviewService) RecalculateRatings(ctx context.Context, listingID string) error {
	summary, err := s.reviews.Summary(ctx, listingID)
	if err != nil {
		return err
	}

	if err := s.listings.UpdateRatings(ctx, listingID, summary); err != nil {
		return err
	}

	event := entities.NewListingEvent(listingID, entities.ListingEventReviewed, map[string]any{
		"ratingsAverage":  summary.Average,
		"ratingsQuantity": summary.Quantity,
	})

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		log.Warn().Err(err).Str("listing_id", listingID).Msg("failed to reload listing after rating update")
	} else {
		event.WithSlug(listing.Slug)
		if s.searchRepo != nil {
			if err := s.searchRepo.Index(ctx, listing); err != nil {
				log.Warn().Err(err).Str("listing_id", listingID).Msg("failed to reindex listing ratings")
			}
		}
	}

	publishListingEvent(ctx, s.eventBus, event)
	return nil
}
