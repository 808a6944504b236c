package repositories

import (
	"context"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
)

// ReviewRepository defines the interface for review operations
type ReviewRepository interface {
	// Create creates a new review; a second review of the same listing by the same user is a conflict
	Create(ctx context.Context, review *entities.Review) error

	// GetByID retrieves a review by ID
	GetByID(ctx context.Context, id string) (*entities.Review, error)

	// ListByListing retrieves reviews for a listing, newest first
	ListByListing(ctx context.Context, listingID string, limit, offset int) ([]*entities.Review, error)

	// UpdateOwned updates rating and text of a review written by userID
	UpdateOwned(ctx context.Context, review *entities.Review) error

	// DeleteOwned deletes a review written by userID and returns its listing id
	DeleteOwned(ctx context.Context, id, userID string) (string, error)

	// Summary computes the rating aggregate for a listing
	Summary(ctx context.Context, listingID string) (entities.RatingSummary, error)
}
