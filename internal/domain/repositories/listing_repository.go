package repositories

import (
	"context"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
)

// ListingRepository defines the interface for listing data operations
type ListingRepository interface {
	// Create creates a new listing
	Create(ctx context.Context, listing *entities.Listing) error

	// GetByID retrieves a listing by ID
	GetByID(ctx context.Context, id string) (*entities.Listing, error)

	// GetBySlug retrieves a listing by its slug
	GetBySlug(ctx context.Context, slug string) (*entities.Listing, error)

	// GetByIDs retrieves multiple listings, in the order of ids
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Listing, error)

	// Update updates a listing
	Update(ctx context.Context, listing *entities.Listing) error

	// Delete deletes a listing and, by cascade, its reviews
	Delete(ctx context.Context, id string) error

	// ListByOwner retrieves the listings published by ownerID
	ListByOwner(ctx context.Context, ownerID string) ([]*entities.Listing, error)

	// List pages through every listing ordered by creation time
	List(ctx context.Context, limit, offset int) ([]*entities.Listing, error)

	// Search filters listings in the database and returns one page plus the total match count
	Search(ctx context.Context, filter ListingFilter) ([]*entities.Listing, int, error)

	// UpdateRatings stores the review aggregate on a listing
	UpdateRatings(ctx context.Context, id string, summary entities.RatingSummary) error

	// SlugExists reports whether a slug is taken
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// ListingSearchRepository defines the interface for the listing search index (e.g. Typesense)
type ListingSearchRepository interface {
	// Search returns the ids of one page of matches plus the total count
	Search(ctx context.Context, filter ListingFilter) (*SearchHits, error)

	// Index upserts a listing document
	Index(ctx context.Context, listing *entities.Listing) error

	// Delete removes a listing from the index
	Delete(ctx context.Context, id string) error
}

// SearchHits is an ordered page of listing ids returned by the search index
type SearchHits struct {
	IDs []string
	// DistancesKm holds the geo distance per id when the filter had a geo point
	DistancesKm map[string]float64
	Total       int
}

// Sort orders accepted by ListingFilter.Sort
const (
	SortNewest        = "newest"
	SortPriceAsc      = "price"
	SortPriceDesc     = "-price"
	SortRatingAsc     = "rating"
	SortRatingDesc    = "-rating"
	SortDistance      = "distance"
	DefaultSearchPage = 1
	DefaultPageSize   = 9
	MaxPageSize       = 50
	DefaultRadiusKm   = 5.0
)

// GeoFilter restricts results to a radius around a point
type GeoFilter struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// ListingFilter defines the search filters for listings
type ListingFilter struct {
	Query       string
	City        string
	Locality    string
	State       string
	PGType      string
	Food        string
	MinPrice    int
	MaxPrice    int
	Occupancies []int
	AC          bool
	Amenities   []string
	Rules       []string
	Geo         *GeoFilter
	Sort        string
	Limit       int
	Offset      int
}
