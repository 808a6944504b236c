package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
	"github.com/zatekoja/pgfinder/pkg/textutil"
	"github.com/zatekoja/pgfinder/pkg/validation"
)

// MaxListingImages caps the gallery size of a listing
const MaxListingImages = 50

const slugAttempts = 5

// immutableListingFields cannot be changed through a listing patch
var immutableListingFields = []string{
	"id", "slug", "owner", "ratingsAverage", "ratingsQuantity", "minPrice", "maxPrice",
	"coverImage", "images", "createdAt", "updatedAt", "distanceKm",
}

// ListingService handles business logic for PG listings
type ListingService struct {
	repo       repositories.ListingRepository
	searchRepo repositories.ListingSearchRepository
	media      providers.MediaStore
	eventBus   providers.EventBus
	validator  *validation.Validator
}

// NewListingService creates a new listing service. searchRepo, media and
// eventBus are optional.
func NewListingService(
	repo repositories.ListingRepository,
	searchRepo repositories.ListingSearchRepository,
	media providers.MediaStore,
	eventBus providers.EventBus,
	validator *validation.Validator,
) *ListingService {
	return &ListingService{
		repo:       repo,
		searchRepo: searchRepo,
		media:      media,
		eventBus:   eventBus,
		validator:  validator,
	}
}

// Create publishes a new listing owned by owner
func (s *ListingService) Create(ctx context.Context, owner *entities.User, listing *entities.Listing) (*entities.Listing, error) {
	now := time.Now().UTC()
	listing.ID = uuid.NewString()
	listing.OwnerID = owner.ID
	listing.RatingsAverage = entities.DefaultRatingsAverage
	listing.RatingsQuantity = entities.DefaultRatingsQuantity
	listing.CoverImage = nil
	listing.Images = nil
	listing.DistanceKm = nil
	listing.CreatedAt = now
	listing.UpdatedAt = now
	if listing.Food == "" {
		listing.Food = entities.FoodVeg
	}
	s.normalize(listing)

	if err := s.validator.Struct(listing); err != nil {
		return nil, err
	}

	slug, err := s.uniqueSlug(ctx, listing.Name)
	if err != nil {
		return nil, err
	}
	listing.Slug = slug

	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, err
	}

	s.index(ctx, listing)
	s.publish(ctx, listing, entities.ListingEventCreated, nil)
	return listing, nil
}

// GetListing looks a listing up by id, or by slug when idOrSlug is not a uuid
func (s *ListingService) GetListing(ctx context.Context, idOrSlug string) (*entities.Listing, error) {
	if err := uuid.Validate(idOrSlug); err == nil {
		return s.repo.GetByID(ctx, idOrSlug)
	}
	return s.repo.GetBySlug(ctx, strings.ToLower(idOrSlug))
}

// Update applies a JSON merge patch to a listing the actor owns
func (s *ListingService) Update(ctx context.Context, actor *entities.User, id string, patch json.RawMessage) (*entities.Listing, error) {
	existing, err := s.authorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	var changed map[string]any
	if err := json.Unmarshal(patch, &changed); err != nil {
		return nil, apperrors.NewBadRequestError("Invalid request body")
	}
	for _, field := range immutableListingFields {
		delete(changed, field)
	}
	if len(changed) == 0 {
		return existing, nil
	}

	updated := *existing
	if err := json.Unmarshal(patch, &updated); err != nil {
		return nil, apperrors.NewBadRequestError("Invalid request body")
	}
	updated.ID = existing.ID
	updated.Slug = existing.Slug
	updated.OwnerID = existing.OwnerID
	updated.RatingsAverage = existing.RatingsAverage
	updated.RatingsQuantity = existing.RatingsQuantity
	updated.CoverImage = existing.CoverImage
	updated.Images = existing.Images
	updated.CreatedAt = existing.CreatedAt
	updated.DistanceKm = nil
	updated.UpdatedAt = time.Now().UTC()
	s.normalize(&updated)

	if err := s.validator.Struct(&updated); err != nil {
		return nil, err
	}

	if updated.Name != existing.Name {
		if updated.Slug, err = s.uniqueSlug(ctx, updated.Name); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	s.index(ctx, &updated)
	s.publish(ctx, existing, entities.ListingEventUpdated, changed)
	return &updated, nil
}

// Delete removes a listing the actor owns together with its reviews and images
func (s *ListingService) Delete(ctx context.Context, actor *entities.User, id string) error {
	listing, err := s.authorized(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, listing.ID); err != nil {
		return err
	}

	if s.media != nil {
		for _, publicID := range listing.ImageIDs() {
			if err := s.media.Destroy(ctx, publicID); err != nil {
				log.Warn().Err(err).Str("public_id", publicID).Msg("failed to destroy listing image")
			}
		}
	}

	if s.searchRepo != nil {
		if err := s.searchRepo.Delete(ctx, listing.ID); err != nil {
			log.Warn().Err(err).Str("listing_id", listing.ID).Msg("failed to delete listing from index")
		}
	}

	s.publish(ctx, listing, entities.ListingEventDeleted, nil)
	return nil
}

// AttachImages sets the cover and appends gallery images to a listing the actor owns
func (s *ListingService) AttachImages(ctx context.Context, actor *entities.User, id string, cover *entities.Image, images []entities.Image) (*entities.Listing, error) {
	if cover == nil && len(images) == 0 {
		return nil, apperrors.NewBadRequestError("Please provide a cover image or images.")
	}

	listing, err := s.authorized(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if len(listing.Images)+len(images) > MaxListingImages {
		return nil, apperrors.NewBadRequestError("You can upload maximum 50 pictures.")
	}

	changed := map[string]any{}
	if cover != nil {
		listing.CoverImage = cover
		changed["coverImage"] = cover.PublicID
	}
	if len(images) > 0 {
		listing.Images = append(listing.Images, images...)
		changed["images"] = len(listing.Images)
	}
	listing.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, listing); err != nil {
		return nil, err
	}

	s.index(ctx, listing)
	s.publish(ctx, listing, entities.ListingEventUpdated, changed)
	return listing, nil
}

// ListOwnerListings returns every listing published by ownerID
func (s *ListingService) ListOwnerListings(ctx context.Context, ownerID string) ([]*entities.Listing, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Search runs a parsed search and reorders the hits around the caller's filters
func (s *ListingService) Search(ctx context.Context, q SearchQuery) (*entities.SearchResult, error) {
	listings, total, err := s.find(ctx, q.Filter)
	if err != nil {
		return nil, err
	}

	return &entities.SearchResult{
		Listings: ReorderSearchResults(listings, q.Filter),
		Total:    total,
		Page:     q.Page,
		Limit:    q.Filter.Limit,
	}, nil
}

// Nearby returns the closest listings to a point, nearest first
func (s *ListingService) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]*entities.Listing, error) {
	if radiusKm <= 0 {
		radiusKm = repositories.DefaultRadiusKm
	}
	if limit <= 0 {
		limit = repositories.DefaultPageSize
	}

	listings, _, err := s.find(ctx, repositories.ListingFilter{
		Geo:   &repositories.GeoFilter{Lat: lat, Lng: lng, RadiusKm: min(radiusKm, maxRadiusKm)},
		Sort:  repositories.SortDistance,
		Limit: min(limit, repositories.MaxPageSize),
	})
	return listings, err
}

// find searches the index when available, falling back to the database
func (s *ListingService) find(ctx context.Context, filter repositories.ListingFilter) ([]*entities.Listing, int, error) {
	if s.searchRepo != nil {
		hits, err := s.searchRepo.Search(ctx, filter)
		if err == nil {
			listings, err := s.repo.GetByIDs(ctx, hits.IDs)
			if err != nil {
				return nil, 0, err
			}
			for _, l := range listings {
				if d, ok := hits.DistancesKm[l.ID]; ok {
					l.DistanceKm = &d
				}
			}
			return listings, hits.Total, nil
		}
		log.Warn().Err(err).Msg("search index unavailable, falling back to database")
	}
	return s.repo.Search(ctx, filter)
}

// authorized loads a listing and checks the actor may modify it
func (s *ListingService) authorized(ctx context.Context, actor *entities.User, id string) (*entities.Listing, error) {
	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !listing.IsOwnedBy(actor.ID) && !actor.HasRole(entities.RoleAdmin) {
		return nil, apperrors.NewForbiddenError("You do not have permission to perform this action")
	}
	return listing, nil
}

func (s *ListingService) normalize(l *entities.Listing) {
	l.Name = strings.TrimSpace(l.Name)
	l.Description = s.validator.Sanitize(l.Description)
	l.Address.Locality = strings.ToLower(strings.TrimSpace(l.Address.Locality))
	l.Address.City = strings.ToLower(strings.TrimSpace(l.Address.City))
	l.Address.State = strings.ToLower(strings.TrimSpace(l.Address.State))
	l.Contact.Email = strings.ToLower(strings.TrimSpace(l.Contact.Email))
	l.ComputePriceRange()
}

func (s *ListingService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := textutil.Slugify(name)
	for range slugAttempts {
		suffix, err := textutil.RandomHex(3)
		if err != nil {
			return "", apperrors.NewInternalError("failed to generate slug", err)
		}
		slug := base + "-" + suffix
		taken, err := s.repo.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
	}
	return "", apperrors.NewInternalError("failed to generate a unique slug", nil)
}

func (s *ListingService) index(ctx context.Context, listing *entities.Listing) {
	if s.searchRepo == nil {
		return
	}
	if err := s.searchRepo.Index(ctx, listing); err != nil {
		log.Warn().Err(err).Str("listing_id", listing.ID).Msg("failed to index listing")
	}
}

func (s *ListingService) publish(ctx context.Context, listing *entities.Listing, eventType entities.ListingEventType, changed map[string]any) {
	event := entities.NewListingEvent(listing.ID, eventType, changed).WithSlug(listing.Slug)
	publishListingEvent(ctx, s.eventBus, event)
}

func publishListingEvent(ctx context.Context, bus providers.EventBus, event *entities.ListingEvent) {
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, providers.EventChannelListingUpdates, event); err != nil {
		log.Warn().Err(err).Str("listing_id", event.ListingID).Str("event_type", string(event.EventType)).
			Msg("failed to publish listing event")
	}
}
