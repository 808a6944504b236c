package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
	"github.com/zatekoja/pgfinder/pkg/validation"
)

const listingID = "4f9d7f3e-1c2b-4a5d-9e8f-0a1b2c3d4e5f"

func newListingInput() *entities.Listing {
	return &entities.Listing{
		Name:        "Sunrise PG",
		Description: "<b>Clean</b> rooms near the metro",
		Address:     entities.Address{Locality: "HSR Layout", City: "Bengaluru", State: "Karnataka"},
		Pincode:     "560102",
		Sharing: []entities.SharingOption{
			{Occupancy: 1, Price: 9000},
			{Occupancy: 2, Price: 6500, AC: true},
		},
		PGType:          entities.PGTypeMale,
		Contact:         entities.Contact{Phone: "9876543210", Email: "Owner@Example.com"},
		GateClosingTime: "22:30",
		Location:        entities.GeoPoint{Lat: 12.91, Lng: 77.64},
	}
}

func storedListing(ownerID string) *entities.Listing {
	l := newListingInput()
	l.ID = listingID
	l.Slug = "sunrise-pg-a1b2c3"
	l.OwnerID = ownerID
	l.Food = entities.FoodVeg
	l.Address = entities.Address{Locality: "hsr layout", City: "bengaluru", State: "karnataka"}
	l.RatingsAverage = 4.3
	l.RatingsQuantity = 7
	l.ComputePriceRange()
	return l
}

type listingFixture struct {
	repo   *MockListingRepository
	search *MockListingSearchRepository
	media  *MockMediaStore
	bus    *recordingEventBus
	svc    *ListingService
}

func newListingFixture() *listingFixture {
	f := &listingFixture{
		repo:   &MockListingRepository{},
		search: &MockListingSearchRepository{},
		media:  &MockMediaStore{},
		bus:    &recordingEventBus{},
	}
	f.svc = NewListingService(f.repo, f.search, f.media, f.bus, validation.New())
	return f
}

func TestListingService_Create(t *testing.T) {
	f := newListingFixture()
	owner := &entities.User{ID: "owner-1", Role: entities.RolePGOwner}

	f.repo.On("SlugExists", mock.Anything, mock.MatchedBy(func(s string) bool {
		return strings.HasPrefix(s, "sunrise-pg-")
	})).Return(false, nil).Once()
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*entities.Listing")).Return(nil).Once()
	f.search.On("Index", mock.Anything, mock.AnythingOfType("*entities.Listing")).Return(errors.New("typesense down")).Once()

	listing, err := f.svc.Create(context.Background(), owner, newListingInput())
	require.NoError(t, err)

	assert.NotEmpty(t, listing.ID)
	assert.Equal(t, "owner-1", listing.OwnerID)
	assert.Equal(t, 6500, listing.MinPrice)
	assert.Equal(t, 9000, listing.MaxPrice)
	assert.Equal(t, "hsr layout", listing.Address.Locality)
	assert.Equal(t, "bengaluru", listing.Address.City)
	assert.Equal(t, "Clean rooms near the metro", listing.Description)
	assert.Equal(t, "owner@example.com", listing.Contact.Email)
	assert.Equal(t, entities.FoodVeg, listing.Food)
	assert.Equal(t, entities.DefaultRatingsAverage, listing.RatingsAverage)
	assert.True(t, strings.HasPrefix(listing.Slug, "sunrise-pg-"))
	assert.Equal(t, []entities.ListingEventType{entities.ListingEventCreated}, f.bus.types())

	f.repo.AssertExpectations(t)
	f.search.AssertExpectations(t)
}

func TestListingService_Create_ValidationError(t *testing.T) {
	f := newListingFixture()
	input := newListingInput()
	input.Name = ""
	input.Pincode = "012345"

	_, err := f.svc.Create(context.Background(), &entities.User{ID: "owner-1"}, input)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	assert.ElementsMatch(t, []string{"name", "pincode"}, appErr.Fields)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestListingService_GetListing_ByIDOrSlug(t *testing.T) {
	f := newListingFixture()
	stored := storedListing("owner-1")
	f.repo.On("GetByID", mock.Anything, listingID).Return(stored, nil).Once()
	f.repo.On("GetBySlug", mock.Anything, "sunrise-pg-a1b2c3").Return(stored, nil).Once()

	byID, err := f.svc.GetListing(context.Background(), listingID)
	require.NoError(t, err)
	bySlug, err := f.svc.GetListing(context.Background(), "Sunrise-PG-a1b2c3")
	require.NoError(t, err)

	assert.Same(t, byID, bySlug)
	f.repo.AssertExpectations(t)
}

func TestListingService_Update_AppliesPatch(t *testing.T) {
	f := newListingFixture()
	owner := &entities.User{ID: "owner-1", Role: entities.RolePGOwner}
	f.repo.On("GetByID", mock.Anything, listingID).Return(storedListing("owner-1"), nil).Once()
	f.repo.On("SlugExists", mock.Anything, mock.Anything).Return(false, nil).Once()
	f.repo.On("Update", mock.Anything, mock.AnythingOfType("*entities.Listing")).Return(nil).Once()
	f.search.On("Index", mock.Anything, mock.Anything).Return(nil).Once()

	patch := []byte(`{"name":"Moonlight PG","owner":"someone-else","ratingsAverage":5,
		"sharing":[{"occupancy":3,"price":5000}],"amenities":{"wifi":true}}`)

	updated, err := f.svc.Update(context.Background(), owner, listingID, patch)
	require.NoError(t, err)

	assert.Equal(t, "Moonlight PG", updated.Name)
	assert.True(t, strings.HasPrefix(updated.Slug, "moonlight-pg-"))
	assert.Equal(t, "owner-1", updated.OwnerID)
	assert.Equal(t, 4.3, updated.RatingsAverage)
	assert.Equal(t, 5000, updated.MinPrice)
	assert.Equal(t, 5000, updated.MaxPrice)
	assert.True(t, updated.Amenities.WiFi)

	require.Len(t, f.bus.events, 1)
	assert.Equal(t, entities.ListingEventUpdated, f.bus.events[0].EventType)
	assert.NotContains(t, f.bus.events[0].ChangedFields, "owner")
	assert.Contains(t, f.bus.events[0].ChangedFields, "name")
	assert.Equal(t, "sunrise-pg-a1b2c3", f.bus.events[0].Slug)
}

func TestListingService_Update_Forbidden(t *testing.T) {
	f := newListingFixture()
	f.repo.On("GetByID", mock.Anything, listingID).Return(storedListing("owner-1"), nil).Once()

	_, err := f.svc.Update(context.Background(), &entities.User{ID: "intruder", Role: entities.RolePGOwner}, listingID, []byte(`{"name":"Mine"}`))

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestListingService_Update_MalformedPatch(t *testing.T) {
	f := newListingFixture()
	f.repo.On("GetByID", mock.Anything, listingID).Return(storedListing("owner-1"), nil).Once()

	_, err := f.svc.Update(context.Background(), &entities.User{ID: "owner-1"}, listingID, []byte(`{"name":`))

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeBadRequest))
}

func TestListingService_Delete_ByAdmin(t *testing.T) {
	f := newListingFixture()
	stored := storedListing("owner-1")
	stored.CoverImage = &entities.Image{PublicID: "pg_image_cover"}
	stored.Images = []entities.Image{{PublicID: "pg_image_1"}}

	f.repo.On("GetByID", mock.Anything, listingID).Return(stored, nil).Once()
	f.repo.On("Delete", mock.Anything, listingID).Return(nil).Once()
	f.media.On("Destroy", mock.Anything, "pg_image_cover").Return(errors.New("boom")).Once()
	f.media.On("Destroy", mock.Anything, "pg_image_1").Return(nil).Once()
	f.search.On("Delete", mock.Anything, listingID).Return(nil).Once()

	err := f.svc.Delete(context.Background(), &entities.User{ID: "admin-1", Role: entities.RoleAdmin}, listingID)
	require.NoError(t, err)

	assert.Equal(t, []entities.ListingEventType{entities.ListingEventDeleted}, f.bus.types())
	assert.Equal(t, "sunrise-pg-a1b2c3", f.bus.events[0].Slug)
	f.repo.AssertExpectations(t)
	f.media.AssertExpectations(t)
	f.search.AssertExpectations(t)
}

func TestListingService_Search_UsesIndex(t *testing.T) {
	f := newListingFixture()
	filter := repositories.ListingFilter{
		Amenities: []string{"ac"},
		Geo:       &repositories.GeoFilter{Lat: 12.9, Lng: 77.6, RadiusKm: 5},
		Sort:      repositories.SortDistance,
		Limit:     9,
	}
	a := storedListing("owner-1")
	a.ID = "a"
	a.Amenities = entities.Amenities{WiFi: true, AC: true}
	b := storedListing("owner-2")
	b.ID = "b"

	f.search.On("Search", mock.Anything, filter).Return(&repositories.SearchHits{
		IDs:         []string{"b", "a"},
		DistancesKm: map[string]float64{"a": 1.5, "b": 0.4},
		Total:       2,
	}, nil).Once()
	f.repo.On("GetByIDs", mock.Anything, []string{"b", "a"}).Return([]*entities.Listing{b, a}, nil).Once()

	result, err := f.svc.Search(context.Background(), SearchQuery{Filter: filter, Page: 1})
	require.NoError(t, err)

	require.Len(t, result.Listings, 2)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, "b", result.Listings[0].ID)
	assert.Equal(t, 0.4, *result.Listings[0].DistanceKm)
	assert.Equal(t, []string{"ac", "wifi"}, result.Listings[1].Amenities)
	f.repo.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestListingService_Search_FallsBackToDatabase(t *testing.T) {
	f := newListingFixture()
	filter := repositories.ListingFilter{City: "bengaluru", Sort: repositories.SortNewest, Limit: 9}

	f.search.On("Search", mock.Anything, filter).Return(nil, errors.New("connection refused")).Once()
	f.repo.On("Search", mock.Anything, filter).Return([]*entities.Listing{storedListing("owner-1")}, 1, nil).Once()

	result, err := f.svc.Search(context.Background(), SearchQuery{Filter: filter, Page: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Total)
	assert.Len(t, result.Listings, 1)
	f.repo.AssertExpectations(t)
}

func TestListingService_AttachImages(t *testing.T) {
	f := newListingFixture()
	stored := storedListing("owner-1")
	f.repo.On("GetByID", mock.Anything, listingID).Return(stored, nil).Once()
	f.repo.On("Update", mock.Anything, stored).Return(nil).Once()
	f.search.On("Index", mock.Anything, stored).Return(nil).Once()

	cover := &entities.Image{PublicID: "pg_image_cover", Version: 3}
	listing, err := f.svc.AttachImages(context.Background(), &entities.User{ID: "owner-1"}, listingID, cover,
		[]entities.Image{{PublicID: "pg_image_1", Version: 1}})
	require.NoError(t, err)

	assert.Equal(t, cover, listing.CoverImage)
	assert.Len(t, listing.Images, 1)
}

func TestListingService_AttachImages_TooMany(t *testing.T) {
	f := newListingFixture()
	stored := storedListing("owner-1")
	stored.Images = make([]entities.Image, MaxListingImages)
	f.repo.On("GetByID", mock.Anything, listingID).Return(stored, nil).Once()

	_, err := f.svc.AttachImages(context.Background(), &entities.User{ID: "owner-1"}, listingID, nil,
		[]entities.Image{{PublicID: "pg_image_1"}})

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "You can upload maximum 50 pictures.", appErr.Message)
}
