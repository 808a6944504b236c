package handlers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/zatekoja/pgfinder/internal/api/middleware"
	"github.com/zatekoja/pgfinder/internal/api/respond"
	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/repositories"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

// ListingService defines the listing operations used by the handler
type ListingService interface {
	Create(ctx context.Context, owner *entities.User, listing *entities.Listing) (*entities.Listing, error)
	GetListing(ctx context.Context, idOrSlug string) (*entities.Listing, error)
	Update(ctx context.Context, actor *entities.User, id string, patch json.RawMessage) (*entities.Listing, error)
	Delete(ctx context.Context, actor *entities.User, id string) error
	AttachImages(ctx context.Context, actor *entities.User, id string, cover *entities.Image, images []entities.Image) (*entities.Listing, error)
	Search(ctx context.Context, q services.SearchQuery) (*entities.SearchResult, error)
	Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]*entities.Listing, error)
}

// ListingHandler handles PG listing requests
type ListingHandler struct {
	service ListingService
}

// NewListingHandler creates a new listing handler
func NewListingHandler(service ListingService) *ListingHandler {
	return &ListingHandler{service: service}
}

// CreateListing handles POST /api/v1/pg
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var listing entities.Listing
	if err := decodeJSON(r, &listing); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), middleware.UserFromContext(r.Context()), &listing)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, map[string]any{"pg": created})
}

// GetListing handles GET /api/v1/pg/{id}; the id may also be a slug
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.service.GetListing(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, map[string]any{"pg": listing})
}

// UpdateListing handles PATCH /api/v1/pg/{id}
func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	patch, err := respond.ReadBody(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	listing, err := h.service.Update(r.Context(), middleware.UserFromContext(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, map[string]any{"pg": listing})
}

// DeleteListing handles DELETE /api/v1/pg/{id}
func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.UserFromContext(r.Context()), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondNoContent(w)
}

type attachImagesRequest struct {
	CoverImage *entities.Image  `json:"coverImage"`
	Images     []entities.Image `json:"images"`
}

// AttachImages handles PATCH /api/v1/pg/{id}/images
func (h *ListingHandler) AttachImages(w http.ResponseWriter, r *http.Request) {
	var req attachImagesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	listing, err := h.service.AttachImages(r.Context(), middleware.UserFromContext(r.Context()), r.PathValue("id"), req.CoverImage, req.Images)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, map[string]any{"pg": listing})
}

// SearchListings handles GET /api/v1/pg/search
func (h *ListingHandler) SearchListings(w http.ResponseWriter, r *http.Request) {
	query, err := services.ParseSearchQuery(r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.service.Search(r.Context(), query)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(result.Listings),
		"total":   result.Total,
		"page":    result.Page,
		"data":    map[string]any{"listings": result.Listings},
	})
}

// NearbyListings handles GET /api/v1/pg/near?lat=&lng=&radiusKm=&limit=
func (h *ListingHandler) NearbyListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var fieldErrs []apperrors.FieldError

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		fieldErrs = append(fieldErrs, apperrors.FieldError{Field: "lat", Message: "lat must be a valid latitude."})
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil || math.IsNaN(lng) || lng < -180 || lng > 180 {
		fieldErrs = append(fieldErrs, apperrors.FieldError{Field: "lng", Message: "lng must be a valid longitude."})
	}

	radius := repositories.DefaultRadiusKm
	if v := q.Get("radiusKm"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(radius) || radius <= 0 || radius > 100 {
			fieldErrs = append(fieldErrs, apperrors.FieldError{Field: "radiusKm", Message: "radiusKm must be between 0 and 100."})
		}
	}

	limit := repositories.DefaultPageSize
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			fieldErrs = append(fieldErrs, apperrors.FieldError{Field: "limit", Message: "limit must be a positive integer."})
		}
		limit = min(limit, repositories.MaxPageSize)
	}

	if len(fieldErrs) > 0 {
		respondWithAppError(w, r, apperrors.NewFieldValidationError(fieldErrs))
		return
	}

	listings, err := h.service.Nearby(r.Context(), lat, lng, radius, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(listings),
		"data":    map[string]any{"listings": listings},
	})
}
