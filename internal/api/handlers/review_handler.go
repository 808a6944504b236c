package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/pgfinder/internal/api/loaders"
	"github.com/zatekoja/pgfinder/internal/api/middleware"
	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/entities"
)

// ReviewService defines the review operations used by the handler
type ReviewService interface {
	GetAllReviews(ctx context.Context, listingID string, page int) ([]*entities.Review, error)
	CreateReview(ctx context.Context, userID, listingID string, review *entities.Review) (*entities.Review, error)
	GetReview(ctx context.Context, id string) (*entities.Review, error)
	UpdateReview(ctx context.Context, userID, id string, patch services.ReviewPatch) (*entities.Review, error)
	DeleteReview(ctx context.Context, userID, id string) error
}

// ReviewHandler handles review requests
type ReviewHandler struct {
	service ReviewService
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(service ReviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

type reviewRequest struct {
	Review string `json:"review"`
	Rating int    `json:"rating"`
}

// GetAllReviews handles GET /api/v1/review/pg/{pgID}?page=
func (h *ReviewHandler) GetAllReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.GetAllReviews(r.Context(), r.PathValue("pgID"), pageParam(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	loaders.AttachAuthors(r.Context(), reviews)

	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(reviews),
		"data":    map[string]any{"reviews": reviews},
	})
}

// CreateReview handles POST /api/v1/review/pg/{pgID}
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	user := middleware.UserFromContext(r.Context())
	review, err := h.service.CreateReview(r.Context(), user.ID, r.PathValue("pgID"), &entities.Review{
		Review: req.Review,
		Rating: req.Rating,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, map[string]any{"review": review})
}

// GetReview handles GET /api/v1/review/{id}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.service.GetReview(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	loaders.AttachAuthors(r.Context(), []*entities.Review{review})
	respondWithData(w, http.StatusOK, map[string]any{"review": review})
}

// UpdateReview handles PATCH /api/v1/review/{id}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var patch services.ReviewPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	user := middleware.UserFromContext(r.Context())
	review, err := h.service.UpdateReview(r.Context(), user.ID, r.PathValue("id"), patch)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, map[string]any{"review": review})
}

// DeleteReview handles DELETE /api/v1/review/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if err := h.service.DeleteReview(r.Context(), user.ID, r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondNoContent(w)
}
