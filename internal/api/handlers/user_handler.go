package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/pgfinder/internal/api/middleware"
	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/entities"
)

// UserService defines the profile and user administration operations used by the handler
type UserService interface {
	GetMe(ctx context.Context, userID string) (*entities.UserProfile, error)
	UpdateMe(ctx context.Context, userID string, body map[string]any) (*entities.User, error)
	ListUsers(ctx context.Context, page int) ([]*entities.User, error)
	CreateUser(ctx context.Context, in services.CreateUserInput) (*entities.User, error)
	GetUser(ctx context.Context, id string) (*entities.User, error)
	UpdateUser(ctx context.Context, id string, body map[string]any) (*entities.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserHandler handles profile and user administration requests
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{service: service}
}

// GetMe handles GET /api/v1/user/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetMe(r.Context(), middleware.UserFromContext(r.Context()).ID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, map[string]any{"user": profile})
}

// UpdateMe handles PATCH /api/v1/user/updateMe
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(r, &body); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	user, err := h.service.UpdateMe(r.Context(), middleware.UserFromContext(r.Context()).ID, body)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, map[string]any{"user": user})
}

// ListUsers handles GET /api/v1/user
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), pageParam(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(users),
		"data":    map[string]any{"users": users},
	})
}

// CreateUser handles POST /api/v1/user
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in services.CreateUserInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, map[string]any{"user": user})
}

// GetUser handles GET /api/v1/user/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, map[string]any{"user": user})
}

// UpdateUser handles PATCH /api/v1/user/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeJSON(r, &body); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), r.PathValue("id"), body)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, map[string]any{"user": user})
}

// DeleteUser handles DELETE /api/v1/user/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondNoContent(w)
}
