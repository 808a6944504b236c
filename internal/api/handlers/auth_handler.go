package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/pgfinder/internal/api/middleware"
	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

// AuthService defines the session operations used by the handler
type AuthService interface {
	Signup(ctx context.Context, in services.SignupInput) (*entities.AuthSession, error)
	Login(ctx context.Context, email, password, oldRefresh string) (*entities.AuthSession, error)
	Logout(ctx context.Context, refresh string) error
	Refresh(ctx context.Context, refresh string) (*entities.AuthSession, error)
	ForgotPassword(ctx context.Context, email, baseURL string) error
	ResetPassword(ctx context.Context, token, email string, in services.PasswordInput) (*entities.AuthSession, error)
	UpdatePassword(ctx context.Context, userID string, in services.UpdatePasswordInput, refresh string) (*entities.AuthSession, error)
	GoogleAuthURL() (string, error)
	GoogleCallback(ctx context.Context, state, code string) (*entities.AuthSession, error)
}

// AuthHandler handles signup, login and the other session routes
type AuthHandler struct {
	service   AuthService
	cookies   middleware.Cookies
	publicURL string
	clientURL string
	metrics   *observability.Metrics
}

// NewAuthHandler creates a new auth handler. publicURL prefixes the links
// sent by email; clientURL receives the browser after a Google sign-in.
func NewAuthHandler(service AuthService, cookies middleware.Cookies, publicURL, clientURL string, metrics *observability.Metrics) *AuthHandler {
	return &AuthHandler{
		service:   service,
		cookies:   cookies,
		publicURL: strings.TrimRight(publicURL, "/"),
		clientURL: clientURL,
		metrics:   metrics,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

// Signup handles POST /api/v1/user/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in services.SignupInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	session, err := h.service.Signup(r.Context(), in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	h.sendSession(w, r, http.StatusCreated, session, "signup")
}

// Login handles POST /api/v1/user/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password, middleware.CookieValue(r, middleware.RefreshTokenCookie))
	if err != nil {
		observability.RecordAuthEvent(r.Context(), h.metrics, "login_failed")
		respondWithAppError(w, r, err)
		return
	}
	h.sendSession(w, r, http.StatusOK, session, "login")
}

// Logout handles GET /api/v1/user/logout. Both cookies are cleared even when
// the refresh token was unknown.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.service.Logout(r.Context(), middleware.CookieValue(r, middleware.RefreshTokenCookie))
	h.cookies.Clear(w)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	observability.RecordAuthEvent(r.Context(), h.metrics, "logout")
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Refresh handles POST /api/v1/user/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Refresh(r.Context(), middleware.CookieValue(r, middleware.RefreshTokenCookie))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	h.sendSession(w, r, http.StatusOK, session, "refresh")
}

// ForgotPassword handles POST /api/v1/user/forgotPassword
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email, h.publicURL); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	observability.RecordAuthEvent(r.Context(), h.metrics, "password_reset_requested")
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Token sent to email",
	})
}

// ResetPassword handles PATCH /api/v1/user/resetPassword/{token}, where the
// last segment reads "{token}&{email}"
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token, email, ok := strings.Cut(r.PathValue("token"), "&")
	if !ok || token == "" || email == "" {
		respondWithAppError(w, r, apperrors.NewBadRequestError("Token is invalid or has expired"))
		return
	}

	var in services.PasswordInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	session, err := h.service.ResetPassword(r.Context(), token, email, in)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	h.sendSession(w, r, http.StatusOK, session, "password_reset")
}

// UpdatePassword handles PATCH /api/v1/user/updatePassword
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in services.UpdatePasswordInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	user := middleware.UserFromContext(r.Context())
	session, err := h.service.UpdatePassword(r.Context(), user.ID, in, middleware.CookieValue(r, middleware.RefreshTokenCookie))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	h.sendSession(w, r, http.StatusOK, session, "password_update")
}

// GoogleLogin handles GET /api/v1/user/auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.GoogleAuthURL()
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback handles GET /api/v1/user/auth/google/callback
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	session, err := h.service.GoogleCallback(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		observability.RecordAuthEvent(r.Context(), h.metrics, "google_failed")
		respondWithAppError(w, r, err)
		return
	}

	h.cookies.SetSession(w, session.Tokens)
	observability.RecordAuthEvent(r.Context(), h.metrics, "google")
	http.Redirect(w, r, h.clientURL, http.StatusFound)
}

func (h *AuthHandler) sendSession(w http.ResponseWriter, r *http.Request, status int, session *entities.AuthSession, kind string) {
	h.cookies.SetSession(w, session.Tokens)
	observability.RecordAuthEvent(r.Context(), h.metrics, kind)
	respondWithData(w, status, map[string]any{"user": session.User})
}
