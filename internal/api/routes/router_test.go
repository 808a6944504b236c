package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/pgfinder/internal/api/handlers"
	"github.com/zatekoja/pgfinder/internal/api/middleware"
	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/pkg/config"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

type fixedAuthenticator struct {
	user *entities.User
}

func (a fixedAuthenticator) Authenticate(context.Context, string, string) (*services.Authentication, error) {
	if a.user == nil {
		return nil, apperrors.NewUnauthorizedError(services.MsgNotLoggedIn)
	}
	return &services.Authentication{User: a.user}, nil
}

func newTestHandler(user *entities.User) http.Handler {
	router := NewRouter(
		handlers.NewListingHandler(nil),
		handlers.NewReviewHandler(nil),
		handlers.NewAuthHandler(nil, middleware.Cookies{}, "http://localhost:8080", "http://localhost:3000", nil),
		handlers.NewUserHandler(nil),
		handlers.NewImageHandler(nil, config.UploadConfig{MaxFileBytes: 5_000_000, MaxImages: 50, MaxMemoryBytes: 1 << 20}),
		handlers.NewHealthHandler(nil),
		middleware.NewAuth(fixedAuthenticator{user: user}, middleware.Cookies{}),
		middleware.NewCacheMiddleware(nil, nil),
		nil,
		nil,
		Options{
			AllowedOrigins: []string{"http://localhost:3000"},
			MaxBodyBytes:   100 * 1024,
			AuthRequests:   100,
			AuthWindow:     time.Minute,
		},
	)
	return router.SetupRoutes()
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	msg, _ := body["message"].(string)
	return msg
}

func TestRouter_Health(t *testing.T) {
	w := serve(newTestHandler(nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	w := serve(newTestHandler(nil), http.MethodGet, "/api/v1/nowhere", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Can't find /api/v1/nowhere on this server!", message(t, w))
}

func TestRouter_ProtectedRoutesNeedLogin(t *testing.T) {
	h := newTestHandler(nil)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/pg"},
		{http.MethodPatch, "/api/v1/pg/abc"},
		{http.MethodGet, "/api/v1/user/me"},
		{http.MethodPost, "/api/v1/review/pg/abc"},
		{http.MethodDelete, "/api/v1/pg/images"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := serve(h, tc.method, tc.path, "{}")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, services.MsgNotLoggedIn, message(t, w))
		})
	}
}

func TestRouter_RoleRestrictions(t *testing.T) {
	h := newTestHandler(&entities.User{ID: "u1", Role: entities.RoleUser})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/pg"},
		{http.MethodGet, "/api/v1/user"},
		{http.MethodDelete, "/api/v1/user/u2"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := serve(h, tc.method, tc.path, "{}")
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, middleware.MsgForbidden, message(t, w))
		})
	}
}

func TestRouter_SearchIsNotShadowedByID(t *testing.T) {
	w := serve(newTestHandler(nil), http.MethodGet, "/api/v1/pg/search?sort=distance", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"sort"`)
}

func TestRouter_BodyLimit(t *testing.T) {
	big := `{"email":"` + strings.Repeat("a", 200*1024) + `"}`
	w := serve(newTestHandler(nil), http.MethodPost, "/api/v1/user/login", big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/pg/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	newTestHandler(nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
