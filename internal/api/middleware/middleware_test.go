package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/pgfinder/internal/api/respond"
	"github.com/zatekoja/pgfinder/internal/application/services"
	"github.com/zatekoja/pgfinder/internal/domain/entities"
	"github.com/zatekoja/pgfinder/internal/domain/providers"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
	ttls  map[string]int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}, ttls: map[string]int{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = append([]byte(nil), value...)
	c.ttls[key] = ttl
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *memoryCache) DeletePattern(context.Context, string) error { return nil }

func (c *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok, nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) respond.ErrorBody {
	t.Helper()
	var body respond.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCacheKey_SortsQueryAndKeepsPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/pg/search?sort=price&city=pune", nil)
	assert.Equal(t, "http:cache:/api/v1/pg/search?city=pune&sort=price", CacheKey(r))

	r = httptest.NewRequest(http.MethodGet, "/api/v1/pg/abc", nil)
	assert.Equal(t, "http:cache:/api/v1/pg/abc", CacheKey(r))
}

func TestCacheMiddleware_MissThenHit(t *testing.T) {
	cache := newMemoryCache()
	calls := 0
	h := NewCacheMiddleware(cache, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		respond.Data(w, http.StatusOK, map[string]string{"id": "abc"})
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/pg/abc", nil))
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/pg/abc", nil))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 600, cache.ttls["http:cache:/api/v1/pg/abc"])
}

func TestCacheMiddleware_RouteTTLs(t *testing.T) {
	m := NewCacheMiddleware(newMemoryCache(), nil)

	tests := []struct {
		path string
		ttl  int
		ok   bool
	}{
		{"/api/v1/pg/search", 300, true},
		{"/api/v1/review/pg/abc", 120, true},
		{"/api/v1/pg/abc", 600, true},
		{"/api/v1/user/me", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			cfg, ok := m.routeConfig(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ttl, cfg.TTLSeconds)
		})
	}
}

func TestCacheMiddleware_SkipsErrorsAndMutations(t *testing.T) {
	cache := newMemoryCache()
	h := NewCacheMiddleware(cache, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, apperrors.NewNotFoundError("No PG found with that ID"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/pg/missing", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/pg/missing", nil))

	assert.Empty(t, cache.items)
}

func TestCORS_EchoesAllowedOriginWithCredentials(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	r = httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBodyLimit_RejectsLargeBody(t *testing.T) {
	h := BodyLimit(10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v map[string]any
		if err := respond.DecodeJSON(r, &v); err != nil {
			respond.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a very long value"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "failure", decodeError(t, rec).Status)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitByIP(t *testing.T) {
	h := RateLimitByIP(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/user/login", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

type stubAuthenticator struct {
	access, refresh string
	result          *services.Authentication
	err             error
}

func (s *stubAuthenticator) Authenticate(_ context.Context, access, refresh string) (*services.Authentication, error) {
	s.access, s.refresh = access, refresh
	return s.result, s.err
}

func TestProtect_SetsUserAndRefreshedCookie(t *testing.T) {
	user := &entities.User{ID: "u1", Role: entities.RoleUser}
	stub := &stubAuthenticator{result: &services.Authentication{
		User:      user,
		Refreshed: &entities.TokenPair{AccessToken: "new-access", AccessExpiresAt: time.Now().Add(time.Minute)},
	}}

	var seen *entities.User
	h := NewAuth(stub, Cookies{}).Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil)
	r.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "refresh-1"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Same(t, user, seen)
	assert.Equal(t, "refresh-1", stub.refresh)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AccessTokenCookie, cookies[0].Name)
	assert.Equal(t, "new-access", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestProtect_BearerHeader(t *testing.T) {
	stub := &stubAuthenticator{result: &services.Authentication{User: &entities.User{ID: "u1"}}}
	h := NewAuth(stub, Cookies{}).Protect(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc.def")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "abc.def", stub.access)
}

func TestProtect_RejectsWithEnvelope(t *testing.T) {
	stub := &stubAuthenticator{err: apperrors.NewUnauthorizedError(services.MsgNotLoggedIn)}
	called := false
	h := NewAuth(stub, Cookies{}).Protect(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, services.MsgNotLoggedIn, decodeError(t, rec).Message)
}

func TestRestrictTo(t *testing.T) {
	h := RestrictTo(entities.RolePGOwner, entities.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/pg", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r.WithContext(WithUser(r.Context(), &entities.User{Role: entities.RoleUser})))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, MsgForbidden, decodeError(t, rec).Message)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r.WithContext(WithUser(r.Context(), &entities.User{Role: entities.RolePGOwner})))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecover_AnswersGenericError(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, respond.MsgSomethingWentWrong, body.Message)
}

func TestCookies_Clear(t *testing.T) {
	rec := httptest.NewRecorder()
	Cookies{Secure: true}.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.True(t, c.Secure)
		assert.Equal(t, "/", c.Path)
	}
}
