package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/pgfinder/internal/domain/providers"
	"github.com/zatekoja/pgfinder/internal/infrastructure/observability"
)

// CacheKeyPrefix prefixes every cached HTTP response
const CacheKeyPrefix = "http:cache:"

// CacheConfig holds cache configuration for a route prefix
type CacheConfig struct {
	Prefix     string
	TTLSeconds int
}

// DefaultCacheRoutes lists the cached GET routes, most specific first
var DefaultCacheRoutes = []CacheConfig{
	{Prefix: "/api/v1/pg/search", TTLSeconds: 300},
	{Prefix: "/api/v1/pg/near", TTLSeconds: 300},
	{Prefix: "/api/v1/review/pg/", TTLSeconds: 120},
	{Prefix: "/api/v1/pg/", TTLSeconds: 600},
}

// CacheMiddleware provides HTTP response caching
type CacheMiddleware struct {
	cache   providers.CacheProvider
	routes  []CacheConfig
	metrics *observability.Metrics
}

// NewCacheMiddleware creates a new cache middleware
func NewCacheMiddleware(cache providers.CacheProvider, metrics *observability.Metrics, routes ...CacheConfig) *CacheMiddleware {
	if len(routes) == 0 {
		routes = DefaultCacheRoutes
	}
	return &CacheMiddleware{cache: cache, routes: routes, metrics: metrics}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		config, ok := m.routeConfig(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := CacheKey(r)

		if cached, err := m.cache.Get(ctx, key); err == nil {
			observability.RecordCacheHit(ctx, m.metrics, "http")
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}

		observability.RecordCacheMiss(ctx, m.metrics, "http")
		w.Header().Set("X-Cache", "MISS")

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode != http.StatusOK || recorder.body.Len() == 0 {
			return
		}
		if err := m.cache.Set(ctx, key, recorder.body.Bytes(), config.TTLSeconds); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to cache response")
			return
		}
		log.Debug().Str("key", key).Int("ttl_seconds", config.TTLSeconds).Msg("cached response")
	})
}

func (m *CacheMiddleware) routeConfig(path string) (CacheConfig, bool) {
	for _, route := range m.routes {
		if strings.HasPrefix(path, route.Prefix) {
			return route, true
		}
	}
	return CacheConfig{}, false
}

// CacheKey builds the readable key "http:cache:{path}?{sorted query}", so
// entries can be evicted by glob patterns over the path.
func CacheKey(r *http.Request) string {
	key := CacheKeyPrefix + r.URL.Path
	if query := r.URL.Query(); len(query) > 0 {
		key += "?" + query.Encode()
	}
	return key
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

// WriteHeader captures the status code
func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

// Write captures the response body and writes to the client
func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
