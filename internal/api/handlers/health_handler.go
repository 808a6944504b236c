package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 3 * time.Second

// Pinger is a dependency the health check reaches
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the service's dependencies are reachable
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a health handler. Nil pingers are skipped.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	filtered := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			filtered[name] = p
		}
	}
	return &HealthHandler{checks: filtered}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.checks))
		failed  = []string{}
		g       errgroup.Group
	)
	for name, p := range h.checks {
		g.Go(func() error {
			status := "ok"
			if err := p.Ping(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			results[name] = status
			if status != "ok" {
				failed = append(failed, name)
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(failed)

	code, status := http.StatusOK, "ok"
	if len(failed) > 0 {
		code, status = http.StatusServiceUnavailable, "degraded"
	}
	respondWithJSON(w, code, map[string]any{
		"status": status,
		"checks": results,
		"failed": failed,
	})
}
