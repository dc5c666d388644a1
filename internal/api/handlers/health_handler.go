package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/learnhub/engine/internal/api/types"
	"golang.org/x/sync/errgroup"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]Check
	timeout time.Duration
}

// NewHealthHandler builds probes over the named readiness checks.
func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 3 * time.Second}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]string{"status": "ok"}})
}

// Readiness runs every check concurrently and fails if any of them does.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.checks))
		failed  bool
		g       errgroup.Group
	)
	for name, check := range h.checks {
		g.Go(func() error {
			res := "ok"
			if err := check(ctx); err != nil {
				res = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			results[name] = res
			if res != "ok" {
				failed = true
			}
			return nil
		})
	}
	_ = g.Wait()

	if failed {
		writeJSON(w, http.StatusServiceUnavailable, types.APIResponse{
			Success: false,
			Message: "not ready",
			Data:    map[string]any{"status": "unavailable", "checks": results},
			Error:   &types.APIError{Code: "unavailable", Message: "one or more dependencies are unavailable"},
		})
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]any{"status": "ready", "checks": results}})
}

// ServiceProbe checks a sibling service by requesting its /healthz.
func ServiceProbe(client *http.Client, baseURL string) Check {
	url := strings.TrimRight(baseURL, "/") + "/healthz"
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}
}
