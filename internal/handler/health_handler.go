package handler

import (
	"context"
	"net/http"

	"github.com/aditya/go-carpool/pkg/utils"
)

// Checker is a dependency probed by /health.
type Checker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]Checker
}

// NewHealthHandler probes every named checker; nil checkers are reported as
// disabled.
func NewHealthHandler(checks map[string]Checker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	services := make(map[string]string, len(h.checks))
	for name, c := range h.checks {
		switch {
		case c == nil:
			services[name] = "disabled"
		case c.Health(r.Context()) != nil:
			services[name] = "down"
			status = http.StatusServiceUnavailable
		default:
			services[name] = "up"
		}
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	utils.JSON(w, status, map[string]interface{}{
		"status":   overall,
		"services": services,
	})
}
