package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Fantasim/nanas/internal/api/httputil"
	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/upstream"
)

type healthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Store         string            `json:"store"`
	DemoMode      bool              `json:"demo_mode"`
	Collaborators map[string]string `json:"collaborators"`
}

// HealthHandler returns a handler for GET /api/health. Collaborator entries
// report the circuit-breaker state of each upstream.
func HealthHandler(cfg *config.Config, version string, breakers map[string]*upstream.CircuitBreaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("health check requested", "remoteAddr", r.RemoteAddr)

		store := "sqlite"
		if cfg.MemoryStore {
			store = "memory"
		}

		collaborators := make(map[string]string, len(breakers))
		for name, cb := range breakers {
			collaborators[name] = cb.State()
		}

		httputil.JSON(w, http.StatusOK, healthResponse{
			Status:        "ok",
			Version:       version,
			Store:         store,
			DemoMode:      cfg.DemoMode,
			Collaborators: collaborators,
		})
	}
}
