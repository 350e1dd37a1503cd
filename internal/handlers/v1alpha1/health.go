package v1alpha1

import (
	"net/http"

	"github.com/paperlane/paperlane/api/v1alpha1"
	"github.com/paperlane/paperlane/internal/store"
)

type HealthHandler struct {
	store store.Store
}

func NewHealthHandler(s store.Store) *HealthHandler {
	return &HealthHandler{store: s}
}

// (GET /health)
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respond(w, r, http.StatusServiceUnavailable, v1alpha1.Health{Status: "unavailable"})
		return
	}
	respond(w, r, http.StatusOK, v1alpha1.Health{Status: "ok"})
}
