package public

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/intelrouter/query-router-service/internal/api"
)

// Pinger reports persistence connectivity. Satisfied by the Postgres store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelStatus reports the serving classifier state. Satisfied by the
// learned classifier.
type ModelStatus interface {
	Available() bool
	ActiveVersion() string
}

// StatusHandler serves health and readiness probes.
type StatusHandler struct {
	serviceName string
	db          Pinger
	model       ModelStatus
}

// NewStatusHandler creates the status handler.
func NewStatusHandler(serviceName string, db Pinger, model ModelStatus) *StatusHandler {
	return &StatusHandler{serviceName: serviceName, db: db, model: model}
}

// RegisterRoutes registers the unauthenticated probe routes.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthz)
	r.Get("/readyz", h.HandleReadyz)
}

// HandleHealthz reports process liveness.
func (h *StatusHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.serviceName,
	})
}

// HandleReadyz reports whether the service can take traffic. The learned
// classifier is not required: rules plus fallback serve without it.
func (h *StatusHandler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		api.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"reason": "database unreachable",
		})
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"model_available": h.model.Available(),
		"model_version":   h.model.ActiveVersion(),
	})
}
