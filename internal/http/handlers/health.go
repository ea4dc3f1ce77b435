package handlers

import (
	"net/http"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/http/helpers"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/sessionstore"
)

// Health expone liveness y readiness.
type Health struct {
	Records sessionstore.Store
}

// Healthz maneja GET /healthz: el proceso vive.
func (h *Health) Healthz(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz maneja GET /readyz: el proceso puede atender (store alcanzable).
func (h *Health) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.Records.Ping(r.Context()); err != nil {
		helpers.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  "unreachable",
		})
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
