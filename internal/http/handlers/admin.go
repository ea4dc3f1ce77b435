package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/authz"
	gw "github.com/Tepexicuapan3/SIRES-sub001/internal/http"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/http/dto"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/http/helpers"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/session"
)

// Admin agrupa los endpoints del plano de operación. Se protegen con la
// admin API key, no con sesión de usuario.
type Admin struct {
	Gateway *gw.Gateway
	Lockout *session.Lockout
}

// ListSessions maneja GET /v1/admin/sessions.
func (h *Admin) ListSessions(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Gateway.Sessions(r.Context())
	if err != nil {
		helpers.WriteError(w, helpers.ErrInternalServerError)
		return
	}
	out := make([]dto.SessionInfo, 0, len(recs))
	for _, rec := range recs {
		info := dto.SessionInfo{
			ID:         rec.ID,
			CreatedAt:  rec.CreatedAt,
			ExpiresAt:  rec.ExpiresAt,
			LastSeenAt: rec.LastSeenAt,
		}
		if rec.Principal != nil {
			info.UserID = rec.Principal.ID
			info.Username = rec.Principal.Username
		}
		out = append(out, info)
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// RevokeSession maneja DELETE /v1/admin/sessions/{sid}.
func (h *Admin) RevokeSession(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	if sid == "" {
		helpers.WriteError(w, helpers.ErrBadRequest.WithDetail("sid es obligatorio"))
		return
	}
	if err := h.Gateway.Revoke(r.Context(), sid); err != nil {
		helpers.WriteError(w, helpers.ErrInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetLockout maneja POST /v1/admin/lockout/{username}/reset.
func (h *Admin) ResetLockout(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if strings.TrimSpace(username) == "" {
		helpers.WriteError(w, helpers.ErrBadRequest.WithDetail("username es obligatorio"))
		return
	}
	if h.Lockout != nil {
		h.Lockout.Reset(r.Context(), username)
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuthzCheck maneja POST /v1/admin/authz/check: evalúa un requirement
// contra un set de permisos arbitrario. Herramienta de diagnóstico para
// auditar por qué una pantalla aparece o no.
func (h *Admin) AuthzCheck(w http.ResponseWriter, r *http.Request) {
	var req dto.AuthzCheckRequest
	if err := decode(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}
	requirement, err := authz.ParseRequirement(req.Requirement)
	if err != nil {
		helpers.WriteError(w, helpers.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	p := &identity.Principal{Permissions: req.UserPermissions}
	helpers.WriteJSON(w, http.StatusOK, dto.AuthzCheckResponse{
		Allowed: authz.Evaluate(p, requirement),
	})
}
