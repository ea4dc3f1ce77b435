// Package handlers implementa los endpoints del gateway.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	gw "github.com/Tepexicuapan3/SIRES-sub001/internal/http"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/http/dto"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/http/helpers"
)

// Auth agrupa los endpoints de autenticación.
type Auth struct {
	Gateway *gw.Gateway
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return helpers.ErrInvalidJSON
	}
	return nil
}

// Login maneja POST /v1/auth/login.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decode(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		helpers.WriteError(w, helpers.ErrBadRequest.WithDetail("username y password son obligatorios"))
		return
	}

	p, err := h.Gateway.StartSession(r.Context(), w, req.Username, req.Password)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.PrincipalResponse{User: p})
}

// Logout maneja POST /v1/auth/logout. Incondicional: responde 204 haya o no
// sesión que cerrar, y la cookie siempre sale expirada.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if ls, ok := gw.SessionFrom(r.Context()); ok {
		h.Gateway.EndSession(r.Context(), w, ls)
	} else {
		h.Gateway.ClearCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh maneja POST /v1/auth/refresh.
func (h *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	ls, ok := gw.SessionFrom(r.Context())
	if !ok {
		helpers.WriteError(w, helpers.ErrUnauthorized)
		return
	}
	p, err := h.Gateway.Refresh(r.Context(), ls)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.PrincipalResponse{User: p})
}

// Me maneja GET /v1/auth/me.
func (h *Auth) Me(w http.ResponseWriter, r *http.Request) {
	ls, ok := gw.SessionFrom(r.Context())
	if !ok {
		helpers.WriteError(w, helpers.ErrUnauthorized)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.PrincipalResponse{User: ls.Manager.Current()})
}

// CompleteOnboarding maneja POST /v1/auth/onboarding/complete.
func (h *Auth) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	ls, ok := gw.SessionFrom(r.Context())
	if !ok {
		helpers.WriteError(w, helpers.ErrUnauthorized)
		return
	}
	var req dto.OnboardingRequest
	if err := decode(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}

	p, err := ls.Manager.CompleteOnboarding(r.Context(), req.NewPassword, req.TermsAccepted)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.PrincipalResponse{User: p})
}

// Forgot maneja POST /v1/auth/password/forgot. Siempre responde 202: no
// revela si el correo existe.
func (h *Auth) Forgot(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotRequest
	if err := decode(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		helpers.WriteError(w, helpers.ErrBadRequest.WithDetail("email es obligatorio"))
		return
	}

	_ = h.Gateway.RequestResetCode(r.Context(), req.Email)
	w.WriteHeader(http.StatusAccepted)
}

// VerifyCode maneja POST /v1/auth/password/verify-code.
func (h *Auth) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyCodeRequest
	if err := decode(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}

	flowID, err := h.Gateway.VerifyResetCode(r.Context(), req.Email, req.Code)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.VerifyCodeResponse{FlowID: flowID})
}

// ResetPassword maneja POST /v1/auth/password/reset.
func (h *Auth) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if err := decode(r, &req); err != nil {
		helpers.WriteError(w, err)
		return
	}

	p, err := h.Gateway.CompleteReset(r.Context(), w, req.FlowID, req.NewPassword)
	if err != nil {
		helpers.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.PrincipalResponse{User: p})
}
