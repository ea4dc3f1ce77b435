// Package identity define el Principal autenticado, el contrato con el
// backend de identidad de SIRES y la taxonomía de errores que ese backend
// puede reportar.
package identity

import (
	"sync"
	"time"
)

// Principal es el registro del usuario autenticado tal como lo entrega el
// backend de identidad. Es el único insumo del evaluador de permisos.
type Principal struct {
	// ID es el identificador estable del usuario. Inmutable.
	ID string `json:"id"`

	// Username es el handle único de login.
	Username string `json:"username"`

	FullName string `json:"full_name"`
	Email    string `json:"email"`

	// Roles es informativo: la autorización nunca decide por nombre de rol,
	// solo por códigos de permiso.
	Roles []string `json:"roles"`

	// Permissions es el conjunto de códigos de permiso otorgados.
	// Cada código es un string opaco jerárquico por convención de nombres
	// (ej. "expedientes:create", "admin:gestion:usuarios:read").
	Permissions []string `json:"permissions"`

	// MustChangePassword fuerza el flujo de onboarding antes de cualquier
	// otra acción. Se preserva tal cual lo reporta el backend.
	MustChangePassword bool `json:"must_change_password"`

	// LandingRoute es la ruta sugerida post-login. Solo orientativa,
	// nunca una frontera de seguridad.
	LandingRoute string `json:"landing_route"`
}

// Clone retorna una copia profunda del Principal. El session store siempre
// guarda y publica copias para que ningún suscriptor observe mutaciones.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Roles = append([]string(nil), p.Roles...)
	cp.Permissions = append([]string(nil), p.Permissions...)
	return &cp
}

// TokenPair agrupa los tokens emitidos por el backend de identidad.
// Viven solo del lado servidor (session record); jamás se entregan al
// navegador ni se persisten en almacenamiento local.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// ResetToken solo existe durante el flujo de recuperación de contraseña.
	ResetToken string `json:"reset_token,omitempty"`
}

// ResetVerification es el resultado de verificar un código de recuperación.
type ResetVerification struct {
	Valid      bool
	ResetToken string
	ExpiresAt  time.Time
}

// TokenState es el contenedor concurrente de los tokens de una sesión.
// El cliente del backend lo muta en login/refresh/reset mientras otros
// requests del mismo navegador lo leen; todo acceso pasa por el lock.
type TokenState struct {
	mu   sync.RWMutex
	pair TokenPair
}

// NewTokenState crea el contenedor con el par inicial.
func NewTokenState(pair TokenPair) *TokenState {
	return &TokenState{pair: pair}
}

// Snapshot retorna una copia consistente del par vigente.
func (s *TokenState) Snapshot() TokenPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

// update muta el par bajo lock. Solo el apiClient escribe tokens.
func (s *TokenState) update(fn func(*TokenPair)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.pair)
}
