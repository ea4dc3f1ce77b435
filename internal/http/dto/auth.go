// Package dto define los contratos JSON del gateway.
package dto

import (
	"time"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type OnboardingRequest struct {
	NewPassword   string `json:"new_password"`
	TermsAccepted bool   `json:"terms_accepted"`
}

type ForgotRequest struct {
	Email string `json:"email"`
}

type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type VerifyCodeResponse struct {
	FlowID string `json:"flow_id"`
}

type ResetPasswordRequest struct {
	FlowID      string `json:"flow_id"`
	NewPassword string `json:"new_password"`
}

// PrincipalResponse es la vista del usuario autenticado que sí cruza al
// navegador. Sin tokens: esos viven en el session record del gateway.
type PrincipalResponse struct {
	User *identity.Principal `json:"user"`
}

// SessionInfo es la vista admin de un session record. Expone metadatos,
// nunca tokens.
type SessionInfo struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type AuthzCheckRequest struct {
	UserPermissions []string `json:"user_permissions"`
	Requirement     string   `json:"requirement"`
}

type AuthzCheckResponse struct {
	Allowed bool `json:"allowed"`
}
