package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind clasifica un error del backend de identidad. El caller discrimina por
// kind, nunca por el texto del error.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountLocked      Kind = "account_locked"
	KindAccountInactive    Kind = "account_inactive"
	KindAccountExpired     Kind = "account_expired"
	KindRateLimitExceeded  Kind = "rate_limit_exceeded"

	// Kinds de expiración: solo tienen sentido estando autenticado y son
	// exactamente los que fuerzan la transición Authenticated → Expired.
	KindTokenExpired   Kind = "token_expired"
	KindTokenInvalid   Kind = "token_invalid"
	KindSessionExpired Kind = "session_expired"

	// Kinds de onboarding: el Principal no se reemplaza, el estado no cambia.
	KindTermsNotAccepted Kind = "terms_not_accepted"
	KindPasswordTooWeak  Kind = "password_too_weak"
	KindOnboardingFailed Kind = "onboarding_failed"

	// Transitorios de infraestructura. Este núcleo nunca reintenta solo;
	// la política de retry vive en la capa de transporte.
	KindServiceUnavailable  Kind = "service_unavailable"
	KindNetworkError        Kind = "network_error"
	KindTimeoutError        Kind = "timeout_error"
	KindInternalServerError Kind = "internal_server_error"

	// KindUnknown cubre códigos no mapeados del backend.
	KindUnknown Kind = "unknown"
)

// Error es un error tipado del backend de identidad.
type Error struct {
	Kind   Kind
	Detail string // texto crudo del backend; nunca se muestra al usuario
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("identity: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("identity: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// E construye un error tipado.
func E(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap construye un error tipado envolviendo una causa.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extrae el Kind de un error. Errores no tipados se clasifican por
// causa (timeout/red) o caen en KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeoutError
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeoutError
		}
		return KindNetworkError
	}
	return KindUnknown
}

// IsExpiry reporta si el kind fuerza la transición a Expired.
func IsExpiry(k Kind) bool {
	switch k {
	case KindTokenExpired, KindTokenInvalid, KindSessionExpired:
		return true
	}
	return false
}

// displayMessages mapea cada kind a exactamente un mensaje estable para UI.
// Códigos desconocidos caen al mensaje genérico: el texto crudo del backend
// nunca llega al usuario.
var displayMessages = map[Kind]string{
	KindInvalidCredentials:  "Usuario o contraseña incorrectos.",
	KindAccountLocked:       "Tu cuenta está bloqueada temporalmente. Intenta más tarde.",
	KindAccountInactive:     "Tu cuenta está inactiva. Contacta al administrador del sistema.",
	KindAccountExpired:      "Tu cuenta ha expirado. Contacta al administrador del sistema.",
	KindRateLimitExceeded:   "Demasiados intentos. Espera unos minutos antes de volver a intentar.",
	KindTokenExpired:        "Tu sesión ha expirado. Inicia sesión nuevamente.",
	KindTokenInvalid:        "Tu sesión ya no es válida. Inicia sesión nuevamente.",
	KindSessionExpired:      "Tu sesión ha expirado. Inicia sesión nuevamente.",
	KindTermsNotAccepted:    "Debes aceptar los términos y condiciones para continuar.",
	KindPasswordTooWeak:     "La contraseña no cumple con los requisitos de seguridad.",
	KindOnboardingFailed:    "No se pudo completar la activación de tu cuenta. Intenta de nuevo.",
	KindServiceUnavailable:  "El servicio no está disponible en este momento. Intenta más tarde.",
	KindNetworkError:        "Error de conexión. Verifica tu red e intenta de nuevo.",
	KindTimeoutError:        "La operación tardó demasiado. Intenta de nuevo.",
	KindInternalServerError: "Ocurrió un error inesperado. Intenta más tarde.",
}

const genericMessage = "Ocurrió un error. Intenta de nuevo más tarde."

// DisplayMessage retorna el mensaje de usuario para un kind.
func DisplayMessage(k Kind) string {
	if msg, ok := displayMessages[k]; ok {
		return msg
	}
	return genericMessage
}

// DisplayMessageFor es el shortcut DisplayMessage(KindOf(err)).
func DisplayMessageFor(err error) string {
	return DisplayMessage(KindOf(err))
}
