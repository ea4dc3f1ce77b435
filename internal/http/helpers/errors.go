package helpers

import (
	"encoding/json"
	"net/http"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
)

// Standard Error Responses

var (
	ErrInvalidJSON         = &HTTPError{Code: "invalid_json", Message: "Formato JSON inválido", Status: http.StatusBadRequest}
	ErrBadRequest          = &HTTPError{Code: "bad_request", Message: "Solicitud inválida", Status: http.StatusBadRequest}
	ErrUnauthorized        = &HTTPError{Code: "unauthorized", Message: "No autenticado", Status: http.StatusUnauthorized}
	ErrForbidden           = &HTTPError{Code: "forbidden", Message: "Sin permisos para esta operación", Status: http.StatusForbidden}
	ErrNotFound            = &HTTPError{Code: "not_found", Message: "Recurso no encontrado", Status: http.StatusNotFound}
	ErrTooManyRequests     = &HTTPError{Code: "rate_limited", Message: identity.DisplayMessage(identity.KindRateLimitExceeded), Status: http.StatusTooManyRequests}
	ErrInternalServerError = &HTTPError{Code: "internal_error", Message: identity.DisplayMessage(identity.KindInternalServerError), Status: http.StatusInternalServerError}
)

// HTTPError es el error estándar de la API.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Status  int    `json:"-"`
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// WithDetail retorna una copia del error con detalle específico.
func (e *HTTPError) WithDetail(detail string) *HTTPError {
	return &HTTPError{
		Code:    e.Code,
		Message: e.Message,
		Detail:  detail,
		Status:  e.Status,
	}
}

// kindStatus mapea la taxonomía de identity a status HTTP. Toda kind no
// listada cae a 500 con el mensaje genérico.
var kindStatus = map[identity.Kind]int{
	identity.KindInvalidCredentials:  http.StatusUnauthorized,
	identity.KindAccountLocked:       http.StatusLocked,
	identity.KindAccountInactive:     http.StatusForbidden,
	identity.KindAccountExpired:      http.StatusForbidden,
	identity.KindRateLimitExceeded:   http.StatusTooManyRequests,
	identity.KindTokenExpired:        http.StatusUnauthorized,
	identity.KindTokenInvalid:        http.StatusUnauthorized,
	identity.KindSessionExpired:      http.StatusUnauthorized,
	identity.KindTermsNotAccepted:    http.StatusPreconditionFailed,
	identity.KindPasswordTooWeak:     http.StatusUnprocessableEntity,
	identity.KindOnboardingFailed:    http.StatusUnprocessableEntity,
	identity.KindServiceUnavailable:  http.StatusServiceUnavailable,
	identity.KindNetworkError:        http.StatusBadGateway,
	identity.KindTimeoutError:        http.StatusGatewayTimeout,
	identity.KindInternalServerError: http.StatusInternalServerError,
}

// FromIdentityError traduce un error del backend de identidad a HTTPError.
// El mensaje siempre sale del catálogo estable de identity; el detalle crudo
// del backend no se reenvía al navegador.
func FromIdentityError(err error) *HTTPError {
	kind := identity.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &HTTPError{
		Code:    string(kind),
		Message: identity.DisplayMessage(kind),
		Status:  status,
	}
}

// WriteError escribe el error al response writer.
func WriteError(w http.ResponseWriter, err error) {
	var httpErr *HTTPError
	if hErr, ok := err.(*HTTPError); ok {
		httpErr = hErr
	} else {
		httpErr = FromIdentityError(err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpErr.Status)
	_ = json.NewEncoder(w).Encode(httpErr)
}

// WriteJSON escribe una respuesta JSON con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
