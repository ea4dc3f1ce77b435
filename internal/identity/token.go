package identity

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// AccessTokenExpiry decodifica (sin verificar firma) el claim exp del access
// token para programar el refresh proactivo. Es solo una optimización: la
// validez real la decide el backend y el núcleo de sesión no asume nada
// sobre el formato del token; un token no decodificable retorna ok=false.
func AccessTokenExpiry(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	parser := jwtv5.NewParser()
	claims := jwtv5.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// ShouldRefresh reporta si el access token expira dentro de la ventana dada.
// Tokens opacos (no decodificables) nunca disparan refresh proactivo.
func ShouldRefresh(raw string, within time.Duration) bool {
	exp, ok := AccessTokenExpiry(raw)
	if !ok {
		return false
	}
	return time.Until(exp) <= within
}
