package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/http/helpers"
)

// WithAdminKey protege el plano admin con una API key estática por header.
// Con key vacía el plano queda deshabilitado: todo request se rechaza.
func WithAdminKey(apiKey string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				helpers.WriteError(w, helpers.ErrNotFound)
				return
			}
			got := strings.TrimSpace(r.Header.Get("X-Admin-API-Key"))
			if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				helpers.WriteError(w, helpers.ErrUnauthorized.WithDetail("admin key inválida"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
