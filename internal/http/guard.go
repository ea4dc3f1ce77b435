package http

import (
	"context"
	"net/http"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/authz"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/http/helpers"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/http/middlewares"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/metrics"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/observability/logger"
)

type sessKey struct{}

// SessionFrom retorna la sesión viva inyectada por WithSession, si hay.
func SessionFrom(ctx context.Context) (*LiveSession, bool) {
	ls, ok := ctx.Value(sessKey{}).(*LiveSession)
	return ls, ok
}

// WithSession resuelve la cookie a una sesión viva y la inyecta en el
// contexto. No rechaza requests: las rutas públicas pasan igual, y los
// guards deciden después.
func (g *Gateway) WithSession() middlewares.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ls, ok := g.Resolve(r); ok {
				ctx := context.WithValue(r.Context(), sessKey{}, ls)
				if p := ls.Manager.Current(); p != nil {
					ctx = logger.ToContext(ctx,
						logger.From(ctx).With(logger.UserID(p.ID)))
				}
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession exige sesión autenticada: 401 si no hay.
func RequireSession() middlewares.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SessionFrom(r.Context()); !ok {
				helpers.WriteError(w, helpers.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission evalúa el requirement contra el Principal de la sesión.
// Sin sesión: 401. Con sesión y evaluación negada: 403. La negación es la
// respuesta por defecto ante cualquier duda.
func RequirePermission(req authz.Requirement) middlewares.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ls, ok := SessionFrom(r.Context())
			if !ok {
				helpers.WriteError(w, helpers.ErrUnauthorized)
				return
			}
			metrics.PermissionChecksTotal.Inc()
			if !ls.Manager.Evaluate(req) {
				metrics.PermissionDenialsTotal.Inc()
				logger.From(r.Context()).Info("permission denied",
					logger.Permission(req.String()))
				helpers.WriteError(w, helpers.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin exige el permiso wildcard.
func RequireAdmin() middlewares.Middleware {
	return RequirePermission(authz.AdminOnly())
}
