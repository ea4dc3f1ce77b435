package middlewares

import (
	"net/http"
	"strconv"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/http/helpers"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/observability/logger"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/rate"
)

// RateKeyFunc deriva la key de rate limiting de un request.
type RateKeyFunc func(r *http.Request) string

// IPPathRateKey limita por IP + path, para separar presupuestos por
// endpoint sin leer el body.
func IPPathRateKey(r *http.Request) string {
	return clientIP(r) + "|" + r.URL.Path
}

// WithRateLimit aplica un limiter a la ruta. Si el cache subyacente falla,
// el request pasa: el rate limiting es fricción, no un control de acceso.
func WithRateLimit(l rate.Limiter, keyFn RateKeyFunc) Middleware {
	if keyFn == nil {
		keyFn = IPPathRateKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), keyFn(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable, allowing request",
					logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				secs := int(res.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				helpers.WriteError(w, helpers.ErrTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
