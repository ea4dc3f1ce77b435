package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gw "github.com/Tepexicuapan3/SIRES-sub001/internal/http"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/http/middlewares"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/rate"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/session"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/sessionstore"
)

// RouterDeps contiene todo lo que el router necesita para armarse.
type RouterDeps struct {
	Gateway *gw.Gateway
	Records sessionstore.Store
	Lockout *session.Lockout

	// Limiters por endpoint; nil deshabilita el límite.
	LoginLimiter  rate.Limiter
	ForgotLimiter rate.Limiter

	AdminAPIKey        string
	CORSAllowedOrigins []string
}

// NewRouter arma el router del gateway.
func NewRouter(d RouterDeps) http.Handler {
	auth := &Auth{Gateway: d.Gateway}
	admin := &Admin{Gateway: d.Gateway, Lockout: d.Lockout}
	health := &Health{Records: d.Records}

	r := chi.NewRouter()
	r.Use(middlewares.WithRequestID())
	r.Use(middlewares.WithLogging())
	if len(d.CORSAllowedOrigins) > 0 {
		r.Use(middlewares.WithCORS(d.CORSAllowedOrigins))
	}

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(d.Gateway.WithSession())

		if d.LoginLimiter != nil {
			r.With(middlewares.WithRateLimit(d.LoginLimiter, middlewares.IPPathRateKey)).
				Post("/login", auth.Login)
		} else {
			r.Post("/login", auth.Login)
		}

		r.Post("/logout", auth.Logout)
		r.Post("/refresh", auth.Refresh)
		r.Get("/me", auth.Me)
		r.Post("/onboarding/complete", auth.CompleteOnboarding)

		forgot := func(r chi.Router) {
			r.Post("/password/forgot", auth.Forgot)
			r.Post("/password/verify-code", auth.VerifyCode)
		}
		if d.ForgotLimiter != nil {
			r.Group(func(r chi.Router) {
				r.Use(middlewares.WithRateLimit(d.ForgotLimiter, middlewares.IPPathRateKey))
				forgot(r)
			})
		} else {
			forgot(r)
		}
		r.Post("/password/reset", auth.ResetPassword)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(middlewares.WithAdminKey(d.AdminAPIKey))
		r.Get("/sessions", admin.ListSessions)
		r.Delete("/sessions/{sid}", admin.RevokeSession)
		r.Post("/lockout/{username}/reset", admin.ResetLockout)
		r.Post("/authz/check", admin.AuthzCheck)
	})

	return r
}
