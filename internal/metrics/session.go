package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus del gateway. Viven en un paquete propio para que
// session y http puedan incrementarlas sin importarse entre sí.

var (
	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sires_logins_total",
		Help: "Intentos de login por resultado",
	}, []string{"outcome"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sires_active_sessions",
		Help: "Sesiones de gateway vigentes",
	})

	SessionExpiriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sires_session_expiries_total",
		Help: "Sesiones terminadas por expiración del backend",
	})

	PermissionChecksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sires_permission_checks_total",
		Help: "Evaluaciones de permisos en el guard",
	})

	PermissionDenialsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sires_permission_denials_total",
		Help: "Evaluaciones de permisos negadas",
	})

	LockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sires_lockouts_total",
		Help: "Logins rechazados por el lockout local",
	})

	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sires_refreshes_total",
		Help: "Renovaciones de tokens contra el backend por resultado",
	}, []string{"outcome"})
)

// Register registra las métricas en reg (default si es nil). Tolera
// registros repetidos para que tests y bootstrap no choquen.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cs := []prometheus.Collector{
		LoginsTotal,
		ActiveSessions,
		SessionExpiriesTotal,
		PermissionChecksTotal,
		PermissionDenialsTotal,
		LockoutsTotal,
		RefreshTotal,
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
