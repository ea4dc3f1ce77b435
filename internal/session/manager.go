package session

import (
	"context"
	"strings"
	"time"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/authz"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/observability/logger"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/util"
	"golang.org/x/sync/singleflight"
)

// ManagerDeps contiene las dependencias del session manager.
type ManagerDeps struct {
	Client identity.Client

	// Store es opcional; si es nil se crea uno nuevo en Anonymous.
	Store *Store

	// Lockout es opcional. Es fricción advisory del lado cliente, no un
	// control de autorización ni un reemplazo del rate limiting del backend.
	Lockout *Lockout

	// CallTimeout acota cada llamada al backend. Garantiza que la sesión
	// nunca queda colgada en Authenticating: toda llamada resuelve o expira.
	// Default: 10s.
	CallTimeout time.Duration
}

// Manager media todas las transiciones del ciclo de vida contra el backend
// de identidad. Nunca muta el Store fuera de una transición completada y
// validada.
type Manager struct {
	client  identity.Client
	store   *Store
	lockout *Lockout
	timeout time.Duration

	// refresh coalesce refreshes concurrentes en una sola llamada al backend.
	refresh singleflight.Group
}

// NewManager crea un manager.
func NewManager(deps ManagerDeps) *Manager {
	if deps.Store == nil {
		deps.Store = NewStore()
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = 10 * time.Second
	}
	return &Manager{
		client:  deps.Client,
		store:   deps.Store,
		lockout: deps.Lockout,
		timeout: deps.CallTimeout,
	}
}

// Store expone el store observable para suscriptores (guards de ruta, UI).
func (m *Manager) Store() *Store { return m.store }

// Current retorna el Principal vigente, o nil.
func (m *Manager) Current() *identity.Principal { return m.store.Current() }

// State retorna el estado actual de la sesión.
func (m *Manager) State() State { return m.store.State() }

// Evaluate decide un requirement contra el Principal vigente.
func (m *Manager) Evaluate(req authz.Requirement) bool {
	return authz.Evaluate(m.store.Current(), req)
}

// Login ejecuta Anonymous/Expired → Authenticating → Authenticated.
// En fallo la sesión regresa a Anonymous y el error tipado se reporta al
// caller; nada de eso llega jamás al evaluador de permisos.
func (m *Manager) Login(ctx context.Context, username, password string) (*identity.Principal, error) {
	username = strings.TrimSpace(username)

	log := logger.From(ctx).With(
		logger.Component("session"),
		logger.Op("Login"),
		logger.Username(util.MaskUsername(username)),
	)

	if m.lockout != nil {
		if until, locked := m.lockout.Locked(ctx, username); locked {
			log.Info("login rejected by local lockout", logger.Until(until))
			return nil, ErrLockedOut
		}
	}

	m.store.BeginAuthenticating()

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	p, err := m.client.Login(cctx, username, password)
	if err != nil {
		// Toda falla de login resuelve a Anonymous; la sesión jamás queda
		// colgada en Authenticating por un timeout o una navegación.
		m.store.Clear()
		kind := identity.KindOf(err)
		log.Info("login failed", logger.ErrorKind(string(kind)))
		if kind == identity.KindInvalidCredentials && m.lockout != nil {
			m.lockout.RecordFailure(ctx, username)
		}
		return nil, err
	}

	if m.lockout != nil {
		m.lockout.Reset(ctx, username)
	}

	// MustChangePassword se preserva tal cual: el router decidirá el
	// redirect a onboarding.
	m.store.SetAuthenticated(p)
	log.Info("login successful", logger.UserID(p.ID))
	return m.store.Current(), nil
}

// Logout invalida la sesión. La invalidación remota es best-effort: la
// limpieza local procede aunque el backend falle o no responda.
func (m *Manager) Logout(ctx context.Context) {
	log := logger.From(ctx).With(logger.Component("session"), logger.Op("Logout"))

	// El remoto corre con su propio deadline, desligado de la cancelación
	// del caller (cerrar la vista no debe abortar la invalidación).
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	if err := m.client.Logout(rctx); err != nil {
		log.Warn("remote logout failed, clearing local session anyway", logger.Err(err))
	}

	m.store.Clear()
	log.Info("session cleared")
}

// Refresh renueva el Principal (mismo ID). Triggers concurrentes colapsan
// en una sola llamada al backend. Un rechazo por expiración fuerza la
// transición a Expired con su notificación.
func (m *Manager) Refresh(ctx context.Context) (*identity.Principal, error) {
	v, err, _ := m.refresh.Do("refresh", func() (any, error) {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		p, err := m.client.Refresh(cctx)
		if err != nil {
			if identity.IsExpiry(identity.KindOf(err)) {
				m.HandleUnauthorized(ctx)
			}
			return nil, err
		}
		m.store.SetAuthenticated(p)
		return m.store.Current(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*identity.Principal), nil
}

// CompleteOnboarding fija la nueva contraseña. En éxito el Principal se
// reemplaza con MustChangePassword apagado; en fallo el estado y el
// Principal quedan intactos.
func (m *Manager) CompleteOnboarding(ctx context.Context, newPassword string, termsAccepted bool) (*identity.Principal, error) {
	log := logger.From(ctx).With(logger.Component("session"), logger.Op("CompleteOnboarding"))

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	p, err := m.client.CompleteOnboarding(cctx, newPassword, termsAccepted)
	if err != nil {
		log.Info("onboarding failed", logger.ErrorKind(string(identity.KindOf(err))))
		return nil, err
	}

	m.store.SetAuthenticated(p)
	log.Info("onboarding completed", logger.UserID(p.ID))
	return m.store.Current(), nil
}

// HandleUnauthorized es el punto de entrada para la capa de transporte
// cuando una llamada autenticada recibe 401/403. Idempotente: señales
// concurrentes producen exactamente una notificación de expiración, y la
// sesión termina en Anonymous tras el cleanup, nunca atorada en Expired.
func (m *Manager) HandleUnauthorized(ctx context.Context) {
	if !m.store.Expire() {
		return
	}
	logger.From(ctx).Info("session expired",
		logger.Component("session"), logger.State(Expired.String()))

	// No hay invalidación remota que hacer: el backend ya rechazó la
	// sesión. Completar el cleanup deja el store listo para un nuevo login.
	m.store.AcknowledgeCleanup()
}

// RequestResetCode solicita un código de recuperación de contraseña.
func (m *Manager) RequestResetCode(ctx context.Context, email string) error {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.client.RequestResetCode(cctx, email)
}

// VerifyResetCode valida el código de recuperación.
func (m *Manager) VerifyResetCode(ctx context.Context, email, code string) (*identity.ResetVerification, error) {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.client.VerifyResetCode(cctx, email, code)
}

// ResetPassword fija la nueva contraseña; en éxito la sesión queda
// Authenticated con el Principal entregado por el backend.
func (m *Manager) ResetPassword(ctx context.Context, newPassword string) (*identity.Principal, error) {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	p, err := m.client.ResetPassword(cctx, newPassword)
	if err != nil {
		return nil, err
	}
	m.store.SetAuthenticated(p)
	return m.store.Current(), nil
}
