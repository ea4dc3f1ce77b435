// Package http implementa el session gateway de SIRES: el navegador habla
// con este servicio vía cookie de sesión opaca y el gateway habla con el
// backend de identidad con los tokens que guarda del lado servidor. Ningún
// token cruza hacia el navegador.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/metrics"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/observability/logger"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/session"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/sessionstore"
)

// CookieConfig describe la cookie de sesión.
type CookieConfig struct {
	Name     string
	Domain   string
	SameSite string // Lax | Strict | None
	Secure   bool
	TTL      time.Duration
}

func (c CookieConfig) sameSite() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// GatewayDeps contiene las dependencias del gateway.
type GatewayDeps struct {
	API     *identity.API
	Records sessionstore.Store
	Lockout *session.Lockout
	Cookie  CookieConfig

	// RefreshWithin: renovar proactivamente cuando al access token le queda
	// menos que esto. Cero deshabilita la renovación proactiva.
	RefreshWithin time.Duration
}

// LiveSession es una sesión de gateway hidratada en este proceso: el record
// persistido más el Manager que media sus transiciones.
type LiveSession struct {
	ID      string
	Manager *session.Manager

	tokens    *identity.TokenState
	expiresAt time.Time
}

// Gateway resuelve cookies a sesiones vivas y mantiene el store persistente
// sincronizado con ellas. Una sola sesión viva por sid: requests
// concurrentes del mismo navegador comparten Manager, y con él la
// coalescencia de refresh y la notificación única de expiración.
type Gateway struct {
	api     *identity.API
	records sessionstore.Store
	lockout *session.Lockout
	cookie  CookieConfig
	within  time.Duration

	mu   sync.Mutex
	live map[string]*LiveSession

	resets resetFlows
}

// NewGateway crea un gateway.
func NewGateway(deps GatewayDeps) *Gateway {
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = "sires_sid"
	}
	if deps.Cookie.TTL <= 0 {
		deps.Cookie.TTL = 12 * time.Hour
	}
	return &Gateway{
		api:     deps.API,
		records: deps.Records,
		lockout: deps.Lockout,
		cookie:  deps.Cookie,
		within:  deps.RefreshWithin,
		live:    make(map[string]*LiveSession),
	}
}

// StartSession ejecuta el login y, en éxito, emite la cookie de sesión.
func (g *Gateway) StartSession(ctx context.Context, w http.ResponseWriter, username, password string) (*identity.Principal, error) {
	tokens := identity.NewTokenState(identity.TokenPair{})
	mgr := session.NewManager(session.ManagerDeps{
		Client:  g.api.Session(tokens),
		Lockout: g.lockout,
	})

	p, err := mgr.Login(ctx, username, password)
	if err != nil {
		outcome := loginOutcome(err)
		metrics.LoginsTotal.WithLabelValues(outcome).Inc()
		if outcome == "locked_out" {
			metrics.LockoutsTotal.Inc()
		}
		return nil, err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	now := time.Now()
	ls := &LiveSession{
		ID:        uuid.NewString(),
		Manager:   mgr,
		tokens:    tokens,
		expiresAt: now.Add(g.cookie.TTL),
	}
	g.hookExpiry(ls)

	rec := &sessionstore.Record{
		ID:         ls.ID,
		Principal:  p,
		Tokens:     tokens.Snapshot(),
		CreatedAt:  now,
		ExpiresAt:  ls.expiresAt,
		LastSeenAt: now,
	}
	if err := g.records.Put(ctx, rec); err != nil {
		// Sin persistencia no hay sesión: invalidar lo recién emitido.
		mgr.Logout(ctx)
		return nil, identity.Wrap(identity.KindInternalServerError, err)
	}

	g.mu.Lock()
	g.live[ls.ID] = ls
	g.mu.Unlock()
	metrics.ActiveSessions.Inc()

	http.SetCookie(w, g.buildCookie(ls.ID, ls.expiresAt))
	return p, nil
}

func loginOutcome(err error) string {
	if errors.Is(err, session.ErrLockedOut) {
		return "locked_out"
	}
	switch identity.KindOf(err) {
	case identity.KindInvalidCredentials:
		return "invalid_credentials"
	case identity.KindRateLimitExceeded:
		return "rate_limited"
	default:
		return "error"
	}
}

// Resolve obtiene la sesión viva del request vía cookie. Rehidrata desde el
// store persistente si el proceso no la tiene (reinicio u otro nodo).
func (g *Gateway) Resolve(r *http.Request) (*LiveSession, bool) {
	c, err := r.Cookie(g.cookie.Name)
	if err != nil || c.Value == "" {
		return nil, false
	}
	sid := c.Value

	g.mu.Lock()
	ls, ok := g.live[sid]
	g.mu.Unlock()
	if ok {
		if ls.Manager.State() != session.Authenticated {
			return nil, false
		}
		g.maybeRefresh(r.Context(), ls)
		// El refresh pudo expirar la sesión contra el backend.
		if ls.Manager.State() != session.Authenticated {
			return nil, false
		}
		return ls, true
	}

	rec, err := g.records.Get(r.Context(), sid)
	if err != nil {
		return nil, false
	}
	ls = g.rehydrate(rec)
	g.maybeRefresh(r.Context(), ls)
	if ls.Manager.State() != session.Authenticated {
		return nil, false
	}
	return ls, true
}

// rehydrate reconstruye una sesión viva a partir del record persistido.
func (g *Gateway) rehydrate(rec *sessionstore.Record) *LiveSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	// Double-check: otro request pudo hidratarla mientras leíamos el store.
	if ls, ok := g.live[rec.ID]; ok {
		return ls
	}

	tokens := identity.NewTokenState(identity.TokenPair{
		AccessToken:  rec.Tokens.AccessToken,
		RefreshToken: rec.Tokens.RefreshToken,
	})
	st := session.NewStore()
	mgr := session.NewManager(session.ManagerDeps{
		Client:  g.api.Session(tokens),
		Store:   st,
		Lockout: g.lockout,
	})
	st.SetAuthenticated(rec.Principal)

	ls := &LiveSession{
		ID:        rec.ID,
		Manager:   mgr,
		tokens:    tokens,
		expiresAt: rec.ExpiresAt,
	}
	g.hookExpiry(ls)
	g.live[rec.ID] = ls
	metrics.ActiveSessions.Inc()
	return ls
}

// hookExpiry engancha la notificación de expiración: cuando el backend
// rechaza la sesión, el record y la entrada viva se limpian exactamente una
// vez.
func (g *Gateway) hookExpiry(ls *LiveSession) {
	ls.Manager.Store().OnExpired(func() {
		metrics.SessionExpiriesTotal.Inc()
		g.drop(ls.ID)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.records.Delete(ctx, ls.ID); err != nil {
			logger.L().Warn("failed to delete expired session record",
				logger.SessionID(ls.ID), logger.Err(err))
		}
	})
}

// maybeRefresh renueva tokens cuando el access token está por vencer. El
// Manager coalesce requests concurrentes en una sola llamada.
func (g *Gateway) maybeRefresh(ctx context.Context, ls *LiveSession) {
	if g.within <= 0 || !identity.ShouldRefresh(ls.tokens.Snapshot().AccessToken, g.within) {
		return
	}
	if _, err := ls.Manager.Refresh(ctx); err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.RefreshTotal.WithLabelValues("success").Inc()
	g.persist(ctx, ls)
}

// Refresh fuerza una renovación y persiste los tokens rotados.
func (g *Gateway) Refresh(ctx context.Context, ls *LiveSession) (*identity.Principal, error) {
	p, err := ls.Manager.Refresh(ctx)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RefreshTotal.WithLabelValues("success").Inc()
	g.persist(ctx, ls)
	return p, nil
}

// persist sincroniza el record con el estado vigente de la sesión.
func (g *Gateway) persist(ctx context.Context, ls *LiveSession) {
	p := ls.Manager.Current()
	if p == nil {
		return
	}
	rec := &sessionstore.Record{
		ID:         ls.ID,
		Principal:  p,
		Tokens:     ls.tokens.Snapshot(),
		ExpiresAt:  ls.expiresAt,
		LastSeenAt: time.Now(),
	}
	if err := g.records.Put(ctx, rec); err != nil {
		logger.From(ctx).Warn("failed to persist session record",
			logger.SessionID(ls.ID), logger.Err(err))
	}
}

// EndSession cierra la sesión: invalidación remota best-effort, limpieza
// local incondicional y cookie expirada. Nunca falla hacia el caller.
func (g *Gateway) EndSession(ctx context.Context, w http.ResponseWriter, ls *LiveSession) {
	ls.Manager.Logout(ctx)
	g.drop(ls.ID)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := g.records.Delete(dctx, ls.ID); err != nil {
		logger.From(ctx).Warn("failed to delete session record",
			logger.SessionID(ls.ID), logger.Err(err))
	}

	http.SetCookie(w, g.clearCookie())
}

// ClearCookie expira la cookie aunque no haya sesión viva que cerrar.
func (g *Gateway) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, g.clearCookie())
}

// Revoke termina una sesión por sid desde el plano admin.
func (g *Gateway) Revoke(ctx context.Context, sid string) error {
	g.mu.Lock()
	ls, ok := g.live[sid]
	g.mu.Unlock()
	if ok {
		ls.Manager.Logout(ctx)
		g.drop(sid)
	}
	return g.records.Delete(ctx, sid)
}

// Sessions lista los records vigentes para el plano admin.
func (g *Gateway) Sessions(ctx context.Context) ([]*sessionstore.Record, error) {
	return g.records.List(ctx)
}

func (g *Gateway) drop(sid string) {
	g.mu.Lock()
	_, ok := g.live[sid]
	delete(g.live, sid)
	g.mu.Unlock()
	if ok {
		metrics.ActiveSessions.Dec()
	}
}

func (g *Gateway) buildCookie(sid string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     g.cookie.Name,
		Value:    sid,
		Path:     "/",
		Domain:   g.cookie.Domain,
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   g.cookie.Secure,
		SameSite: g.cookie.sameSite(),
	}
}

func (g *Gateway) clearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     g.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   g.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.cookie.Secure,
		SameSite: g.cookie.sameSite(),
	}
}
