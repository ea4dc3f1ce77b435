package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/metrics"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/session"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/sessionstore"
)

// El flujo de recuperación corre sin sesión: forgot → verify-code → reset.
// Entre verify-code y reset el backend entrega un reset token de un solo
// uso; el gateway lo retiene del lado servidor bajo un flow ID opaco, igual
// que hace con los tokens de sesión.

const resetFlowTTL = 10 * time.Minute

type resetFlow struct {
	mgr     *session.Manager
	tokens  *identity.TokenState
	expires time.Time
}

type resetFlows struct {
	mu    sync.Mutex
	flows map[string]*resetFlow
}

func (f *resetFlows) put(fl *resetFlow) string {
	id := uuid.NewString()
	f.mu.Lock()
	if f.flows == nil {
		f.flows = make(map[string]*resetFlow)
	}
	// Barrido oportunista de flujos vencidos.
	now := time.Now()
	for k, v := range f.flows {
		if now.After(v.expires) {
			delete(f.flows, k)
		}
	}
	f.flows[id] = fl
	f.mu.Unlock()
	return id
}

func (f *resetFlows) take(id string) (*resetFlow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.flows[id]
	if !ok {
		return nil, false
	}
	// Un solo intento por verificación: el reset token es de un solo uso.
	delete(f.flows, id)
	if time.Now().After(fl.expires) {
		return nil, false
	}
	return fl, true
}

// RequestResetCode pide el envío del código de recuperación.
func (g *Gateway) RequestResetCode(ctx context.Context, email string) error {
	mgr := session.NewManager(session.ManagerDeps{Client: g.api.Session(nil)})
	return mgr.RequestResetCode(ctx, email)
}

// VerifyResetCode valida el código y retorna el flow ID opaco con el que el
// navegador completará el reset. El reset token queda del lado servidor.
func (g *Gateway) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	tokens := identity.NewTokenState(identity.TokenPair{})
	mgr := session.NewManager(session.ManagerDeps{Client: g.api.Session(tokens)})

	v, err := mgr.VerifyResetCode(ctx, email, code)
	if err != nil {
		return "", err
	}
	if !v.Valid {
		return "", identity.E(identity.KindTokenInvalid, "código de verificación incorrecto")
	}
	return g.resets.put(&resetFlow{
		mgr:     mgr,
		tokens:  tokens,
		expires: time.Now().Add(resetFlowTTL),
	}), nil
}

// CompleteReset fija la nueva contraseña y, en éxito, abre sesión con el
// Principal que entrega el backend.
func (g *Gateway) CompleteReset(ctx context.Context, w http.ResponseWriter, flowID, newPassword string) (*identity.Principal, error) {
	fl, ok := g.resets.take(flowID)
	if !ok {
		return nil, identity.E(identity.KindTokenInvalid, "reset flow desconocido o vencido")
	}

	p, err := fl.mgr.ResetPassword(ctx, newPassword)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ls := &LiveSession{
		ID:        uuid.NewString(),
		Manager:   fl.mgr,
		tokens:    fl.tokens,
		expiresAt: now.Add(g.cookie.TTL),
	}
	g.hookExpiry(ls)

	rec := &sessionstore.Record{
		ID:         ls.ID,
		Principal:  p,
		Tokens:     fl.tokens.Snapshot(),
		CreatedAt:  now,
		ExpiresAt:  ls.expiresAt,
		LastSeenAt: now,
	}
	if err := g.records.Put(ctx, rec); err != nil {
		fl.mgr.Logout(ctx)
		return nil, identity.Wrap(identity.KindInternalServerError, err)
	}

	g.mu.Lock()
	g.live[ls.ID] = ls
	g.mu.Unlock()
	metrics.ActiveSessions.Inc()

	http.SetCookie(w, g.buildCookie(ls.ID, ls.expiresAt))
	return p, nil
}
