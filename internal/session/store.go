// Package session implementa el ciclo de vida de la sesión SIRES: el store
// observable que publica el Principal vigente, el manager que media las
// transiciones contra el backend de identidad, y el tracker de lockout por
// intentos fallidos.
package session

import (
	"sync"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
)

// State es el estado del ciclo de vida de la sesión.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Expired
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// Snapshot es la vista consistente que reciben los suscriptores: estado y
// Principal capturados en la misma transición, nunca un intermedio.
type Snapshot struct {
	State     State
	Principal *identity.Principal
}

// Store es el dueño del Principal vigente (o de su ausencia). Es una
// instancia inyectable, no estado global: cada test o cada sesión del
// gateway crea la suya.
//
// Garantías:
//   - Hay a lo más un Principal vivo; reemplazarlo es atómico para todo
//     suscriptor.
//   - Los suscriptores se notifican estrictamente después de actualizar el
//     slot, nunca antes.
//   - La notificación de expiración se emite exactamente una vez por
//     transición a Expired; señales concurrentes se coalescen.
type Store struct {
	mu          sync.Mutex
	state       State
	principal   *identity.Principal
	nextID      int
	subs        map[int]func(Snapshot)
	expiredSubs map[int]func()

	// expiryFired coalesce señales de expiración concurrentes. Se resetea
	// solo cuando el cleanup completa (AcknowledgeCleanup o Clear).
	expiryFired bool
}

// NewStore crea un store en estado Anonymous.
func NewStore() *Store {
	return &Store{
		state:       Anonymous,
		subs:        make(map[int]func(Snapshot)),
		expiredSubs: make(map[int]func()),
	}
}

// Current retorna el Principal vigente, o nil si no hay sesión autenticada.
// El valor es un snapshot inmutable: el store solo guarda copias y las
// reemplaza completas, nunca las muta.
func (s *Store) Current() *identity.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal
}

// State retorna el estado actual.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot retorna estado y Principal capturados atómicamente.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Principal: s.principal}
}

// Subscribe registra un observador de cambios de sesión. Retorna la función
// para cancelar la suscripción.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// OnExpired registra un observador de expiración de sesión (evento sin
// payload, emitido una sola vez por transición a Expired).
func (s *Store) OnExpired(fn func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.expiredSubs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.expiredSubs, id)
		s.mu.Unlock()
	}
}

// BeginAuthenticating marca el login en curso. No hay Principal en este
// estado.
func (s *Store) BeginAuthenticating() {
	s.mu.Lock()
	s.state = Authenticating
	s.principal = nil
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	notify(snap, fns)
}

// SetAuthenticated guarda una copia del Principal y publica el cambio.
// El slot se actualiza antes de notificar a cualquier suscriptor.
func (s *Store) SetAuthenticated(p *identity.Principal) {
	s.mu.Lock()
	s.state = Authenticated
	s.principal = p.Clone()
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	notify(snap, fns)
}

// Clear deja la sesión en Anonymous sin Principal. Limpiar una sesión ya
// limpia es un no-op observable (los suscriptores igual ven el snapshot).
func (s *Store) Clear() {
	s.mu.Lock()
	s.state = Anonymous
	s.principal = nil
	s.expiryFired = false
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	notify(snap, fns)
}

// Expire ejecuta la transición Authenticated → Expired: limpia el Principal
// y emite la notificación de expiración. Retorna true solo para la llamada
// que efectuó la transición; señales concurrentes retornan false y no
// duplican la notificación.
func (s *Store) Expire() bool {
	s.mu.Lock()
	if s.state != Authenticated || s.expiryFired {
		s.mu.Unlock()
		return false
	}
	s.state = Expired
	s.principal = nil
	s.expiryFired = true
	snap, fns := s.snapshotLocked()
	expFns := make([]func(), 0, len(s.expiredSubs))
	for _, fn := range s.expiredSubs {
		expFns = append(expFns, fn)
	}
	s.mu.Unlock()

	notify(snap, fns)
	for _, fn := range expFns {
		fn()
	}
	return true
}

// AcknowledgeCleanup completa el ciclo Expired → Anonymous y rearma el
// guard de expiración para la siguiente sesión.
func (s *Store) AcknowledgeCleanup() {
	s.mu.Lock()
	if s.state != Expired {
		s.mu.Unlock()
		return
	}
	s.state = Anonymous
	s.expiryFired = false
	snap, fns := s.snapshotLocked()
	s.mu.Unlock()
	notify(snap, fns)
}

// snapshotLocked captura el snapshot y la lista de suscriptores bajo lock.
func (s *Store) snapshotLocked() (Snapshot, []func(Snapshot)) {
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return Snapshot{State: s.state, Principal: s.principal}, fns
}

func notify(snap Snapshot, fns []func(Snapshot)) {
	for _, fn := range fns {
		fn(snap)
	}
}
