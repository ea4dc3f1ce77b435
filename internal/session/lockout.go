package session

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/cache"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
)

// ErrLockedOut señala que el lockout local rechazó el login antes de llegar
// al backend. Comparte kind con el 429 del backend (el caller HTTP responde
// igual), pero el origen se discrimina con errors.Is.
var ErrLockedOut = identity.E(identity.KindRateLimitExceeded, "local lockout active")

// LockoutConfig configura la heurística de lockout por intentos fallidos.
type LockoutConfig struct {
	// Threshold es el número de fallas antes de bloquear. Default: 5.
	Threshold int

	// BaseWindow es la duración del primer bloqueo. Default: 1m.
	BaseWindow time.Duration

	// Multiplier compone la ventana: cada falla adicional pasada la
	// Threshold multiplica la duración. Default: 2.
	Multiplier float64

	// MaxWindow acota la ventana compuesta. Default: 30m.
	MaxWindow time.Duration
}

func (c LockoutConfig) withDefaults() LockoutConfig {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.BaseWindow <= 0 {
		c.BaseWindow = time.Minute
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	if c.MaxWindow <= 0 {
		c.MaxWindow = 30 * time.Minute
	}
	return c
}

// Lockout lleva el contador de logins fallidos por usuario y compone una
// ventana de bloqueo al pasar el umbral. Es fricción advisory del lado
// cliente, keyed por señales observables (el username intentado); no
// sustituye el rate limiting del servidor ni participa en autorización.
type Lockout struct {
	cache cache.Client
	cfg   LockoutConfig
}

// NewLockout crea el tracker sobre el cache dado.
func NewLockout(c cache.Client, cfg LockoutConfig) *Lockout {
	return &Lockout{cache: c, cfg: cfg.withDefaults()}
}

type lockoutState struct {
	Failures int       `json:"failures"`
	Until    time.Time `json:"until"`
}

func lockoutKey(username string) string {
	return "lockout:" + strings.ToLower(strings.TrimSpace(username))
}

// RecordFailure registra un intento fallido. Retorna si el usuario quedó
// bloqueado y hasta cuándo.
func (l *Lockout) RecordFailure(ctx context.Context, username string) (locked bool, until time.Time) {
	st := l.load(ctx, username)
	st.Failures++

	if st.Failures >= l.cfg.Threshold {
		extra := st.Failures - l.cfg.Threshold
		window := time.Duration(float64(l.cfg.BaseWindow) * math.Pow(l.cfg.Multiplier, float64(extra)))
		if window > l.cfg.MaxWindow || window <= 0 {
			window = l.cfg.MaxWindow
		}
		st.Until = time.Now().Add(window)
	}

	l.save(ctx, username, st)
	return !st.Until.IsZero() && time.Now().Before(st.Until), st.Until
}

// Locked reporta si el usuario está dentro de una ventana de bloqueo.
func (l *Lockout) Locked(ctx context.Context, username string) (until time.Time, locked bool) {
	st := l.load(ctx, username)
	if st.Until.IsZero() || time.Now().After(st.Until) {
		return time.Time{}, false
	}
	return st.Until, true
}

// Reset limpia el contador. Es una operación explícita, separada de las
// transiciones de la máquina de estados.
func (l *Lockout) Reset(ctx context.Context, username string) {
	_ = l.cache.Delete(ctx, lockoutKey(username))
}

func (l *Lockout) load(ctx context.Context, username string) lockoutState {
	var st lockoutState
	raw, err := l.cache.Get(ctx, lockoutKey(username))
	if err != nil {
		return st
	}
	_ = json.Unmarshal([]byte(raw), &st)
	return st
}

func (l *Lockout) save(ctx context.Context, username string, st lockoutState) {
	raw, err := json.Marshal(st)
	if err != nil {
		return
	}
	// El registro sobrevive el doble de la ventana activa para que las
	// fallas sigan componiendo si el usuario insiste apenas expira.
	ttl := 2 * l.cfg.MaxWindow
	_ = l.cache.Set(ctx, lockoutKey(username), string(raw), ttl)
}
