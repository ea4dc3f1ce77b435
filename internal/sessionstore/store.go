// Package sessionstore persiste los session records del gateway: el snapshot
// del Principal más los tokens del backend, keyed por el sid opaco de la
// cookie. Los tokens viven solo aquí, del lado servidor.
//
// Backends: memory (desarrollo/tests), Redis y Postgres (producción, las
// sesiones sobreviven reinicios del gateway).
package sessionstore

import (
	"context"
	"fmt"
	"time"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
)

// Record es una sesión del gateway.
type Record struct {
	ID         string              `json:"id"`
	Principal  *identity.Principal `json:"principal"`
	Tokens     identity.TokenPair  `json:"tokens"`
	CreatedAt  time.Time           `json:"created_at"`
	ExpiresAt  time.Time           `json:"expires_at"`
	LastSeenAt time.Time           `json:"last_seen_at"`
}

// Clone retorna una copia profunda del record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Principal = r.Principal.Clone()
	return &cp
}

// Expired reporta si el record ya venció.
func (r *Record) Expired() bool {
	return !r.ExpiresAt.IsZero() && time.Now().After(r.ExpiresAt)
}

// Store define la persistencia de session records. Todo driver respeta el
// TTL: Get sobre un record vencido reporta ErrNotFound.
type Store interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error

	// List retorna los records vigentes. Para el admin API.
	List(ctx context.Context) ([]*Record, error)

	// PurgeExpired elimina records vencidos que el backend no expira solo.
	PurgeExpired(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ErrNotFound indica que el record no existe o ya venció.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "sessionstore: record not found" }

// IsNotFound reporta si el error es por record inexistente.
func IsNotFound(err error) bool {
	return err == ErrNotFound
}

// Config selecciona y configura el driver.
type Config struct {
	Driver string // "memory" | "redis" | "postgres"

	Redis struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}

	Postgres struct {
		DSN string
	}
}

// New crea un Store según la configuración.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "postgres", "pg":
		return NewPostgres(ctx, cfg.Postgres.DSN)
	case "memory", "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("sessionstore: unknown driver %q", cfg.Driver)
	}
}
