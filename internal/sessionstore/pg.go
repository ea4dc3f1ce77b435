package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore persiste records como JSONB en Postgres. A diferencia de Redis no
// hay TTL nativo: Get y List filtran por expires_at y PurgeExpired barre los
// vencidos (el gateway lo corre en un ticker).
type pgStore struct {
	pool *pgxpool.Pool
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS gateway_sessions (
    id         TEXT PRIMARY KEY,
    data       JSONB NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS gateway_sessions_expires_at_idx
    ON gateway_sessions (expires_at);
`

// NewPostgres crea un Store sobre Postgres y asegura el esquema.
func NewPostgres(ctx context.Context, dsn string) (Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: pg connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sessionstore: pg ping: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sessionstore: pg schema: %w", err)
	}
	return &pgStore{pool: pool}, nil
}

func (p *pgStore) Put(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal record: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO gateway_sessions (id, data, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = $2, expires_at = $3`,
		rec.ID, raw, rec.ExpiresAt)
	return err
}

func (p *pgStore) Get(ctx context.Context, id string) (*Record, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `
		SELECT data FROM gateway_sessions
		WHERE id = $1 AND expires_at > now()`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("sessionstore: unmarshal record: %w", err)
	}
	return &rec, nil
}

func (p *pgStore) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM gateway_sessions WHERE id = $1`, id)
	return err
}

func (p *pgStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT data FROM gateway_sessions
		WHERE expires_at > now()
		ORDER BY expires_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (p *pgStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM gateway_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *pgStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *pgStore) Close() error {
	p.pool.Close()
	return nil
}
