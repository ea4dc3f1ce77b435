package sessionstore

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore guarda records en proceso. Pierde las sesiones al reiniciar;
// solo para desarrollo y tests.
type memoryStore struct {
	c *gocache.Cache
}

// NewMemory crea un Store en memoria.
func NewMemory() Store {
	return &memoryStore{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *memoryStore) Put(_ context.Context, rec *Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		m.c.Delete(rec.ID)
		return nil
	}
	m.c.Set(rec.ID, rec.Clone(), ttl)
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (*Record, error) {
	v, ok := m.c.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	rec := v.(*Record)
	if rec.Expired() {
		m.c.Delete(id)
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.c.Delete(id)
	return nil
}

func (m *memoryStore) List(_ context.Context) ([]*Record, error) {
	items := m.c.Items()
	out := make([]*Record, 0, len(items))
	for _, it := range items {
		rec := it.Object.(*Record)
		if rec.Expired() {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (m *memoryStore) PurgeExpired(_ context.Context) (int64, error) {
	// go-cache expira por TTL; el janitor interno limpia solo.
	m.c.DeleteExpired()
	return 0, nil
}

func (m *memoryStore) Ping(context.Context) error { return nil }
func (m *memoryStore) Close() error               { return nil }
