package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache. Para desarrollo y tests.
type memoryClient struct {
	c      *gocache.Cache
	prefix string

	// mu serializa Incr: go-cache no ofrece incremento atómico con TTL
	// en el primer hit.
	mu sync.Mutex
}

// NewMemory crea un cliente de cache en memoria.
func NewMemory(prefix string) Client {
	return &memoryClient{
		c:      gocache.New(gocache.NoExpiration, time.Minute),
		prefix: prefix,
	}
}

func (m *memoryClient) key(k string) string {
	if m.prefix == "" {
		return k
	}
	return m.prefix + ":" + k
}

func (m *memoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(m.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(m.key(key), value, ttl)
	return nil
}

func (m *memoryClient) Delete(_ context.Context, key string) error {
	m.c.Delete(m.key(key))
	return nil
}

func (m *memoryClient) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := m.key(key)
	var n int64
	if v, ok := m.c.Get(k); ok {
		s, _ := v.(string)
		n, _ = strconv.ParseInt(s, 10, 64)
	}
	n++

	if n == 1 {
		if ttl <= 0 {
			ttl = gocache.NoExpiration
		}
		m.c.Set(k, strconv.FormatInt(n, 10), ttl)
		return n, nil
	}

	// Conserva el TTL restante de la ventana.
	remaining := gocache.NoExpiration
	if _, exp, ok := m.c.GetWithExpiration(k); ok && !exp.IsZero() {
		remaining = time.Until(exp)
	}
	m.c.Set(k, strconv.FormatInt(n, 10), remaining)
	return n, nil
}

func (m *memoryClient) Ping(_ context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}
