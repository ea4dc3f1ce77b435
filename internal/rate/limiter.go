// Package rate implementa un limiter fixed-window sobre cache.Client. El
// gateway lo aplica a login y a forgot-password por IP; el lockout por
// cuenta vive aparte, en session.Lockout.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/cache"
)

// Result es el veredicto de una ventana.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

// Limiter decide si una key puede ejecutar otra operación.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// FixedWindow cuenta hits por ventana alineada (INCR + TTL vía cache.Incr).
// La key del contador incluye el inicio de la ventana, así el contador
// anterior simplemente expira en vez de resetearse.
type FixedWindow struct {
	cache  cache.Client
	prefix string
	max    int64
	window time.Duration
}

// NewFixedWindow crea un limiter de max hits por window.
func NewFixedWindow(c cache.Client, prefix string, max int, window time.Duration) *FixedWindow {
	if prefix == "" {
		prefix = "rl"
	}
	if window <= 0 {
		window = time.Minute
	}
	return &FixedWindow{cache: c, prefix: prefix, max: int64(max), window: window}
}

func (l *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)
	counterKey := fmt.Sprintf("%s:%s:%d",
		l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	hits, err := l.cache.Incr(ctx, counterKey, l.window)
	if err != nil {
		return Result{}, fmt.Errorf("rate: incr %s: %w", counterKey, err)
	}

	remaining := l.max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits <= l.max,
		Remaining:   remaining,
		CurrentHits: hits,
	}
	if !res.Allowed {
		res.RetryAfter = winStart.Add(l.window).Sub(now)
	}
	return res, nil
}
