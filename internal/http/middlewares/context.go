package middlewares

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey int

const (
	ridKey ctxKey = iota
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ridKey, rid)
}

// GetRequestID retorna el request ID del contexto, o "".
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ridKey).(string); ok {
		return v
	}
	return ""
}

// clientIP extrae la IP del cliente respetando X-Forwarded-For (primer hop).
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
