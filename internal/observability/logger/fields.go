package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar HTTP.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

// Campos estándar de negocio.

func UserID(v string) zap.Field     { return zap.String("user_id", v) }
func Username(v string) zap.Field   { return zap.String("username", v) }
func SessionID(v string) zap.Field  { return zap.String("session_id", v) }
func Permission(v string) zap.Field { return zap.String("permission", v) }
func State(v string) zap.Field      { return zap.String("state", v) }
func ErrorKind(v string) zap.Field  { return zap.String("error_kind", v) }
func Until(v time.Time) zap.Field   { return zap.Time("until", v) }

// Campos estándar de sistema.

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Driver(v string) zap.Field    { return zap.String("driver", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

// Campos genéricos.

func Count(v int) zap.Field             { return zap.Int("count", v) }
func Key(v string) zap.Field            { return zap.String("key", v) }
func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
