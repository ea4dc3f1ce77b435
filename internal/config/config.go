// Package config carga la configuración del gateway desde YAML con
// defaults sanos y overrides por variables de entorno.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	// Identity apunta al backend de identidad de SIRES (el que emite los
	// tokens). El gateway es su único cliente; el navegador nunca le habla
	// directo.
	Identity struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"identity"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		Domain     string `yaml:"domain"`
		SameSite   string `yaml:"samesite"` // Lax | Strict | None
		Secure     bool   `yaml:"secure"`
		TTL        string `yaml:"ttl"`
		// RefreshWithin: renovar proactivamente cuando al access token le
		// queda menos que esto.
		RefreshWithin string `yaml:"refresh_within"`
	} `yaml:"session"`

	Store struct {
		Driver string `yaml:"driver"` // memory | redis | postgres
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Postgres struct {
			DSN string `yaml:"dsn"`
		} `yaml:"postgres"`
	} `yaml:"store"`

	// Cache respalda rate limiting y lockout. Independiente del store de
	// sesiones: en un solo nodo basta memory aunque las sesiones vivan en
	// Postgres.
	Cache struct {
		Driver string `yaml:"driver"` // memory | redis
		Redis  struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Lockout struct {
		Threshold  int     `yaml:"threshold"`
		BaseWindow string  `yaml:"base_window"`
		Multiplier float64 `yaml:"multiplier"`
		MaxWindow  string  `yaml:"max_window"`
	} `yaml:"lockout"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
		Forgot struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"forgot"`
	} `yaml:"rate"`

	Admin struct {
		// APIKey protege /v1/admin. Vacío = admin API deshabilitada.
		APIKey string `yaml:"api_key"`
	} `yaml:"admin"`

	Log struct {
		Env   string `yaml:"env"` // dev | prod
		Level string `yaml:"level"`
	} `yaml:"log"`

	Prefs struct {
		Path string `yaml:"path"`
	} `yaml:"prefs"`
}

// Load lee y valida la configuración desde path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Identity.Timeout == "" {
		c.Identity.Timeout = "10s"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "sires_sid"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "Lax"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "12h"
	}
	if c.Session.RefreshWithin == "" {
		c.Session.RefreshWithin = "90s"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Lockout.Threshold == 0 {
		c.Lockout.Threshold = 5
	}
	if c.Lockout.BaseWindow == "" {
		c.Lockout.BaseWindow = "1m"
	}
	if c.Lockout.Multiplier == 0 {
		c.Lockout.Multiplier = 2
	}
	if c.Lockout.MaxWindow == "" {
		c.Lockout.MaxWindow = "30m"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if c.Rate.Forgot.Limit == 0 {
		c.Rate.Forgot.Limit = 5
	}
	if c.Rate.Forgot.Window == "" {
		c.Rate.Forgot.Window = "10m"
	}
	if c.Log.Env == "" {
		c.Log.Env = "dev"
	}
	if c.Prefs.Path == "" {
		c.Prefs.Path = "./data/prefs.json"
	}

	c.applyEnvOverrides()

	if err := c.validate(); err != nil {
		return nil, err
	}

	// En prod la cookie de sesión siempre viaja Secure.
	if strings.EqualFold(c.App.Env, "prod") {
		c.Session.Secure = true
	}

	return &c, nil
}

// ---- Helpers de duración ----

// Dur parsea una duración ya validada por Load. Panic sobre texto inválido
// solo puede ocurrir si alguien mutó el Config después de Load.
func Dur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("config: duración inválida %q", s))
	}
	return d
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Identity.BaseURL) == "" {
		return fmt.Errorf("config: identity.base_url es obligatorio")
	}
	durs := map[string]string{
		"identity.timeout":       c.Identity.Timeout,
		"session.ttl":            c.Session.TTL,
		"session.refresh_within": c.Session.RefreshWithin,
		"lockout.base_window":    c.Lockout.BaseWindow,
		"lockout.max_window":     c.Lockout.MaxWindow,
		"rate.login.window":      c.Rate.Login.Window,
		"rate.forgot.window":     c.Rate.Forgot.Window,
	}
	for name, v := range durs {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	switch strings.ToLower(c.Session.SameSite) {
	case "lax", "strict", "none":
	default:
		return fmt.Errorf("config: session.samesite inválido %q", c.Session.SameSite)
	}
	if c.Lockout.Multiplier < 1 {
		return fmt.Errorf("config: lockout.multiplier debe ser >= 1")
	}
	return nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides pisa el YAML con variables de entorno. Los secretos
// (admin key, passwords) normalmente llegan por aquí, no por archivo.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvStr("IDENTITY_BASE_URL"); ok {
		c.Identity.BaseURL = v
	}
	if v, ok := getEnvStr("IDENTITY_TIMEOUT"); ok {
		c.Identity.Timeout = v
	}
	if v, ok := getEnvStr("SESSION_COOKIE_NAME"); ok {
		c.Session.CookieName = v
	}
	if v, ok := getEnvStr("SESSION_DOMAIN"); ok {
		c.Session.Domain = v
	}
	if v, ok := getEnvBool("SESSION_SECURE"); ok {
		c.Session.Secure = v
	}
	if v, ok := getEnvStr("SESSION_TTL"); ok {
		c.Session.TTL = v
	}
	if v, ok := getEnvStr("STORE_DRIVER"); ok {
		c.Store.Driver = v
	}
	if v, ok := getEnvStr("STORE_REDIS_ADDR"); ok {
		c.Store.Redis.Addr = v
	}
	if v, ok := getEnvStr("STORE_REDIS_PASSWORD"); ok {
		c.Store.Redis.Password = v
	}
	if v, ok := getEnvInt("STORE_REDIS_DB"); ok {
		c.Store.Redis.DB = v
	}
	if v, ok := getEnvStr("STORE_PG_DSN"); ok {
		c.Store.Postgres.DSN = v
	}
	if v, ok := getEnvStr("CACHE_DRIVER"); ok {
		c.Cache.Driver = v
	}
	if v, ok := getEnvStr("CACHE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("CACHE_REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("LOCKOUT_THRESHOLD"); ok {
		c.Lockout.Threshold = v
	}
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("ADMIN_API_KEY"); ok {
		c.Admin.APIKey = v
	}
	if v, ok := getEnvStr("LOG_ENV"); ok {
		c.Log.Env = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("PREFS_PATH"); ok {
		c.Prefs.Path = v
	}
}
