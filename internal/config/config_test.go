package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const minimalYAML = `
identity:
  base_url: http://identity.sires.local
`

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeYAML(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Fatalf("Server.Addr = %q", c.Server.Addr)
	}
	if c.Session.CookieName != "sires_sid" {
		t.Fatalf("CookieName = %q", c.Session.CookieName)
	}
	if Dur(c.Session.TTL) != 12*time.Hour {
		t.Fatalf("Session.TTL = %q", c.Session.TTL)
	}
	if c.Lockout.Threshold != 5 || c.Lockout.Multiplier != 2 {
		t.Fatalf("lockout defaults: %+v", c.Lockout)
	}
	if c.Rate.Login.Limit != 10 || c.Rate.Forgot.Limit != 5 {
		t.Fatalf("rate defaults: %+v", c.Rate)
	}
	if c.Store.Driver != "memory" || c.Cache.Driver != "memory" {
		t.Fatalf("drivers: store=%q cache=%q", c.Store.Driver, c.Cache.Driver)
	}
}

func TestLoad_RequiresIdentityBaseURL(t *testing.T) {
	if _, err := Load(writeYAML(t, "server:\n  addr: \":9000\"\n")); err == nil {
		t.Fatalf("Load aceptó config sin identity.base_url")
	}
}

func TestLoad_InvalidDurationRejected(t *testing.T) {
	body := minimalYAML + `
session:
  ttl: doce-horas
`
	if _, err := Load(writeYAML(t, body)); err == nil {
		t.Fatalf("Load aceptó una duración inválida")
	}
}

func TestLoad_InvalidSameSiteRejected(t *testing.T) {
	body := minimalYAML + `
session:
  samesite: Siempre
`
	if _, err := Load(writeYAML(t, body)); err == nil {
		t.Fatalf("Load aceptó un samesite fuera de catálogo")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9191")
	t.Setenv("ADMIN_API_KEY", "clave-admin")
	t.Setenv("LOCKOUT_THRESHOLD", "3")

	c, err := Load(writeYAML(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":9191" {
		t.Fatalf("SERVER_ADDR no aplicó: %q", c.Server.Addr)
	}
	if c.Admin.APIKey != "clave-admin" {
		t.Fatalf("ADMIN_API_KEY no aplicó")
	}
	if c.Lockout.Threshold != 3 {
		t.Fatalf("LOCKOUT_THRESHOLD no aplicó: %d", c.Lockout.Threshold)
	}
}

func TestLoad_ProdForcesSecureCookie(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	c, err := Load(writeYAML(t, minimalYAML+"\nsession:\n  secure: false\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.Session.Secure {
		t.Fatalf("en prod la cookie debe ser Secure")
	}
}
