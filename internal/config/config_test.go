package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsAndYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  env: staging
backend:
  base_url: https://api.salvacomida.ar
telegram:
  admin_id: "4242"
storage:
  driver: memory
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if c.App.Env != "staging" {
		t.Fatalf("env = %q", c.App.Env)
	}
	if c.Backend.BaseURL != "https://api.salvacomida.ar" {
		t.Fatalf("base_url = %q", c.Backend.BaseURL)
	}
	if c.Telegram.AdminID != "4242" {
		t.Fatalf("admin_id = %q", c.Telegram.AdminID)
	}
	// defaults
	if c.App.LogLevel != "info" {
		t.Fatalf("log_level = %q", c.App.LogLevel)
	}
	if c.Push.URL != "https://api.salvacomida.ar/v1/ws" {
		t.Fatalf("push url = %q", c.Push.URL)
	}
	if c.BackendTimeout() != 10*time.Second {
		t.Fatalf("timeout = %v", c.BackendTimeout())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "PROD")
	t.Setenv("BACKEND_BASE_URL", "http://otro:9999")
	t.Setenv("ADMIN_TELEGRAM_ID", "1111")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if c.App.Env != "prod" {
		t.Fatalf("env = %q (debe normalizar a lower)", c.App.Env)
	}
	if c.Backend.BaseURL != "http://otro:9999" {
		t.Fatalf("base_url = %q", c.Backend.BaseURL)
	}
	if c.Telegram.AdminID != "1111" {
		t.Fatalf("admin_id = %q", c.Telegram.AdminID)
	}
}

func TestLoad_MissingFileErr(t *testing.T) {
	if _, err := Load("/no/existe/config.yaml"); err == nil {
		t.Fatal("expected error")
	}
}
