package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: "0123456789abcdef-test"
server:
  port: 9090
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.Timetable.DueSoonDays != 7 {
		t.Errorf("due soon days = %d, want 7", cfg.Timetable.DueSoonDays)
	}
	if cfg.Storage.Enabled() {
		t.Error("storage should be disabled without endpoint")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: "0123456789abcdef-test"
`)
	t.Setenv("WORKFLOW_SERVER_PORT", "7070")
	t.Setenv("WORKFLOW_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: 8080},
			Database:  DatabaseConfig{Timezone: "UTC"},
			Auth:      AuthConfig{JWTSecret: "0123456789abcdef", TokenTTL: time.Hour},
			Timetable: TimetableConfig{MaxFileBytes: 1, Timezone: "Asia/Bangkok"},
		}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(c *Config){
		"short secret":      func(c *Config) { c.Auth.JWTSecret = "short" },
		"zero ttl":          func(c *Config) { c.Auth.TokenTTL = 0 },
		"bad port":          func(c *Config) { c.Server.Port = 70000 },
		"bad timezone":      func(c *Config) { c.Database.Timezone = "Mars/Olympus" },
		"storage no keys":   func(c *Config) { c.Storage.Endpoint = "localhost:9000" },
		"zero upload limit": func(c *Config) { c.Timetable.MaxFileBytes = 0 },
		"bad import zone":   func(c *Config) { c.Timetable.Timezone = "Nowhere/City" },
	}
	for name, mutate := range cases {
		c := valid()
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoad_SecretFromEnvOnly(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")
	t.Setenv("WORKFLOW_AUTH_JWT_SECRET", "env-secret-0123456789")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret-0123456789" {
		t.Errorf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
}
