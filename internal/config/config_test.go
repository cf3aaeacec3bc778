package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.ResetTokenTTL != time.Hour {
		t.Fatalf("expected reset ttl 1h, got %v", cfg.ResetTokenTTL)
	}
	if cfg.VerificationTokenTTL != 24*time.Hour {
		t.Fatalf("expected verification ttl 24h, got %v", cfg.VerificationTokenTTL)
	}
	if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") || !strings.Contains(cfg.DatabaseURL, "sslmode=disable") {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if !cfg.IsDevelopment() || !cfg.ServeSwagger() {
		t.Fatalf("expected development environment with swagger by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/mirror?sslmode=disable")
	t.Setenv("APP_URL", "https://mirror.example/")
	t.Setenv("RESET_TOKEN_TTL", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("expected 9090, got %q", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://u:p@db:5432/mirror?sslmode=disable" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.AppURL != "https://mirror.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.AppURL)
	}
	if cfg.ResetTokenTTL != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", cfg.ResetTokenTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "port: \"7070\"\nenvironment: production\nadmin_secret: s3cret\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "production" || cfg.IsDevelopment() {
		t.Fatalf("expected production, got %q", cfg.Environment)
	}
	if cfg.ServeSwagger() {
		t.Fatalf("swagger must be off in production unless enabled")
	}
	if cfg.AdminSecret != "s3cret" {
		t.Fatalf("expected admin secret from file, got %q", cfg.AdminSecret)
	}
}
