package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadRequiresCoreVariables(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("missing DATABASE_URL: err = %v", err)
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/emprestimos")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("missing JWT_SECRET: err = %v", err)
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/emprestimos")
	t.Setenv("JWT_SECRET", "segredo")
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("LOGIN_BURST", "")
	t.Setenv("AUDIT_QUEUE_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.LoginBurst != 5 || cfg.LoginPerMinute != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AuditQueueSize != 1024 || cfg.TokenTTL != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	t.Setenv("SERVER_ADDR", ":9000")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("LOGIN_BURST", "2")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load with overrides: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.TokenTTL != time.Hour || cfg.LoginBurst != 2 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}

	t.Setenv("LOGIN_BURST", "muitos")
	if _, err := Load(); err == nil {
		t.Fatal("bad LOGIN_BURST accepted")
	}
}
