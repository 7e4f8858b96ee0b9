package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.LoginMaxAttempts != 5 {
		t.Fatalf("unexpected max attempts: %d", cfg.LoginMaxAttempts)
	}
	if cfg.LoginWindow != 15*time.Minute {
		t.Fatalf("unexpected window: %s", cfg.LoginWindow)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCHOOLADMIN_ADDR", ":9090")
	t.Setenv("SCHOOLADMIN_LOGIN_MAX_ATTEMPTS", "10")
	t.Setenv("SCHOOLADMIN_LOGIN_WINDOW", "30m")
	t.Setenv("SCHOOLADMIN_LOGIN_MAX_ATTEMPTS_BOGUS", "x")

	cfg := Load()
	if cfg.Addr != ":9090" {
		t.Fatalf("env addr not applied: %s", cfg.Addr)
	}
	if cfg.LoginMaxAttempts != 10 {
		t.Fatalf("env max attempts not applied: %d", cfg.LoginMaxAttempts)
	}
	if cfg.LoginWindow != 30*time.Minute {
		t.Fatalf("env window not applied: %s", cfg.LoginWindow)
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("SCHOOLADMIN_LOGIN_MAX_ATTEMPTS", "-3")
	t.Setenv("SCHOOLADMIN_LOGIN_WINDOW", "soon")

	cfg := Load()
	if cfg.LoginMaxAttempts != 5 {
		t.Fatalf("invalid attempts should keep default, got %d", cfg.LoginMaxAttempts)
	}
	if cfg.LoginWindow != 15*time.Minute {
		t.Fatalf("invalid window should keep default, got %s", cfg.LoginWindow)
	}
}
