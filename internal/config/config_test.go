package config

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_PATH", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load(zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != "scoreboard.db" || cfg.ServerPort != "8080" {
		t.Errorf("defaults: got %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("origins: got %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "99999")

	if _, err := Load(zerolog.Nop()); err == nil {
		t.Error("expected error for out of range port")
	}
}
