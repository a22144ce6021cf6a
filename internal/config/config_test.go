package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8090" {
		t.Fatalf("unexpected default addr: %s", cfg.Addr)
	}
	if cfg.HandshakeTimeout != 10*time.Second {
		t.Fatalf("unexpected handshake timeout: %v", cfg.HandshakeTimeout)
	}
	if cfg.NotifierURL != "" {
		t.Fatalf("expected notifier disabled by default, got %q", cfg.NotifierURL)
	}
}

func TestLoadParsesEnvironment(t *testing.T) {
	t.Setenv("GATEWAY_ADDR", ":9999")
	t.Setenv("NOTIFIER_URL", "http://notifier.internal:3000/")
	t.Setenv("ALLOWED_ORIGINS", "https://app.promptvc.dev, https://staging.promptvc.dev")
	t.Setenv("HANDSHAKE_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_PER_SECOND", "5")
	t.Setenv("RATE_LIMIT_BURST", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.NotifierURL != "http://notifier.internal:3000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.NotifierURL)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://staging.promptvc.dev" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.HandshakeTimeout != 3*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.HandshakeTimeout)
	}
	if cfg.RateLimitPerSecond != 5 || cfg.RateLimitBurst != 50 {
		t.Fatalf("unexpected rate limit: %d/%d", cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]Config{
		"empty addr":      {Addr: " ", RateLimitPerSecond: 1, RateLimitBurst: 1, HandshakeTimeout: time.Second},
		"zero rate":       {Addr: ":1", RateLimitPerSecond: 0, RateLimitBurst: 1, HandshakeTimeout: time.Second},
		"burst too small": {Addr: ":1", RateLimitPerSecond: 10, RateLimitBurst: 1, HandshakeTimeout: time.Second},
		"bad notifier":    {Addr: ":1", RateLimitPerSecond: 1, RateLimitBurst: 1, HandshakeTimeout: time.Second, NotifierURL: "notifier.internal"},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("HANDSHAKE_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
