package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the gateway process needs at startup.
type Config struct {
	// Listen address for the WebSocket and probe endpoints.
	Addr string

	// Datastore DSN. Empty disables the pg collaborator (tests only).
	PostgresDSN string

	// Base URL of the external notifier microservice. Empty disables dispatch.
	NotifierURL string

	// NATS URL for the leak-event bus. Empty disables publishing.
	NatsURL string

	// Origins allowed to open dashboard connections. Empty allows all.
	AllowedOrigins []string

	// Handshake rate limit, token bucket per client IP.
	RateLimitPerSecond int
	RateLimitBurst     int

	// Time allowed for a connection handshake, including the datastore round-trip.
	HandshakeTimeout time.Duration

	// Notifier HTTP client timeout.
	NotifyTimeout time.Duration
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:               getEnvOrDefault("GATEWAY_ADDR", ":8090"),
		PostgresDSN:        os.Getenv("PVC_PG_DSN"),
		NotifierURL:        strings.TrimRight(os.Getenv("NOTIFIER_URL"), "/"),
		NatsURL:            os.Getenv("NATS_URL"),
		RateLimitPerSecond: 10,
		RateLimitBurst:     20,
	}

	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	var err error
	if cfg.RateLimitPerSecond, err = intEnv("RATE_LIMIT_PER_SECOND", cfg.RateLimitPerSecond); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return nil, err
	}
	if cfg.HandshakeTimeout, err = durationEnv("HANDSHAKE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.NotifyTimeout, err = durationEnv("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the gateway cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("GATEWAY_ADDR is required")
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be positive")
	}
	if c.RateLimitBurst < c.RateLimitPerSecond {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least RATE_LIMIT_PER_SECOND")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("HANDSHAKE_TIMEOUT must be positive")
	}
	if c.NotifierURL != "" && !strings.HasPrefix(c.NotifierURL, "http") {
		return fmt.Errorf("NOTIFIER_URL must be an http(s) URL")
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
