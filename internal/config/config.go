package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr   = ":8080"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14
)

// Config carries all runtime settings, read once at startup from the
// environment. Nothing else in the service touches os.Getenv.
type Config struct {
	HTTPAddr    string
	PostgresDSN string
	AuthSecret  string
	Issuer      string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	AuditStrict bool
	RateBurst   int
	RatePerSec  int
}

// Load reads configuration from KANISA_* environment variables.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:    envOr("KANISA_HTTP_ADDR", defaultHTTPAddr),
		PostgresDSN: os.Getenv("KANISA_PG_DSN"),
		AuthSecret:  strings.TrimSpace(os.Getenv("KANISA_AUTH_SECRET")),
		Issuer:      envOr("KANISA_ISSUER", "kanisa"),
		AccessTTL:   defaultAccessTTL,
		RefreshTTL:  defaultRefreshTTL,
		RateBurst:   20,
		RatePerSec:  10,
	}
	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("KANISA_AUTH_SECRET is required")
	}
	var err error
	if cfg.AccessTTL, err = envDuration("KANISA_ACCESS_TTL", defaultAccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("KANISA_REFRESH_TTL", defaultRefreshTTL); err != nil {
		return Config{}, err
	}
	if raw := os.Getenv("KANISA_AUDIT_STRICT"); raw != "" {
		strict, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("KANISA_AUDIT_STRICT: %w", err)
		}
		cfg.AuditStrict = strict
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
