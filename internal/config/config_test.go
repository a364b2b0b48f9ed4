package config

import (
	"testing"
	"time"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("KANISA_AUTH_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("missing secret must fail")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KANISA_AUTH_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("addr default: %q", cfg.HTTPAddr)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Errorf("access ttl default: %v", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 14*24*time.Hour {
		t.Errorf("refresh ttl default: %v", cfg.RefreshTTL)
	}
	if cfg.AuditStrict {
		t.Error("audit strict should default off")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KANISA_AUTH_SECRET", "s3cret")
	t.Setenv("KANISA_HTTP_ADDR", ":9999")
	t.Setenv("KANISA_ACCESS_TTL", "5m")
	t.Setenv("KANISA_AUDIT_STRICT", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" || cfg.AccessTTL != 5*time.Minute || !cfg.AuditStrict {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("KANISA_AUTH_SECRET", "s3cret")
	t.Setenv("KANISA_ACCESS_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("bad duration must fail")
	}
	t.Setenv("KANISA_ACCESS_TTL", "-1m")
	if _, err := Load(); err == nil {
		t.Fatal("negative duration must fail")
	}
}
