package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWithSQLite(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("TIMEZONE", "UTC")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TCPAddr != ":5555" || cfg.HTTPAddr != ":8081" || cfg.SuggestionCount != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	p, err := cfg.Policy()
	if err != nil {
		t.Fatal(err)
	}
	if p.SlotDuration != 2*time.Hour || p.Grace != 15*time.Minute || p.Hours.Open != 11*60 || p.Hours.Close != 23*60 {
		t.Fatalf("policy = %+v", p)
	}
	if p.Location != time.UTC {
		t.Fatalf("location = %v", p.Location)
	}
	b := cfg.Billing()
	if b.UnitPrice != 10000 || b.SubscriberDiscountPercent != 10 {
		t.Fatalf("billing = %+v", b)
	}
}

func TestLoadReportsMissingMySQLSettings(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")
	_, err := Load()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, k := range []string{"DB_HOST", "DB_NAME", "DB_USER", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), k) {
			t.Errorf("error %q does not name %s", err, k)
		}
	}
}

func TestLoadRejectsBadHours(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("OPEN_TIME", "22:00")
	t.Setenv("CLOSE_TIME", "10:00")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for closing before opening")
	}
}

func TestRateLimitNormalize(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 || cfg.RefillTokens != 1 || cfg.RefillInterval != 2*time.Second || cfg.TTL != 10*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("X_FLAG", "off")
	if envBool("X_FLAG", true) {
		t.Fatal("off should be false")
	}
	t.Setenv("X_FLAG", "maybe")
	if !envBool("X_FLAG", true) {
		t.Fatal("unknown value should fall back to the default")
	}
}
