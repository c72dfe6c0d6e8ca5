package config

import (
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
)

func TestLoadAppliesDefaults(testContext *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		testContext.Fatalf("expected default address, got %q", cfg.HTTPAddress)
	}
	if cfg.DatabaseDSN != defaultDatabaseDSN {
		testContext.Fatalf("expected default dsn, got %q", cfg.DatabaseDSN)
	}
	if len(cfg.DemoKeys) != len(keys.DefaultDemoKeys) {
		testContext.Fatalf("expected %d default demo keys, got %d", len(keys.DefaultDemoKeys), len(cfg.DemoKeys))
	}
	if cfg.CapsuleMinLead != 24*time.Hour {
		testContext.Fatalf("expected 24h capsule lead, got %s", cfg.CapsuleMinLead)
	}
	if cfg.CapsuleSweepInterval != 5*time.Minute {
		testContext.Fatalf("expected 5m sweep interval, got %s", cfg.CapsuleSweepInterval)
	}
	if cfg.AdminEnabled() {
		testContext.Fatalf("expected admin surface to be disabled without a signing secret")
	}
}

func TestLoadReadsEnvironment(testContext *testing.T) {
	testContext.Setenv("MIRAIWALL_DATABASE_DRIVER", "Postgres")
	testContext.Setenv("MIRAIWALL_DATABASE_DSN", "postgres://wall@localhost/wall")
	testContext.Setenv("MIRAIWALL_DEMO_KEYS", "aaaaa-bbbbb-ccccc-ddddd, EEEEE-FFFFF-GGGGG-HHHHH")
	testContext.Setenv("MIRAIWALL_CAPSULE_MIN_LEAD", "48h")
	testContext.Setenv("MIRAIWALL_CORS_ALLOWED_ORIGINS", "https://wall.example,https://www.wall.example")
	testContext.Setenv("MIRAIWALL_ADMIN_SIGNING_SECRET", "secret")

	cfg, err := Load(NewViper())
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseDriver != "postgres" {
		testContext.Fatalf("expected postgres driver, got %q", cfg.DatabaseDriver)
	}
	if strings.Join(cfg.DemoKeys, "|") != "aaaaa-bbbbb-ccccc-ddddd|EEEEE-FFFFF-GGGGG-HHHHH" {
		testContext.Fatalf("unexpected demo keys %v", cfg.DemoKeys)
	}
	if cfg.CapsuleMinLead != 48*time.Hour {
		testContext.Fatalf("expected 48h capsule lead, got %s", cfg.CapsuleMinLead)
	}
	if len(cfg.AllowedOrigins) != 2 {
		testContext.Fatalf("expected two origins, got %v", cfg.AllowedOrigins)
	}
	if !cfg.AdminEnabled() {
		testContext.Fatalf("expected admin surface to be enabled")
	}
	if cfg.Database().ResolveDriver() != "postgres" {
		testContext.Fatalf("expected database config to carry the driver")
	}
}

func TestLoadRejectsInvalidValues(testContext *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{name: "driver", key: "database.driver", value: "mysql"},
		{name: "dsn", key: "database.dsn", value: " "},
		{name: "log-format", key: "log.format", value: "xml"},
		{name: "demo-key", key: "demo.keys", value: "NOT-A-KEY"},
		{name: "capsule-lead", key: "capsule.min_lead", value: "0s"},
		{name: "sweep-interval", key: "capsule.sweep_interval", value: "-1m"},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set(testCase.key, testCase.value)
			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected %s=%q to be rejected", testCase.key, testCase.value)
			}
		})
	}
}

func TestLoadRequiresAdminTTLWhenEnabled(testContext *testing.T) {
	configViper := NewViper()
	configViper.Set("admin.signing_secret", "secret")
	configViper.Set("admin.token_ttl", "0s")
	if _, err := Load(configViper); err == nil {
		testContext.Fatalf("expected zero admin token ttl to be rejected")
	}
}
