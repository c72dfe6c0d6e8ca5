package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/database"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
	"github.com/spf13/viper"
)

const (
	envPrefix            = "MIRAIWALL"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabaseDSN   = "miraiwall.db"
	defaultLogLevel      = "info"
	defaultLogFormat     = "json"
	defaultAdminIssuer   = "miraiwall"
	defaultAdminTokenTTL = 12 * time.Hour
	defaultCapsuleLead   = 24 * time.Hour
	defaultSweepInterval = 5 * time.Minute
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress          string
	DatabaseDriver       string
	DatabaseDSN          string
	LogLevel             string
	LogFormat            string
	DemoKeys             []string
	CapsuleMinLead       time.Duration
	CapsuleSweepInterval time.Duration
	AllowedOrigins       []string
	AdminSigningSecret   string
	AdminIssuer          string
	AdminTokenTTL        time.Duration
}

// AdminEnabled reports whether the admin surface should be mounted.
func (c AppConfig) AdminEnabled() bool {
	return strings.TrimSpace(c.AdminSigningSecret) != ""
}

// Database returns the store connection settings.
func (c AppConfig) Database() database.Config {
	return database.Config{Driver: c.DatabaseDriver, DSN: c.DatabaseDSN}
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", "")
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("demo.keys", keys.DefaultDemoKeys)
	configViper.SetDefault("capsule.min_lead", defaultCapsuleLead)
	configViper.SetDefault("capsule.sweep_interval", defaultSweepInterval)
	configViper.SetDefault("cors.allowed_origins", []string{})
	configViper.SetDefault("admin.signing_secret", "")
	configViper.SetDefault("admin.issuer", defaultAdminIssuer)
	configViper.SetDefault("admin.token_ttl", defaultAdminTokenTTL)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		DatabaseDriver:       strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:          configViper.GetString("database.dsn"),
		LogLevel:             configViper.GetString("log.level"),
		LogFormat:            strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		DemoKeys:             splitList(configViper.GetStringSlice("demo.keys")),
		CapsuleMinLead:       configViper.GetDuration("capsule.min_lead"),
		CapsuleSweepInterval: configViper.GetDuration("capsule.sweep_interval"),
		AllowedOrigins:       splitList(configViper.GetStringSlice("cors.allowed_origins")),
		AdminSigningSecret:   configViper.GetString("admin.signing_secret"),
		AdminIssuer:          configViper.GetString("admin.issuer"),
		AdminTokenTTL:        configViper.GetDuration("admin.token_ttl"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	switch c.DatabaseDriver {
	case "", database.DriverSQLite, database.DriverLibSQL, database.DriverPostgres:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.LogFormat)
	}
	if _, err := keys.NewDemoSet(c.DemoKeys); err != nil {
		return fmt.Errorf("demo.keys: %w", err)
	}
	if c.CapsuleMinLead <= 0 {
		return fmt.Errorf("capsule.min_lead must be positive")
	}
	if c.CapsuleSweepInterval <= 0 {
		return fmt.Errorf("capsule.sweep_interval must be positive")
	}
	if c.AdminEnabled() {
		if strings.TrimSpace(c.AdminIssuer) == "" {
			return fmt.Errorf("admin.issuer is required when admin.signing_secret is set")
		}
		if c.AdminTokenTTL <= 0 {
			return fmt.Errorf("admin.token_ttl must be positive")
		}
	}
	return nil
}

// splitList flattens comma separated entries, which is how lists arrive from the environment.
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
