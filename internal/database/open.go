package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/tiles"
	sqlite "github.com/glebarez/sqlite"
	_ "github.com/lib/pq"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverLibSQL   = "libsql"
	DriverPostgres = "postgres"
)

var (
	// ErrMissingDSN indicates no connection string was configured.
	ErrMissingDSN = errors.New("database dsn is required")
	// ErrUnsupportedDriver indicates the configured driver is unknown.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// Config selects the driver and connection string.
type Config struct {
	Driver string
	DSN    string
}

// ResolveDriver returns the effective driver. An empty driver falls back to
// libsql for remote libsql URLs and to sqlite otherwise.
func (c Config) ResolveDriver() string {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver != "" {
		return driver
	}
	if strings.HasPrefix(c.DSN, "libsql://") || strings.HasPrefix(c.DSN, "wss://") {
		return DriverLibSQL
	}
	return DriverSQLite
}

// Open connects to the configured store and brings its schema up to date.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, ErrMissingDSN
	}

	driver := cfg.ResolveDriver()
	dialector, err := dialectorFor(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", driver))
	}
	return db, nil
}

// Migrate creates the schema and applies pending named migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&keys.LicenseKey{}, &tiles.Tile{}, &tiles.TimeCapsule{}, &migrationRecord{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return applyMigrations(db, logger)
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	case DriverLibSQL:
		return &sqlite.Dialector{DriverName: DriverLibSQL, DSN: dsn}, nil
	case DriverPostgres:
		return postgres.New(postgres.Config{DriverName: DriverPostgres, DSN: dsn}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}
