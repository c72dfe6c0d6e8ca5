package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeLicenseKeys = "2026-09-14_normalize_license_keys"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeLicenseKeys, apply: normalizeLicenseKeys},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeLicenseKeys rewrites keys imported before normalization to their
// canonical form. Rows whose canonical form already exists are left alone.
func normalizeLicenseKeys(db *gorm.DB) error {
	var stored []keys.LicenseKey
	if err := db.Find(&stored).Error; err != nil {
		return err
	}

	existing := make(map[string]struct{}, len(stored))
	for _, record := range stored {
		existing[record.Key] = struct{}{}
	}

	for _, record := range stored {
		canonical := keys.Normalize(record.Key)
		if canonical == record.Key {
			continue
		}
		if _, taken := existing[canonical]; taken {
			continue
		}
		if err := db.Model(&keys.LicenseKey{}).
			Where("id = ?", record.ID).
			Update("license_key", canonical).Error; err != nil {
			return err
		}
		existing[canonical] = struct{}{}
	}
	return nil
}
