package keys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("keys: database handle is required")
	errMissingIDProvider = errors.New("keys: id provider is required")
	// ErrInvalidCount indicates a generation count outside 1..MaxGenerateCount.
	ErrInvalidCount = errors.New("keys: count out of range")
)

// MaxGenerateCount bounds a single GenerateAndStore call.
const MaxGenerateCount = 10000

// ServiceConfig describes the dependencies of the key registry.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service provisions persisted license keys.
type Service struct {
	db         *gorm.DB
	idProvider ids.Provider
	clock      func() time.Time
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the registry.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		clock:      clock,
		logger:     logger,
	}, nil
}

// ImportResult tallies an Import call.
type ImportResult struct {
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
	Invalid    []string `json:"invalid"`
}

// Import normalizes rawKeys and stores the well formed ones as unredeemed.
// Keys that already exist, including repeats within rawKeys, count as duplicates.
func (s *Service) Import(ctx context.Context, rawKeys []string) (ImportResult, error) {
	result := ImportResult{Invalid: []string{}}
	seen := make(map[string]struct{}, len(rawKeys))
	records := make([]LicenseKey, 0, len(rawKeys))
	for _, raw := range rawKeys {
		key := Normalize(raw)
		if key == "" {
			continue
		}
		if !IsValidFormat(key) {
			result.Invalid = append(result.Invalid, raw)
			continue
		}
		if _, ok := seen[key]; ok {
			result.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		id, err := s.idProvider.NewID()
		if err != nil {
			return ImportResult{}, fmt.Errorf("keys: id generation failed: %w", err)
		}
		records = append(records, LicenseKey{ID: id, Key: key, CreatedAt: s.clock().UTC()})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for index := range records {
			created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&records[index])
			if created.Error != nil {
				return created.Error
			}
			if created.RowsAffected == 0 {
				result.Duplicates++
				continue
			}
			result.Inserted++
		}
		return nil
	})
	if err != nil {
		s.logger.Error("license key import failed", zap.Error(err), zap.Int("keys", len(records)))
		return ImportResult{}, fmt.Errorf("keys: import failed: %w", err)
	}

	s.logger.Info("license keys imported",
		zap.Int("inserted", result.Inserted),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("invalid", len(result.Invalid)))
	return result, nil
}

// GenerateAndStore creates count fresh keys and persists them.
func (s *Service) GenerateAndStore(ctx context.Context, count int) ([]string, error) {
	if count <= 0 || count > MaxGenerateCount {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	generated := make([]string, 0, count)
	for len(generated) < count {
		key, err := Generate()
		if err != nil {
			return nil, fmt.Errorf("keys: generation failed: %w", err)
		}
		generated = append(generated, key)
	}
	result, err := s.Import(ctx, generated)
	if err != nil {
		return nil, err
	}
	if result.Inserted != count {
		return nil, fmt.Errorf("keys: stored %d of %d generated keys", result.Inserted, count)
	}
	return generated, nil
}

// Stats summarizes the registry.
type Stats struct {
	Total    int64 `json:"total"`
	Redeemed int64 `json:"redeemed"`
}

// Stats counts stored and redeemed keys.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&LicenseKey{}).Count(&stats.Total).Error; err != nil {
		return Stats{}, fmt.Errorf("keys: count failed: %w", err)
	}
	if err := db.Model(&LicenseKey{}).Where("is_redeemed = ?", true).Count(&stats.Redeemed).Error; err != nil {
		return Stats{}, fmt.Errorf("keys: count redeemed failed: %w", err)
	}
	return stats, nil
}
