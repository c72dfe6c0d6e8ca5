package keys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/ids"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&LicenseKey{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: ids.NewUUIDProvider(),
		Clock: func() time.Time {
			return time.Unix(1700000000, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, db
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); !errors.Is(err, errMissingDatabase) {
		t.Fatalf("expected missing database error, got %v", err)
	}
	if _, err := NewService(ServiceConfig{Database: &gorm.DB{}}); !errors.Is(err, errMissingIDProvider) {
		t.Fatalf("expected missing id provider error, got %v", err)
	}
}

func TestImportCountsInsertedDuplicatesAndInvalid(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	first, err := service.Import(ctx, []string{"aaaaa-bbbbb-ccccc-ddddd", "AAAAA-BBBBB-CCCCC-DDDDD", "bogus", "EEEEE-FFFFF-GGGGG-HHHHH"})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if first.Inserted != 2 || first.Duplicates != 1 {
		t.Fatalf("unexpected first import result: %+v", first)
	}
	if len(first.Invalid) != 1 || first.Invalid[0] != "bogus" {
		t.Fatalf("unexpected invalid keys: %v", first.Invalid)
	}

	second, err := service.Import(ctx, []string{"EEEEE-FFFFF-GGGGG-HHHHH"})
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if second.Inserted != 0 || second.Duplicates != 1 {
		t.Fatalf("expected existing key to count as duplicate, got %+v", second)
	}

	var stored LicenseKey
	if err := db.Where("license_key = ?", "AAAAA-BBBBB-CCCCC-DDDDD").Take(&stored).Error; err != nil {
		t.Fatalf("expected normalized key to be stored: %v", err)
	}
	if stored.IsRedeemed || stored.RedeemedAt != nil {
		t.Fatalf("imported keys must start unredeemed")
	}
}

func TestGenerateAndStorePersistsKeys(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	generated, err := service.GenerateAndStore(ctx, 5)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(generated) != 5 {
		t.Fatalf("expected 5 keys, got %d", len(generated))
	}

	stats, err := service.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 5 || stats.Redeemed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestGenerateAndStoreRejectsInvalidCount(t *testing.T) {
	service, _ := newTestService(t)
	for _, count := range []int{0, -1, MaxGenerateCount + 1} {
		if _, err := service.GenerateAndStore(context.Background(), count); !errors.Is(err, ErrInvalidCount) {
			t.Fatalf("expected ErrInvalidCount for %d, got %v", count, err)
		}
	}
}

func TestStatsCountsRedeemedKeys(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()
	if _, err := service.Import(ctx, []string{"AAAAA-BBBBB-CCCCC-DDDDD", "EEEEE-FFFFF-GGGGG-HHHHH"}); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if err := db.Model(&LicenseKey{}).Where("license_key = ?", "AAAAA-BBBBB-CCCCC-DDDDD").Update("is_redeemed", true).Error; err != nil {
		t.Fatalf("failed to mark key redeemed: %v", err)
	}
	stats, err := service.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 2 || stats.Redeemed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
