package tiles

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/content"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	demoKey       = "2Z23H-YA548-FKBU2-8LAUL"
	storedKeyA    = "AAAAA-BBBBB-CCCCC-DDDDD"
	storedKeyB    = "EEEEE-FFFFF-GGGGG-HHHHH"
	unknownKey    = "ZZZZZ-ZZZZZ-ZZZZZ-ZZZZZ"
	baseUnixClock = 1760000000
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(baseUnixClock, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(duration)
}

type testFixture struct {
	service *Service
	db      *gorm.DB
	clock   *testClock
}

type fixtureOption func(*ServiceConfig)

func withIDProvider(provider ids.Provider) fixtureOption {
	return func(cfg *ServiceConfig) {
		cfg.IDProvider = provider
	}
}

func newFixture(t *testing.T, options ...fixtureOption) testFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	require.NoError(t, db.AutoMigrate(&keys.LicenseKey{}, &Tile{}, &TimeCapsule{}))

	demoSet, err := keys.NewDemoSet([]string{demoKey})
	require.NoError(t, err)

	clock := newTestClock()
	cfg := ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: ids.NewUUIDProvider(),
		Content:    content.NewGenerator(rand.NewPCG(3, 5)),
		DemoKeys:   demoSet,
	}
	for _, option := range options {
		option(&cfg)
	}
	service, err := NewService(cfg)
	require.NoError(t, err)
	return testFixture{service: service, db: db, clock: clock}
}

func (f testFixture) seedKeys(t *testing.T, values ...string) {
	t.Helper()
	for index, value := range values {
		record := keys.LicenseKey{ID: fmt.Sprintf("key-%d-%s", index, value[:5]), Key: value}
		require.NoError(t, f.db.Create(&record).Error)
	}
}

func (f testFixture) loadKey(t *testing.T, value string) keys.LicenseKey {
	t.Helper()
	var record keys.LicenseKey
	require.NoError(t, f.db.Where("license_key = ?", value).Take(&record).Error)
	return record
}

func intPointer(value int) *int {
	return &value
}

func claimRequest(key string, page, position int) ClaimRequest {
	return ClaimRequest{LicenseKey: key, PageNumber: intPointer(page), TilePosition: intPointer(position)}
}
