package tiles

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/content"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimTileValidationOrder(t *testing.T) {
	fixture := newFixture(t)
	testCases := []struct {
		name     string
		request  ClaimRequest
		wantErr  error
		wantCode string
	}{
		{
			name:     "missing-key",
			request:  ClaimRequest{PageNumber: intPointer(0), TilePosition: intPointer(0)},
			wantErr:  ErrMissingFields,
			wantCode: "tiles.claim_tile.missing_fields",
		},
		{
			name:     "missing-page-before-format",
			request:  ClaimRequest{LicenseKey: "bogus", TilePosition: intPointer(0)},
			wantErr:  ErrMissingFields,
			wantCode: "tiles.claim_tile.missing_fields",
		},
		{
			name:     "missing-position-before-store",
			request:  ClaimRequest{LicenseKey: unknownKey, PageNumber: intPointer(0)},
			wantErr:  ErrMissingFields,
			wantCode: "tiles.claim_tile.missing_fields",
		},
		{
			name:     "blank-key",
			request:  claimRequest("   ", 0, 0),
			wantErr:  ErrMissingFields,
			wantCode: "tiles.claim_tile.missing_fields",
		},
		{
			name:     "invalid-format",
			request:  claimRequest("AAAAA-BBBBB-CCCCC", 0, 0),
			wantErr:  ErrInvalidFormat,
			wantCode: "tiles.claim_tile.invalid_format",
		},
		{
			name:     "format-before-coordinates",
			request:  claimRequest("AAAAA", -1, 99),
			wantErr:  ErrInvalidFormat,
			wantCode: "tiles.claim_tile.invalid_format",
		},
		{
			name:     "negative-page",
			request:  claimRequest(demoKey, -1, 0),
			wantErr:  ErrInvalidCoordinates,
			wantCode: "tiles.claim_tile.invalid_coordinates",
		},
		{
			name:     "position-past-page",
			request:  claimRequest(demoKey, 0, PageSize),
			wantErr:  ErrInvalidCoordinates,
			wantCode: "tiles.claim_tile.invalid_coordinates",
		},
		{
			name:     "unknown-key",
			request:  claimRequest(unknownKey, 0, 0),
			wantErr:  ErrInvalidKey,
			wantCode: "tiles.claim_tile.invalid_key",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := fixture.service.ClaimTile(context.Background(), testCase.request)
			require.ErrorIs(t, err, testCase.wantErr)
			var serviceErr *ServiceError
			require.True(t, errors.As(err, &serviceErr))
			assert.Equal(t, testCase.wantCode, serviceErr.Code())
		})
	}
}

func TestClaimTileRedeemsPersistedKeyOnce(t *testing.T) {
	fixture := newFixture(t)
	fixture.seedKeys(t, storedKeyA)
	ctx := context.Background()

	result, err := fixture.service.ClaimTile(ctx, claimRequest(storedKeyA, 2, 7))
	require.NoError(t, err)
	assert.Equal(t, MessagePersistentClaim, result.Message)
	assert.True(t, result.Tile.Persistent)
	assert.Equal(t, 2, result.Tile.PageNumber)
	assert.Equal(t, 7, result.Tile.TilePosition)
	assert.True(t, content.HasKnownLabel(result.Tile.Content))
	assert.Equal(t, fixture.clock.Now(), result.Tile.ClaimedAt)

	stored := fixture.loadKey(t, storedKeyA)
	assert.True(t, stored.IsRedeemed)
	require.NotNil(t, stored.RedeemedAt)
	assert.Equal(t, stored.ID, result.Tile.KeyReference)

	var tile Tile
	require.NoError(t, fixture.db.Where("id = ?", result.Tile.ID).Take(&tile).Error)
	assert.Equal(t, stored.ID, tile.LicenseKeyID)
	assert.Equal(t, result.Tile.Content, tile.Content)

	_, err = fixture.service.ClaimTile(ctx, claimRequest(storedKeyA, 2, 8))
	require.ErrorIs(t, err, ErrAlreadyRedeemed)

	var count int64
	require.NoError(t, fixture.db.Model(&Tile{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestClaimTileNormalizesKeyCase(t *testing.T) {
	fixture := newFixture(t)
	fixture.seedKeys(t, storedKeyA)

	result, err := fixture.service.ClaimTile(context.Background(), claimRequest("  aaaaa-bbbbb-ccccc-ddddd ", 0, 0))
	require.NoError(t, err)
	assert.True(t, result.Tile.Persistent)
}

func TestClaimTileDemoKeyNeverConsumes(t *testing.T) {
	fixture := newFixture(t)
	ctx := context.Background()

	for attempt := 0; attempt < 3; attempt++ {
		result, err := fixture.service.ClaimTile(ctx, claimRequest(demoKey, 0, 3))
		require.NoError(t, err)
		assert.False(t, result.Tile.Persistent)
		assert.Equal(t, "demo-tile-0-3", result.Tile.ID)
		assert.Equal(t, demoKey, result.Tile.KeyReference)
		assert.Equal(t, MessageDemoClaim, result.Message)
		assert.True(t, content.HasKnownLabel(result.Tile.Content))
	}

	result, err := fixture.service.ClaimTile(ctx, claimRequest(demoKey, 4, 24))
	require.NoError(t, err)
	assert.Equal(t, "demo-tile-4-24", result.Tile.ID)

	var tileCount, keyCount int64
	require.NoError(t, fixture.db.Model(&Tile{}).Count(&tileCount).Error)
	require.NoError(t, fixture.db.Model(&keys.LicenseKey{}).Count(&keyCount).Error)
	assert.Zero(t, tileCount)
	assert.Zero(t, keyCount)
}

func TestClaimTileDemoKeyOnPersistedTileStaysEphemeral(t *testing.T) {
	fixture := newFixture(t)
	fixture.seedKeys(t, storedKeyA)
	ctx := context.Background()

	_, err := fixture.service.ClaimTile(ctx, claimRequest(storedKeyA, 0, 0))
	require.NoError(t, err)

	result, err := fixture.service.ClaimTile(ctx, claimRequest(demoKey, 0, 0))
	require.NoError(t, err)
	assert.False(t, result.Tile.Persistent)
}

func TestClaimTileRedeemedDemoKeyInStoreIsRejected(t *testing.T) {
	fixture := newFixture(t)
	fixture.seedKeys(t, demoKey)
	require.NoError(t, fixture.db.Model(&keys.LicenseKey{}).
		Where("license_key = ?", demoKey).
		Update("is_redeemed", true).Error)

	_, err := fixture.service.ClaimTile(context.Background(), claimRequest(demoKey, 0, 0))
	require.ErrorIs(t, err, ErrAlreadyRedeemed)
}

func TestClaimTileRejectsTakenCoordinatesWithoutConsumingKey(t *testing.T) {
	fixture := newFixture(t)
	fixture.seedKeys(t, storedKeyA, storedKeyB)
	ctx := context.Background()

	_, err := fixture.service.ClaimTile(ctx, claimRequest(storedKeyA, 1, 1))
	require.NoError(t, err)

	_, err = fixture.service.ClaimTile(ctx, claimRequest(storedKeyB, 1, 1))
	require.ErrorIs(t, err, ErrTileTaken)

	assert.False(t, fixture.loadKey(t, storedKeyB).IsRedeemed)

	_, err = fixture.service.ClaimTile(ctx, claimRequest(storedKeyB, 1, 2))
	require.NoError(t, err)
}

func TestClaimTileRollsBackWhenTileInsertFails(t *testing.T) {
	fixture := newFixture(t, withIDProvider(ids.NewSequence()))
	fixture.seedKeys(t, storedKeyA)

	_, err := fixture.service.ClaimTile(context.Background(), claimRequest(storedKeyA, 0, 0))
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, ids.ErrSequenceExhausted)

	stored := fixture.loadKey(t, storedKeyA)
	assert.False(t, stored.IsRedeemed)
	assert.Nil(t, stored.RedeemedAt)
}

func TestRedeemAndInsertDetectsLostRace(t *testing.T) {
	fixture := newFixture(t)
	fixture.seedKeys(t, storedKeyA)
	stale := fixture.loadKey(t, storedKeyA)

	require.NoError(t, fixture.db.Model(&keys.LicenseKey{}).
		Where("id = ?", stale.ID).
		Update("is_redeemed", true).Error)

	coordinates, err := NewCoordinates(0, 0)
	require.NoError(t, err)
	_, err = fixture.service.redeemAndInsert(fixture.db, stale, coordinates)
	require.ErrorIs(t, err, ErrAlreadyRedeemed)

	var count int64
	require.NoError(t, fixture.db.Model(&Tile{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestClaimTileConcurrentRedemptionSucceedsOnce(t *testing.T) {
	fixture := newFixture(t)
	fixture.seedKeys(t, storedKeyA)

	const attempts = 8
	var waitGroup sync.WaitGroup
	errs := make([]error, attempts)
	for attempt := 0; attempt < attempts; attempt++ {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			_, errs[index] = fixture.service.ClaimTile(context.Background(), claimRequest(storedKeyA, 0, index))
		}(attempt)
	}
	waitGroup.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyRedeemed)
	}
	assert.Equal(t, 1, successes)
}

func TestClaimTileWithoutDatabaseReportsStoreUnavailable(t *testing.T) {
	service := &Service{}
	_, err := service.ClaimTile(context.Background(), claimRequest(unknownKey, 0, 0))
	require.ErrorIs(t, err, ErrStoreUnavailable)

	var serviceErr *ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "tiles.claim_tile.missing_database", serviceErr.Code())
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	require.Error(t, err)
	var serviceErr *ServiceError
	require.True(t, errors.As(err, &serviceErr))
	assert.Equal(t, "tiles.service.new.missing_database", serviceErr.Code())
}
