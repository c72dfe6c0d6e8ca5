package tiles

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// MessageDemoClaim accompanies claims made with a demo key.
	MessageDemoClaim = "Demo tile claimed successfully! (Not permanently saved)"
	// MessagePersistentClaim accompanies claims that were stored.
	MessagePersistentClaim = "Tile claimed successfully and permanently saved!"

	queryLicenseKey       = "license_key = ?"
	queryUnredeemedKeyID  = "id = ? AND is_redeemed = ?"
	reasonMissingFields   = "missing_fields"
	reasonInvalidFormat   = "invalid_format"
	reasonInvalidCoords   = "invalid_coordinates"
	reasonAlreadyRedeemed = "already_redeemed"
	reasonInvalidKey      = "invalid_key"
	reasonTileTaken       = "tile_taken"
	reasonKeyLookupFailed = "key_lookup_failed"
	reasonTileCheckFailed = "tile_check_failed"
	reasonRedeemFailed    = "redeem_failed"
	reasonIDFailed        = "id_generation_failed"
	reasonTileInsert      = "tile_insert_failed"
	reasonTransaction     = "transaction_failed"
)

// ClaimRequest carries a claim as submitted. Nil coordinates mean the caller omitted them.
type ClaimRequest struct {
	LicenseKey   string
	PageNumber   *int
	TilePosition *int
}

// ClaimResult is the outcome of a successful claim.
type ClaimResult struct {
	Tile    ClaimedTile
	Message string
}

// ClaimTile redeems a license key for the tile at the requested coordinates.
//
// Persisted keys are consumed and the tile written in one transaction, so a key is
// never left redeemed without its tile. Demo keys produce an ephemeral tile and
// leave the store untouched.
func (s *Service) ClaimTile(ctx context.Context, request ClaimRequest) (ClaimResult, error) {
	rawKey := strings.TrimSpace(request.LicenseKey)
	if rawKey == "" || request.PageNumber == nil || request.TilePosition == nil {
		return ClaimResult{}, newServiceError(opClaimTile, reasonMissingFields, ErrMissingFields)
	}

	key := keys.Normalize(rawKey)
	if !keys.IsValidFormat(key) {
		return ClaimResult{}, newServiceError(opClaimTile, reasonInvalidFormat, ErrInvalidFormat)
	}

	coordinates, err := NewCoordinates(*request.PageNumber, *request.TilePosition)
	if err != nil {
		return ClaimResult{}, newServiceError(opClaimTile, reasonInvalidCoords, err)
	}

	if s.db == nil {
		s.logError(opClaimTile, reasonMissingDatabase, errMissingDatabase)
		return ClaimResult{}, newServiceError(opClaimTile, reasonMissingDatabase, storeFailure(errMissingDatabase))
	}

	var result ClaimResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored keys.LicenseKey
		found := true
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(queryLicenseKey, key).
			Take(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
		} else if err != nil {
			s.logError(opClaimTile, reasonKeyLookupFailed, err, coordinateFields(coordinates)...)
			return newServiceError(opClaimTile, reasonKeyLookupFailed, storeFailure(err))
		}

		if found && stored.IsRedeemed {
			return newServiceError(opClaimTile, reasonAlreadyRedeemed, ErrAlreadyRedeemed)
		}
		if s.demoKeys.Contains(key) {
			result = s.demoClaim(key, coordinates)
			return nil
		}
		if !found {
			return newServiceError(opClaimTile, reasonInvalidKey, ErrInvalidKey)
		}

		claimed, err := s.redeemAndInsert(tx, stored, coordinates)
		if err != nil {
			return err
		}
		result = ClaimResult{Tile: claimedFromTile(claimed), Message: MessagePersistentClaim}
		return nil
	})
	if txErr != nil {
		var serviceErr *ServiceError
		if errors.As(txErr, &serviceErr) {
			s.loggerOrDefault().Debug("tile claim rejected",
				append(coordinateFields(coordinates), zap.String("code", serviceErr.Code()))...)
			return ClaimResult{}, txErr
		}
		s.logError(opClaimTile, reasonTransaction, txErr, coordinateFields(coordinates)...)
		return ClaimResult{}, newServiceError(opClaimTile, reasonTransaction, storeFailure(txErr))
	}

	s.loggerOrDefault().Info("tile claimed",
		append(coordinateFields(coordinates),
			zap.Bool("persistent", result.Tile.Persistent),
			zap.String("tile_id", result.Tile.ID))...)
	return result, nil
}

func (s *Service) demoClaim(key string, coordinates Coordinates) ClaimResult {
	return ClaimResult{
		Tile: ClaimedTile{
			ID:           DemoTileID(coordinates),
			PageNumber:   coordinates.PageNumber,
			TilePosition: coordinates.TilePosition,
			Content:      s.content.Generate(coordinates.PageNumber, coordinates.TilePosition),
			ClaimedAt:    s.now(),
			KeyReference: key,
			Persistent:   false,
		},
		Message: MessageDemoClaim,
	}
}

// redeemAndInsert consumes stored and writes the tile. It must run inside a transaction.
func (s *Service) redeemAndInsert(tx *gorm.DB, stored keys.LicenseKey, coordinates Coordinates) (Tile, error) {
	var occupied int64
	if err := tx.Model(&Tile{}).
		Where(queryCoordinates, coordinates.PageNumber, coordinates.TilePosition).
		Count(&occupied).Error; err != nil {
		s.logError(opClaimTile, reasonTileCheckFailed, err, coordinateFields(coordinates)...)
		return Tile{}, newServiceError(opClaimTile, reasonTileCheckFailed, storeFailure(err))
	}
	if occupied > 0 {
		return Tile{}, newServiceError(opClaimTile, reasonTileTaken, ErrTileTaken)
	}

	claimedAt := s.now()
	redeemed := tx.Model(&keys.LicenseKey{}).
		Where(queryUnredeemedKeyID, stored.ID, false).
		Updates(map[string]any{"is_redeemed": true, "redeemed_at": claimedAt})
	if redeemed.Error != nil {
		s.logError(opClaimTile, reasonRedeemFailed, redeemed.Error, coordinateFields(coordinates)...)
		return Tile{}, newServiceError(opClaimTile, reasonRedeemFailed, storeFailure(redeemed.Error))
	}
	if redeemed.RowsAffected == 0 {
		return Tile{}, newServiceError(opClaimTile, reasonAlreadyRedeemed, ErrAlreadyRedeemed)
	}

	tileID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opClaimTile, reasonIDFailed, err, coordinateFields(coordinates)...)
		return Tile{}, newServiceError(opClaimTile, reasonIDFailed, storeFailure(err))
	}

	tile := Tile{
		ID:           tileID,
		PageNumber:   coordinates.PageNumber,
		TilePosition: coordinates.TilePosition,
		Content:      s.content.Generate(coordinates.PageNumber, coordinates.TilePosition),
		LicenseKeyID: stored.ID,
		ClaimedAt:    claimedAt,
	}
	if err := tx.Create(&tile).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Tile{}, newServiceError(opClaimTile, reasonTileTaken, ErrTileTaken)
		}
		s.logError(opClaimTile, reasonTileInsert, err, coordinateFields(coordinates)...)
		return Tile{}, newServiceError(opClaimTile, reasonTileInsert, storeFailure(err))
	}
	return tile, nil
}
