package tiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CapsuleContentType enumerates what a time capsule may hold.
type CapsuleContentType string

const (
	CapsuleContentText  CapsuleContentType = "text"
	CapsuleContentImage CapsuleContentType = "image"
	CapsuleContentAudio CapsuleContentType = "audio"
	CapsuleContentFile  CapsuleContentType = "file"
)

// CapsuleState is derived from the clock on every read.
type CapsuleState string

const (
	CapsuleStateSealed   CapsuleState = "sealed"
	CapsuleStateUnlocked CapsuleState = "unlocked"
)

const (
	// MaxCapsuleDataBytes bounds the stored capsule payload.
	MaxCapsuleDataBytes = 5 << 20
	maxTeaserLength     = 512
	maxFilenameLength   = 255

	reasonTileLookupFailed    = "tile_lookup_failed"
	reasonTileNotFound        = "tile_not_found"
	reasonCapsuleExists       = "capsule_exists"
	reasonCapsuleNotFound     = "capsule_not_found"
	reasonCapsuleInvalid      = "capsule_invalid"
	reasonUnlockTooSoon       = "unlock_too_soon"
	reasonCapsuleInsertFailed = "capsule_insert_failed"
	reasonCapsuleUpdateFailed = "capsule_update_failed"
)

// ParseCapsuleContentType validates a raw content type.
func ParseCapsuleContentType(value string) (CapsuleContentType, error) {
	switch CapsuleContentType(strings.ToLower(strings.TrimSpace(value))) {
	case CapsuleContentText:
		return CapsuleContentText, nil
	case CapsuleContentImage:
		return CapsuleContentImage, nil
	case CapsuleContentAudio:
		return CapsuleContentAudio, nil
	case CapsuleContentFile:
		return CapsuleContentFile, nil
	default:
		return "", fmt.Errorf("%w: content type %q", ErrInvalidCapsule, value)
	}
}

// TimeCapsule stores content attached to an owned tile until its unlock time.
type TimeCapsule struct {
	TileID            string             `gorm:"column:tile_id;primaryKey;size:64;not null"`
	PageNumber        int                `gorm:"column:page_number;not null;uniqueIndex:idx_capsules_coordinates,priority:1"`
	TilePosition      int                `gorm:"column:tile_position;not null;uniqueIndex:idx_capsules_coordinates,priority:2"`
	ContentType       CapsuleContentType `gorm:"column:content_type;size:16;not null"`
	ContentData       string             `gorm:"column:content_data;type:text;not null"`
	Filename          string             `gorm:"column:filename;size:255;not null;default:''"`
	Teaser            string             `gorm:"column:teaser;size:512;not null;default:''"`
	UnlockAtSeconds   int64              `gorm:"column:unlock_at_s;not null;index:idx_capsules_pending,priority:2"`
	SealedAtSeconds   int64              `gorm:"column:sealed_at_s;not null"`
	UnlockedAtSeconds *int64             `gorm:"column:unlocked_at_s;index:idx_capsules_pending,priority:1"`
}

// TableName provides the explicit table binding for GORM.
func (TimeCapsule) TableName() string {
	return "tile_capsules"
}

// SealRequest describes a capsule to attach to a tile.
type SealRequest struct {
	PageNumber   int
	TilePosition int
	UnlockAt     time.Time
	Teaser       string
	ContentType  string
	ContentData  string
	Filename     string
}

// CapsuleContent is the payload revealed once a capsule unlocks.
type CapsuleContent struct {
	Type     CapsuleContentType
	Data     string
	Filename string
}

// CapsuleView is a capsule as seen at a given instant. Content is nil while sealed.
type CapsuleView struct {
	TileID       string
	PageNumber   int
	TilePosition int
	State        CapsuleState
	UnlockAt     time.Time
	SealedAt     time.Time
	Teaser       string
	Content      *CapsuleContent
}

func viewCapsule(capsule TimeCapsule, now time.Time) CapsuleView {
	view := CapsuleView{
		TileID:       capsule.TileID,
		PageNumber:   capsule.PageNumber,
		TilePosition: capsule.TilePosition,
		State:        CapsuleStateSealed,
		UnlockAt:     time.Unix(capsule.UnlockAtSeconds, 0).UTC(),
		SealedAt:     time.Unix(capsule.SealedAtSeconds, 0).UTC(),
		Teaser:       capsule.Teaser,
	}
	if now.Unix() >= capsule.UnlockAtSeconds {
		view.State = CapsuleStateUnlocked
		view.Content = &CapsuleContent{
			Type:     capsule.ContentType,
			Data:     capsule.ContentData,
			Filename: capsule.Filename,
		}
	}
	return view
}

func (s *Service) validateSeal(request SealRequest, now time.Time) (TimeCapsule, Coordinates, error) {
	coordinates, err := NewCoordinates(request.PageNumber, request.TilePosition)
	if err != nil {
		return TimeCapsule{}, Coordinates{}, newServiceError(opSealCapsule, reasonInvalidCoords, err)
	}
	contentType, err := ParseCapsuleContentType(request.ContentType)
	if err != nil {
		return TimeCapsule{}, Coordinates{}, newServiceError(opSealCapsule, reasonCapsuleInvalid, err)
	}
	if strings.TrimSpace(request.ContentData) == "" {
		return TimeCapsule{}, Coordinates{}, newServiceError(opSealCapsule, reasonCapsuleInvalid,
			fmt.Errorf("%w: empty content", ErrInvalidCapsule))
	}
	if len(request.ContentData) > MaxCapsuleDataBytes {
		return TimeCapsule{}, Coordinates{}, newServiceError(opSealCapsule, reasonCapsuleInvalid,
			fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidCapsule, MaxCapsuleDataBytes))
	}
	teaser := strings.TrimSpace(request.Teaser)
	if len(teaser) > maxTeaserLength {
		return TimeCapsule{}, Coordinates{}, newServiceError(opSealCapsule, reasonCapsuleInvalid,
			fmt.Errorf("%w: teaser exceeds %d characters", ErrInvalidCapsule, maxTeaserLength))
	}
	filename := strings.TrimSpace(request.Filename)
	if contentType == CapsuleContentText {
		filename = ""
	}
	if len(filename) > maxFilenameLength {
		return TimeCapsule{}, Coordinates{}, newServiceError(opSealCapsule, reasonCapsuleInvalid,
			fmt.Errorf("%w: filename exceeds %d characters", ErrInvalidCapsule, maxFilenameLength))
	}
	earliest := now.Add(s.capsuleMinLead)
	if request.UnlockAt.Before(earliest) {
		return TimeCapsule{}, Coordinates{}, newServiceError(opSealCapsule, reasonUnlockTooSoon,
			fmt.Errorf("%w: earliest unlock is %s", ErrUnlockTooSoon, earliest.Format(time.RFC3339)))
	}

	return TimeCapsule{
		PageNumber:      coordinates.PageNumber,
		TilePosition:    coordinates.TilePosition,
		ContentType:     contentType,
		ContentData:     request.ContentData,
		Filename:        filename,
		Teaser:          teaser,
		UnlockAtSeconds: request.UnlockAt.Unix(),
		SealedAtSeconds: now.Unix(),
	}, coordinates, nil
}

// SealCapsule attaches a time capsule to the persisted tile at the requested coordinates.
// A tile holds at most one capsule and a sealed capsule cannot be replaced.
func (s *Service) SealCapsule(ctx context.Context, request SealRequest) (CapsuleView, error) {
	now := s.now()
	capsule, coordinates, err := s.validateSeal(request, now)
	if err != nil {
		return CapsuleView{}, err
	}
	if s.db == nil {
		s.logError(opSealCapsule, reasonMissingDatabase, errMissingDatabase)
		return CapsuleView{}, newServiceError(opSealCapsule, reasonMissingDatabase, storeFailure(errMissingDatabase))
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tile Tile
		err := tx.Where(queryCoordinates, coordinates.PageNumber, coordinates.TilePosition).Take(&tile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opSealCapsule, reasonTileNotFound, ErrTileNotFound)
		}
		if err != nil {
			s.logError(opSealCapsule, reasonTileLookupFailed, err, coordinateFields(coordinates)...)
			return newServiceError(opSealCapsule, reasonTileLookupFailed, storeFailure(err))
		}

		var existing int64
		if err := tx.Model(&TimeCapsule{}).Where("tile_id = ?", tile.ID).Count(&existing).Error; err != nil {
			s.logError(opSealCapsule, reasonQueryFailed, err, coordinateFields(coordinates)...)
			return newServiceError(opSealCapsule, reasonQueryFailed, storeFailure(err))
		}
		if existing > 0 {
			return newServiceError(opSealCapsule, reasonCapsuleExists, ErrCapsuleExists)
		}

		capsule.TileID = tile.ID
		if err := tx.Create(&capsule).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return newServiceError(opSealCapsule, reasonCapsuleExists, ErrCapsuleExists)
			}
			s.logError(opSealCapsule, reasonCapsuleInsertFailed, err, coordinateFields(coordinates)...)
			return newServiceError(opSealCapsule, reasonCapsuleInsertFailed, storeFailure(err))
		}
		return nil
	})
	if txErr != nil {
		var serviceErr *ServiceError
		if errors.As(txErr, &serviceErr) {
			return CapsuleView{}, txErr
		}
		s.logError(opSealCapsule, reasonTransaction, txErr, coordinateFields(coordinates)...)
		return CapsuleView{}, newServiceError(opSealCapsule, reasonTransaction, storeFailure(txErr))
	}

	s.loggerOrDefault().Info("time capsule sealed",
		append(coordinateFields(coordinates), zap.Time("unlock_at", request.UnlockAt.UTC()))...)
	return viewCapsule(capsule, now), nil
}

// GetCapsule returns the capsule on the tile at the given coordinates.
func (s *Service) GetCapsule(ctx context.Context, pageNumber, tilePosition int) (CapsuleView, error) {
	coordinates, err := NewCoordinates(pageNumber, tilePosition)
	if err != nil {
		return CapsuleView{}, newServiceError(opGetCapsule, reasonInvalidCoords, err)
	}
	if s.db == nil {
		s.logError(opGetCapsule, reasonMissingDatabase, errMissingDatabase)
		return CapsuleView{}, newServiceError(opGetCapsule, reasonMissingDatabase, storeFailure(errMissingDatabase))
	}

	var capsule TimeCapsule
	err = s.db.WithContext(ctx).
		Where(queryCoordinates, coordinates.PageNumber, coordinates.TilePosition).
		Take(&capsule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CapsuleView{}, newServiceError(opGetCapsule, reasonCapsuleNotFound, ErrCapsuleNotFound)
	}
	if err != nil {
		s.logError(opGetCapsule, reasonQueryFailed, err, coordinateFields(coordinates)...)
		return CapsuleView{}, newServiceError(opGetCapsule, reasonQueryFailed, storeFailure(err))
	}
	return viewCapsule(capsule, s.now()), nil
}

// ListCapsules returns every capsule ordered by page, then position.
func (s *Service) ListCapsules(ctx context.Context) ([]CapsuleView, error) {
	if s.db == nil {
		s.logError(opListCapsules, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opListCapsules, reasonMissingDatabase, storeFailure(errMissingDatabase))
	}

	var capsules []TimeCapsule
	if err := s.db.WithContext(ctx).Order(orderCoordinates).Find(&capsules).Error; err != nil {
		s.logError(opListCapsules, reasonQueryFailed, err)
		return nil, newServiceError(opListCapsules, reasonQueryFailed, storeFailure(err))
	}

	now := s.now()
	views := make([]CapsuleView, 0, len(capsules))
	for _, capsule := range capsules {
		views = append(views, viewCapsule(capsule, now))
	}
	return views, nil
}

// SweepUnlocked stamps unlocked_at on capsules whose unlock time has passed and
// returns the ones stamped by this call. Reads never depend on the stamp.
func (s *Service) SweepUnlocked(ctx context.Context) ([]CapsuleView, error) {
	if s.db == nil {
		s.logError(opSweepUnlocked, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opSweepUnlocked, reasonMissingDatabase, storeFailure(errMissingDatabase))
	}

	now := s.now()
	db := s.db.WithContext(ctx)
	var due []TimeCapsule
	if err := db.
		Where("unlocked_at_s IS NULL AND unlock_at_s <= ?", now.Unix()).
		Order(orderCoordinates).
		Find(&due).Error; err != nil {
		s.logError(opSweepUnlocked, reasonQueryFailed, err)
		return nil, newServiceError(opSweepUnlocked, reasonQueryFailed, storeFailure(err))
	}

	stamp := now.Unix()
	unlocked := make([]CapsuleView, 0, len(due))
	for _, capsule := range due {
		updated := db.Model(&TimeCapsule{}).
			Where("tile_id = ? AND unlocked_at_s IS NULL", capsule.TileID).
			Update("unlocked_at_s", stamp)
		if updated.Error != nil {
			s.logError(opSweepUnlocked, reasonCapsuleUpdateFailed, updated.Error, zap.String("tile_id", capsule.TileID))
			return unlocked, newServiceError(opSweepUnlocked, reasonCapsuleUpdateFailed, storeFailure(updated.Error))
		}
		if updated.RowsAffected == 0 {
			continue
		}
		capsule.UnlockedAtSeconds = &stamp
		unlocked = append(unlocked, viewCapsule(capsule, now))
	}
	return unlocked, nil
}
