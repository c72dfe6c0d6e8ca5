package server

import (
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/tiles"
)

type tilePayload struct {
	ID             string `json:"id"`
	PageNumber     int    `json:"page_number"`
	TilePosition   int    `json:"tile_position"`
	Content        string `json:"content"`
	ClaimedAt      string `json:"claimed_at"`
	LicenseKeyUsed string `json:"license_key_used"`
	IsDemo         bool   `json:"is_demo"`
}

func newClaimedTilePayload(tile tiles.ClaimedTile) tilePayload {
	return tilePayload{
		ID:             tile.ID,
		PageNumber:     tile.PageNumber,
		TilePosition:   tile.TilePosition,
		Content:        tile.Content,
		ClaimedAt:      formatTime(tile.ClaimedAt),
		LicenseKeyUsed: tile.KeyReference,
		IsDemo:         !tile.Persistent,
	}
}

func newStoredTilePayload(tile tiles.Tile) tilePayload {
	return tilePayload{
		ID:             tile.ID,
		PageNumber:     tile.PageNumber,
		TilePosition:   tile.TilePosition,
		Content:        tile.Content,
		ClaimedAt:      formatTime(tile.ClaimedAt),
		LicenseKeyUsed: tile.LicenseKeyID,
	}
}

type claimRequestPayload struct {
	LicenseKey   string `json:"licenseKey"`
	PageNumber   *int   `json:"pageNumber"`
	TilePosition *int   `json:"tilePosition"`
}

type claimResponsePayload struct {
	Success bool        `json:"success"`
	Tile    tilePayload `json:"tile"`
	Message string      `json:"message"`
}

type capsuleContentPayload struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	Filename string `json:"filename,omitempty"`
}

type capsulePayload struct {
	TileID       string                 `json:"tile_id"`
	PageNumber   int                    `json:"page_number"`
	TilePosition int                    `json:"tile_position"`
	State        string                 `json:"state"`
	UnlockAt     string                 `json:"unlock_at"`
	SealedAt     string                 `json:"sealed_at"`
	Teaser       string                 `json:"teaser,omitempty"`
	Content      *capsuleContentPayload `json:"content,omitempty"`
}

func newCapsulePayload(view tiles.CapsuleView) capsulePayload {
	payload := capsulePayload{
		TileID:       view.TileID,
		PageNumber:   view.PageNumber,
		TilePosition: view.TilePosition,
		State:        string(view.State),
		UnlockAt:     formatTime(view.UnlockAt),
		SealedAt:     formatTime(view.SealedAt),
		Teaser:       view.Teaser,
	}
	if view.Content != nil {
		payload.Content = &capsuleContentPayload{
			Type:     string(view.Content.Type),
			Data:     view.Content.Data,
			Filename: view.Content.Filename,
		}
	}
	return payload
}

type sealRequestPayload struct {
	UnlockAt    time.Time `json:"unlock_at" validate:"required"`
	Teaser      string    `json:"teaser" validate:"max=512"`
	ContentType string    `json:"content_type" validate:"required,oneof=text image audio file"`
	ContentData string    `json:"content_data" validate:"required"`
	Filename    string    `json:"filename" validate:"max=255"`
}

type importRequestPayload struct {
	Keys     []string `json:"keys" validate:"omitempty,max=10000,dive,required"`
	Generate int      `json:"generate" validate:"omitempty,min=1,max=10000"`
}

type eventEnvelope struct {
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
