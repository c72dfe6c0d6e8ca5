package tiles

import (
	"fmt"
	"time"
)

// PageSize is the number of tiles on one grid page.
const PageSize = 25

// Tile is a claimed grid cell. Tiles are written once and never mutated.
type Tile struct {
	ID           string    `gorm:"column:id;primaryKey;size:64;not null"`
	PageNumber   int       `gorm:"column:page_number;not null;uniqueIndex:idx_tiles_coordinates,priority:1"`
	TilePosition int       `gorm:"column:tile_position;not null;uniqueIndex:idx_tiles_coordinates,priority:2"`
	Content      string    `gorm:"column:content;type:text;not null"`
	LicenseKeyID string    `gorm:"column:license_key_id;size:64;not null;index"`
	ClaimedAt    time.Time `gorm:"column:claimed_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Tile) TableName() string {
	return "tiles"
}

// Coordinates locate a tile on the grid.
type Coordinates struct {
	PageNumber   int
	TilePosition int
}

// NewCoordinates validates the page and position.
func NewCoordinates(pageNumber, tilePosition int) (Coordinates, error) {
	if pageNumber < 0 {
		return Coordinates{}, fmt.Errorf("%w: page %d", ErrInvalidCoordinates, pageNumber)
	}
	if tilePosition < 0 || tilePosition >= PageSize {
		return Coordinates{}, fmt.Errorf("%w: position %d", ErrInvalidCoordinates, tilePosition)
	}
	return Coordinates{PageNumber: pageNumber, TilePosition: tilePosition}, nil
}

// ClaimedTile is the tile returned to a claimant, persisted or not.
type ClaimedTile struct {
	ID           string
	PageNumber   int
	TilePosition int
	Content      string
	ClaimedAt    time.Time
	// KeyReference is the stored key id for persisted tiles and the key itself for demo tiles.
	KeyReference string
	Persistent   bool
}

func claimedFromTile(tile Tile) ClaimedTile {
	return ClaimedTile{
		ID:           tile.ID,
		PageNumber:   tile.PageNumber,
		TilePosition: tile.TilePosition,
		Content:      tile.Content,
		ClaimedAt:    tile.ClaimedAt,
		KeyReference: tile.LicenseKeyID,
		Persistent:   true,
	}
}

// DemoTileID returns the synthetic identifier of an ephemeral demo tile.
func DemoTileID(coordinates Coordinates) string {
	return fmt.Sprintf("demo-tile-%d-%d", coordinates.PageNumber, coordinates.TilePosition)
}

// PageSummary reports how many tiles of a page are claimed.
type PageSummary struct {
	PageNumber int  `json:"page_number"`
	Claimed    int  `json:"claimed"`
	Complete   bool `json:"complete"`
}

// NextOpenPage returns the lowest page that still has unclaimed tiles.
// summaries must be ordered by page number.
func NextOpenPage(summaries []PageSummary) int {
	expected := 0
	for _, summary := range summaries {
		if summary.PageNumber != expected || !summary.Complete {
			return expected
		}
		expected++
	}
	return expected
}
