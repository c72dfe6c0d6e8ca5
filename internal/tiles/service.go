package tiles

import (
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew     = "tiles.service.new"
	opClaimTile      = "tiles.claim_tile"
	opListTiles      = "tiles.list_tiles"
	opListPage       = "tiles.list_page"
	opPageSummaries  = "tiles.page_summaries"
	opSealCapsule    = "tiles.seal_capsule"
	opGetCapsule     = "tiles.get_capsule"
	opListCapsules   = "tiles.list_capsules"
	opSweepUnlocked  = "tiles.sweep_unlocked"
	fieldPageNumber  = "page_number"
	fieldPosition    = "tile_position"
	queryCoordinates = fieldPageNumber + " = ? AND " + fieldPosition + " = ?"
	orderCoordinates = fieldPageNumber + " ASC, " + fieldPosition + " ASC"

	reasonMissingDatabase = "missing_database"
	reasonQueryFailed     = "query_failed"

	// DefaultCapsuleMinLead is how far in the future a capsule must unlock.
	DefaultCapsuleMinLead = 24 * time.Hour
)

var noOpLogger = zap.NewNop()

// ContentGenerator produces the filler revealed by a claimed tile.
type ContentGenerator interface {
	Generate(pageNumber, tilePosition int) string
}

// ServiceConfig describes the dependencies of the tile service.
type ServiceConfig struct {
	Database       *gorm.DB
	Clock          func() time.Time
	IDProvider     ids.Provider
	Content        ContentGenerator
	DemoKeys       keys.DemoSet
	CapsuleMinLead time.Duration
	Logger         *zap.Logger
}

// Service coordinates claims, listings and time capsules over the tile store.
type Service struct {
	db             *gorm.DB
	clock          func() time.Time
	idProvider     ids.Provider
	content        ContentGenerator
	demoKeys       keys.DemoSet
	capsuleMinLead time.Duration
	logger         *zap.Logger
}

// NewService validates dependencies and constructs the tile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Content == nil {
		return nil, newServiceError(opServiceNew, "missing_content_generator", errMissingContent)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	minLead := cfg.CapsuleMinLead
	if minLead <= 0 {
		minLead = DefaultCapsuleMinLead
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:             cfg.Database,
		clock:          clock,
		idProvider:     cfg.IDProvider,
		content:        cfg.Content,
		demoKeys:       cfg.DemoKeys,
		capsuleMinLead: minLead,
		logger:         logger,
	}, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("tiles service error", attrs...)
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func coordinateFields(coordinates Coordinates) []zap.Field {
	return []zap.Field{
		zap.Int(fieldPageNumber, coordinates.PageNumber),
		zap.Int(fieldPosition, coordinates.TilePosition),
	}
}
