package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/tiles"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	adminSubjectContextKey   = "miraiwall_admin_subject"
	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingTilesService = errors.New("tiles service dependency required")
	errMissingKeysService  = errors.New("keys service dependency required when admin routes are enabled")
)

// AdminAuthorizer validates admin bearer tokens on incoming requests.
type AdminAuthorizer interface {
	ValidateRequest(r *http.Request) (auth.AdminClaims, error)
}

type Dependencies struct {
	TilesService      *tiles.Service
	KeysService       *keys.Service
	AdminAuthorizer   AdminAuthorizer
	Realtime          *RealtimeDispatcher
	Metrics           *metrics.Collector
	Logger            *zap.Logger
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TilesService == nil {
		return nil, errMissingTilesService
	}
	if deps.AdminAuthorizer != nil && deps.KeysService == nil {
		return nil, errMissingKeysService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(deps.Metrics.Middleware())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		tilesService: deps.TilesService,
		keysService:  deps.KeysService,
		admin:        deps.AdminAuthorizer,
		realtime:     realtime,
		metrics:      deps.Metrics,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		logger:       logger,
		heartbeat:    heartbeat,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.POST("/claim-tile", handler.handleClaimTile)
	api.GET("/tiles", handler.handleListTiles)
	api.GET("/pages", handler.handleListPages)
	api.GET("/pages/:page/tiles", handler.handleListPage)
	api.POST("/tiles/:page/:position/capsule", handler.handleSealCapsule)
	api.GET("/tiles/:page/:position/capsule", handler.handleGetCapsule)
	api.GET("/capsules", handler.handleListCapsules)
	api.GET("/stream", handler.handleStream)

	if deps.AdminAuthorizer != nil {
		admin := router.Group("/admin")
		admin.Use(handler.authorizeAdmin)
		admin.POST("/license-keys", handler.handleImportKeys)
		admin.GET("/license-keys/stats", handler.handleKeyStats)
	}

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "Last-Event-ID"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

type httpHandler struct {
	tilesService *tiles.Service
	keysService  *keys.Service
	admin        AdminAuthorizer
	realtime     *RealtimeDispatcher
	metrics      *metrics.Collector
	validate     *validator.Validate
	logger       *zap.Logger
	heartbeat    time.Duration
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeAdmin(c *gin.Context) {
	claims, err := h.admin.ValidateRequest(c.Request)
	if err != nil {
		h.logger.Warn("admin token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": codeUnauthorized})
		return
	}
	c.Set(adminSubjectContextKey, claims.Subject)
	c.Next()
}
