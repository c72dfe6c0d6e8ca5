package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/tiles"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleSealCapsule(c *gin.Context) {
	pageNumber, tilePosition, ok := parseCoordinates(c)
	if !ok {
		respondServiceError(c, tiles.ErrInvalidCoordinates)
		return
	}

	var request sealRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, messageInvalidRequest)
		return
	}
	if err := h.validate.Struct(request); err != nil {
		h.logger.Debug("capsule payload rejected", zap.Error(err))
		respondServiceError(c, tiles.ErrInvalidCapsule)
		return
	}

	view, err := h.tilesService.SealCapsule(c.Request.Context(), tiles.SealRequest{
		PageNumber:   pageNumber,
		TilePosition: tilePosition,
		UnlockAt:     request.UnlockAt,
		Teaser:       request.Teaser,
		ContentType:  request.ContentType,
		ContentData:  request.ContentData,
		Filename:     request.Filename,
	})
	if err != nil {
		if errors.Is(err, tiles.ErrStoreUnavailable) {
			h.logger.Error("seal capsule failed", zap.Error(err))
		}
		respondServiceError(c, err)
		return
	}

	h.metrics.RecordCapsuleSealed()
	c.JSON(http.StatusCreated, newCapsulePayload(view))
}

func (h *httpHandler) handleGetCapsule(c *gin.Context) {
	pageNumber, tilePosition, ok := parseCoordinates(c)
	if !ok {
		respondServiceError(c, tiles.ErrInvalidCoordinates)
		return
	}

	view, err := h.tilesService.GetCapsule(c.Request.Context(), pageNumber, tilePosition)
	if err != nil {
		if errors.Is(err, tiles.ErrStoreUnavailable) {
			h.logger.Error("get capsule failed", zap.Error(err))
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCapsulePayload(view))
}

func (h *httpHandler) handleListCapsules(c *gin.Context) {
	views, err := h.tilesService.ListCapsules(c.Request.Context())
	if err != nil {
		h.logger.Error("list capsules failed", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	payloads := make([]capsulePayload, 0, len(views))
	for _, view := range views {
		payloads = append(payloads, newCapsulePayload(view))
	}
	c.JSON(http.StatusOK, gin.H{"capsules": payloads})
}

func parseCoordinates(c *gin.Context) (int, int, bool) {
	pageNumber, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		return 0, 0, false
	}
	tilePosition, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		return 0, 0, false
	}
	return pageNumber, tilePosition, true
}
