package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/tiles"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	claimOutcomePersistent = "persistent"
	claimOutcomeDemo       = "demo"
)

func (h *httpHandler) handleClaimTile(c *gin.Context) {
	var request claimRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.metrics.RecordClaim(codeInvalidRequest)
		respondError(c, http.StatusBadRequest, codeInvalidRequest, messageInvalidRequest)
		return
	}

	result, err := h.tilesService.ClaimTile(c.Request.Context(), tiles.ClaimRequest{
		LicenseKey:   request.LicenseKey,
		PageNumber:   request.PageNumber,
		TilePosition: request.TilePosition,
	})
	if err != nil {
		kind := respondServiceError(c, err)
		h.metrics.RecordClaim(kind.code)
		if kind.status >= http.StatusInternalServerError {
			h.logger.Error("claim tile failed", zap.Error(err))
		}
		return
	}

	outcome := claimOutcomePersistent
	if !result.Tile.Persistent {
		outcome = claimOutcomeDemo
	}
	h.metrics.RecordClaim(outcome)
	h.realtime.PublishTileClaimed(result.Tile)

	c.JSON(http.StatusOK, claimResponsePayload{
		Success: true,
		Tile:    newClaimedTilePayload(result.Tile),
		Message: result.Message,
	})
}

func (h *httpHandler) handleListTiles(c *gin.Context) {
	stored, err := h.tilesService.ListTiles(c.Request.Context())
	if err != nil {
		h.logger.Error("list tiles failed", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiles": storedTilePayloads(stored)})
}

func (h *httpHandler) handleListPage(c *gin.Context) {
	pageNumber, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		respondServiceError(c, tiles.ErrInvalidCoordinates)
		return
	}
	stored, err := h.tilesService.ListPage(c.Request.Context(), pageNumber)
	if err != nil {
		if errors.Is(err, tiles.ErrStoreUnavailable) {
			h.logger.Error("list page failed", zap.Error(err))
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page_number": pageNumber, "tiles": storedTilePayloads(stored)})
}

func (h *httpHandler) handleListPages(c *gin.Context) {
	summaries, err := h.tilesService.PageSummaries(c.Request.Context())
	if err != nil {
		h.logger.Error("page summaries failed", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pages":          summaries,
		"page_size":      tiles.PageSize,
		"next_open_page": tiles.NextOpenPage(summaries),
	})
}

func storedTilePayloads(stored []tiles.Tile) []tilePayload {
	payloads := make([]tilePayload, 0, len(stored))
	for _, tile := range stored {
		payloads = append(payloads, newStoredTilePayload(tile))
	}
	return payloads
}
