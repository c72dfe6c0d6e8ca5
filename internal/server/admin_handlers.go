package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleImportKeys(c *gin.Context) {
	var request importRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, messageInvalidRequest)
		return
	}
	if err := h.validate.Struct(request); err != nil || (len(request.Keys) == 0) == (request.Generate == 0) {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "Provide either keys or generate")
		return
	}

	subject := c.GetString(adminSubjectContextKey)
	ctx := c.Request.Context()

	if request.Generate > 0 {
		generated, err := h.keysService.GenerateAndStore(ctx, request.Generate)
		if err != nil {
			h.logger.Error("license key generation failed", zap.Error(err), zap.String("admin", subject))
			respondServiceError(c, err)
			return
		}
		h.metrics.RecordKeysImported(len(generated))
		h.logger.Info("license keys generated", zap.Int("count", len(generated)), zap.String("admin", subject))
		c.JSON(http.StatusCreated, gin.H{"keys": generated, "inserted": len(generated)})
		return
	}

	result, err := h.keysService.Import(ctx, request.Keys)
	if err != nil {
		h.logger.Error("license key import failed", zap.Error(err), zap.String("admin", subject))
		respondServiceError(c, err)
		return
	}
	h.metrics.RecordKeysImported(result.Inserted)
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleKeyStats(c *gin.Context) {
	stats, err := h.keysService.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("license key stats failed", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
