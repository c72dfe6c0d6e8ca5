package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/tiles"
	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleStream(c *gin.Context) {
	pageNumber, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || pageNumber < 0 {
		respondServiceError(c, tiles.ErrInvalidCoordinates)
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, pageNumber)
	defer cleanup()
	release := h.metrics.StreamOpened()
	defer release()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, eventEnvelope{
				Source:    realtimeSource,
				Timestamp: formatTime(message.Timestamp),
				Data:      message.Payload,
			})
			return true
		case tick := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, eventEnvelope{
				Source:    realtimeSource,
				Timestamp: formatTime(tick),
			})
			return true
		}
	})
}
