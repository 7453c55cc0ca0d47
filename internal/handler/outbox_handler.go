package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskdesk/pkg/outbox"
)

const defaultFailedLimit = 100

type OutboxHandler struct {
	replayService *outbox.ReplayService
	logger        *zap.Logger
}

func NewOutboxHandler(replayService *outbox.ReplayService, logger *zap.Logger) *OutboxHandler {
	return &OutboxHandler{
		replayService: replayService,
		logger:        logger,
	}
}

// ListFailed 列出重试耗尽的事件
// GET /api/admin/outbox/failed?limit=100
func (h *OutboxHandler) ListFailed(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultFailedLimit)))
	if err != nil || limit <= 0 {
		limit = defaultFailedLimit
	}

	events, err := h.replayService.ListFailed(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list failed events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ReplayEvent 重放指定的 Outbox 事件
// POST /api/admin/outbox/replay/:eventId
func (h *OutboxHandler) ReplayEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("eventId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	if err := h.replayService.ReplayEvent(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, outbox.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.logger.Error("Failed to replay event",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "replayed",
		"event_id": eventID,
	})
}

// ReplayFailedEvents 重放所有失败的事件
// POST /api/admin/outbox/replay-failed?limit=100
func (h *OutboxHandler) ReplayFailedEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultFailedLimit)))
	if err != nil || limit <= 0 {
		limit = defaultFailedLimit
	}

	replayed, err := h.replayService.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay failed events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "completed",
		"success_count": replayed,
		"limit":         limit,
	})
}
