package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/wire"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch    *orch.Orchestrator
	limiter *RateLimiter
	now     func() time.Time
}

type publishRequest struct {
	Content    string `json:"content" binding:"required"`
	AuthorName string `json:"authorName"`
}

func (h *handlers) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *handlers) health(c *gin.Context) {
	conns, err := h.orch.Connections(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "stopping", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": len(conns)})
}

func (h *handlers) connections(c *gin.Context) {
	conns, err := h.orch.Connections(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conns)
}

func (h *handlers) voiceSnapshot(c *gin.Context) {
	snap, err := h.orch.Snapshot(c.Request.Context(), domain.ServerID(c.Param("serverId")))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) publishMessage(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content required"})
		return
	}
	name := req.AuthorName
	if name == "" {
		name = c.GetString(displayNameKey)
	}
	author, err := domain.NewUser(c.GetString(clientTokenKey), name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.limiter.Allow(author.ID) {
		log.Warn().Str("module", "adapters.http").Str("user", string(author.ID)).Msg("message rate limited")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
		return
	}

	msg, err := domain.NewMessage(
		domain.ServerID(c.Param("serverId")),
		domain.ChannelID(c.Param("channelId")),
		author, req.Content, h.clock(),
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.orch.PublishMessage(c.Request.Context(), *msg)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg, "delivered": res.SendTo})
}

func (h *handlers) missedMessages(c *gin.Context) {
	var since int64
	if raw := c.Query("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be epoch milliseconds"})
			return
		}
		since = v
	}
	resp := h.orch.MissedMessages(c.Request.Context(), wire.SyncRequest{
		Since:      since,
		ChannelIDs: []domain.ChannelID{domain.ChannelID(c.Param("channelId"))},
	})
	c.JSON(http.StatusOK, resp)
}
