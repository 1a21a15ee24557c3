package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ephemeral-chat/internal/services"
)

// PresenceHandler serves heartbeat, typing and presence listing.
type PresenceHandler struct {
	presence *services.PresenceService
	log      *zap.Logger
}

func NewPresenceHandler(presence *services.PresenceService, log *zap.Logger) *PresenceHandler {
	return &PresenceHandler{presence: presence, log: orNop(log)}
}

func (h *PresenceHandler) Typing(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"max=100"`
		IsTyping bool   `json:"isTyping"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	username, err := services.ResolveUsername(memberFromContext(c), req.Username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if err := h.presence.SetTyping(c.Request.Context(), c.Param("room_id"), username, req.IsTyping); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"max=100"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		bindError(c, err)
		return
	}

	member := memberFromContext(c)
	username, err := services.ResolveUsername(member, req.Username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if err := h.presence.Heartbeat(c.Request.Context(), c.Param("room_id"), member.Token, username); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPresence returns each known user with online/offline derived from heartbeat recency.
func (h *PresenceHandler) ListPresence(c *gin.Context) {
	users, err := h.presence.ListPresence(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
