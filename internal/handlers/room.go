package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ephemeral-chat/internal/services"
	"ephemeral-chat/internal/telemetry"
)

// RoomHandler serves the room lifecycle endpoints.
type RoomHandler struct {
	rooms *services.RoomService
	audit *telemetry.AuditEmitter
	log   *zap.Logger
}

// NewRoomHandler builds a RoomHandler. audit may be nil.
func NewRoomHandler(rooms *services.RoomService, audit *telemetry.AuditEmitter, log *zap.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, audit: audit, log: orNop(log)}
}

// CreateRoom allocates a new self-destructing room.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	roomID, err := h.rooms.CreateRoom(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.audit.Emit(c.Request.Context(), "INFO", "room created", requestIDFromContext(c), roomID)
	c.JSON(http.StatusCreated, gin.H{"roomId": roomID})
}

// CheckRoom reports occupancy and remaining lifetime before joining.
func (h *RoomHandler) CheckRoom(c *gin.Context) {
	status, err := h.rooms.CheckRoom(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// JoinRoom issues a membership token for the given username.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	roomID := c.Param("room_id")
	token, err := h.rooms.JoinRoom(c.Request.Context(), roomID, req.Username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.audit.Emit(c.Request.Context(), "INFO", "member joined: "+req.Username, requestIDFromContext(c), roomID)
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// GetTTL returns the seconds left before the room expires; zero once it is gone.
func (h *RoomHandler) GetTTL(c *gin.Context) {
	ttl, err := h.rooms.GetRemainingTTL(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ttl": ttl})
}

// DestroyRoom removes the room for everyone. Any member may destroy it.
func (h *RoomHandler) DestroyRoom(c *gin.Context) {
	roomID := c.Param("room_id")
	if err := h.rooms.DestroyRoom(c.Request.Context(), roomID); err != nil {
		writeError(c, h.log, err)
		return
	}
	// no member means the room was already gone
	if member := memberFromContext(c); member.Token != "" {
		h.audit.Emit(c.Request.Context(), "WARN", "room destroyed by "+member.Username, requestIDFromContext(c), roomID)
	}
	c.Status(http.StatusNoContent)
}
