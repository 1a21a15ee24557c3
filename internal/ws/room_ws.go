package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/observability"
	"ephemeral-chat/internal/services"
	"ephemeral-chat/internal/telemetry"
)

// Authorizer resolves a membership token for a room.
type Authorizer interface {
	Authorize(ctx context.Context, roomID, token string) (models.Member, error)
}

// RoomWebSocketHandler streams a room's realtime events to its members.
type RoomWebSocketHandler struct {
	hub   *Hub
	guard Authorizer
	audit *telemetry.AuditEmitter
	log   *zap.Logger
}

// NewRoomWebSocketHandler constructs a RoomWebSocketHandler.
func NewRoomWebSocketHandler(hub *Hub, guard Authorizer, audit *telemetry.AuditEmitter, log *zap.Logger) *RoomWebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoomWebSocketHandler{hub: hub, guard: guard, audit: audit, log: log}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authorizes the token, upgrades the connection and registers the client.
func (h *RoomWebSocketHandler) Handle(c *gin.Context) {
	roomID := c.Param("room_id")

	ctx, span := otel.Tracer("ephemeral-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	span.SetAttributes(attribute.String("room.id", roomID))
	c.Request = c.Request.WithContext(ctx)

	member, err := h.guard.Authorize(ctx, roomID, tokenFromRequest(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, services.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		default:
			h.log.Error("ws authorize failed", zap.String("room_id", roomID), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		Token:       member.Token,
		Username:    member.Username,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	if err := h.hub.AddClient(context.WithoutCancel(ctx), roomID, conn, info); err != nil {
		h.log.Warn("ws subscribe failed", zap.String("room_id", roomID), zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "realtime unavailable"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.log.Info("ws connected", zap.String("room_id", roomID), zap.String("conn_id", info.ConnID), zap.String("username", info.Username))
	h.audit.Emit(ctx, "INFO", "websocket connected: "+info.Username, requestID, roomID)

	// Clients only listen; reads detect the close.
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(roomID, conn)
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			h.log.Info("ws disconnected",
				zap.String("room_id", roomID),
				zap.String("conn_id", info.ConnID),
				zap.Duration("duration", time.Since(info.ConnectedAt)),
				zap.String("reason", closeReason),
			)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("ws_error")
				}
				return
			}
		}
	}()
}
