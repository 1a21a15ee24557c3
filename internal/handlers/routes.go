package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ephemeral-chat/internal/telemetry"
)

// Routes bundles everything the HTTP surface is built from.
type Routes struct {
	Rooms     *RoomHandler
	Messages  *MessageHandler
	Presence  *PresenceHandler
	WebSocket gin.HandlerFunc
	RoomAuth  gin.HandlerFunc
	Health    gin.HandlerFunc
	Metrics   http.Handler
	Audit     *telemetry.AuditEmitter
	Debug     bool
	// DestroyAuth guards DELETE on the room itself. RoomAuth is used when nil.
	DestroyAuth gin.HandlerFunc
}

// RegisterRoutes wires the room API onto router.
func RegisterRoutes(router *gin.Engine, r Routes) {
	api := router.Group("/api/rooms")
	api.POST("", r.Rooms.CreateRoom)
	api.GET("/:room_id", r.Rooms.CheckRoom)
	api.POST("/:room_id/join", r.Rooms.JoinRoom)
	api.GET("/:room_id/ttl", r.Rooms.GetTTL)

	destroyAuth := r.DestroyAuth
	if destroyAuth == nil {
		destroyAuth = r.RoomAuth
	}
	api.DELETE("/:room_id", destroyAuth, r.Rooms.DestroyRoom)

	member := api.Group("/:room_id", r.RoomAuth)
	member.POST("/messages", r.Messages.PostMessage)
	member.GET("/messages", r.Messages.ListMessages)
	member.POST("/messages/:message_id/reactions", r.Messages.React)
	member.POST("/messages/:message_id/read", r.Messages.MarkRead)
	member.DELETE("/messages/:message_id", r.Messages.DeleteMessage)
	member.POST("/presence/typing", r.Presence.Typing)
	member.POST("/presence/heartbeat", r.Presence.Heartbeat)
	member.GET("/presence", r.Presence.ListPresence)

	if r.WebSocket != nil {
		router.GET("/ws/rooms/:room_id", r.WebSocket)
	}
	if r.Health != nil {
		router.GET("/healthz", r.Health)
	}
	if r.Metrics != nil {
		router.GET("/metrics", gin.WrapH(r.Metrics))
	}
	if r.Debug {
		router.GET("/debug/audit-test", auditTest(r.Audit))
	}
}

func auditTest(emitter *telemetry.AuditEmitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), c.Query("room_id"))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
