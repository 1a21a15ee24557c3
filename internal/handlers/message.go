package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ephemeral-chat/internal/services"
)

// MessageHandler serves the message log endpoints of a room.
type MessageHandler struct {
	messages *services.MessageService
	log      *zap.Logger
}

func NewMessageHandler(messages *services.MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, log: orNop(log)}
}

// PostMessage appends a message authored by the caller.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req struct {
		Sender string `json:"sender" binding:"max=100"`
		Text   string `json:"text" binding:"required,max=1000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	member := memberFromContext(c)
	sender, err := services.ResolveUsername(member, req.Sender)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	msg, err := h.messages.Append(c.Request.Context(), c.Param("room_id"), member.Token, sender, req.Text)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListMessages returns the log in append order, as seen by the caller.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	msgs, err := h.messages.List(c.Request.Context(), c.Param("room_id"), memberFromContext(c).Token)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// React adds or removes an emoji reaction.
func (h *MessageHandler) React(c *gin.Context) {
	var req struct {
		Emoji    string `json:"emoji" binding:"required,max=32"`
		Username string `json:"username" binding:"max=100"`
		Action   string `json:"action" binding:"required,oneof=add remove"`
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

	msg, err := h.messages.React(c.Request.Context(), c.Param("room_id"), c.Param("message_id"), req.Emoji, username, req.Action)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, msg.ProjectFor(memberFromContext(c).Token))
}

// MarkRead records a read receipt for the caller.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"max=100"`
	}
	// an empty body reads as the caller's own username
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

	msg, err := h.messages.MarkRead(c.Request.Context(), c.Param("room_id"), c.Param("message_id"), username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, msg.ProjectFor(member.Token))
}

// DeleteMessage tombstones a message. Only its author may delete it.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	_, err := h.messages.Delete(c.Request.Context(), c.Param("room_id"), c.Param("message_id"), memberFromContext(c).Token)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
