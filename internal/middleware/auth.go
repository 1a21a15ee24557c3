package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/services"
)

// Context keys set by RoomAuth.
const (
	MemberKey   = "member"
	TokenKey    = "token"
	UsernameKey = "username"
)

// Authorizer resolves a membership token for a room.
type Authorizer interface {
	Authorize(ctx context.Context, roomID, token string) (models.Member, error)
}

// RoomAuth validates the bearer membership token against the :room_id path parameter.
func RoomAuth(guard Authorizer) gin.HandlerFunc {
	return roomAuth(guard, false)
}

// DestroyAuth is RoomAuth for the destroy route. A room that is already gone passes
// through without a member so that destroying it again stays a no-op.
func DestroyAuth(guard Authorizer) gin.HandlerFunc {
	return roomAuth(guard, true)
}

func roomAuth(guard Authorizer, allowGone bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		member, err := guard.Authorize(c.Request.Context(), c.Param("room_id"), token)
		if allowGone && errors.Is(err, services.ErrRoomNotFound) {
			c.Next()
			return
		}
		if err != nil {
			switch {
			case errors.Is(err, services.ErrRoomNotFound):
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "room not found"})
			case errors.Is(err, services.ErrUnauthorized):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			default:
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
			}
			return
		}

		c.Set(MemberKey, member)
		c.Set(TokenKey, member.Token)
		c.Set(UsernameKey, member.Username)
		c.Next()
	}
}

// MemberFromContext returns the membership resolved by RoomAuth.
func MemberFromContext(c *gin.Context) (models.Member, bool) {
	val, ok := c.Get(MemberKey)
	if !ok {
		return models.Member{}, false
	}
	member, ok := val.(models.Member)
	return member, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
