package ws

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newConnID() string {
	return uuid.NewString()
}

// tokenFromRequest reads the membership token from the query string, falling back to a bearer header.
func tokenFromRequest(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
