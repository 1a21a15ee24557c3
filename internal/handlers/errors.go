package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ephemeral-chat/internal/services"
	"ephemeral-chat/internal/store"
)

// statusFor maps the service error taxonomy onto HTTP statuses.
func statusFor(err error) (int, string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, services.ErrRoomNotFound):
		return http.StatusNotFound, "room not found"
	case errors.Is(err, services.ErrMessageNotFound):
		return http.StatusNotFound, "message not found"
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, services.ErrRoomFull):
		return http.StatusConflict, "room is full"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "concurrent update, retry"
	case errors.Is(err, services.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(c *gin.Context, log *zap.Logger, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("room_id", c.Param("room_id")),
			zap.String("request_id", requestIDFromContext(c)),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": msg})
}

// bindError answers a failed request binding with 400, naming the first rejected field.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fieldMessage(verrs[0])})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	if name != "" {
		name = strings.ToLower(name[:1]) + name[1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("invalid %s: must not be empty", name)
	case "max":
		return fmt.Sprintf("invalid %s: must be at most %s characters", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("invalid %s: must be one of %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("invalid %s: failed %s", name, fe.Tag())
	}
}

// bindOptionalJSON binds a body that may be absent. An empty body, chunked or not, leaves req untouched.
func bindOptionalJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
