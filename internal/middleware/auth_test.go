package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/services"
)

type guardMock struct {
	mock.Mock
}

func (m *guardMock) Authorize(ctx context.Context, roomID, token string) (models.Member, error) {
	args := m.Called(ctx, roomID, token)
	return args.Get(0).(models.Member), args.Error(1)
}

func setupRouter(guard Authorizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/rooms/:room_id", RoomAuth(guard), func(c *gin.Context) {
		member, ok := MemberFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": member.Username, "token": c.GetString(TokenKey)})
	})
	return r
}

func TestRoomAuthSetsMember(t *testing.T) {
	guard := new(guardMock)
	guard.On("Authorize", mock.Anything, "r1", "tok").Return(models.Member{Token: "tok", Username: "alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/r1", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	setupRouter(guard).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"alice","token":"tok"}`, rec.Body.String())
	guard.AssertExpectations(t)
}

func TestRoomAuthRejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
		err    error
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", err: services.ErrUnauthorized, status: http.StatusUnauthorized},
		{name: "room gone", header: "Bearer tok", err: services.ErrRoomNotFound, status: http.StatusNotFound},
		{name: "store down", header: "Bearer tok", err: services.ErrStoreUnavailable, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			guard := new(guardMock)
			if tc.err != nil {
				guard.On("Authorize", mock.Anything, "r1", mock.Anything).Return(models.Member{}, tc.err).Once()
			}

			req := httptest.NewRequest(http.MethodGet, "/rooms/r1", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			setupRouter(guard).ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			guard.AssertExpectations(t)
		})
	}
}

func TestDestroyAuthLetsGoneRoomThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	guard := new(guardMock)
	guard.On("Authorize", mock.Anything, "gone", "tok").Return(models.Member{}, services.ErrRoomNotFound).Once()
	guard.On("Authorize", mock.Anything, "live", "forged").Return(models.Member{}, services.ErrUnauthorized).Once()

	r := gin.New()
	r.DELETE("/rooms/:room_id", DestroyAuth(guard), func(c *gin.Context) {
		_, ok := MemberFromContext(c)
		assert.False(t, ok)
		c.Status(http.StatusNoContent)
	})

	for path, status := range map[string]int{"/rooms/gone": http.StatusNoContent, "/rooms/live": http.StatusUnauthorized} {
		token := "tok"
		if path == "/rooms/live" {
			token = "forged"
		}
		req := httptest.NewRequest(http.MethodDelete, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, path)
	}
	guard.AssertExpectations(t)
}
