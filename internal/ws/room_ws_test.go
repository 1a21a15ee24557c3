package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/realtime"
	"ephemeral-chat/internal/repositories"
	"ephemeral-chat/internal/services"
	"ephemeral-chat/internal/store"
)

type wsFixture struct {
	server   *httptest.Server
	hub      *Hub
	rooms    *services.RoomService
	messages *services.MessageService
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := store.NewRedisStore(client, 5, nil)

	roomRepo := repositories.NewRoomRepo(s)
	broadcaster := realtime.NewBroadcaster(s, nil)
	hub := NewHub(broadcaster, nil)
	rooms := services.NewRoomService(roomRepo, broadcaster, services.RoomConfig{}, nil)
	hub.OnLeave(func(roomID string, info ConnInfo) {
		_ = rooms.LeaveRoom(context.Background(), roomID, info.Username)
	})

	router := gin.New()
	router.GET("/ws/rooms/:room_id", NewRoomWebSocketHandler(hub, services.NewGuard(roomRepo), nil, nil).Handle)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		_ = hub.Close(context.Background())
	})

	return &wsFixture{
		server:   server,
		hub:      hub,
		rooms:    rooms,
		messages: services.NewMessageService(roomRepo, repositories.NewMessageRepo(s), broadcaster, nil),
	}
}

func (f *wsFixture) dial(t *testing.T, roomID, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/rooms/" + roomID + "?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var e models.Event
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestRoomSocketReceivesProjectedMessages(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()
	roomID, err := f.rooms.CreateRoom(ctx)
	require.NoError(t, err)
	alice, err := f.rooms.JoinRoom(ctx, roomID, "alice")
	require.NoError(t, err)
	bob, err := f.rooms.JoinRoom(ctx, roomID, "bob")
	require.NoError(t, err)

	aliceConn, _, err := f.dial(t, roomID, alice)
	require.NoError(t, err)
	defer aliceConn.Close()
	bobConn, _, err := f.dial(t, roomID, bob)
	require.NoError(t, err)
	defer bobConn.Close()
	require.Eventually(t, func() bool { return f.hub.ClientCount(roomID) == 2 }, 2*time.Second, 10*time.Millisecond)

	_, err = f.messages.Append(ctx, roomID, alice, "alice", "hi")
	require.NoError(t, err)

	var seen models.Message
	e := readEvent(t, aliceConn)
	require.Equal(t, models.EventMessage, e.Event)
	require.NoError(t, json.Unmarshal(e.Data, &seen))
	assert.Equal(t, alice, seen.Token)

	e = readEvent(t, bobConn)
	require.Equal(t, models.EventMessage, e.Event)
	seen = models.Message{}
	require.NoError(t, json.Unmarshal(e.Data, &seen))
	assert.Empty(t, seen.Token)
	assert.Equal(t, "hi", seen.Text)
}

func TestRoomSocketClosedOnDestroy(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()
	roomID, err := f.rooms.CreateRoom(ctx)
	require.NoError(t, err)
	token, err := f.rooms.JoinRoom(ctx, roomID, "alice")
	require.NoError(t, err)

	conn, _, err := f.dial(t, roomID, token)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.hub.ClientCount(roomID) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.rooms.DestroyRoom(ctx, roomID))

	e := readEvent(t, conn)
	assert.Equal(t, models.EventDestroy, e.Event)
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestRoomSocketRejectsBadTokens(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()
	roomID, err := f.rooms.CreateRoom(ctx)
	require.NoError(t, err)

	_, resp, err := f.dial(t, roomID, "forged")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = f.dial(t, "AAAAAAAAAAAAAAAAAAAAA", "forged")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomSocketAnnouncesLeave(t *testing.T) {
	f := newWSFixture(t)
	ctx := context.Background()
	roomID, err := f.rooms.CreateRoom(ctx)
	require.NoError(t, err)
	alice, err := f.rooms.JoinRoom(ctx, roomID, "alice")
	require.NoError(t, err)
	bob, err := f.rooms.JoinRoom(ctx, roomID, "bob")
	require.NoError(t, err)

	aliceConn, _, err := f.dial(t, roomID, alice)
	require.NoError(t, err)
	bobConn, _, err := f.dial(t, roomID, bob)
	require.NoError(t, err)
	defer bobConn.Close()
	require.Eventually(t, func() bool { return f.hub.ClientCount(roomID) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, aliceConn.Close())

	e := readEvent(t, bobConn)
	require.Equal(t, models.EventConnection, e.Event)
	var notice models.ConnectionEvent
	require.NoError(t, json.Unmarshal(e.Data, &notice))
	assert.Equal(t, models.ConnectionEvent{Username: "alice", Action: "left"}, notice)
}
