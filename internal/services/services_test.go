package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ephemeral-chat/internal/mocks"
	"ephemeral-chat/internal/repositories"
	"ephemeral-chat/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	mr       *miniredis.Miniredis
	emitter  *mocks.EmitterMock
	clock    *fakeClock
	rooms    *RoomService
	messages *MessageService
	presence *PresenceService
	guard    *Guard
}

func newFixture(t *testing.T, cfg RoomConfig) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := store.NewRedisStore(client, 10, nil)
	roomRepo := repositories.NewRoomRepo(s)
	messageRepo := repositories.NewMessageRepo(s)
	presenceRepo := repositories.NewPresenceRepo(s)

	emitter := new(mocks.EmitterMock)
	emitter.On("Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	f := &fixture{
		mr:       mr,
		emitter:  emitter,
		clock:    clock,
		rooms:    NewRoomService(roomRepo, emitter, cfg, nil),
		messages: NewMessageService(roomRepo, messageRepo, emitter, nil),
		presence: NewPresenceService(roomRepo, presenceRepo, emitter, 0, nil),
		guard:    NewGuard(roomRepo),
	}
	f.rooms.now = clock.Now
	f.messages.now = clock.Now
	f.presence.now = clock.Now
	return f
}

func (f *fixture) createRoom(t *testing.T) string {
	t.Helper()
	roomID, err := f.rooms.CreateRoom(context.Background())
	require.NoError(t, err)
	return roomID
}

func (f *fixture) join(t *testing.T, roomID, username string) string {
	t.Helper()
	token, err := f.rooms.JoinRoom(context.Background(), roomID, username)
	require.NoError(t, err)
	return token
}

func (f *fixture) send(t *testing.T, roomID, token, sender, text string) string {
	t.Helper()
	msg, err := f.messages.Append(context.Background(), roomID, token, sender, text)
	require.NoError(t, err)
	return msg.ID
}
