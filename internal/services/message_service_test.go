package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ephemeral-chat/internal/models"
)

func TestAppendAndListProjectsAuthorToken(t *testing.T) {
	f := newFixture(t, RoomConfig{})
	ctx := context.Background()
	roomID := f.createRoom(t)
	alice := f.join(t, roomID, "alice")
	bob := f.join(t, roomID, "bob")

	msg, err := f.messages.Append(ctx, roomID, alice, "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, alice, msg.Token)
	assert.Equal(t, roomID, msg.RoomID)
	assert.Equal(t, f.clock.Now().UnixMilli(), msg.Timestamp)
	assert.Empty(t, msg.Reactions)
	assert.NotNil(t, msg.Reactions)

	f.send(t, roomID, bob, "bob", "hey")

	asAlice, err := f.messages.List(ctx, roomID, alice)
	require.NoError(t, err)
	require.Len(t, asAlice, 2)
	assert.Equal(t, "hello", asAlice[0].Text)
	assert.Equal(t, alice, asAlice[0].Token)
	assert.Empty(t, asAlice[1].Token)

	asBob, err := f.messages.List(ctx, roomID, bob)
	require.NoError(t, err)
	assert.Empty(t, asBob[0].Token)
	assert.Equal(t, bob, asBob[1].Token)

	assert.Equal(t, []string{
		models.EventConnection, models.EventConnection, models.EventMessage, models.EventMessage,
	}, f.emitter.Events())
}

func TestAppendValidation(t *testing.T) {
	f := newFixture(t, RoomConfig{})
	ctx := context.Background()
	roomID := f.createRoom(t)
	token := f.join(t, roomID, "alice")

	cases := map[string]struct {
		sender, text, field string
	}{
		"blank text":   {"alice", "   ", "text"},
		"long text":    {"alice", strings.Repeat("x", MaxTextLength+1), "text"},
		"empty sender": {"", "hi", "username"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.messages.Append(ctx, roomID, token, tc.sender, tc.text)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	msgs, err := f.messages.List(ctx, roomID, token)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.False(t, f.mr.Exists("messages:"+roomID))

	_, err = f.messages.Append(ctx, roomID, token, "alice", strings.Repeat("é", MaxTextLength))
	assert.NoError(t, err)
}

func TestReactIsIdempotent(t *testing.T) {
	f := newFixture(t, RoomConfig{})
	ctx := context.Background()
	roomID := f.createRoom(t)
	alice := f.join(t, roomID, "alice")
	msgID := f.send(t, roomID, alice, "alice", "hello")

	msg, err := f.messages.React(ctx, roomID, msgID, "👍", "bob", ActionAdd)
	require.NoError(t, err)
	require.Len(t, msg.Reactions, 1)

	msg, err = f.messages.React(ctx, roomID, msgID, "👍", "bob", ActionAdd)
	require.NoError(t, err)
	assert.Len(t, msg.Reactions, 1)

	msg, err = f.messages.React(ctx, roomID, msgID, "❤️", "bob", ActionAdd)
	require.NoError(t, err)
	assert.Len(t, msg.Reactions, 2)

	msg, err = f.messages.React(ctx, roomID, msgID, "👍", "bob", ActionRemove)
	require.NoError(t, err)
	require.Len(t, msg.Reactions, 1)
	assert.Equal(t, "❤️", msg.Reactions[0].Emoji)

	_, err = f.messages.React(ctx, roomID, msgID, "👍", "bob", ActionRemove)
	require.NoError(t, err)

	reactions := 0
	for _, e := range f.emitter.Events() {
		if e == models.EventReaction {
			reactions++
		}
	}
	assert.Equal(t, 3, reactions, "no-op reactions are not broadcast")
}

func TestReactErrors(t *testing.T) {
	f := newFixture(t, RoomConfig{})
	ctx := context.Background()
	roomID := f.createRoom(t)
	alice := f.join(t, roomID, "alice")
	msgID := f.send(t, roomID, alice, "alice", "hello")

	_, err := f.messages.React(ctx, roomID, "missing", "👍", "bob", ActionAdd)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = f.messages.React(ctx, roomID, msgID, "👍", "bob", "toggle")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.messages.React(ctx, roomID, msgID, "", "bob", ActionAdd)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConcurrentReactionsAreNotLost(t *testing.T) {
	f := newFixture(t, RoomConfig{})
	ctx := context.Background()
	roomID := f.createRoom(t)
	alice := f.join(t, roomID, "alice")
	msgID := f.send(t, roomID, alice, "alice", "hello")

	users := []string{"u1", "u2", "u3", "u4"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			_, err := f.messages.React(ctx, roomID, msgID, "👍", u, ActionAdd)
			assert.NoError(t, err)
		}(u)
	}
	wg.Wait()

	msgs, err := f.messages.List(ctx, roomID, alice)
	require.NoError(t, err)
	assert.Len(t, msgs[0].Reactions, len(users))
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture(t, RoomConfig{})
	ctx := context.Background()
	roomID := f.createRoom(t)
	alice := f.join(t, roomID, "alice")
	msgID := f.send(t, roomID, alice, "alice", "hello")

	first, err := f.messages.MarkRead(ctx, roomID, msgID, "bob")
	require.NoError(t, err)
	require.Len(t, first.ReadBy, 1)

	f.clock.Advance(5 * time.Second)
	second, err := f.messages.MarkRead(ctx, roomID, msgID, "bob")
	require.NoError(t, err)
	require.Len(t, second.ReadBy, 1)
	assert.Equal(t, first.ReadBy[0].Timestamp, second.ReadBy[0].Timestamp)
}

func TestDeleteTombstones(t *testing.T) {
	f := newFixture(t, RoomConfig{})
	ctx := context.Background()
	roomID := f.createRoom(t)
	alice := f.join(t, roomID, "alice")
	bob := f.join(t, roomID, "bob")
	f.send(t, roomID, alice, "alice", "first")
	msgID := f.send(t, roomID, alice, "alice", "secret")
	f.send(t, roomID, bob, "bob", "third")

	_, err := f.messages.Delete(ctx, roomID, msgID, bob)
	assert.ErrorIs(t, err, ErrUnauthorized)

	msg, err := f.messages.Delete(ctx, roomID, msgID, alice)
	require.NoError(t, err)
	assert.True(t, msg.Deleted)
	assert.Empty(t, msg.Text)

	msgs, err := f.messages.List(ctx, roomID, alice)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, msgID, msgs[1].ID)
	assert.True(t, msgs[1].Deleted)

	// a tombstone cannot be revived and deleting again is a no-op
	_, err = f.messages.Delete(ctx, roomID, msgID, alice)
	require.NoError(t, err)
	_, err = f.messages.React(ctx, roomID, msgID, "👍", "bob", ActionAdd)
	require.NoError(t, err)
	_, err = f.messages.MarkRead(ctx, roomID, msgID, "bob")
	require.NoError(t, err)
	msgs, err = f.messages.List(ctx, roomID, alice)
	require.NoError(t, err)
	assert.True(t, msgs[1].Deleted)
	assert.Empty(t, msgs[1].Text)
}
