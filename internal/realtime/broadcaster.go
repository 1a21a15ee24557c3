// Package realtime publishes room events on the per-room fan-out channel.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/observability"
	"ephemeral-chat/internal/store"
)

// Channel names the pub/sub channel of a room.
func Channel(roomID string) string {
	return "realtime:" + roomID
}

// Broadcaster emits events to every subscriber of a room, the originator included.
type Broadcaster struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewBroadcaster(s store.Store, log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{store: s, log: log, now: time.Now}
}

// Emit publishes one event. There is no backlog: subscribers that join later never see it.
func (b *Broadcaster) Emit(ctx context.Context, roomID, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	body, err := json.Marshal(models.Event{
		Event:     event,
		RoomID:    roomID,
		Data:      data,
		Timestamp: b.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", event, err)
	}

	if err := b.store.Publish(ctx, Channel(roomID), body); err != nil {
		observability.IncRealtimeEvent(event, false)
		b.log.Warn("realtime publish failed", zap.String("room_id", roomID), zap.String("event", event), zap.Error(err))
		return err
	}
	observability.IncRealtimeEvent(event, true)
	return nil
}

// Subscribe opens a subscription to a room channel.
func (b *Broadcaster) Subscribe(ctx context.Context, roomID string) (store.Subscription, error) {
	return b.store.Subscribe(ctx, Channel(roomID))
}
