package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/observability"
	"ephemeral-chat/internal/repositories"
)

const DefaultRoomTTL = 600 * time.Second

// RoomConfig controls room lifetime and capacity. Capacity 0 means unlimited.
type RoomConfig struct {
	TTL      time.Duration
	Capacity int
}

// RoomService manages the room lifecycle: creation, membership, expiry and destruction.
type RoomService struct {
	rooms   repositories.RoomRepository
	emitter Emitter
	cfg     RoomConfig
	log     *zap.Logger
	now     func() time.Time
}

func NewRoomService(rooms repositories.RoomRepository, emitter Emitter, cfg RoomConfig, log *zap.Logger) *RoomService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRoomTTL
	}
	return &RoomService{rooms: rooms, emitter: emitter, cfg: cfg, log: orNop(log), now: time.Now}
}

// CreateRoom allocates a fresh room whose lifetime starts now and is never extended.
func (s *RoomService) CreateRoom(ctx context.Context) (roomID string, err error) {
	roomID = newID()
	ctx, span := startSpan(ctx, "rooms.create", roomID)
	defer func() { endSpan(span, err) }()

	room := models.Room{ID: roomID, CreatedAt: s.now()}
	if err := s.rooms.CreateRoom(ctx, room, s.cfg.TTL); err != nil {
		return "", err
	}
	observability.IncRoom("created")
	s.log.Info("room created", zap.String("room_id", roomID), zap.Duration("ttl", s.cfg.TTL))
	return roomID, nil
}

// CheckRoom reports whether a room can still be joined.
func (s *RoomService) CheckRoom(ctx context.Context, roomID string) (status models.RoomStatus, err error) {
	ctx, span := startSpan(ctx, "rooms.check", roomID)
	defer func() { endSpan(span, err) }()

	ttl, err := liveTTL(ctx, s.rooms, roomID)
	if err != nil {
		return models.RoomStatus{}, err
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return models.RoomStatus{}, err
	}

	participants := len(room.ConnectedTokens)
	return models.RoomStatus{
		RoomID:       roomID,
		CreatedAt:    room.CreatedAt.UnixMilli(),
		Participants: participants,
		Capacity:     s.cfg.Capacity,
		IsFull:       s.cfg.Capacity > 0 && participants >= s.cfg.Capacity,
		TTL:          ceilSeconds(ttl),
	}, nil
}

// JoinRoom mints a membership token. The mapping inherits the room's remaining TTL.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, username string) (token string, err error) {
	ctx, span := startSpan(ctx, "rooms.join", roomID)
	defer func() { endSpan(span, err) }()

	if err := validateUsername(username); err != nil {
		return "", err
	}
	ttl, err := liveTTL(ctx, s.rooms, roomID)
	if err != nil {
		return "", err
	}

	token = newToken()
	if err := s.rooms.AddMember(ctx, roomID, models.Member{Token: token, Username: username}, ttl, s.cfg.Capacity); err != nil {
		return "", err
	}

	observability.IncRoom("joined")
	emit(ctx, s.emitter, s.log, roomID, models.EventConnection, models.ConnectionEvent{Username: username, Action: "joined"})
	return token, nil
}

// LeaveRoom announces that a member closed its last connection. A gone room is ignored.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, username string) error {
	if _, err := liveTTL(ctx, s.rooms, roomID); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil
		}
		return err
	}
	emit(ctx, s.emitter, s.log, roomID, models.EventConnection, models.ConnectionEvent{Username: username, Action: "left"})
	return nil
}

// GetRemainingTTL returns whole seconds left, zero once the room is gone.
func (s *RoomService) GetRemainingTTL(ctx context.Context, roomID string) (int64, error) {
	ttl, err := liveTTL(ctx, s.rooms, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ceilSeconds(ttl), nil
}

// ceilSeconds keeps a live room from ever reporting zero, which is reserved for a gone room.
func ceilSeconds(ttl time.Duration) int64 {
	return int64((ttl + time.Second - 1) / time.Second)
}

// DestroyRoom notifies subscribers and then removes every key of the room.
// Destroying a room that is already gone is a no-op.
func (s *RoomService) DestroyRoom(ctx context.Context, roomID string) (err error) {
	ctx, span := startSpan(ctx, "rooms.destroy", roomID)
	defer func() { endSpan(span, err) }()

	if _, err := liveTTL(ctx, s.rooms, roomID); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil
		}
		return err
	}

	emit(ctx, s.emitter, s.log, roomID, models.EventDestroy, models.DestroyEvent{IsDestroyed: true})
	if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	observability.IncRoom("destroyed")
	s.log.Info("room destroyed", zap.String("room_id", roomID))
	return nil
}
