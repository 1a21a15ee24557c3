package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"ephemeral-chat/internal/repositories"
)

// Emitter publishes a realtime event to all subscribers of a room.
type Emitter interface {
	Emit(ctx context.Context, roomID, event string, payload any) error
}

var tracer = otel.Tracer("ephemeral-chat/services")

var newID = mustNanoID()

func mustNanoID() func() string {
	gen, err := nanoid.Standard(RoomIDLength)
	if err != nil {
		panic(err)
	}
	return gen
}

func newToken() string {
	return uuid.NewString()
}

func startSpan(ctx context.Context, name, roomID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("room.id", roomID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// liveTTL returns the room's remaining lifetime or ErrRoomNotFound once it is gone.
func liveTTL(ctx context.Context, rooms repositories.RoomRepository, roomID string) (time.Duration, error) {
	if !ValidRoomID(roomID) {
		return 0, ErrRoomNotFound
	}
	ttl, err := rooms.RemainingTTL(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, ErrRoomNotFound
	}
	return ttl, nil
}

// emit never fails the caller: the store already holds the truth and clients can resync by pulling.
func emit(ctx context.Context, e Emitter, log *zap.Logger, roomID, event string, payload any) {
	if e == nil {
		return
	}
	if err := e.Emit(ctx, roomID, event, payload); err != nil {
		log.Warn("event not delivered", zap.String("room_id", roomID), zap.String("event", event), zap.Error(err))
	}
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
