package services

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/repositories"
)

// DefaultPresenceWindow is how recent a heartbeat must be for a user to count as online.
const DefaultPresenceWindow = 60 * time.Second

// PresenceService tracks heartbeats and relays typing signals.
type PresenceService struct {
	rooms    repositories.RoomRepository
	presence repositories.PresenceRepository
	emitter  Emitter
	window   time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewPresenceService(rooms repositories.RoomRepository, presence repositories.PresenceRepository, emitter Emitter, window time.Duration, log *zap.Logger) *PresenceService {
	if window <= 0 {
		window = DefaultPresenceWindow
	}
	return &PresenceService{rooms: rooms, presence: presence, emitter: emitter, window: window, log: orNop(log), now: time.Now}
}

// Status derives online/offline from heartbeat recency. Nothing stores an offline state.
func Status(now time.Time, lastSeen int64, window time.Duration) string {
	if now.UnixMilli()-lastSeen < window.Milliseconds() {
		return models.StatusOnline
	}
	return models.StatusOffline
}

// Heartbeat refreshes token's lastSeen and announces the user as online.
func (s *PresenceService) Heartbeat(ctx context.Context, roomID, token, username string) (err error) {
	ctx, span := startSpan(ctx, "presence.heartbeat", roomID)
	defer func() { endSpan(span, err) }()

	if err := validateUsername(username); err != nil {
		return err
	}
	ttl, err := liveTTL(ctx, s.rooms, roomID)
	if err != nil {
		return err
	}

	entry := models.PresenceEntry{Username: username, LastSeen: s.now().UnixMilli()}
	if err := s.presence.Upsert(ctx, roomID, token, entry); err != nil {
		return err
	}
	if err := s.rooms.SyncTTL(ctx, roomID, ttl); err != nil {
		return err
	}

	emit(ctx, s.emitter, s.log, roomID, models.EventPresence, models.PresenceUser{
		Username: username,
		Status:   models.StatusOnline,
		LastSeen: entry.LastSeen,
	})
	return nil
}

// ListPresence returns one entry per username, using the freshest heartbeat across its tokens.
func (s *PresenceService) ListPresence(ctx context.Context, roomID string) (users []models.PresenceUser, err error) {
	ctx, span := startSpan(ctx, "presence.list", roomID)
	defer func() { endSpan(span, err) }()

	if _, err := liveTTL(ctx, s.rooms, roomID); err != nil {
		return nil, err
	}
	entries, err := s.presence.List(ctx, roomID)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]int64, len(entries))
	for _, e := range entries {
		if seen, ok := latest[e.Username]; !ok || e.LastSeen > seen {
			latest[e.Username] = e.LastSeen
		}
	}

	now := s.now()
	users = make([]models.PresenceUser, 0, len(latest))
	for username, lastSeen := range latest {
		users = append(users, models.PresenceUser{
			Username: username,
			Status:   Status(now, lastSeen, s.window),
			LastSeen: lastSeen,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// SetTyping broadcasts a typing flag. It is not persisted; debouncing is the client's job.
func (s *PresenceService) SetTyping(ctx context.Context, roomID, username string, isTyping bool) (err error) {
	ctx, span := startSpan(ctx, "presence.typing", roomID)
	defer func() { endSpan(span, err) }()

	if err := validateUsername(username); err != nil {
		return err
	}
	if _, err := liveTTL(ctx, s.rooms, roomID); err != nil {
		return err
	}

	emit(ctx, s.emitter, s.log, roomID, models.EventTyping, models.TypingEvent{Username: username, IsTyping: isTyping})
	return nil
}
