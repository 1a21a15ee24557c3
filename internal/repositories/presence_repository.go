package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/store"
)

// PresenceRepository stores the per-room heartbeat table.
type PresenceRepository interface {
	Upsert(ctx context.Context, roomID, token string, entry models.PresenceEntry) error
	List(ctx context.Context, roomID string) (map[string]models.PresenceEntry, error)
}

// PresenceRepo keeps heartbeats in a hash keyed by token.
type PresenceRepo struct {
	store store.Store
}

func NewPresenceRepo(s store.Store) *PresenceRepo {
	return &PresenceRepo{store: s}
}

func (r *PresenceRepo) Upsert(ctx context.Context, roomID, token string, entry models.PresenceEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode presence: %w", err)
	}
	return r.store.HSet(ctx, presenceKey(roomID), map[string]string{token: string(body)})
}

func (r *PresenceRepo) List(ctx context.Context, roomID string) (map[string]models.PresenceEntry, error) {
	raw, err := r.store.HGetAll(ctx, presenceKey(roomID))
	if err != nil {
		return nil, err
	}
	entries := make(map[string]models.PresenceEntry, len(raw))
	for token, body := range raw {
		var entry models.PresenceEntry
		if err := json.Unmarshal([]byte(body), &entry); err != nil {
			return nil, fmt.Errorf("decode presence: %w", err)
		}
		entries[token] = entry
	}
	return entries, nil
}
