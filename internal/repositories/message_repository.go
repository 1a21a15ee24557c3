package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/store"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageMutation edits a message in place and reports whether anything changed.
type MessageMutation func(msg *models.Message) (changed bool, err error)

// MessageRepository defines interactions with a room's ordered message log.
type MessageRepository interface {
	Append(ctx context.Context, roomID string, msg models.Message) error
	List(ctx context.Context, roomID string) ([]models.Message, error)
	Update(ctx context.Context, roomID, messageID string, fn MessageMutation) (models.Message, bool, error)
}

// MessageRepo stores messages as JSON entries of a list.
type MessageRepo struct {
	store store.Store
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(s store.Store) *MessageRepo {
	return &MessageRepo{store: s}
}

// Append pushes a message to the end of the log.
func (r *MessageRepo) Append(ctx context.Context, roomID string, msg models.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	_, err = r.store.RPush(ctx, messagesKey(roomID), string(body))
	return err
}

// List returns the whole log in append order.
func (r *MessageRepo) List(ctx context.Context, roomID string) ([]models.Message, error) {
	items, err := r.store.LRange(ctx, messagesKey(roomID))
	if err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(items))
	for _, item := range items {
		var msg models.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Update scans the log for messageID and rewrites that slot when fn reports a change.
// The slot keeps its position; identity is the id, not the index.
func (r *MessageRepo) Update(ctx context.Context, roomID, messageID string, fn MessageMutation) (models.Message, bool, error) {
	var (
		result  models.Message
		changed bool
	)
	err := r.store.MutateList(ctx, messagesKey(roomID), func(items []string) (int, string, error) {
		changed = false
		for i, item := range items {
			var msg models.Message
			if err := json.Unmarshal([]byte(item), &msg); err != nil {
				return 0, "", fmt.Errorf("decode message: %w", err)
			}
			if msg.ID != messageID {
				continue
			}

			ok, err := fn(&msg)
			if err != nil {
				return 0, "", err
			}
			result = msg
			if !ok {
				return -1, "", nil
			}
			body, err := json.Marshal(msg)
			if err != nil {
				return 0, "", fmt.Errorf("encode message: %w", err)
			}
			changed = true
			return i, string(body), nil
		}
		return 0, "", ErrMessageNotFound
	})
	if err != nil {
		return models.Message{}, false, err
	}
	return result, changed, nil
}
