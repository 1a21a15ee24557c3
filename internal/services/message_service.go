package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/repositories"
)

// MessageService is the per-room append-mostly message log.
// Point mutations rewrite a single slot; messages are never physically removed before expiry.
type MessageService struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	emitter  Emitter
	log      *zap.Logger
	now      func() time.Time
}

func NewMessageService(rooms repositories.RoomRepository, messages repositories.MessageRepository, emitter Emitter, log *zap.Logger) *MessageService {
	return &MessageService{rooms: rooms, messages: messages, emitter: emitter, log: orNop(log), now: time.Now}
}

// Append stores a new message authored by the holder of token.
// The returned message and the chat.message event keep the author token.
func (s *MessageService) Append(ctx context.Context, roomID, token, sender, text string) (msg models.Message, err error) {
	ctx, span := startSpan(ctx, "messages.append", roomID)
	defer func() { endSpan(span, err) }()

	if err := validateUsername(sender); err != nil {
		return models.Message{}, err
	}
	if err := validateText(text); err != nil {
		return models.Message{}, err
	}
	ttl, err := liveTTL(ctx, s.rooms, roomID)
	if err != nil {
		return models.Message{}, err
	}

	msg = models.Message{
		ID:        newID(),
		Sender:    sender,
		Text:      text,
		Timestamp: s.now().UnixMilli(),
		RoomID:    roomID,
		Token:     token,
		Reactions: []models.Reaction{},
		ReadBy:    []models.ReadMark{},
	}
	if err := s.messages.Append(ctx, roomID, msg); err != nil {
		return models.Message{}, err
	}
	if err := s.rooms.SyncTTL(ctx, roomID, ttl); err != nil {
		return models.Message{}, err
	}

	emit(ctx, s.emitter, s.log, roomID, models.EventMessage, msg)
	return msg, nil
}

// List returns the log in append order, projected for the reader's token.
func (s *MessageService) List(ctx context.Context, roomID, readerToken string) (msgs []models.Message, err error) {
	ctx, span := startSpan(ctx, "messages.list", roomID)
	defer func() { endSpan(span, err) }()

	if _, err := liveTTL(ctx, s.rooms, roomID); err != nil {
		return nil, err
	}
	stored, err := s.messages.List(ctx, roomID)
	if err != nil {
		return nil, err
	}
	msgs = make([]models.Message, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, m.ProjectFor(readerToken))
	}
	return msgs, nil
}

// React adds or removes the (emoji, username) reaction. Repeating an add or remove is a no-op.
func (s *MessageService) React(ctx context.Context, roomID, messageID, emoji, username, action string) (msg models.Message, err error) {
	ctx, span := startSpan(ctx, "messages.react", roomID)
	defer func() { endSpan(span, err) }()

	if err := validateMessageID(messageID); err != nil {
		return models.Message{}, err
	}
	if err := validateEmoji(emoji); err != nil {
		return models.Message{}, err
	}
	if err := validateUsername(username); err != nil {
		return models.Message{}, err
	}
	if err := validateAction(action); err != nil {
		return models.Message{}, err
	}
	ttl, err := liveTTL(ctx, s.rooms, roomID)
	if err != nil {
		return models.Message{}, err
	}

	ts := s.now().UnixMilli()
	msg, changed, err := s.messages.Update(ctx, roomID, messageID, func(m *models.Message) (bool, error) {
		var ok bool
		if action == ActionAdd {
			m.Reactions, ok = addReaction(m.Reactions, emoji, username, ts)
		} else {
			m.Reactions, ok = removeReaction(m.Reactions, emoji, username)
		}
		return ok, nil
	})
	if err != nil {
		return models.Message{}, err
	}
	if !changed {
		return msg, nil
	}
	if err := s.rooms.SyncTTL(ctx, roomID, ttl); err != nil {
		return models.Message{}, err
	}

	emit(ctx, s.emitter, s.log, roomID, models.EventReaction, models.ReactionEvent{
		MessageID: messageID,
		Emoji:     emoji,
		Username:  username,
		Action:    action,
		Reactions: msg.Reactions,
	})
	return msg, nil
}

// MarkRead records that username has read the message. Repeats are silent no-ops.
func (s *MessageService) MarkRead(ctx context.Context, roomID, messageID, username string) (msg models.Message, err error) {
	ctx, span := startSpan(ctx, "messages.read", roomID)
	defer func() { endSpan(span, err) }()

	if err := validateMessageID(messageID); err != nil {
		return models.Message{}, err
	}
	if err := validateUsername(username); err != nil {
		return models.Message{}, err
	}
	ttl, err := liveTTL(ctx, s.rooms, roomID)
	if err != nil {
		return models.Message{}, err
	}

	ts := s.now().UnixMilli()
	msg, changed, err := s.messages.Update(ctx, roomID, messageID, func(m *models.Message) (bool, error) {
		for _, mark := range m.ReadBy {
			if mark.Username == username {
				return false, nil
			}
		}
		m.ReadBy = append(m.ReadBy, models.ReadMark{Username: username, Timestamp: ts})
		return true, nil
	})
	if err != nil {
		return models.Message{}, err
	}
	if !changed {
		return msg, nil
	}
	if err := s.rooms.SyncTTL(ctx, roomID, ttl); err != nil {
		return models.Message{}, err
	}

	emit(ctx, s.emitter, s.log, roomID, models.EventMessage, msg)
	return msg, nil
}

// Delete tombstones a message. Only the author token may delete; the id and position stay stable.
func (s *MessageService) Delete(ctx context.Context, roomID, messageID, token string) (msg models.Message, err error) {
	ctx, span := startSpan(ctx, "messages.delete", roomID)
	defer func() { endSpan(span, err) }()

	if err := validateMessageID(messageID); err != nil {
		return models.Message{}, err
	}
	ttl, err := liveTTL(ctx, s.rooms, roomID)
	if err != nil {
		return models.Message{}, err
	}

	msg, changed, err := s.messages.Update(ctx, roomID, messageID, func(m *models.Message) (bool, error) {
		if token == "" || m.Token != token {
			return false, ErrUnauthorized
		}
		if m.Deleted {
			return false, nil
		}
		m.Deleted = true
		m.Text = ""
		return true, nil
	})
	if err != nil {
		return models.Message{}, err
	}
	if !changed {
		return msg, nil
	}
	if err := s.rooms.SyncTTL(ctx, roomID, ttl); err != nil {
		return models.Message{}, err
	}

	emit(ctx, s.emitter, s.log, roomID, models.EventMessage, msg)
	return msg, nil
}

func addReaction(reactions []models.Reaction, emoji, username string, ts int64) ([]models.Reaction, bool) {
	for _, r := range reactions {
		if r.Emoji == emoji && r.Username == username {
			return reactions, false
		}
	}
	return append(reactions, models.Reaction{Emoji: emoji, Username: username, Timestamp: ts}), true
}

func removeReaction(reactions []models.Reaction, emoji, username string) ([]models.Reaction, bool) {
	kept := make([]models.Reaction, 0, len(reactions))
	for _, r := range reactions {
		if r.Emoji == emoji && r.Username == username {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(kept) != len(reactions)
}
