package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/store"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrRoomFull       = errors.New("room is full")
)

// RoomRepository persists room metadata and the membership mapping.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room models.Room, ttl time.Duration) error
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
	RemainingTTL(ctx context.Context, roomID string) (time.Duration, error)
	AddMember(ctx context.Context, roomID string, member models.Member, ttl time.Duration, capacity int) error
	GetMember(ctx context.Context, roomID, token string) (models.Member, error)
	SyncTTL(ctx context.Context, roomID string, ttl time.Duration) error
	DeleteRoom(ctx context.Context, roomID string) error
}

// RoomRepo is a keyed-store implementation of RoomRepository.
type RoomRepo struct {
	store store.Store
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(s store.Store) *RoomRepo {
	return &RoomRepo{store: s}
}

// CreateRoom writes the metadata hash with its fixed expiration.
func (r *RoomRepo) CreateRoom(ctx context.Context, room models.Room, ttl time.Duration) error {
	return r.store.HSetWithTTL(ctx, metaKey(room.ID), map[string]string{
		"createdAt": strconv.FormatInt(room.CreatedAt.UnixMilli(), 10),
	}, ttl)
}

// GetRoom loads the metadata and the tokens currently holding membership.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	meta, err := r.store.HGetAll(ctx, metaKey(roomID))
	if err != nil {
		return models.Room{}, err
	}
	if len(meta) == 0 {
		return models.Room{}, ErrRoomNotFound
	}

	createdAt, err := strconv.ParseInt(meta["createdAt"], 10, 64)
	if err != nil {
		return models.Room{}, fmt.Errorf("decode room %s createdAt: %w", roomID, err)
	}

	members, err := r.store.HGetAll(ctx, membersKey(roomID))
	if err != nil {
		return models.Room{}, err
	}
	tokens := make([]string, 0, len(members))
	for token := range members {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	return models.Room{ID: roomID, CreatedAt: time.UnixMilli(createdAt), ConnectedTokens: tokens}, nil
}

// RemainingTTL reports the metadata key's remaining lifetime; zero means the room is gone.
func (r *RoomRepo) RemainingTTL(ctx context.Context, roomID string) (time.Duration, error) {
	return r.store.TTL(ctx, metaKey(roomID))
}

// AddMember stores token→username and aligns the mapping's expiration with the room.
// With a positive capacity the size check and the write run in one watched transaction.
func (r *RoomRepo) AddMember(ctx context.Context, roomID string, member models.Member, ttl time.Duration, capacity int) error {
	return r.store.MutateHash(ctx, membersKey(roomID), ttl, func(members map[string]string) (map[string]string, error) {
		if capacity > 0 && len(members) >= capacity {
			return nil, ErrRoomFull
		}
		return map[string]string{member.Token: member.Username}, nil
	})
}

// GetMember resolves a membership token.
func (r *RoomRepo) GetMember(ctx context.Context, roomID, token string) (models.Member, error) {
	username, ok, err := r.store.HGet(ctx, membersKey(roomID), token)
	if err != nil {
		return models.Member{}, err
	}
	if !ok {
		return models.Member{}, ErrMemberNotFound
	}
	return models.Member{Token: token, Username: username}, nil
}

// SyncTTL copies the room's remaining lifetime onto every dependent key.
func (r *RoomRepo) SyncTTL(ctx context.Context, roomID string, ttl time.Duration) error {
	return r.store.Expire(ctx, ttl, dependentKeys(roomID)...)
}

// DeleteRoom removes all four room keys in a single command.
func (r *RoomRepo) DeleteRoom(ctx context.Context, roomID string) error {
	return r.store.Del(ctx, append([]string{metaKey(roomID)}, dependentKeys(roomID)...)...)
}
