package services

import (
	"context"
	"errors"

	"ephemeral-chat/internal/models"
	"ephemeral-chat/internal/repositories"
)

// Guard checks that a bearer token was issued for the room.
type Guard struct {
	rooms repositories.RoomRepository
}

func NewGuard(rooms repositories.RoomRepository) *Guard {
	return &Guard{rooms: rooms}
}

// Authorize resolves token to its membership. A missing room is reported before a missing token.
func (g *Guard) Authorize(ctx context.Context, roomID, token string) (models.Member, error) {
	if _, err := liveTTL(ctx, g.rooms, roomID); err != nil {
		return models.Member{}, err
	}
	if token == "" {
		return models.Member{}, ErrUnauthorized
	}
	member, err := g.rooms.GetMember(ctx, roomID, token)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return models.Member{}, ErrUnauthorized
	}
	if err != nil {
		return models.Member{}, err
	}
	return member, nil
}

// ResolveUsername checks a username claimed in a request body against the caller's membership.
// An empty claim falls back to the joined username.
func ResolveUsername(member models.Member, claimed string) (string, error) {
	if claimed == "" || claimed == member.Username {
		return member.Username, nil
	}
	return "", ErrUnauthorized
}
