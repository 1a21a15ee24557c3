package services

import (
	"errors"
	"fmt"

	"ephemeral-chat/internal/repositories"
	"ephemeral-chat/internal/store"
)

var (
	ErrRoomNotFound     = repositories.ErrRoomNotFound
	ErrMessageNotFound  = repositories.ErrMessageNotFound
	ErrUnauthorized     = errors.New("unauthorized")
	ErrRoomFull         = repositories.ErrRoomFull
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = store.ErrUnavailable
)

// ValidationError reports a rejected input before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
