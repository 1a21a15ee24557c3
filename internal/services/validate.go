package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	RoomIDLength      = 21
	MaxUsernameLength = 100
	MaxTextLength     = 1000
	MaxEmojiLength    = 32

	ActionAdd    = "add"
	ActionRemove = "remove"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{21}$`)

// ValidRoomID reports whether id has the shape of a generated room id.
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

func validateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return invalid("username", "must not be empty")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return invalid("username", "must be at most 100 characters")
	}
	return nil
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid("text", "must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return invalid("text", "must be at most 1000 characters")
	}
	return nil
}

func validateEmoji(emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return invalid("emoji", "must not be empty")
	}
	if utf8.RuneCountInString(emoji) > MaxEmojiLength {
		return invalid("emoji", "too long")
	}
	return nil
}

func validateAction(action string) error {
	if action != ActionAdd && action != ActionRemove {
		return invalid("action", "must be add or remove")
	}
	return nil
}

func validateMessageID(id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("messageId", "must not be empty")
	}
	return nil
}
