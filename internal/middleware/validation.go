package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	maxMessageLength = 8000
	maxUserIDLength  = 128
	maxTitleLength   = 256
)

// ValidateMessageContent validates a chat message.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("message cannot be empty")
	}
	if len(content) > maxMessageLength {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateUserID validates an owning-user identifier.
func ValidateUserID(id string) error {
	if len(id) == 0 {
		return errors.New("user ID cannot be empty")
	}
	if len(id) > maxUserIDLength {
		return errors.New("user ID exceeds maximum length")
	}
	if !utf8.ValidString(id) {
		return errors.New("user ID must be valid UTF-8")
	}
	return nil
}

// ValidateTitle validates an event summary.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("summary cannot be empty")
	}
	if len(title) > maxTitleLength {
		return errors.New("summary exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("summary must be valid UTF-8")
	}
	return nil
}
