package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ValidateMessageContent validates user-supplied message content. Whitespace-only
// content counts as empty.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateChatID validates a chat ID. IDs are assigned upstream so only shape
// is checked.
func ValidateChatID(id string) error {
	if len(id) == 0 {
		return errors.New("chat ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("chat ID exceeds maximum length")
	}
	return nil
}

// ValidateMessageID validates a message ID.
func ValidateMessageID(id string) error {
	if len(id) == 0 {
		return errors.New("message ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("message ID exceeds maximum length")
	}
	return nil
}

// ValidateAgentID validates an agent ID.
func ValidateAgentID(id string) error {
	if len(id) == 0 {
		return errors.New("agent ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("agent ID exceeds maximum length")
	}
	return nil
}

// ValidateChangeID validates a change ID.
func ValidateChangeID(id string) error {
	if len(id) == 0 {
		return errors.New("change ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("change ID exceeds maximum length")
	}
	return nil
}
