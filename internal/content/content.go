package content

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxMessageLength bounds message text after sanitization, in runes.
const MaxMessageLength = 4000

var (
	policy        = bluemonday.StrictPolicy()
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// Sanitize strips all HTML from user-supplied text. Message bodies are
// plain text on the wire; markup is a client concern.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// ValidateMessageText sanitizes and length-checks message text. Returns the
// cleaned text, or an error for empty or oversized input.
func ValidateMessageText(input string) (string, error) {
	text := strings.TrimSpace(Sanitize(input))
	if text == "" {
		return "", errors.New("message text cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return "", errors.New("message text too long")
	}
	return text, nil
}

// ValidateUsername checks if the username contains only allowed characters
// (alphanumeric, dot, dash, underscore) and is not empty.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}

// ValidateRoomName checks a group name: non-empty after sanitization and
// reasonably short.
func ValidateRoomName(name string) (string, error) {
	cleaned := strings.TrimSpace(Sanitize(name))
	if cleaned == "" {
		return "", errors.New("room name cannot be empty")
	}
	if utf8.RuneCountInString(cleaned) > 120 {
		return "", errors.New("room name too long")
	}
	return cleaned, nil
}
