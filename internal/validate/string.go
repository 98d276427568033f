// Package validate checks request payloads at the API boundary so malformed
// input is reported inline before any network call.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors.
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// controlChars matches ASCII control characters other than tab and newlines.
var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength  int  // Minimum rune count (0 = no minimum)
	MaxLength  int  // Maximum rune count (0 = no maximum)
	AllowEmpty bool // Whether empty strings are allowed
	TrimSpace  bool // Whether to trim whitespace before validation
	SingleLine bool // Whether newlines are rejected
}

// String validates s against the constraints and returns the (optionally
// trimmed) value.
func String(s string, c StringConstraints) (string, error) {
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !c.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidCharacters)
	}
	if controlChars.MatchString(s) {
		return "", fmt.Errorf("%w: control characters", ErrInvalidCharacters)
	}
	if c.SingleLine && strings.ContainsAny(s, "\r\n") {
		return "", fmt.Errorf("%w: line breaks", ErrInvalidCharacters)
	}

	length := utf8.RuneCountInString(s)
	if c.MinLength > 0 && length < c.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, c.MinLength)
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, c.MaxLength)
	}

	return s, nil
}

// QuestionTitle validates a question title: 3-150 characters, one line.
func QuestionTitle(title string) (string, error) {
	return String(title, StringConstraints{
		MinLength:  3,
		MaxLength:  150,
		TrimSpace:  true,
		SingleLine: true,
	})
}

// QuestionBody validates an optional question body of up to 2000 characters.
func QuestionBody(body string) (string, error) {
	return String(body, StringConstraints{
		MaxLength:  2000,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// ResponseBody validates a response body: required, up to 1000 characters.
func ResponseBody(body string) (string, error) {
	return String(body, StringConstraints{
		MinLength: 1,
		MaxLength: 1000,
		TrimSpace: true,
	})
}

// PollOptionLabel validates a poll option label: 1-60 characters, one line.
func PollOptionLabel(label string) (string, error) {
	return String(label, StringConstraints{
		MinLength:  1,
		MaxLength:  60,
		TrimSpace:  true,
		SingleLine: true,
	})
}
