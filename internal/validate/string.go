// Package validate normalizes and checks user-supplied text and files
// before they reach the domain services.
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

// Field limits shared with the database schema.
const (
	UsernameMaxLength          = 150
	PasswordMinLength          = 8
	MemoryTitleMaxLength       = 200
	MemoryDescriptionMaxLength = 1000
	EventTitleMaxLength        = 200
	ReviewTextMaxLength        = 500
	TagMaxLength               = 50
	SearchQueryMaxLength       = 100
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9@.+_\-]+$`)

// StringConstraints describes an acceptable string.
type StringConstraints struct {
	MinLength      int // in runes, 0 = no minimum
	MaxLength      int // in runes, 0 = no maximum
	AllowedPattern *regexp.Regexp
	AllowEmpty     bool
	TrimSpace      bool
}

// String checks s against c and returns it, trimmed if requested.
func String(s string, c StringConstraints) (string, error) {
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if c.AllowEmpty {
			return "", nil
		}
		return "", ErrEmpty
	}

	n := utf8.RuneCountInString(s)
	if c.MinLength > 0 && n < c.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, n, c.MinLength)
	}
	if c.MaxLength > 0 && n > c.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, n, c.MaxLength)
	}
	if c.AllowedPattern != nil && !c.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}
	return s, nil
}

// Username allows letters, digits and @.+-_ up to 150 characters.
func Username(name string) (string, error) {
	return String(name, StringConstraints{
		MinLength:      1,
		MaxLength:      UsernameMaxLength,
		AllowedPattern: usernamePattern,
		TrimSpace:      true,
	})
}

// Password only enforces a minimum length. It is never trimmed.
func Password(pw string) error {
	_, err := String(pw, StringConstraints{MinLength: PasswordMinLength})
	return err
}

// MemoryTitle is required, at most 200 characters.
func MemoryTitle(title string) (string, error) {
	return String(title, StringConstraints{MinLength: 1, MaxLength: MemoryTitleMaxLength, TrimSpace: true})
}

// MemoryDescription is optional, at most 1000 characters.
func MemoryDescription(desc string) (string, error) {
	return String(desc, StringConstraints{MaxLength: MemoryDescriptionMaxLength, AllowEmpty: true, TrimSpace: true})
}

// EventTitle is required, at most 200 characters.
func EventTitle(title string) (string, error) {
	return String(title, StringConstraints{MinLength: 1, MaxLength: EventTitleMaxLength, TrimSpace: true})
}

// ReviewText is optional free text.
func ReviewText(text string) (string, error) {
	return String(text, StringConstraints{MaxLength: ReviewTextMaxLength, AllowEmpty: true, TrimSpace: true})
}

// SearchQuery is required and bounded.
func SearchQuery(q string) (string, error) {
	return String(q, StringConstraints{MinLength: 1, MaxLength: SearchQueryMaxLength, TrimSpace: true})
}

// Tags splits a comma-separated list, trimming entries and dropping empty ones.
func Tags(raw string) ([]string, error) {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		tag, err := String(part, StringConstraints{MaxLength: TagMaxLength, AllowEmpty: true, TrimSpace: true})
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", strings.TrimSpace(part), err)
		}
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}
