package validate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidEmail is returned for malformed addresses.
var ErrInvalidEmail = errors.New("invalid email format")

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)

// Email returns the trimmed, lowercased address. Length limits follow RFC 5321.
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmpty
	}
	if len(email) > 254 {
		return "", ErrStringTooLong
	}
	local, _, ok := strings.Cut(email, "@")
	if !ok || !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}
	if len(local) > 64 {
		return "", ErrStringTooLong
	}
	return email, nil
}
