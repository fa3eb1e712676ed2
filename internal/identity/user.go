// Package identity manages campus user accounts and password authentication.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/campusconnect/internal/apperr"
)

// Errors.
var (
	ErrUserNotFound       = fmt.Errorf("%w: user not found", apperr.ErrNotFound)
	ErrUsernameTaken      = fmt.Errorf("%w: username already taken", apperr.ErrConflict)
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", apperr.ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", apperr.ErrInvalidInput)
)

// User is a campus account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	PasswordHash string    `json:"-"`
	LastSeen     time.Time `json:"last_seen"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName is the full name when set, else the username.
func (u *User) DisplayName() string {
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return u.Username
}

// Summary is the public projection embedded in other resources.
type Summary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Summary returns the public projection of u.
func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName()}
}
