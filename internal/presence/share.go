// Package presence implements the location sharing ledger. A share makes a
// user's location visible to friends for a bounded time and drives the live
// occupant count of the shared location.
package presence

import (
	"fmt"
	"strconv"
	"time"

	"github.com/onnwee/campusconnect/internal/apperr"
)

// DefaultTTL is how long a share stays live.
const DefaultTTL = 4 * time.Hour

// Feed limits.
const (
	FriendFeedWindow = 24 * time.Hour
	FriendFeedLimit  = 20
)

// Errors.
var (
	ErrNoActiveShare = fmt.Errorf("%w: no active share", apperr.ErrNotFound)
	ErrInvalidStatus = fmt.Errorf("%w: invalid status message", apperr.ErrInvalidInput)
	ErrNotVisible    = fmt.Errorf("%w: share is only visible to friends", apperr.ErrForbidden)
	ErrShareConflict = fmt.Errorf("%w: another share was activated concurrently", apperr.ErrConflict)
)

// Status is the message a sharer attaches to their location.
type Status string

const (
	StatusStudying  Status = "studying"
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
)

// ParseStatus converts a form value. Empty means studying.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case "":
		return StatusStudying, nil
	case StatusStudying, StatusAvailable, StatusBusy:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// Share is one location share. It is inert once now reaches ExpiresAt,
// whatever the Active flag says.
type Share struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	LocationID string    `json:"location_id"`
	Status     Status    `json:"status_message"`
	Active     bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsLive reports whether the share is active and unexpired at now.
func (s *Share) IsLive(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

// SinceShared describes how long ago the share was created.
func (s *Share) SinceShared(now time.Time) string {
	d := now.Sub(s.CreatedAt)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " ago"
	}
	return plural(int(d/(24*time.Hour)), "day") + " ago"
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// ReviewPrompt asks the user to review the location they just left.
type ReviewPrompt struct {
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
}

// FriendShare is a friend's live share as shown on the dashboard.
type FriendShare struct {
	Share
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	LocationName string `json:"location_name"`
}
