// Package friendship maintains the friendship graph: requests, responses and
// the symmetric accepted relation used to gate presence and memory visibility.
package friendship

import (
	"fmt"
	"time"

	"github.com/onnwee/campusconnect/internal/apperr"
)

// Status of a relation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusBlocked  Status = "blocked"
)

// Errors.
var (
	ErrRequestNotFound = fmt.Errorf("%w: friend request not found", apperr.ErrNotFound)
	ErrNotRecipient    = fmt.Errorf("%w: only the recipient can respond to a pending request", apperr.ErrForbidden)
	ErrSelfRequest     = fmt.Errorf("%w: cannot send a friend request to yourself", apperr.ErrInvalidInput)
	ErrAlreadyFriends  = fmt.Errorf("%w: already friends", apperr.ErrConflict)
	ErrRequestPending  = fmt.Errorf("%w: friend request already sent", apperr.ErrConflict)
	ErrBlocked         = fmt.Errorf("%w: relation is blocked", apperr.ErrConflict)
	ErrRelationExists  = fmt.Errorf("%w: relation already exists", apperr.ErrConflict)
)

// Friendship is a directed request that becomes a symmetric friendship once
// accepted. At most one exists per unordered pair of users.
type Friendship struct {
	ID         string     `json:"id"`
	FromUserID string     `json:"from_user_id"`
	ToUserID   string     `json:"to_user_id"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// Other returns the user on the other side of f from userID.
func (f *Friendship) Other(userID string) string {
	if f.FromUserID == userID {
		return f.ToUserID
	}
	return f.FromUserID
}

// Involves reports whether userID is either endpoint.
func (f *Friendship) Involves(userID string) bool {
	return f.FromUserID == userID || f.ToUserID == userID
}
