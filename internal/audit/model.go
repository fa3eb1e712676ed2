// Package audit records reads and changes of privacy-sensitive data, such as
// one user looking up where their friends are.
package audit

import (
	"time"
)

// Entity types.
const (
	EntityPresence = "presence"
	EntityMemory   = "memory"
	EntityReview   = "review"
	EntityUser     = "user"
)

// Actions.
const (
	ActionViewFriendPresence = "view_friend_presence"
	ActionViewFriendReviews  = "view_friend_reviews"
	ActionViewMemoryDetail   = "view_memory_detail"
	ActionDeleteMemory       = "delete_memory"
	ActionChangeVisibility   = "change_memory_visibility"
)

// AuditLog is one stored audit event.
type AuditLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	RequestID  string    `json:"request_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// LogEntry is the input for a new audit event.
type LogEntry struct {
	UserID     string
	EntityType string
	EntityID   string
	Action     string
	RequestID  string
	IPAddress  string
	UserAgent  string
}
