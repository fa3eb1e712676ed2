package audit

import (
	"context"
	"errors"
	"net/http"

	"github.com/onnwee/campusconnect/internal/middleware"
)

var (
	ErrNilRepository     = errors.New("audit repository cannot be nil")
	ErrInvalidEntityType = errors.New("invalid entity type")
	ErrInvalidEntityID   = errors.New("entity ID cannot be empty")
	ErrInvalidAction     = errors.New("invalid action")
)

// ValidEntityTypes is the whitelist of auditable entity types.
var ValidEntityTypes = map[string]bool{
	EntityPresence: true,
	EntityMemory:   true,
	EntityReview:   true,
	EntityUser:     true,
}

// ValidActions is the whitelist of auditable actions.
var ValidActions = map[string]bool{
	ActionViewFriendPresence: true,
	ActionViewFriendReviews:  true,
	ActionViewMemoryDetail:   true,
	ActionDeleteMemory:       true,
	ActionChangeVisibility:   true,
}

func validateLogEntry(entityType, entityID, action string) error {
	if !ValidEntityTypes[entityType] {
		return ErrInvalidEntityType
	}
	if entityID == "" {
		return ErrInvalidEntityID
	}
	if !ValidActions[action] {
		return ErrInvalidAction
	}
	return nil
}

// LogAccess records an event for the user and request in ctx.
// It fails closed: a storage error is returned to the caller.
func LogAccess(ctx context.Context, repo Repository, entityType, entityID, action string) error {
	if repo == nil {
		return ErrNilRepository
	}
	if err := validateLogEntry(entityType, entityID, action); err != nil {
		return err
	}
	_, err := repo.LogAccess(ctx, LogEntry{
		UserID:     middleware.GetUserID(ctx),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		RequestID:  middleware.GetRequestID(ctx),
	})
	return err
}

// LogAccessFromRequest is LogAccess plus client IP and user agent.
func LogAccessFromRequest(r *http.Request, repo Repository, entityType, entityID, action string) error {
	if repo == nil {
		return ErrNilRepository
	}
	if err := validateLogEntry(entityType, entityID, action); err != nil {
		return err
	}
	ctx := r.Context()
	_, err := repo.LogAccess(ctx, LogEntry{
		UserID:     middleware.GetUserID(ctx),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		RequestID:  middleware.GetRequestID(ctx),
		IPAddress:  middleware.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	return err
}
