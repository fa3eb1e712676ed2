// Package event coordinates campus events: creation, start, roster changes
// and cancellation, each recorded in an append-only activity log.
package event

import (
	"fmt"
	"time"

	"github.com/onnwee/campusconnect/internal/apperr"
)

// Type classifies an event.
type Type string

const (
	TypeStudyGroup Type = "study_group"
	TypeSocial     Type = "social"
	TypeAcademic   Type = "academic"
	TypeSports     Type = "sports"
)

// ParseType converts a form value. Empty means social.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case "":
		return TypeSocial, nil
	case TypeStudyGroup, TypeSocial, TypeAcademic, TypeSports:
		return t, nil
	}
	return "", ErrInvalidType
}

// Status is the lifecycle state. Active events may move to cancelled or
// completed. StatusFull is accepted in storage but never assigned: fullness
// is derived from the roster.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusFull      Status = "full"
)

// ActivityType labels an activity log entry.
type ActivityType string

const (
	ActivityCreated   ActivityType = "created"
	ActivityStarted   ActivityType = "started"
	ActivityJoined    ActivityType = "joined"
	ActivityLeft      ActivityType = "left"
	ActivityCancelled ActivityType = "cancelled"
	ActivityEnded     ActivityType = "ended"
)

// Errors.
var (
	ErrEventNotFound    = fmt.Errorf("%w: event not found", apperr.ErrNotFound)
	ErrInvalidType      = fmt.Errorf("%w: invalid event type", apperr.ErrInvalidInput)
	ErrInvalidCapacity  = fmt.Errorf("%w: max participants must be at least 1", apperr.ErrInvalidInput)
	ErrInvalidWindow    = fmt.Errorf("%w: event must end after it starts", apperr.ErrInvalidInput)
	ErrMissingTitle     = fmt.Errorf("%w: event title is required", apperr.ErrInvalidInput)
	ErrNotOrganizer     = fmt.Errorf("%w: only the organizer can do that", apperr.ErrForbidden)
	ErrOrganizerLeave   = fmt.Errorf("%w: event organizer cannot leave, cancel the event instead", apperr.ErrForbidden)
	ErrNotActive        = fmt.Errorf("%w: event is no longer active", apperr.ErrForbidden)
	ErrEventFull        = fmt.Errorf("%w: event is full", apperr.ErrCapacity)
	ErrAlreadyStarted   = fmt.Errorf("%w: event is already started", apperr.ErrNoChange)
	ErrAlreadyJoined    = fmt.Errorf("%w: already participating in this event", apperr.ErrNoChange)
	ErrNotParticipating = fmt.Errorf("%w: not participating in this event", apperr.ErrNoChange)
	ErrAlreadyCancelled = fmt.Errorf("%w: event is already cancelled", apperr.ErrNoChange)
)

// EndingSoonWindow is how close to its end a started event counts as ending soon.
const EndingSoonWindow = 30 * time.Minute

// Event is a scheduled gathering at a location. The organizer is always on
// the roster and CurrentParticipants always equals len(Participants).
type Event struct {
	ID                  string     `json:"id"`
	OrganizerID         string     `json:"organizer_id"`
	LocationID          string     `json:"location_id"`
	Type                Type       `json:"event_type"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	StartsAt            time.Time  `json:"starts_at"`
	EndsAt              time.Time  `json:"ends_at"`
	MaxParticipants     int        `json:"max_participants"`
	CurrentParticipants int        `json:"current_participants"`
	Status              Status     `json:"status"`
	Started             bool       `json:"is_started"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	Public              bool       `json:"is_public"`
	CreatedAt           time.Time  `json:"created_at"`
	Participants        []string   `json:"participants"`
}

// HasParticipant reports whether userID is on the roster.
func (e *Event) HasParticipant(userID string) bool {
	for _, id := range e.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// IsFull reports whether the roster has reached capacity.
func (e *Event) IsFull() bool {
	return len(e.Participants) >= e.MaxParticipants
}

// EndingSoon reports whether a started event ends within 30 minutes of now.
func (e *Event) EndingSoon(now time.Time) bool {
	return e.Started && !now.Add(EndingSoonWindow).Before(e.EndsAt)
}

// TimeUntilStart describes when the event starts relative to now.
func (e *Event) TimeUntilStart(now time.Time) string {
	if e.Started {
		return "ongoing"
	}
	diff := e.StartsAt.Sub(now)
	switch {
	case diff <= 0:
		return "starting now"
	case diff < time.Minute:
		return "starting soon"
	case diff < time.Hour:
		return plural(int(diff/time.Minute), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff/time.Hour), "hour")
	default:
		return plural(int(diff/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("in 1 %s", unit)
	}
	return fmt.Sprintf("in %d %ss", n, unit)
}

func (e *Event) clone() *Event {
	out := *e
	out.Participants = append([]string(nil), e.Participants...)
	if e.StartedAt != nil {
		t := *e.StartedAt
		out.StartedAt = &t
	}
	return &out
}

// Activity is one entry in an event's activity log.
type Activity struct {
	ID        string       `json:"id"`
	EventID   string       `json:"event_id"`
	UserID    string       `json:"user_id"`
	Type      ActivityType `json:"activity_type"`
	CreatedAt time.Time    `json:"created_at"`
	Username  string       `json:"username,omitempty"`
}
