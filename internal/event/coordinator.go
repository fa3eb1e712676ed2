package event

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/campusconnect/internal/location"
	"github.com/onnwee/campusconnect/internal/tracing"
	"github.com/onnwee/campusconnect/internal/validate"
)

// RecentWindow is how far back RecentForUsers looks at start times.
const RecentWindow = 2 * time.Hour

// Coordinator applies event state transitions.
type Coordinator struct {
	repo      Repository
	locations location.Repository
	metrics   *Metrics
	now       func() time.Time
}

// NewCoordinator creates a Coordinator. metrics may be nil.
func NewCoordinator(repo Repository, locations location.Repository, metrics *Metrics) *Coordinator {
	return &Coordinator{repo: repo, locations: locations, metrics: metrics, now: time.Now}
}

// CreateInput describes a new event.
type CreateInput struct {
	OrganizerID     string
	LocationID      string
	Type            string
	Title           string
	Description     string
	StartsAt        time.Time
	EndsAt          time.Time
	MaxParticipants int
	Public          bool
}

// Create schedules an event with the organizer as its first participant.
func (c *Coordinator) Create(ctx context.Context, in CreateInput) (_ *Event, err error) {
	ctx, end := tracing.StartSpan(ctx, "event.Create")
	defer func() { end(err) }()

	title, err := validate.EventTitle(in.Title)
	if err != nil {
		return nil, ErrMissingTitle
	}
	typ, err := ParseType(in.Type)
	if err != nil {
		return nil, err
	}
	if in.MaxParticipants < 1 {
		return nil, ErrInvalidCapacity
	}
	if !in.EndsAt.After(in.StartsAt) {
		return nil, ErrInvalidWindow
	}
	if _, err := c.locations.Get(ctx, in.LocationID); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	e := &Event{
		OrganizerID:     in.OrganizerID,
		LocationID:      in.LocationID,
		Type:            typ,
		Title:           title,
		Description:     strings.TrimSpace(in.Description),
		StartsAt:        in.StartsAt.UTC(),
		EndsAt:          in.EndsAt.UTC(),
		MaxParticipants: in.MaxParticipants,
		Status:          StatusActive,
		Public:          in.Public,
		CreatedAt:       now,
		Participants:    []string{in.OrganizerID},
	}
	act := &Activity{UserID: in.OrganizerID, Type: ActivityCreated, CreatedAt: now}
	if err := c.repo.Create(ctx, e, act); err != nil {
		return nil, err
	}
	c.metrics.record(ActivityCreated)
	slog.InfoContext(ctx, "event created", "event_id", e.ID, "organizer_id", e.OrganizerID, "location_id", e.LocationID)
	return e, nil
}

// Start marks an event as started. Only the organizer may start it.
func (c *Coordinator) Start(ctx context.Context, eventID, callerID string) (*Event, error) {
	return c.mutate(ctx, eventID, func(e *Event, now time.Time) (*Activity, error) {
		if e.OrganizerID != callerID {
			return nil, ErrNotOrganizer
		}
		if e.Status != StatusActive {
			return nil, ErrNotActive
		}
		if e.Started {
			return nil, ErrAlreadyStarted
		}
		e.Started = true
		e.StartedAt = &now
		return &Activity{UserID: callerID, Type: ActivityStarted, CreatedAt: now}, nil
	})
}

// Join adds userID to the roster.
func (c *Coordinator) Join(ctx context.Context, eventID, userID string) (*Event, error) {
	return c.mutate(ctx, eventID, func(e *Event, now time.Time) (*Activity, error) {
		if e.Status != StatusActive {
			return nil, ErrNotActive
		}
		if e.HasParticipant(userID) {
			return nil, ErrAlreadyJoined
		}
		if e.IsFull() {
			return nil, ErrEventFull
		}
		e.Participants = append(e.Participants, userID)
		return &Activity{UserID: userID, Type: ActivityJoined, CreatedAt: now}, nil
	})
}

// Leave removes userID from the roster. The organizer cannot leave.
func (c *Coordinator) Leave(ctx context.Context, eventID, userID string) (*Event, error) {
	return c.mutate(ctx, eventID, func(e *Event, now time.Time) (*Activity, error) {
		if e.OrganizerID == userID {
			return nil, ErrOrganizerLeave
		}
		if e.Status != StatusActive {
			return nil, ErrNotActive
		}
		if !e.HasParticipant(userID) {
			return nil, ErrNotParticipating
		}
		kept := e.Participants[:0]
		for _, id := range e.Participants {
			if id != userID {
				kept = append(kept, id)
			}
		}
		e.Participants = kept
		return &Activity{UserID: userID, Type: ActivityLeft, CreatedAt: now}, nil
	})
}

// Cancel cancels an event. Only the organizer may cancel it.
func (c *Coordinator) Cancel(ctx context.Context, eventID, callerID string) (*Event, error) {
	return c.mutate(ctx, eventID, func(e *Event, now time.Time) (*Activity, error) {
		if e.OrganizerID != callerID {
			return nil, ErrNotOrganizer
		}
		switch e.Status {
		case StatusCancelled:
			return nil, ErrAlreadyCancelled
		case StatusCompleted:
			return nil, ErrNotActive
		}
		e.Status = StatusCancelled
		return &Activity{UserID: callerID, Type: ActivityCancelled, CreatedAt: now}, nil
	})
}

func (c *Coordinator) mutate(ctx context.Context, eventID string, fn func(*Event, time.Time) (*Activity, error)) (_ *Event, err error) {
	ctx, end := tracing.StartSpan(ctx, "event.Mutate")
	defer func() { end(err) }()

	now := c.now().UTC()
	var recorded ActivityType
	e, err := c.repo.Mutate(ctx, eventID, func(e *Event) (*Activity, error) {
		act, err := fn(e, now)
		if act != nil {
			recorded = act.Type
		}
		return act, err
	})
	if err != nil {
		return nil, err
	}
	c.metrics.record(recorded)
	slog.InfoContext(ctx, "event updated", "event_id", eventID, "activity", recorded,
		"participants", e.CurrentParticipants, "status", e.Status)
	return e, nil
}

// Get returns an event.
func (c *Coordinator) Get(ctx context.Context, eventID string) (*Event, error) {
	return c.repo.Get(ctx, eventID)
}

// Activities returns an event's log, newest first.
func (c *Coordinator) Activities(ctx context.Context, eventID string) ([]*Activity, error) {
	if _, err := c.repo.Get(ctx, eventID); err != nil {
		return nil, err
	}
	return c.repo.Activities(ctx, eventID)
}

// OrganizedBy returns userID's upcoming and ongoing events.
func (c *Coordinator) OrganizedBy(ctx context.Context, userID string) ([]*Event, error) {
	return c.repo.ByOrganizer(ctx, userID, c.now().UTC())
}

// RecentForUsers returns active events organized by userIDs that start no
// earlier than two hours ago, newest first.
func (c *Coordinator) RecentForUsers(ctx context.Context, userIDs []string, limit int) ([]*Event, error) {
	return c.repo.ActiveForOrganizers(ctx, userIDs, c.now().UTC().Add(-RecentWindow), limit)
}

// Now returns the coordinator's clock reading, for derived views.
func (c *Coordinator) Now() time.Time {
	return c.now().UTC()
}
