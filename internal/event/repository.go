package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MutateFunc changes an event in place and returns the activity to record.
// Returning an error aborts the change.
type MutateFunc func(e *Event) (*Activity, error)

// Repository stores events, their rosters and activity logs.
type Repository interface {
	// Create stores e with its roster and records first.
	Create(ctx context.Context, e *Event, first *Activity) error
	Get(ctx context.Context, id string) (*Event, error)
	// Mutate locks the event, applies fn and persists the event, its roster
	// and the returned activity as one change.
	Mutate(ctx context.Context, id string, fn MutateFunc) (*Event, error)
	// Activities returns the log of one event, newest first.
	Activities(ctx context.Context, eventID string) ([]*Activity, error)
	// ByOrganizer returns active events organized by userID that have not
	// ended by now, soonest first.
	ByOrganizer(ctx context.Context, userID string, now time.Time) ([]*Event, error)
	// ActiveForOrganizers returns active events organized by any of userIDs
	// starting at or after startAfter, newest first. limit <= 0 means no limit.
	ActiveForOrganizers(ctx context.Context, userIDs []string, startAfter time.Time, limit int) ([]*Event, error)
}

// InMemoryRepository is a Repository for tests and local development.
type InMemoryRepository struct {
	mu         sync.Mutex
	events     map[string]*Event
	activities []*Activity
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{events: make(map[string]*Event)}
}

func (r *InMemoryRepository) Create(_ context.Context, e *Event, first *Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CurrentParticipants = len(e.Participants)
	r.events[e.ID] = e.clone()
	if first != nil {
		r.appendActivityLocked(e.ID, first)
	}
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e.clone(), nil
}

func (r *InMemoryRepository) Mutate(_ context.Context, id string, fn MutateFunc) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	working := stored.clone()
	act, err := fn(working)
	if err != nil {
		return nil, err
	}
	working.CurrentParticipants = len(working.Participants)
	r.events[id] = working.clone()
	if act != nil {
		r.appendActivityLocked(id, act)
	}
	return working, nil
}

func (r *InMemoryRepository) appendActivityLocked(eventID string, a *Activity) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.EventID = eventID
	stored := *a
	r.activities = append(r.activities, &stored)
}

func (r *InMemoryRepository) Activities(_ context.Context, eventID string) ([]*Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Activity
	for i := len(r.activities) - 1; i >= 0; i-- {
		if a := r.activities[i]; a.EventID == eventID {
			cp := *a
			out = append(out, &cp)
		}
	}
	// stable on equal timestamps: later appends stay first
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) ByOrganizer(_ context.Context, userID string, now time.Time) ([]*Event, error) {
	out := r.filter(func(e *Event) bool {
		return e.OrganizerID == userID && e.Status == StatusActive && e.EndsAt.After(now)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *InMemoryRepository) ActiveForOrganizers(_ context.Context, userIDs []string, startAfter time.Time, limit int) ([]*Event, error) {
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	out := r.filter(func(e *Event) bool {
		return wanted[e.OrganizerID] && e.Status == StatusActive && !e.StartsAt.Before(startAfter)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) filter(match func(*Event) bool) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Event
	for _, e := range r.events {
		if match(e) {
			out = append(out, e.clone())
		}
	}
	return out
}
