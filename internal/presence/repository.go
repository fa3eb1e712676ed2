package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository stores shares. Activate, Deactivate and Sweep rewrite the
// occupant count of every location they touch as part of the same change.
type Repository interface {
	// Sweep deactivates active shares with expires_at <= now.
	Sweep(ctx context.Context, now time.Time) (int, error)
	// Activate deactivates userID's active shares and inserts s. It returns
	// every location whose occupant count it rewrote.
	Activate(ctx context.Context, s *Share, now time.Time) (touched []string, err error)
	// Deactivate deactivates userID's active shares, including expired rows
	// not yet swept. It returns the share that was still live, or nil, and
	// every location whose occupant count it rewrote.
	Deactivate(ctx context.Context, userID string, now time.Time) (vacated *Share, touched []string, err error)
	// Current returns userID's live share or ErrNoActiveShare.
	Current(ctx context.Context, userID string, now time.Time) (*Share, error)
	// LiveForUsers returns live shares of userIDs created at or after since,
	// newest first. limit <= 0 means no limit.
	LiveForUsers(ctx context.Context, userIDs []string, now, since time.Time, limit int) ([]*Share, error)
}

// OccupancyRecorder receives recomputed occupant counts.
type OccupancyRecorder interface {
	SetActiveUsers(ctx context.Context, locationID string, count int) error
}

// InMemoryRepository is a Repository for tests and local development.
type InMemoryRepository struct {
	mu        sync.Mutex
	shares    map[string]*Share
	occupancy OccupancyRecorder
}

// NewInMemoryRepository creates an empty repository that reports occupant
// counts to occupancy.
func NewInMemoryRepository(occupancy OccupancyRecorder) *InMemoryRepository {
	return &InMemoryRepository{shares: make(map[string]*Share), occupancy: occupancy}
}

func (r *InMemoryRepository) Sweep(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	touched := make(map[string]bool)
	for _, s := range r.shares {
		if s.Active && !now.Before(s.ExpiresAt) {
			s.Active = false
			touched[s.LocationID] = true
		}
	}
	return len(touched), r.recount(ctx, now, keys(touched)...)
}

func (r *InMemoryRepository) Activate(ctx context.Context, s *Share, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	touched := r.deactivateLocked(s.UserID)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Active = true
	stored := *s
	r.shares[s.ID] = &stored
	touched[s.LocationID] = true
	ids := keys(touched)
	return ids, r.recount(ctx, now, ids...)
}

func (r *InMemoryRepository) Deactivate(ctx context.Context, userID string, now time.Time) (*Share, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var vacated *Share
	for _, s := range r.shares {
		if s.UserID == userID && s.IsLive(now) {
			cp := *s
			vacated = &cp
		}
	}
	touched := r.deactivateLocked(userID)
	if vacated != nil {
		vacated.Active = false
	}
	ids := keys(touched)
	return vacated, ids, r.recount(ctx, now, ids...)
}

func (r *InMemoryRepository) deactivateLocked(userID string) map[string]bool {
	touched := make(map[string]bool)
	for _, s := range r.shares {
		if s.UserID == userID && s.Active {
			s.Active = false
			touched[s.LocationID] = true
		}
	}
	return touched
}

func (r *InMemoryRepository) recount(ctx context.Context, now time.Time, locationIDs ...string) error {
	if r.occupancy == nil {
		return nil
	}
	sort.Strings(locationIDs)
	for _, id := range locationIDs {
		count := 0
		for _, s := range r.shares {
			if s.LocationID == id && s.IsLive(now) {
				count++
			}
		}
		if err := r.occupancy.SetActiveUsers(ctx, id, count); err != nil {
			return err
		}
	}
	return nil
}

func (r *InMemoryRepository) Current(_ context.Context, userID string, now time.Time) (*Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shares {
		if s.UserID == userID && s.IsLive(now) {
			out := *s
			return &out, nil
		}
	}
	return nil, ErrNoActiveShare
}

func (r *InMemoryRepository) LiveForUsers(_ context.Context, userIDs []string, now, since time.Time, limit int) ([]*Share, error) {
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}

	r.mu.Lock()
	var out []*Share
	for _, s := range r.shares {
		if wanted[s.UserID] && s.IsLive(now) && !s.CreatedAt.Before(since) {
			cp := *s
			out = append(out, &cp)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
