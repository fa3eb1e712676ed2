package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository stores users. Create fails with ErrUsernameTaken or ErrEmailTaken.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// GetMany returns the users that exist among ids, keyed by id.
	GetMany(ctx context.Context, ids []string) (map[string]*User, error)
	// Search matches username, first or last name case-insensitively, skipping
	// exclude. An empty query matches everyone. Ordered by username.
	Search(ctx context.Context, query string, exclude []string, limit int) ([]*User, error)
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}

// InMemoryRepository is a Repository for tests and local development.
type InMemoryRepository struct {
	mu         sync.RWMutex
	users      map[string]*User
	byUsername map[string]string // lowercased username -> id
	byEmail    map[string]string
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:      make(map[string]*User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Create stores u, assigning an ID and timestamps when unset.
func (r *InMemoryRepository) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	uname := strings.ToLower(u.Username)
	if _, ok := r.byUsername[uname]; ok {
		return ErrUsernameTaken
	}
	if _, ok := r.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.LastSeen.IsZero() {
		u.LastSeen = now
	}

	stored := *u
	r.users[u.ID] = &stored
	r.byUsername[uname] = u.ID
	r.byEmail[u.Email] = u.ID
	return nil
}

// GetByID returns a copy of the user.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

// GetByUsername looks the user up case-insensitively.
func (r *InMemoryRepository) GetByUsername(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *r.users[id]
	return &out, nil
}

// GetMany returns copies of the users found.
func (r *InMemoryRepository) GetMany(_ context.Context, ids []string) (map[string]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

// Search scans all users.
func (r *InMemoryRepository) Search(_ context.Context, query string, exclude []string, limit int) ([]*User, error) {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	q := strings.ToLower(query)

	r.mu.RLock()
	var results []*User
	for _, u := range r.users {
		if skip[u.ID] {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(u.Username), q) &&
			!strings.Contains(strings.ToLower(u.FirstName), q) &&
			!strings.Contains(strings.ToLower(u.LastName), q) {
			continue
		}
		cp := *u
		results = append(results, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool { return results[i].Username < results[j].Username })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// TouchLastSeen updates the last activity time.
func (r *InMemoryRepository) TouchLastSeen(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastSeen = at
	return nil
}
