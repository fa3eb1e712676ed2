package friendship

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository stores friendship relations.
type Repository interface {
	// Create inserts a pending relation. ErrRelationExists when any relation
	// already links the pair in either direction.
	Create(ctx context.Context, f *Friendship) error
	Get(ctx context.Context, id string) (*Friendship, error)
	// Between returns the relation linking a and b in either direction.
	Between(ctx context.Context, a, b string) (*Friendship, error)
	// Resolve atomically accepts or deletes a pending relation addressed to
	// responder. It fails with ErrRequestNotFound or ErrNotRecipient.
	Resolve(ctx context.Context, id, responder string, accept bool, at time.Time) (*Friendship, error)
	// FriendIDs returns the ids linked to userID by an accepted relation.
	FriendIDs(ctx context.Context, userID string) ([]string, error)
	// Pending returns pending relations addressed to userID (received) or
	// initiated by it, newest first.
	Pending(ctx context.Context, userID string, received bool) ([]*Friendship, error)
	// RelationsFor returns every relation involving userID.
	RelationsFor(ctx context.Context, userID string) ([]*Friendship, error)
}

// InMemoryRepository is a Repository for tests and local development.
type InMemoryRepository struct {
	mu        sync.RWMutex
	relations map[string]*Friendship
	pairs     map[[2]string]string // unordered pair -> relation id
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		relations: make(map[string]*Friendship),
		pairs:     make(map[[2]string]string),
	}
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func (r *InMemoryRepository) Create(_ context.Context, f *Friendship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(f.FromUserID, f.ToUserID)
	if _, ok := r.pairs[key]; ok {
		return ErrRelationExists
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	stored := *f
	r.relations[f.ID] = &stored
	r.pairs[key] = f.ID
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (*Friendship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.relations[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	out := *f
	return &out, nil
}

func (r *InMemoryRepository) Between(_ context.Context, a, b string) (*Friendship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.pairs[pairKey(a, b)]
	if !ok {
		return nil, ErrRequestNotFound
	}
	out := *r.relations[id]
	return &out, nil
}

func (r *InMemoryRepository) Resolve(_ context.Context, id, responder string, accept bool, at time.Time) (*Friendship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.relations[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if f.ToUserID != responder || f.Status != StatusPending {
		return nil, ErrNotRecipient
	}
	if accept {
		f.Status = StatusAccepted
		acceptedAt := at
		f.AcceptedAt = &acceptedAt
	} else {
		delete(r.relations, id)
		delete(r.pairs, pairKey(f.FromUserID, f.ToUserID))
	}
	out := *f
	return &out, nil
}

func (r *InMemoryRepository) FriendIDs(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for _, f := range r.relations {
		if f.Status == StatusAccepted && f.Involves(userID) {
			ids = append(ids, f.Other(userID))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *InMemoryRepository) Pending(_ context.Context, userID string, received bool) ([]*Friendship, error) {
	r.mu.RLock()
	var out []*Friendship
	for _, f := range r.relations {
		if f.Status != StatusPending {
			continue
		}
		if (received && f.ToUserID == userID) || (!received && f.FromUserID == userID) {
			cp := *f
			out = append(out, &cp)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) RelationsFor(_ context.Context, userID string) ([]*Friendship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Friendship
	for _, f := range r.relations {
		if f.Involves(userID) {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}
