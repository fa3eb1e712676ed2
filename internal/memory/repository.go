package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/onnwee/campusconnect/internal/media"
)

// FeedQuery selects the memories a viewer may see.
type FeedQuery struct {
	ViewerID  string
	FriendIDs []string
	After     *Cursor
	Limit     int
}

// UpdateFunc changes a locked memory in place.
type UpdateFunc func(m *Memory) error

// Repository persists memories and the like relation.
type Repository interface {
	Create(ctx context.Context, m *Memory) error
	Get(ctx context.Context, id string) (*Memory, error)
	// Feed returns non-archived memories that are public, authored by the
	// viewer, or friends-only by one of FriendIDs, newest first.
	Feed(ctx context.Context, q FeedQuery) ([]*Memory, error)
	ByUser(ctx context.Context, userID string, includeArchived bool, after *Cursor, limit int) ([]*Memory, error)
	UserStats(ctx context.Context, userID string) (*Stats, error)
	// ToggleLike flips userID's like and moves likes_count with it.
	ToggleLike(ctx context.Context, memoryID, userID string) (liked bool, count int, err error)
	LikedSet(ctx context.Context, userID string, memoryIDs []string) (map[string]bool, error)
	IncrementView(ctx context.Context, id string) (int, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (*Memory, error)
	Delete(ctx context.Context, id string) error
	// PublicMedia lists public, non-archived image and video memories,
	// optionally for one location, newest first.
	PublicMedia(ctx context.Context, locationID string, limit int) ([]*Memory, error)
	// PublicCounts counts public, non-archived memories per location.
	PublicCounts(ctx context.Context) (map[string]int, error)
}

// InMemoryRepository is a map-backed Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	memories map[string]*Memory
	likes    map[string]map[string]bool // memory id -> user ids
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		memories: make(map[string]*Memory),
		likes:    make(map[string]map[string]bool),
	}
}

func (r *InMemoryRepository) Create(_ context.Context, m *Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	r.memories[m.ID] = m.clone()
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (*Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.memories[id]
	if !ok {
		return nil, ErrMemoryNotFound
	}
	return m.clone(), nil
}

func (r *InMemoryRepository) Feed(_ context.Context, q FeedQuery) ([]*Memory, error) {
	friends := make(map[string]bool, len(q.FriendIDs))
	for _, id := range q.FriendIDs {
		friends[id] = true
	}
	return r.page(q.After, q.Limit, func(m *Memory) bool {
		if m.Archived {
			return false
		}
		switch {
		case m.Visibility == VisibilityPublic:
			return true
		case q.ViewerID != "" && m.UserID == q.ViewerID:
			return true
		case m.Visibility == VisibilityFriends:
			return friends[m.UserID]
		}
		return false
	}), nil
}

func (r *InMemoryRepository) ByUser(_ context.Context, userID string, includeArchived bool, after *Cursor, limit int) ([]*Memory, error) {
	return r.page(after, limit, func(m *Memory) bool {
		return m.UserID == userID && (includeArchived || !m.Archived)
	}), nil
}

func (r *InMemoryRepository) page(after *Cursor, limit int, match func(*Memory) bool) []*Memory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Memory
	for _, m := range r.memories {
		if match(m) && after.Before(m) {
			out = append(out, m.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return newestFirst(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *InMemoryRepository) UserStats(_ context.Context, userID string) (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s Stats
	for _, m := range r.memories {
		if m.UserID != userID {
			continue
		}
		s.Total++
		s.TotalLikes += m.LikesCount
		if m.Archived {
			s.Archived++
		}
	}
	s.Active = s.Total - s.Archived
	return &s, nil
}

func (r *InMemoryRepository) ToggleLike(_ context.Context, memoryID, userID string) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memories[memoryID]
	if !ok {
		return false, 0, ErrMemoryNotFound
	}
	likers := r.likes[memoryID]
	if likers == nil {
		likers = make(map[string]bool)
		r.likes[memoryID] = likers
	}
	if likers[userID] {
		delete(likers, userID)
		m.LikesCount = max(0, m.LikesCount-1)
		return false, m.LikesCount, nil
	}
	likers[userID] = true
	m.LikesCount++
	return true, m.LikesCount, nil
}

func (r *InMemoryRepository) LikedSet(_ context.Context, userID string, memoryIDs []string) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool)
	for _, id := range memoryIDs {
		if r.likes[id][userID] {
			out[id] = true
		}
	}
	return out, nil
}

func (r *InMemoryRepository) IncrementView(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memories[id]
	if !ok {
		return 0, ErrMemoryNotFound
	}
	m.ViewCount++
	return m.ViewCount, nil
}

func (r *InMemoryRepository) Update(_ context.Context, id string, fn UpdateFunc) (*Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.memories[id]
	if !ok {
		return nil, ErrMemoryNotFound
	}
	working := stored.clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	r.memories[id] = working.clone()
	return working, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memories[id]; !ok {
		return ErrMemoryNotFound
	}
	delete(r.memories, id)
	delete(r.likes, id)
	return nil
}

func (r *InMemoryRepository) PublicMedia(_ context.Context, locationID string, limit int) ([]*Memory, error) {
	return r.page(nil, limit, func(m *Memory) bool {
		return m.Visibility == VisibilityPublic && !m.Archived &&
			(m.MediaType == media.TypeImage || m.MediaType == media.TypeVideo) &&
			(locationID == "" || m.LocationID == locationID)
	}), nil
}

func (r *InMemoryRepository) PublicCounts(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int)
	for _, m := range r.memories {
		if m.Visibility == VisibilityPublic && !m.Archived {
			out[m.LocationID]++
		}
	}
	return out, nil
}
