package location

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository stores locations. The occupant count and crowd level are
// derived values written only by the presence ledger and review aggregator.
type Repository interface {
	// Get returns an active location.
	Get(ctx context.Context, id string) (*Location, error)
	// ListActive returns active locations ordered by zone then name.
	ListActive(ctx context.Context) ([]*Location, error)
	// Upsert creates or replaces the static attributes of a location,
	// leaving derived values untouched on existing rows.
	Upsert(ctx context.Context, loc *Location) error
	SetActiveUsers(ctx context.Context, id string, count int) error
	SetCrowdLevel(ctx context.Context, id string, level CrowdLevel) error
}

// InMemoryRepository is a Repository for tests and local development.
type InMemoryRepository struct {
	mu        sync.RWMutex
	locations map[string]*Location
	now       func() time.Time
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{locations: make(map[string]*Location), now: time.Now}
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.locations[id]
	if !ok || !loc.Active {
		return nil, ErrLocationNotFound
	}
	out := *loc
	return &out, nil
}

func (r *InMemoryRepository) ListActive(_ context.Context) ([]*Location, error) {
	r.mu.RLock()
	out := make([]*Location, 0, len(r.locations))
	for _, loc := range r.locations {
		if loc.Active {
			cp := *loc
			out = append(out, &cp)
		}
	}
	r.mu.RUnlock()
	sortLocations(out)
	return out, nil
}

func (r *InMemoryRepository) Upsert(_ context.Context, loc *Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *loc
	if existing, ok := r.locations[loc.ID]; ok {
		stored.ActiveUsers = existing.ActiveUsers
		stored.CrowdLevel = existing.CrowdLevel
	}
	if stored.CrowdLevel == "" {
		stored.CrowdLevel = CrowdLight
	}
	stored.UpdatedAt = r.now().UTC()
	r.locations[loc.ID] = &stored
	return nil
}

func (r *InMemoryRepository) SetActiveUsers(_ context.Context, id string, count int) error {
	return r.update(id, func(loc *Location) { loc.ActiveUsers = count })
}

func (r *InMemoryRepository) SetCrowdLevel(_ context.Context, id string, level CrowdLevel) error {
	if !level.Valid() {
		return ErrInvalidCrowdLevel
	}
	return r.update(id, func(loc *Location) { loc.CrowdLevel = level })
}

func (r *InMemoryRepository) update(id string, fn func(*Location)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locations[id]
	if !ok {
		return ErrLocationNotFound
	}
	fn(loc)
	loc.UpdatedAt = r.now().UTC()
	return nil
}

var zoneOrder = map[Zone]int{ZoneA: 0, ZoneB: 1, ZoneC: 2, ZoneFreeSpace: 3}

func sortLocations(locs []*Location) {
	sort.Slice(locs, func(i, j int) bool {
		if zi, zj := zoneOrder[locs[i].Zone], zoneOrder[locs[j].Zone]; zi != zj {
			return zi < zj
		}
		return locs[i].Name < locs[j].Name
	})
}
