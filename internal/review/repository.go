package review

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/campusconnect/internal/location"
)

// Repository stores reviews.
type Repository interface {
	// Upsert writes r keyed on (user, location), then sets the location's
	// crowd level to the dominant level among reviews created at or after
	// crowdSince, all in one change.
	Upsert(ctx context.Context, r *Review, crowdSince time.Time) (*UpsertResult, error)
	// RecentCrowdLevels returns crowd levels of reviews created at or after
	// since, newest first.
	RecentCrowdLevels(ctx context.Context, locationID string, since time.Time) ([]location.CrowdLevel, error)
	ForLocation(ctx context.Context, locationID string, limit int) ([]*Review, error)
	LocationStats(ctx context.Context, locationID string) (*LocationStats, error)
	ByUser(ctx context.Context, userID string) ([]*Review, error)
	// ByUsers returns reviews by any of userIDs, newest first.
	ByUsers(ctx context.Context, userIDs []string, limit int) ([]*Review, error)
	Recent(ctx context.Context, limit int) ([]*Review, error)
	// Summaries aggregates all reviews per location; RecentCount counts
	// those created at or after since.
	Summaries(ctx context.Context, since time.Time) (map[string]*Summary, error)
}

// CrowdRecorder receives recomputed crowd levels.
type CrowdRecorder interface {
	SetCrowdLevel(ctx context.Context, locationID string, level location.CrowdLevel) error
}

// InMemoryRepository is a Repository for tests and local development.
type InMemoryRepository struct {
	mu      sync.Mutex
	reviews map[[2]string]*Review // (user, location) -> review
	crowd   CrowdRecorder
}

// NewInMemoryRepository creates an empty repository reporting crowd levels
// to crowd.
func NewInMemoryRepository(crowd CrowdRecorder) *InMemoryRepository {
	return &InMemoryRepository{reviews: make(map[[2]string]*Review), crowd: crowd}
}

func (m *InMemoryRepository) Upsert(ctx context.Context, r *Review, crowdSince time.Time) (*UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]string{r.UserID, r.LocationID}
	res := &UpsertResult{}
	if existing, ok := m.reviews[key]; ok {
		r.ID = existing.ID
	} else {
		r.ID = uuid.NewString()
		res.Inserted = true
	}
	stored := *r
	m.reviews[key] = &stored

	levels := m.crowdLevelsLocked(r.LocationID, crowdSince)
	if level, ok := DominantCrowdLevel(levels); ok {
		if m.crowd != nil {
			if err := m.crowd.SetCrowdLevel(ctx, r.LocationID, level); err != nil {
				return nil, err
			}
		}
		res.CrowdLevel, res.CrowdUpdated = level, true
	}
	return res, nil
}

func (m *InMemoryRepository) RecentCrowdLevels(_ context.Context, locationID string, since time.Time) ([]location.CrowdLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.crowdLevelsLocked(locationID, since), nil
}

func (m *InMemoryRepository) crowdLevelsLocked(locationID string, since time.Time) []location.CrowdLevel {
	recent := m.filterLocked(func(r *Review) bool {
		return r.LocationID == locationID && !r.CreatedAt.Before(since)
	})
	levels := make([]location.CrowdLevel, len(recent))
	for i, r := range recent {
		levels[i] = r.CrowdLevel
	}
	return levels
}

// filterLocked returns copies of matching reviews, newest first.
func (m *InMemoryRepository) filterLocked(match func(*Review) bool) []*Review {
	var out []*Review
	for _, r := range m.reviews {
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *InMemoryRepository) filter(match func(*Review) bool, limit int) []*Review {
	m.mu.Lock()
	out := m.filterLocked(match)
	m.mu.Unlock()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *InMemoryRepository) ForLocation(_ context.Context, locationID string, limit int) ([]*Review, error) {
	return m.filter(func(r *Review) bool { return r.LocationID == locationID }, limit), nil
}

func (m *InMemoryRepository) LocationStats(_ context.Context, locationID string) (*LocationStats, error) {
	all := m.filter(func(r *Review) bool { return r.LocationID == locationID }, 0)
	stats := &LocationStats{CrowdDistribution: make(map[location.CrowdLevel]int)}
	sum := 0.0
	for _, r := range all {
		sum += r.Overall
		stats.CrowdDistribution[r.CrowdLevel]++
	}
	stats.TotalReviews = len(all)
	if len(all) > 0 {
		stats.AverageRating = roundRating(sum / float64(len(all)))
	}
	return stats, nil
}

func (m *InMemoryRepository) ByUser(_ context.Context, userID string) ([]*Review, error) {
	return m.filter(func(r *Review) bool { return r.UserID == userID }, 0), nil
}

func (m *InMemoryRepository) ByUsers(_ context.Context, userIDs []string, limit int) ([]*Review, error) {
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	return m.filter(func(r *Review) bool { return wanted[r.UserID] }, limit), nil
}

func (m *InMemoryRepository) Recent(_ context.Context, limit int) ([]*Review, error) {
	return m.filter(func(*Review) bool { return true }, limit), nil
}

func (m *InMemoryRepository) Summaries(_ context.Context, since time.Time) (map[string]*Summary, error) {
	all := m.filter(func(*Review) bool { return true }, 0)
	out := make(map[string]*Summary)
	sums := make(map[string]float64)
	seenCategory := make(map[string]map[Category]bool)
	for _, r := range all {
		s, ok := out[r.LocationID]
		if !ok {
			s = &Summary{LocationID: r.LocationID}
			out[r.LocationID] = s
			seenCategory[r.LocationID] = make(map[Category]bool)
		}
		s.ReviewCount++
		sums[r.LocationID] += r.Overall
		if !r.CreatedAt.Before(since) {
			s.RecentCount++
		}
		if !seenCategory[r.LocationID][r.Category] {
			seenCategory[r.LocationID][r.Category] = true
			s.Categories = append(s.Categories, r.Category)
		}
	}
	for id, s := range out {
		s.AverageRating = roundRating(sums[id] / float64(s.ReviewCount))
		sort.Slice(s.Categories, func(i, j int) bool { return s.Categories[i] < s.Categories[j] })
	}
	return out, nil
}
