package api

import (
	"net/http"
	"slices"
	"sort"
	"strconv"

	"github.com/onnwee/campusconnect/internal/location"
	"github.com/onnwee/campusconnect/internal/memory"
	"github.com/onnwee/campusconnect/internal/review"
)

// Discover limits.
const (
	discoverLocationLimit = 30
	discoverMemoryLimit   = 20
)

// DiscoverLocation is a location with its review and memory aggregates.
// AverageRating is nil when the location has no reviews.
type DiscoverLocation struct {
	*location.Location
	AverageRating *float64 `json:"avg_rating"`
	ReviewCount   int      `json:"review_count"`
	RecentReviews int      `json:"recent_review_count"`
	MemoryCount   int      `json:"memory_count"`
}

// DiscoverResponse is the GET /discover body.
type DiscoverResponse struct {
	Locations        []*DiscoverLocation `json:"locations"`
	RecentMemories   []*memory.Item      `json:"recent_memories"`
	TotalLocations   int                 `json:"total_locations"`
	CurrentCategory  string              `json:"current_category,omitempty"`
	CurrentMinRating string              `json:"current_min_rating,omitempty"`
	HasPhotosOnly    bool                `json:"has_photos_only"`
}

// Discover handles GET /discover. Filters: category, min_rating (ignored
// when not a number) and has_photos=true.
func (h *Handlers) Discover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	resp := &DiscoverResponse{
		CurrentCategory:  q.Get("category"),
		CurrentMinRating: q.Get("min_rating"),
		HasPhotosOnly:    q.Get("has_photos") == "true",
	}

	locs, err := h.locations.ListActive(ctx)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load locations")
		return
	}
	summaries, err := h.reviews.Summaries(ctx)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load locations")
		return
	}
	counts, err := h.memories.PublicCounts(ctx)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load locations")
		return
	}

	minRating, minErr := strconv.ParseFloat(resp.CurrentMinRating, 64)
	filterRating := resp.CurrentMinRating != "" && minErr == nil
	category := review.Category(resp.CurrentCategory)

	out := []*DiscoverLocation{}
	for _, l := range locs {
		d := &DiscoverLocation{Location: l, MemoryCount: counts[l.ID]}
		if s, ok := summaries[l.ID]; ok && s.ReviewCount > 0 {
			avg := s.AverageRating
			d.AverageRating = &avg
			d.ReviewCount = s.ReviewCount
			d.RecentReviews = s.RecentCount
		}
		if category != "" && !slices.Contains(summaryCategories(summaries[l.ID]), category) {
			continue
		}
		if filterRating && (d.AverageRating == nil || *d.AverageRating < minRating) {
			continue
		}
		if resp.HasPhotosOnly && d.MemoryCount == 0 {
			continue
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.MemoryCount != b.MemoryCount {
			return a.MemoryCount > b.MemoryCount
		}
		if ar, br := ratingOf(a), ratingOf(b); ar != br {
			return ar > br
		}
		return a.ReviewCount > b.ReviewCount
	})
	resp.TotalLocations = len(out)
	if len(out) > discoverLocationLimit {
		out = out[:discoverLocationLimit]
	}
	resp.Locations = out

	recent, err := h.memories.RecentPublicMedia(ctx, discoverMemoryLimit)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load locations")
		return
	}
	resp.RecentMemories = nonNil(recent)

	writeJSON(w, r, http.StatusOK, resp)
}

func summaryCategories(s *review.Summary) []review.Category {
	if s == nil {
		return nil
	}
	return s.Categories
}

// ratingOf sorts unrated locations after every rated one.
func ratingOf(d *DiscoverLocation) float64 {
	if d.AverageRating == nil {
		return -1
	}
	return *d.AverageRating
}
