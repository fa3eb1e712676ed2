package review

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/onnwee/campusconnect/internal/apperr"
	"github.com/onnwee/campusconnect/internal/audit"
	"github.com/onnwee/campusconnect/internal/location"
	"github.com/onnwee/campusconnect/internal/stats"
	"github.com/onnwee/campusconnect/internal/tracing"
	"github.com/onnwee/campusconnect/internal/validate"
)

// EntityReview labels review upserts in the shared upsert counter.
const EntityReview = "review"

// FriendSource lists a user's friends.
type FriendSource interface {
	FriendIDs(ctx context.Context, userID string) ([]string, error)
}

// AggregatorConfig holds the aggregator's collaborators.
type AggregatorConfig struct {
	Repository Repository
	Locations  location.Repository
	Friends    FriendSource
	Audit      audit.Repository     // optional
	Upserts    *stats.UpsertCounter // optional
}

// Aggregator validates and stores reviews and keeps crowd levels current.
type Aggregator struct {
	repo      Repository
	locations location.Repository
	friends   FriendSource
	audit     audit.Repository
	upserts   *stats.UpsertCounter
	now       func() time.Time
}

// NewAggregator creates an Aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	return &Aggregator{
		repo:      cfg.Repository,
		locations: cfg.Locations,
		friends:   cfg.Friends,
		audit:     cfg.Audit,
		upserts:   cfg.Upserts,
		now:       time.Now,
	}
}

// SubmitInput is the review form.
type SubmitInput struct {
	UserID     string
	LocationID string
	Ratings    Ratings
	CrowdLevel string
	Category   string
	Text       string
}

// SubmitResult is the stored review and whether it was new.
type SubmitResult struct {
	Review       *Review
	Inserted     bool
	LocationName string
}

// Submit creates or overwrites the user's review of a location, then
// recomputes the location's crowd level.
func (a *Aggregator) Submit(ctx context.Context, in SubmitInput) (_ *SubmitResult, err error) {
	ctx, end := tracing.StartSpan(ctx, "review.Submit")
	defer func() { end(err) }()

	if strings.TrimSpace(in.LocationID) == "" || in.CrowdLevel == "" {
		return nil, ErrMissingFields
	}
	if err := in.Ratings.Validate(); err != nil {
		return nil, err
	}
	crowd, err := location.ParseCrowdLevel(in.CrowdLevel)
	if err != nil {
		return nil, err
	}
	category, err := ParseCategory(in.Category)
	if err != nil {
		return nil, err
	}
	text, err := validate.ReviewText(in.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: review text: %v", apperr.ErrInvalidInput, err)
	}
	loc, err := a.locations.Get(ctx, in.LocationID)
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	r := &Review{
		UserID:     in.UserID,
		LocationID: in.LocationID,
		Ratings:    in.Ratings,
		Overall:    in.Ratings.Overall(),
		CrowdLevel: crowd,
		Category:   category,
		Text:       text,
		CreatedAt:  now,
	}
	res, err := a.repo.Upsert(ctx, r, now.Add(-CrowdWindow))
	if err != nil {
		return nil, err
	}
	if res.CrowdUpdated {
		a.invalidate(in.LocationID)
	}
	if a.upserts != nil {
		a.upserts.Record(EntityReview, res.Inserted)
	}
	slog.InfoContext(ctx, "review stored",
		"review_id", r.ID, "location_id", r.LocationID, "inserted", res.Inserted,
		"overall", r.Overall, "crowd_level", res.CrowdLevel)

	r.LocationName = loc.Name
	return &SubmitResult{Review: r, Inserted: res.Inserted, LocationName: loc.Name}, nil
}

// RecomputeCrowdLevel sets the location's crowd level to the dominant level
// among reviews from the last two hours. It does nothing when there are none.
func (a *Aggregator) RecomputeCrowdLevel(ctx context.Context, locationID string) (location.CrowdLevel, bool, error) {
	levels, err := a.repo.RecentCrowdLevels(ctx, locationID, a.now().UTC().Add(-CrowdWindow))
	if err != nil {
		return "", false, err
	}
	level, ok := DominantCrowdLevel(levels)
	if !ok {
		return "", false, nil
	}
	if err := a.locations.SetCrowdLevel(ctx, locationID, level); err != nil {
		return "", false, err
	}
	return level, true, nil
}

// LocationReviews is the review page of one location.
type LocationReviews struct {
	Location *location.Location `json:"location"`
	Reviews  []*Review          `json:"reviews"`
	Stats    *LocationStats     `json:"review_stats"`
}

// ForLocation returns the newest reviews of a location and its stats.
func (a *Aggregator) ForLocation(ctx context.Context, locationID string) (*LocationReviews, error) {
	loc, err := a.locations.Get(ctx, locationID)
	if err != nil {
		return nil, err
	}
	reviews, err := a.repo.ForLocation(ctx, locationID, LocationPageLimit)
	if err != nil {
		return nil, err
	}
	st, err := a.repo.LocationStats(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return &LocationReviews{Location: loc, Reviews: reviews, Stats: st}, nil
}

// CategoryCount is one row of a category breakdown.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// UserReviews is a user's own review history.
type UserReviews struct {
	Reviews           []*Review       `json:"reviews"`
	AverageRating     float64         `json:"avg_rating"`
	TotalReviews      int             `json:"total_reviews"`
	CategoryBreakdown []CategoryCount `json:"category_breakdown"`
}

// ByUser returns userID's reviews, newest first, with summary stats.
func (a *Aggregator) ByUser(ctx context.Context, userID string) (*UserReviews, error) {
	reviews, err := a.repo.ByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &UserReviews{Reviews: reviews, TotalReviews: len(reviews)}
	counts := make(map[Category]int)
	var order []Category
	sum := 0.0
	for _, r := range reviews {
		sum += r.Overall
		if counts[r.Category] == 0 {
			order = append(order, r.Category)
		}
		counts[r.Category]++
	}
	if len(reviews) > 0 {
		out.AverageRating = roundRating(sum / float64(len(reviews)))
	}
	for _, c := range order {
		out.CategoryBreakdown = append(out.CategoryBreakdown, CategoryCount{Category: c, Count: counts[c]})
	}
	sort.SliceStable(out.CategoryBreakdown, func(i, j int) bool {
		return out.CategoryBreakdown[i].Count > out.CategoryBreakdown[j].Count
	})
	return out, nil
}

// FromFriends returns viewerID's friends' reviews, newest first.
func (a *Aggregator) FromFriends(ctx context.Context, viewerID string) ([]*Review, error) {
	friendIDs, err := a.friends.FriendIDs(ctx, viewerID)
	if err != nil || len(friendIDs) == 0 {
		return nil, err
	}
	reviews, err := a.repo.ByUsers(ctx, friendIDs, FriendReviewsLimit)
	if err != nil {
		return nil, err
	}
	if a.audit != nil && len(reviews) > 0 {
		if err := audit.LogAccess(ctx, a.audit, audit.EntityUser, viewerID, audit.ActionViewFriendReviews); err != nil {
			slog.ErrorContext(ctx, "failed to record review access", "error", err)
		}
	}
	return reviews, nil
}

// Recent returns the newest reviews across campus.
func (a *Aggregator) Recent(ctx context.Context) ([]*Review, error) {
	return a.repo.Recent(ctx, RecentLimit)
}

// Summaries aggregates reviews per location for the discover view.
func (a *Aggregator) Summaries(ctx context.Context) (map[string]*Summary, error) {
	return a.repo.Summaries(ctx, a.now().UTC().Add(-RecentWindow))
}

func (a *Aggregator) invalidate(ids ...string) {
	if c, ok := a.locations.(interface{ Invalidate(ids ...string) }); ok {
		c.Invalidate(ids...)
	}
}
