package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/campusconnect/internal/location"
	"github.com/onnwee/campusconnect/internal/stats"
)

func TestOverall(t *testing.T) {
	tests := []struct {
		r    Ratings
		want float64
	}{
		{Ratings{10, 10, 10}, 10},
		{Ratings{8, 7, 6}, 7},
		{Ratings{8, 7, 7}, 7.3},
		{Ratings{9, 9, 8}, 8.7},
		{Ratings{1, 1, 2}, 1.3},
	}
	for _, tt := range tests {
		if got := tt.r.Overall(); got != tt.want {
			t.Errorf("%+v.Overall() = %v, want %v", tt.r, got, tt.want)
		}
	}
}

func TestDominantCrowdLevel(t *testing.T) {
	L, M, H := location.CrowdLight, location.CrowdModerate, location.CrowdHeavy

	tests := []struct {
		name   string
		levels []location.CrowdLevel
		want   location.CrowdLevel
		ok     bool
	}{
		{"empty", nil, "", false},
		{"single", []location.CrowdLevel{H}, H, true},
		{"clear majority", []location.CrowdLevel{L, H, H, M}, H, true},
		{"tie goes to newest", []location.CrowdLevel{M, L}, M, true},
		{"tie goes to first to reach max", []location.CrowdLevel{H, L, L, H}, L, true},
		{"three way tie", []location.CrowdLevel{M, H, L}, M, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DominantCrowdLevel(tt.levels)
			if got != tt.want || ok != tt.ok {
				t.Errorf("DominantCrowdLevel(%v) = %q, %v; want %q, %v", tt.levels, got, ok, tt.want, tt.ok)
			}
		})
	}
}

type fixture struct {
	agg       *Aggregator
	locations *location.InMemoryRepository
	upserts   *stats.UpsertCounter
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	locs := location.NewInMemoryRepository()
	if err := location.Seed(context.Background(), locs, location.DefaultCampus()); err != nil {
		t.Fatal(err)
	}
	f := &fixture{locations: locs, upserts: stats.NewUpsertCounter(), now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
	f.agg = NewAggregator(AggregatorConfig{
		Repository: NewInMemoryRepository(locs),
		Locations:  locs,
		Friends:    staticFriends{"ana": {"bea"}},
		Upserts:    f.upserts,
	})
	f.agg.now = func() time.Time { return f.now }
	return f
}

type staticFriends map[string][]string

func (s staticFriends) FriendIDs(_ context.Context, id string) ([]string, error) { return s[id], nil }

func (f *fixture) submit(t *testing.T, user, loc, crowd string) *SubmitResult {
	t.Helper()
	res, err := f.agg.Submit(context.Background(), SubmitInput{
		UserID: user, LocationID: loc, Ratings: Ratings{8, 7, 7}, CrowdLevel: crowd, Category: "study_space",
	})
	if err != nil {
		t.Fatalf("Submit(%s, %s) error = %v", user, loc, err)
	}
	return res
}

func TestSubmit_UpsertsPerUserAndLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.submit(t, "ana", "FS_01", "light")
	if !first.Inserted || first.LocationName != "Library Commons" {
		t.Errorf("first submit = %+v", first)
	}
	if first.Review.Overall != 7.3 {
		t.Errorf("overall = %v", first.Review.Overall)
	}

	f.now = f.now.Add(10 * time.Minute)
	second := f.submit(t, "ana", "FS_01", "heavy")
	if second.Inserted {
		t.Error("second submit should update")
	}
	if second.Review.ID != first.Review.ID {
		t.Error("update must keep the review id")
	}

	reviews, _ := f.agg.ByUser(ctx, "ana")
	if reviews.TotalReviews != 1 {
		t.Fatalf("got %d reviews, want 1", reviews.TotalReviews)
	}
	if got := reviews.Reviews[0]; got.CrowdLevel != location.CrowdHeavy || !got.CreatedAt.Equal(f.now) {
		t.Errorf("review not overwritten: %+v", got)
	}

	// one inserted and one updated series
	if got := testutil.CollectAndCount(f.upserts.Collector()); got != 2 {
		t.Errorf("upsert series = %d, want 2", got)
	}
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   SubmitInput
		want error
	}{
		{"rating too low", SubmitInput{LocationID: "FS_01", Ratings: Ratings{0, 5, 5}, CrowdLevel: "light"}, ErrRatingOutOfRange},
		{"rating too high", SubmitInput{LocationID: "FS_01", Ratings: Ratings{5, 11, 5}, CrowdLevel: "light"}, ErrRatingOutOfRange},
		{"missing crowd", SubmitInput{LocationID: "FS_01", Ratings: Ratings{5, 5, 5}}, ErrMissingFields},
		{"missing location", SubmitInput{Ratings: Ratings{5, 5, 5}, CrowdLevel: "light"}, ErrMissingFields},
		{"bad crowd", SubmitInput{LocationID: "FS_01", Ratings: Ratings{5, 5, 5}, CrowdLevel: "packed"}, location.ErrInvalidCrowdLevel},
		{"bad category", SubmitInput{LocationID: "FS_01", Ratings: Ratings{5, 5, 5}, CrowdLevel: "light", Category: "vibes"}, ErrInvalidCategory},
		{"unknown location", SubmitInput{LocationID: "NOPE", Ratings: Ratings{5, 5, 5}, CrowdLevel: "light"}, location.ErrLocationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.UserID = "ana"
			_, err := f.agg.Submit(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubmit_UpdatesCrowdLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.submit(t, "u1", "P01_A", "heavy")
	f.now = f.now.Add(time.Minute)
	f.submit(t, "u2", "P01_A", "moderate")
	f.now = f.now.Add(time.Minute)
	f.submit(t, "u3", "P01_A", "moderate")

	loc, _ := f.locations.Get(ctx, "P01_A")
	if loc.CrowdLevel != location.CrowdModerate {
		t.Errorf("crowd level = %q, want moderate", loc.CrowdLevel)
	}

	// reviews older than two hours no longer count
	f.now = f.now.Add(3 * time.Hour)
	f.submit(t, "u4", "P01_A", "heavy")
	loc, _ = f.locations.Get(ctx, "P01_A")
	if loc.CrowdLevel != location.CrowdHeavy {
		t.Errorf("crowd level = %q, want heavy", loc.CrowdLevel)
	}
}

func TestRecomputeCrowdLevel_NoRecentReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.locations.SetCrowdLevel(ctx, "P02_A", location.CrowdHeavy)

	_, changed, err := f.agg.RecomputeCrowdLevel(ctx, "P02_A")
	if err != nil || changed {
		t.Errorf("RecomputeCrowdLevel() changed = %v, err = %v", changed, err)
	}
	loc, _ := f.locations.Get(ctx, "P02_A")
	if loc.CrowdLevel != location.CrowdHeavy {
		t.Errorf("crowd level changed without reviews: %q", loc.CrowdLevel)
	}
}

func TestForLocationAndFriends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submit(t, "bea", "FS_01", "light")
	f.now = f.now.Add(time.Minute)
	f.submit(t, "cal", "FS_01", "heavy")

	page, err := f.agg.ForLocation(ctx, "FS_01")
	if err != nil {
		t.Fatal(err)
	}
	if page.Stats.TotalReviews != 2 || page.Stats.AverageRating != 7.3 {
		t.Errorf("stats = %+v", page.Stats)
	}
	if page.Stats.CrowdDistribution[location.CrowdHeavy] != 1 {
		t.Errorf("distribution = %v", page.Stats.CrowdDistribution)
	}
	if page.Reviews[0].UserID != "cal" {
		t.Error("reviews must be newest first")
	}

	friends, _ := f.agg.FromFriends(ctx, "ana")
	if len(friends) != 1 || friends[0].UserID != "bea" {
		t.Errorf("FromFriends() = %+v", friends)
	}

	summaries, _ := f.agg.Summaries(ctx)
	if s := summaries["FS_01"]; s == nil || s.ReviewCount != 2 || s.RecentCount != 2 {
		t.Errorf("summary = %+v", summaries["FS_01"])
	}
}
