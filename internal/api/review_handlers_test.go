package api

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/onnwee/campusconnect/internal/identity"
	"github.com/onnwee/campusconnect/internal/review"
)

func (e *testEnv) review(t *testing.T, u *identity.User, locationID, rating, category string) {
	t.Helper()
	form := url.Values{
		"action": {"submit_review"}, "location_id": {locationID},
		"wifi_rating": {rating}, "cleanliness_rating": {rating}, "noise_rating": {rating},
		"crowd_level": {"moderate"},
	}
	if category != "" {
		form.Set("category", category)
	}
	decodeAction(t, e.post(t, "/dashboard", u, form), http.StatusOK)
}

func TestMyReviews(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	env.review(t, alice, "FS_01", "8", "wifi_quality")
	env.review(t, alice, "FS_02", "6", "wifi_quality")
	env.review(t, alice, "FS_03", "4", "")

	var mine review.UserReviews
	decodeJSON(t, env.get(t, "/reviews/mine", alice), http.StatusOK, &mine)

	if mine.TotalReviews != 3 || len(mine.Reviews) != 3 {
		t.Fatalf("reviews = %d/%d, want 3", mine.TotalReviews, len(mine.Reviews))
	}
	if mine.AverageRating != 6 {
		t.Errorf("average = %v, want 6", mine.AverageRating)
	}
	want := []review.CategoryCount{
		{Category: review.CategoryWiFiQuality, Count: 2},
		{Category: review.CategoryGeneral, Count: 1},
	}
	if len(mine.CategoryBreakdown) != len(want) {
		t.Fatalf("breakdown = %+v, want %+v", mine.CategoryBreakdown, want)
	}
	for i := range want {
		if mine.CategoryBreakdown[i] != want[i] {
			t.Errorf("breakdown[%d] = %+v, want %+v", i, mine.CategoryBreakdown[i], want[i])
		}
	}
}

func TestMyReviews_EmptyListsEncode(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	w := env.get(t, "/reviews/mine", alice)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, field := range []string{`"reviews":[]`, `"category_breakdown":[]`} {
		if !strings.Contains(body, field) {
			t.Errorf("body missing %s: %s", field, body)
		}
	}
}

func TestFriendReviews_OnlyFriends(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	env.befriend(t, alice, bob)

	env.review(t, bob, "FS_03", "7", "")
	env.review(t, carol, "FS_04", "3", "")

	var friends struct {
		Reviews []*review.Review `json:"recent_reviews"`
	}
	decodeJSON(t, env.get(t, "/reviews", alice), http.StatusOK, &friends)
	if len(friends.Reviews) != 1 || friends.Reviews[0].UserID != bob.ID {
		t.Errorf("friend reviews = %+v", friends.Reviews)
	}

	w := env.get(t, "/reviews", carol)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"recent_reviews":[]`) {
		t.Errorf("no-friend reviews = %d %s", w.Code, w.Body.String())
	}
}
