// Package review aggregates location reviews. Each review reports WiFi,
// cleanliness and noise ratings plus the crowd level the reviewer saw; the
// location's crowd level is the dominant level among recent reviews.
package review

import (
	"fmt"
	"math"
	"time"

	"github.com/onnwee/campusconnect/internal/apperr"
	"github.com/onnwee/campusconnect/internal/location"
)

// Rating bounds and windows.
const (
	MinRating = 1
	MaxRating = 10

	CrowdWindow        = 2 * time.Hour
	RecentWindow       = 7 * 24 * time.Hour
	LocationPageLimit  = 20
	FriendReviewsLimit = 50
	RecentLimit        = 15
)

// Errors.
var (
	ErrRatingOutOfRange = fmt.Errorf("%w: ratings must be between 1 and 10", apperr.ErrInvalidInput)
	ErrInvalidCategory  = fmt.Errorf("%w: invalid review category", apperr.ErrInvalidInput)
	ErrMissingFields    = fmt.Errorf("%w: please fill in all required fields", apperr.ErrInvalidInput)
)

// Category is what a review mainly comments on.
type Category string

const (
	CategoryStudySpace  Category = "study_space"
	CategoryWiFiQuality Category = "wifi_quality"
	CategoryCleanliness Category = "cleanliness"
	CategoryNoiseLevel  Category = "noise_level"
	CategoryGeneral     Category = "general"
)

// ParseCategory converts a form value. Empty means general.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case "":
		return CategoryGeneral, nil
	case CategoryStudySpace, CategoryWiFiQuality, CategoryCleanliness, CategoryNoiseLevel, CategoryGeneral:
		return c, nil
	}
	return "", ErrInvalidCategory
}

// Ratings are the three 1-10 sub-ratings.
type Ratings struct {
	WiFi        int `json:"wifi_rating"`
	Cleanliness int `json:"cleanliness_rating"`
	Noise       int `json:"noise_rating"`
}

// Validate checks every rating is within bounds.
func (r Ratings) Validate() error {
	for _, v := range []int{r.WiFi, r.Cleanliness, r.Noise} {
		if v < MinRating || v > MaxRating {
			return ErrRatingOutOfRange
		}
	}
	return nil
}

// Overall is the mean of the sub-ratings rounded to one decimal.
func (r Ratings) Overall() float64 {
	mean := float64(r.WiFi+r.Cleanliness+r.Noise) / 3
	return math.Round(mean*10) / 10
}

// Review is one user's review of one location. There is at most one per
// (user, location); resubmitting overwrites it.
type Review struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	LocationID string `json:"location_id"`
	Ratings
	Overall    float64             `json:"overall_rating"`
	CrowdLevel location.CrowdLevel `json:"crowd_level"`
	Category   Category            `json:"category"`
	Text       string              `json:"review_text,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`

	Username     string `json:"username,omitempty"`
	LocationName string `json:"location_name,omitempty"`
}

// UpsertResult reports the outcome of a write.
type UpsertResult struct {
	Inserted     bool
	CrowdLevel   location.CrowdLevel
	CrowdUpdated bool
}

// LocationStats summarizes every review of one location.
type LocationStats struct {
	AverageRating     float64                     `json:"avg_rating"`
	TotalReviews      int                         `json:"total_reviews"`
	CrowdDistribution map[location.CrowdLevel]int `json:"crowd_distribution"`
}

// Summary is the per-location aggregate used by the discover view.
type Summary struct {
	LocationID    string     `json:"location_id"`
	AverageRating float64    `json:"avg_rating"`
	ReviewCount   int        `json:"review_count"`
	RecentCount   int        `json:"recent_review_count"`
	Categories    []Category `json:"categories"`
}

// DominantCrowdLevel returns the most frequent level in levels, which must
// be ordered newest first. On a tie the level that reached the winning
// count first wins. ok is false for an empty slice.
func DominantCrowdLevel(levels []location.CrowdLevel) (level location.CrowdLevel, ok bool) {
	counts := make(map[location.CrowdLevel]int, 3)
	best := 0
	for _, l := range levels {
		counts[l]++
		if counts[l] > best {
			best = counts[l]
			level = l
		}
	}
	return level, best > 0
}

func roundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
