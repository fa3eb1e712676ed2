package api

import (
	"net/http"

	"github.com/onnwee/campusconnect/internal/memory"
	"github.com/onnwee/campusconnect/internal/review"
)

// FriendReviews handles GET /reviews.
func (h *Handlers) FriendReviews(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	reviews, err := h.reviews.FromFriends(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load reviews")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"recent_reviews": nonNil(reviews)})
}

// MyReviews handles GET /reviews/mine.
func (h *Handlers) MyReviews(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	out, err := h.reviews.ByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load reviews")
		return
	}
	out.Reviews = nonNil(out.Reviews)
	out.CategoryBreakdown = nonNil(out.CategoryBreakdown)
	writeJSON(w, r, http.StatusOK, out)
}

// LocationReviewsResponse is a location's review page with its public media.
type LocationReviewsResponse struct {
	*review.LocationReviews
	PublicMemories []*memory.Item `json:"public_memories"`
}

// LocationReviews handles GET /locations/{id}/reviews.
func (h *Handlers) LocationReviews(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	ctx := r.Context()
	locationID := r.PathValue("id")

	lr, err := h.reviews.ForLocation(ctx, locationID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load reviews")
		return
	}
	lr.Reviews = nonNil(lr.Reviews)
	media, err := h.memories.PublicMediaForLocation(ctx, locationID, memory.PublicMediaMax)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load reviews")
		return
	}
	writeJSON(w, r, http.StatusOK, LocationReviewsResponse{LocationReviews: lr, PublicMemories: nonNil(media)})
}
