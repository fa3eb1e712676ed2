package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/campusconnect/internal/event"
	"github.com/onnwee/campusconnect/internal/identity"
	"github.com/onnwee/campusconnect/internal/location"
	"github.com/onnwee/campusconnect/internal/presence"
	"github.com/onnwee/campusconnect/internal/review"
)

// Dashboard limits.
const (
	dashboardActivityLimit = 20
	dashboardReviewLimit   = 15
	friendShareWindow      = 24 * time.Hour
)

// Activity types in the combined feed.
const (
	ActivityLocationShare = "location_share"
	ActivityEvent         = "event"
)

// FeedActivity is one entry of the dashboard's combined friend activity.
type FeedActivity struct {
	Type          string           `json:"type"`
	User          identity.Summary `json:"user"`
	LocationID    string           `json:"location_id"`
	LocationName  string           `json:"location_name"`
	Timestamp     time.Time        `json:"timestamp"`
	StatusMessage presence.Status  `json:"status_message,omitempty"`
	TimeDisplay   string           `json:"time_display"`
	Data          any              `json:"data"`
}

// DashboardStats are the counters shown on the dashboard.
type DashboardStats struct {
	TotalFriends            int     `json:"total_friends"`
	FriendsCurrentlySharing int     `json:"friends_currently_sharing"`
	UserReviewCount         int     `json:"user_review_count"`
	UserAverageRating       float64 `json:"user_avg_rating"`
}

// DashboardResponse is the GET /dashboard body.
type DashboardResponse struct {
	CurrentShare   *presence.Share      `json:"current_share"`
	Locations      []*location.Location `json:"locations"`
	Activities     []FeedActivity       `json:"combined_activities"`
	UpcomingEvents []*event.Event       `json:"user_upcoming_events"`
	OngoingEvents  []*event.Event       `json:"user_ongoing_events"`
	RecentReviews  []*review.Review     `json:"recent_reviews"`
	Stats          DashboardStats       `json:"stats"`
}

// Dashboard handles GET /dashboard.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if err := h.presence.Sweep(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to sweep expired shares", "error", err)
	}

	resp, err := h.buildDashboard(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load dashboard")
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handlers) buildDashboard(ctx context.Context, userID string) (*DashboardResponse, error) {
	now := h.events.Now()
	resp := &DashboardResponse{}

	current, err := h.presence.Current(ctx, userID)
	switch {
	case errors.Is(err, presence.ErrNoActiveShare):
		current = nil
	case err != nil:
		return nil, err
	}
	resp.CurrentShare = current

	locs, err := h.locations.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	resp.Locations = locs
	names := make(map[string]string, len(locs))
	for _, l := range locs {
		names[l.ID] = l.Name
	}

	friendIDs, err := h.friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp.Stats.TotalFriends = len(friendIDs)

	activities, err := h.friendActivity(ctx, userID, friendIDs, names, now)
	if err != nil {
		return nil, err
	}
	resp.Activities = activities

	sharing, err := h.presence.CountFriendsSharing(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp.Stats.FriendsCurrentlySharing = sharing

	own, err := h.events.OrganizedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp.UpcomingEvents = []*event.Event{}
	resp.OngoingEvents = []*event.Event{}
	for _, e := range own {
		if e.StartsAt.After(now) {
			resp.UpcomingEvents = append(resp.UpcomingEvents, e)
		}
		if e.Started && e.EndsAt.After(now) {
			resp.OngoingEvents = append(resp.OngoingEvents, e)
		}
	}

	recent, err := h.reviews.Recent(ctx)
	if err != nil {
		return nil, err
	}
	if len(recent) > dashboardReviewLimit {
		recent = recent[:dashboardReviewLimit]
	}
	resp.RecentReviews = recent

	mine, err := h.reviews.ByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp.Stats.UserReviewCount = mine.TotalReviews
	resp.Stats.UserAverageRating = mine.AverageRating

	return resp, nil
}

// friendActivity merges friends' recent shares with events organized by
// friends or the user, newest first.
func (h *Handlers) friendActivity(ctx context.Context, userID string, friendIDs []string, names map[string]string, now time.Time) ([]FeedActivity, error) {
	out := []FeedActivity{}

	shares, err := h.presence.FriendShares(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, s := range shares {
		if now.Sub(s.CreatedAt) > friendShareWindow {
			continue
		}
		out = append(out, FeedActivity{
			Type:          ActivityLocationShare,
			User:          identity.Summary{ID: s.UserID, Username: s.Username, DisplayName: s.DisplayName},
			LocationID:    s.LocationID,
			LocationName:  s.LocationName,
			Timestamp:     s.CreatedAt,
			StatusMessage: s.Status,
			TimeDisplay:   s.SinceShared(now),
			Data:          s,
		})
	}

	organizers := append(append([]string(nil), friendIDs...), userID)
	events, err := h.events.RecentForUsers(ctx, organizers, dashboardActivityLimit)
	if err != nil {
		return nil, err
	}
	users := make(map[string]identity.Summary)
	for _, e := range events {
		organizer, ok := users[e.OrganizerID]
		if !ok {
			u, err := h.identity.Get(ctx, e.OrganizerID)
			if err != nil {
				return nil, err
			}
			organizer = u.Summary()
			users[e.OrganizerID] = organizer
		}
		out = append(out, FeedActivity{
			Type:         ActivityEvent,
			User:         organizer,
			LocationID:   e.LocationID,
			LocationName: names[e.LocationID],
			Timestamp:    e.CreatedAt,
			TimeDisplay:  e.TimeUntilStart(now),
			Data:         e,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > dashboardActivityLimit {
		out = out[:dashboardActivityLimit]
	}
	return out, nil
}

// Dashboard actions.
const (
	actionShareLocation       = "share_location"
	actionStopSharing         = "stop_sharing"
	actionSubmitReview        = "submit_review"
	actionDismissReviewPrompt = "dismiss_review_prompt"
	actionCreateEvent         = "create_event"
	actionStartEvent          = "start_event"
	actionJoinEvent           = "join_event"
	actionLeaveEvent          = "leave_event"
	actionCancelEvent         = "cancel_event"
)

// DashboardAction handles POST /dashboard.
func (h *Handlers) DashboardAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := parseForm(r, h.maxUploadBytes); err != nil {
		badForm(w, r)
		return
	}

	var res ActionResult
	switch action := r.PostForm.Get("action"); action {
	case actionShareLocation:
		res = h.shareLocation(r, userID)
	case actionStopSharing:
		res = h.stopSharing(r, userID)
	case actionSubmitReview:
		res = h.submitReview(r, userID)
	case actionDismissReviewPrompt:
		// The prompt lives with the client; nothing to clear server side.
		res = info(action, "")
	case actionCreateEvent:
		res = h.createEvent(r, userID)
	case actionStartEvent:
		res = h.eventAction(r, action, userID, h.events.Start, `Event "%s" started!`, "Error starting event")
	case actionJoinEvent:
		res = h.eventAction(r, action, userID, h.events.Join, `You joined "%s"!`, "Error joining event")
	case actionLeaveEvent:
		res = h.eventAction(r, action, userID, h.events.Leave, `You left "%s"`, "Error leaving event")
	case actionCancelEvent:
		res = h.eventAction(r, action, userID, h.events.Cancel, `Event "%s" cancelled`, "Error cancelling event")
	default:
		res = unknownAction(action)
	}
	respondAction(w, r, "/dashboard", res)
}

func (h *Handlers) shareLocation(r *http.Request, userID string) ActionResult {
	const action = actionShareLocation
	locationID := r.PostForm.Get("location_id")
	if locationID == "" {
		return failure(action, ErrCodeValidation, "Please select a location")
	}
	status, err := presence.ParseStatus(r.PostForm.Get("status_message"))
	if err != nil {
		return fromError(r, action, err, "Error sharing location")
	}
	share, loc, err := h.presence.Share(r.Context(), userID, locationID, status)
	if err != nil {
		return fromError(r, action, err, "Error sharing location")
	}
	return success(action, "Location shared: "+loc.Name, share)
}

func (h *Handlers) stopSharing(r *http.Request, userID string) ActionResult {
	const action = actionStopSharing
	prompt, err := h.presence.Stop(r.Context(), userID)
	if err != nil {
		return fromError(r, action, err, "Error stopping location share")
	}
	res := success(action, "Location sharing stopped", nil)
	if prompt != nil {
		res.ReviewPrompt = prompt
	}
	return res
}

func (h *Handlers) submitReview(r *http.Request, userID string) ActionResult {
	const action = actionSubmitReview
	f := r.PostForm
	locationID := f.Get("location_id")
	if locationID == "" || f.Get("wifi_rating") == "" || f.Get("cleanliness_rating") == "" ||
		f.Get("noise_rating") == "" || f.Get("crowd_level") == "" {
		return failure(action, ErrCodeValidation, "Please fill in all required fields")
	}

	var ratings review.Ratings
	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"wifi_rating", &ratings.WiFi},
		{"cleanliness_rating", &ratings.Cleanliness},
		{"noise_rating", &ratings.Noise},
	} {
		n, err := strconv.Atoi(strings.TrimSpace(f.Get(field.name)))
		if err != nil {
			return failure(action, ErrCodeValidation, "Invalid rating values.")
		}
		*field.dst = n
	}

	result, err := h.reviews.Submit(r.Context(), review.SubmitInput{
		UserID:     userID,
		LocationID: locationID,
		Ratings:    ratings,
		CrowdLevel: f.Get("crowd_level"),
		Category:   f.Get("category"),
		Text:       strings.TrimSpace(f.Get("review_text")),
	})
	if err != nil {
		return fromError(r, action, err, "Error submitting review")
	}
	if result.Inserted {
		return success(action, "Review submitted for "+result.LocationName, result.Review)
	}
	return success(action, "Review updated for "+result.LocationName, result.Review)
}

// Event form defaults, in hours.
const (
	defaultHoursFromNow  = 1
	defaultDurationHours = 2
)

func (h *Handlers) createEvent(r *http.Request, userID string) ActionResult {
	const action = actionCreateEvent
	f := r.PostForm
	title := strings.TrimSpace(f.Get("event_title"))
	locationID := f.Get("location_id")
	if title == "" || locationID == "" || f.Get("max_participants") == "" {
		return failure(action, ErrCodeValidation, "Please fill in all required fields")
	}

	hoursFromNow, err1 := formInt(f.Get("hours_from_now"), defaultHoursFromNow)
	duration, err2 := formInt(f.Get("duration_hours"), defaultDurationHours)
	maxParticipants, err3 := strconv.Atoi(strings.TrimSpace(f.Get("max_participants")))
	if err1 != nil || err2 != nil || err3 != nil || hoursFromNow < 0 || duration < 1 || maxParticipants < 1 {
		return failure(action, ErrCodeValidation, "Please enter valid numbers for timing and participants")
	}

	start := h.events.Now().Add(time.Duration(hoursFromNow) * time.Hour)
	e, err := h.events.Create(r.Context(), event.CreateInput{
		OrganizerID:     userID,
		LocationID:      locationID,
		Type:            f.Get("event_type"),
		Title:           title,
		Description:     strings.TrimSpace(f.Get("event_description")),
		StartsAt:        start,
		EndsAt:          start.Add(time.Duration(duration) * time.Hour),
		MaxParticipants: maxParticipants,
		Public:          true,
	})
	if err != nil {
		return fromError(r, action, err, "Error creating event")
	}
	return success(action, fmt.Sprintf(`Event "%s" created successfully!`, e.Title), e)
}

type eventOp func(ctx context.Context, eventID, userID string) (*event.Event, error)

func (h *Handlers) eventAction(r *http.Request, action, userID string, op eventOp, format, fallback string) ActionResult {
	eventID := r.PostForm.Get("event_id")
	if eventID == "" {
		return failure(action, ErrCodeValidation, "Missing event")
	}
	e, err := op(r.Context(), eventID, userID)
	if err != nil {
		return fromError(r, action, err, fallback)
	}
	return success(action, fmt.Sprintf(format, e.Title), e)
}

// formInt parses an optional integer form value.
func formInt(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
