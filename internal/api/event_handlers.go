package api

import (
	"net/http"

	"github.com/onnwee/campusconnect/internal/event"
)

// EventActivity handles GET /events/{id}/activity.
func (h *Handlers) EventActivity(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	ctx := r.Context()
	id := r.PathValue("id")

	e, err := h.events.Get(ctx, id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load event")
		return
	}
	activities, err := h.events.Activities(ctx, id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load event")
		return
	}
	names := make(map[string]string)
	for _, a := range activities {
		name, ok := names[a.UserID]
		if !ok {
			if name, err = h.identity.Username(ctx, a.UserID); err != nil {
				writeServiceError(w, r, err, "Failed to load event")
				return
			}
			names[a.UserID] = name
		}
		a.Username = name
	}

	now := h.events.Now()
	writeJSON(w, r, http.StatusOK, struct {
		Event          *event.Event      `json:"event"`
		TimeUntilStart string            `json:"time_until_start"`
		EndingSoon     bool              `json:"is_ending_soon"`
		CanJoin        bool              `json:"can_join"`
		Activities     []*event.Activity `json:"activities"`
	}{
		Event:          e,
		TimeUntilStart: e.TimeUntilStart(now),
		EndingSoon:     e.EndingSoon(now),
		CanJoin:        e.Status == event.StatusActive && !e.IsFull(),
		Activities:     nonNil(activities),
	})
}
