package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/campusconnect/internal/friendship"
	"github.com/onnwee/campusconnect/internal/identity"
	"github.com/onnwee/campusconnect/internal/presence"
)

// FriendEntry is a friend with their live share, if any.
type FriendEntry struct {
	identity.Summary
	Share *presence.FriendShare `json:"current_share,omitempty"`
}

// ListFriends handles GET /friends.
func (h *Handlers) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	friends, err := h.friends.ListFriends(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load friends")
		return
	}
	shares, err := h.presence.FriendShares(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load friends")
		return
	}
	byUser := make(map[string]*presence.FriendShare, len(shares))
	for i := range shares {
		byUser[shares[i].UserID] = &shares[i]
	}

	out := make([]FriendEntry, len(friends))
	for i, f := range friends {
		out[i] = FriendEntry{Summary: f.Summary(), Share: byUser[f.ID]}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"friends": out, "total": len(out)})
}

// FriendRequests handles GET /friends/requests.
func (h *Handlers) FriendRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	received, err := h.friends.PendingReceived(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load friend requests")
		return
	}
	sent, err := h.friends.PendingSent(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load friend requests")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"received_requests": nonNil(received),
		"sent_requests":     nonNil(sent),
	})
}

// SearchUsers handles GET /friends/search?q=.
func (h *Handlers) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	results, err := h.friends.Search(r.Context(), userID, query)
	if err != nil {
		writeServiceError(w, r, err, "Failed to search users")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"users_with_status": nonNil(results), "query": query})
}

const (
	actionSendFriendRequest    = "send_friend_request"
	actionRespondFriendRequest = "respond_friend_request"
)

// SendFriendRequest handles POST /friends/requests/{user_id}.
func (h *Handlers) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	const action = actionSendFriendRequest

	_, target, err := h.friends.Request(r.Context(), userID, r.PathValue("user_id"))
	var res ActionResult
	switch {
	case err == nil:
		res = success(action, "Friend request sent to "+target.Username+"!", nil)
	case errors.Is(err, friendship.ErrAlreadyFriends):
		res = failure(action, ErrCodeConflict, "You are already friends with "+target.Username)
	case errors.Is(err, friendship.ErrRequestPending):
		res = failure(action, ErrCodeConflict, "Friend request already sent to "+target.Username)
	case errors.Is(err, friendship.ErrBlocked):
		res = failure(action, ErrCodeConflict, "Cannot send friend request")
	default:
		res = fromError(r, action, err, "Error sending friend request")
	}
	respondAction(w, r, "/friends/search", res)
}

// RespondFriendRequest handles POST /friends/requests/{id}/respond.
func (h *Handlers) RespondFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := parseForm(r, h.maxUploadBytes); err != nil {
		badForm(w, r)
		return
	}
	const action = actionRespondFriendRequest

	var accept bool
	switch r.PostForm.Get("action") {
	case "accept":
		accept = true
	case "reject":
	default:
		respondAction(w, r, "/friends/requests", failure(action, ErrCodeValidation, "Action must be accept or reject"))
		return
	}

	_, requester, err := h.friends.Respond(r.Context(), r.PathValue("id"), userID, accept)
	var res ActionResult
	switch {
	case err != nil:
		res = fromError(r, action, err, "Error processing friend request")
	case accept:
		res = success(action, "You are now friends with "+requester.Username+"!", nil)
	default:
		res = info(action, "Friend request declined")
	}
	respondAction(w, r, "/friends/requests", res)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
