package api

import (
	"net/http"

	"github.com/onnwee/campusconnect/internal/auth"
	"github.com/onnwee/campusconnect/internal/event"
	"github.com/onnwee/campusconnect/internal/friendship"
	"github.com/onnwee/campusconnect/internal/identity"
	"github.com/onnwee/campusconnect/internal/location"
	"github.com/onnwee/campusconnect/internal/memory"
	"github.com/onnwee/campusconnect/internal/presence"
	"github.com/onnwee/campusconnect/internal/review"
)

// DefaultMaxUploadBytes bounds multipart bodies when no limit is configured.
const DefaultMaxUploadBytes = 25 << 20

// HandlersConfig holds the services behind the HTTP surface.
type HandlersConfig struct {
	Identity       *identity.Service
	Tokens         *auth.JWTService
	Locations      location.Repository
	Friends        *friendship.Graph
	Presence       *presence.Ledger
	Reviews        *review.Aggregator
	Events         *event.Coordinator
	Memories       *memory.Store
	MaxUploadBytes int64
}

// Handlers serves the campus API.
type Handlers struct {
	identity       *identity.Service
	tokens         *auth.JWTService
	locations      location.Repository
	friends        *friendship.Graph
	presence       *presence.Ledger
	reviews        *review.Aggregator
	events         *event.Coordinator
	memories       *memory.Store
	maxUploadBytes int64
}

// NewHandlers creates the handler set.
func NewHandlers(cfg HandlersConfig) *Handlers {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handlers{
		identity:       cfg.Identity,
		tokens:         cfg.Tokens,
		locations:      cfg.Locations,
		friends:        cfg.Friends,
		presence:       cfg.Presence,
		reviews:        cfg.Reviews,
		events:         cfg.Events,
		memories:       cfg.Memories,
		maxUploadBytes: maxUpload,
	}
}

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Register mounts every route on mux. requireAuth guards signed-in routes;
// optionalAuth resolves a user when a token is present.
func (h *Handlers) Register(mux *http.ServeMux, requireAuth, optionalAuth Middleware) {
	authed := func(fn http.HandlerFunc) http.Handler { return requireAuth(fn) }

	mux.HandleFunc("POST /auth/signup", h.Signup)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/refresh", h.Refresh)

	mux.Handle("GET /dashboard", authed(h.Dashboard))
	mux.Handle("POST /dashboard", authed(h.DashboardAction))

	mux.Handle("GET /friends", authed(h.ListFriends))
	mux.Handle("GET /friends/requests", authed(h.FriendRequests))
	mux.Handle("GET /friends/search", authed(h.SearchUsers))
	mux.Handle("POST /friends/requests/{user_id}", authed(h.SendFriendRequest))
	mux.Handle("POST /friends/requests/{id}/respond", authed(h.RespondFriendRequest))

	mux.Handle("GET /memories", optionalAuth(http.HandlerFunc(h.MemoriesFeed)))
	mux.Handle("POST /memories", authed(h.MemoriesAction))
	mux.Handle("GET /memories/mine", authed(h.MyMemories))
	mux.Handle("POST /memories/mine", authed(h.MyMemoriesAction))
	mux.Handle("POST /memories/detail", authed(h.MemoryDetail))

	mux.Handle("GET /reviews", authed(h.FriendReviews))
	mux.Handle("GET /reviews/mine", authed(h.MyReviews))
	mux.Handle("GET /locations/{id}/reviews", authed(h.LocationReviews))

	mux.Handle("GET /discover", optionalAuth(http.HandlerFunc(h.Discover)))
	mux.Handle("GET /events/{id}/activity", authed(h.EventActivity))
}
