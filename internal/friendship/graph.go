package friendship

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/onnwee/campusconnect/internal/identity"
)

// Search limits.
const (
	SearchLimitWithQuery = 10
	SearchLimitBrowse    = 20
)

// RelationStatus describes the viewer's relation to a search result.
type RelationStatus string

const (
	RelationCanAdd          RelationStatus = "can_add"
	RelationRequestSent     RelationStatus = "request_sent"
	RelationRequestReceived RelationStatus = "request_received"
)

// SearchResult is a user the viewer is not yet friends with.
type SearchResult struct {
	User     identity.Summary `json:"user"`
	Relation RelationStatus   `json:"status"`
}

// Request is a pending relation together with the other party.
type Request struct {
	ID        string           `json:"id"`
	User      identity.Summary `json:"user"`
	CreatedAt time.Time        `json:"created_at"`
}

// Graph answers friendship questions and applies request transitions.
type Graph struct {
	repo  Repository
	users identity.Repository
	now   func() time.Time
}

// NewGraph creates a Graph.
func NewGraph(repo Repository, users identity.Repository) *Graph {
	return &Graph{repo: repo, users: users, now: time.Now}
}

// Request sends a friend request from one user to another. The target user
// is returned whenever it exists, including alongside conflict errors, so
// callers can name it.
func (g *Graph) Request(ctx context.Context, fromID, toID string) (*Friendship, *identity.User, error) {
	if fromID == toID {
		return nil, nil, ErrSelfRequest
	}
	target, err := g.users.GetByID(ctx, toID)
	if err != nil {
		return nil, nil, err
	}

	existing, err := g.repo.Between(ctx, fromID, toID)
	switch {
	case err == nil:
		return existing, target, conflictFor(existing)
	case !errors.Is(err, ErrRequestNotFound):
		return nil, target, err
	}

	f := &Friendship{FromUserID: fromID, ToUserID: toID, Status: StatusPending}
	if err := g.repo.Create(ctx, f); err != nil {
		if errors.Is(err, ErrRelationExists) {
			// lost a race with a concurrent request for the same pair
			if existing, getErr := g.repo.Between(ctx, fromID, toID); getErr == nil {
				return existing, target, conflictFor(existing)
			}
		}
		return nil, target, err
	}
	slog.InfoContext(ctx, "friend request sent", "friendship_id", f.ID, "from_user_id", fromID, "to_user_id", toID)
	return f, target, nil
}

func conflictFor(f *Friendship) error {
	switch f.Status {
	case StatusAccepted:
		return ErrAlreadyFriends
	case StatusPending:
		return ErrRequestPending
	default:
		return ErrBlocked
	}
}

// Respond accepts or rejects a pending request. Only the recipient may
// respond. Rejecting deletes the relation. The requester is returned.
func (g *Graph) Respond(ctx context.Context, friendshipID, responderID string, accept bool) (*Friendship, *identity.User, error) {
	f, err := g.repo.Resolve(ctx, friendshipID, responderID, accept, g.now().UTC())
	if err != nil {
		return nil, nil, err
	}
	requester, err := g.users.GetByID(ctx, f.FromUserID)
	if err != nil {
		return f, nil, err
	}
	slog.InfoContext(ctx, "friend request resolved",
		"friendship_id", f.ID, "accepted", accept, "responder_id", responderID)
	return f, requester, nil
}

// FriendIDs returns the ids of userID's accepted friends.
func (g *Graph) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	return g.repo.FriendIDs(ctx, userID)
}

// ListFriends returns userID's friends ordered by username.
func (g *Graph) ListFriends(ctx context.Context, userID string) ([]*identity.User, error) {
	ids, err := g.repo.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID, err := g.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	friends := make([]*identity.User, 0, len(byID))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			friends = append(friends, u)
		}
	}
	sortByUsername(friends)
	return friends, nil
}

// AreFriends reports whether a and b share an accepted relation.
func (g *Graph) AreFriends(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" || a == b {
		return false, nil
	}
	f, err := g.repo.Between(ctx, a, b)
	if errors.Is(err, ErrRequestNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.Status == StatusAccepted, nil
}

// PendingReceived lists requests waiting on userID, newest first.
func (g *Graph) PendingReceived(ctx context.Context, userID string) ([]Request, error) {
	return g.pending(ctx, userID, true)
}

// PendingSent lists requests userID has sent, newest first.
func (g *Graph) PendingSent(ctx context.Context, userID string) ([]Request, error) {
	return g.pending(ctx, userID, false)
}

func (g *Graph) pending(ctx context.Context, userID string, received bool) ([]Request, error) {
	rels, err := g.repo.Pending(ctx, userID, received)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rels))
	for i, f := range rels {
		ids[i] = f.Other(userID)
	}
	users, err := g.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Request, 0, len(rels))
	for _, f := range rels {
		u, ok := users[f.Other(userID)]
		if !ok {
			continue
		}
		out = append(out, Request{ID: f.ID, User: u.Summary(), CreatedAt: f.CreatedAt})
	}
	return out, nil
}

// Search finds users viewerID could befriend. Friends, blocked users and the
// viewer are excluded. An empty query browses everyone.
func (g *Graph) Search(ctx context.Context, viewerID, query string) ([]SearchResult, error) {
	rels, err := g.repo.RelationsFor(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	exclude := []string{viewerID}
	status := make(map[string]RelationStatus)
	for _, f := range rels {
		other := f.Other(viewerID)
		switch {
		case f.Status != StatusPending:
			exclude = append(exclude, other)
		case f.FromUserID == viewerID:
			status[other] = RelationRequestSent
		default:
			status[other] = RelationRequestReceived
		}
	}

	limit := SearchLimitBrowse
	if query != "" {
		limit = SearchLimitWithQuery
	}
	users, err := g.users.Search(ctx, query, exclude, limit)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(users))
	for i, u := range users {
		rel, ok := status[u.ID]
		if !ok {
			rel = RelationCanAdd
		}
		results[i] = SearchResult{User: u.Summary(), Relation: rel}
	}
	return results, nil
}

func sortByUsername(users []*identity.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}
