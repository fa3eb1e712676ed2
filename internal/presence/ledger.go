package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/campusconnect/internal/audit"
	"github.com/onnwee/campusconnect/internal/identity"
	"github.com/onnwee/campusconnect/internal/location"
	"github.com/onnwee/campusconnect/internal/tracing"
)

// FriendSource answers friendship questions for the ledger.
type FriendSource interface {
	FriendIDs(ctx context.Context, userID string) ([]string, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// LedgerConfig holds the ledger's collaborators.
type LedgerConfig struct {
	Repository Repository
	Locations  location.Repository
	Friends    FriendSource
	Users      identity.Repository
	Audit      audit.Repository // optional
	Metrics    *Metrics         // optional
	TTL        time.Duration    // defaults to DefaultTTL
}

// Ledger manages location shares.
type Ledger struct {
	repo      Repository
	locations location.Repository
	friends   FriendSource
	users     identity.Repository
	audit     audit.Repository
	metrics   *Metrics
	ttl       time.Duration
	now       func() time.Time
}

// NewLedger creates a Ledger.
func NewLedger(cfg LedgerConfig) *Ledger {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{
		repo:      cfg.Repository,
		locations: cfg.Locations,
		friends:   cfg.Friends,
		users:     cfg.Users,
		audit:     cfg.Audit,
		metrics:   cfg.Metrics,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Share starts sharing userID's location, replacing any active share.
func (l *Ledger) Share(ctx context.Context, userID, locationID string, status Status) (_ *Share, _ *location.Location, err error) {
	ctx, end := tracing.StartSpan(ctx, "presence.Share")
	defer func() { end(err) }()

	if status == "" {
		status = StatusStudying
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, nil, err
	}
	loc, err := l.locations.Get(ctx, locationID)
	if err != nil {
		return nil, nil, err
	}

	now := l.now().UTC()
	s := &Share{
		UserID:     userID,
		LocationID: locationID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(l.ttl),
	}
	touched, err := l.repo.Activate(ctx, s, now)
	if err != nil {
		return nil, nil, err
	}
	l.invalidate(touched...)
	l.metrics.incStarted()
	slog.InfoContext(ctx, "location shared", "user_id", userID, "location_id", locationID, "expires_at", s.ExpiresAt)
	return s, loc, nil
}

// Stop ends userID's share. When a live share was vacated the returned
// prompt names its location so the caller can ask for a review.
func (l *Ledger) Stop(ctx context.Context, userID string) (_ *ReviewPrompt, err error) {
	ctx, end := tracing.StartSpan(ctx, "presence.Stop")
	defer func() { end(err) }()

	vacated, touched, err := l.repo.Deactivate(ctx, userID, l.now().UTC())
	if err != nil {
		return nil, err
	}
	if len(touched) > 0 {
		l.invalidate(touched...)
	}
	if vacated == nil {
		return nil, nil
	}
	l.metrics.incStopped()
	slog.InfoContext(ctx, "location sharing stopped", "user_id", userID, "location_id", vacated.LocationID)

	prompt := &ReviewPrompt{LocationID: vacated.LocationID}
	if loc, err := l.locations.Get(ctx, vacated.LocationID); err == nil {
		prompt.LocationName = loc.Name
	}
	return prompt, nil
}

// Sweep deactivates expired shares. Readers call it before reading shares.
func (l *Ledger) Sweep(ctx context.Context) error {
	n, err := l.repo.Sweep(ctx, l.now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		l.invalidate()
		l.metrics.incExpired()
		slog.DebugContext(ctx, "expired shares swept", "locations", n)
	}
	return nil
}

// Current returns userID's live share, or ErrNoActiveShare.
func (l *Ledger) Current(ctx context.Context, userID string) (*Share, error) {
	return l.repo.Current(ctx, userID, l.now().UTC())
}

// VisibleTo returns sharerID's live share if viewerID may see it. Only
// friends see each other's shares.
func (l *Ledger) VisibleTo(ctx context.Context, viewerID, sharerID string) (*Share, error) {
	if viewerID != sharerID {
		ok, err := l.friends.AreFriends(ctx, viewerID, sharerID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotVisible
		}
	}
	s, err := l.repo.Current(ctx, sharerID, l.now().UTC())
	if err != nil {
		return nil, err
	}
	if viewerID != sharerID {
		l.logView(ctx, s)
	}
	return s, nil
}

// FriendShares returns viewerID's friends' live shares started in the last
// 24 hours, newest first.
func (l *Ledger) FriendShares(ctx context.Context, viewerID string) ([]FriendShare, error) {
	friendIDs, err := l.friends.FriendIDs(ctx, viewerID)
	if err != nil || len(friendIDs) == 0 {
		return nil, err
	}
	now := l.now().UTC()
	shares, err := l.repo.LiveForUsers(ctx, friendIDs, now, now.Add(-FriendFeedWindow), FriendFeedLimit)
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, len(shares))
	for i, s := range shares {
		userIDs[i] = s.UserID
	}
	users, err := l.users.GetMany(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	names := l.locationNames(ctx)

	out := make([]FriendShare, 0, len(shares))
	for _, s := range shares {
		fs := FriendShare{Share: *s, LocationName: names[s.LocationID]}
		if u, ok := users[s.UserID]; ok {
			fs.Username = u.Username
			fs.DisplayName = u.DisplayName()
		}
		l.logView(ctx, s)
		out = append(out, fs)
	}
	return out, nil
}

// CountFriendsSharing counts viewerID's friends with a live share.
func (l *Ledger) CountFriendsSharing(ctx context.Context, viewerID string) (int, error) {
	friendIDs, err := l.friends.FriendIDs(ctx, viewerID)
	if err != nil || len(friendIDs) == 0 {
		return 0, err
	}
	now := l.now().UTC()
	shares, err := l.repo.LiveForUsers(ctx, friendIDs, now, time.Time{}, 0)
	if err != nil {
		return 0, err
	}
	return len(shares), nil
}

func (l *Ledger) locationNames(ctx context.Context) map[string]string {
	names := make(map[string]string)
	locs, err := l.locations.ListActive(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to load location names", "error", err)
		return names
	}
	for _, loc := range locs {
		names[loc.ID] = loc.Name
	}
	return names
}

func (l *Ledger) logView(ctx context.Context, s *Share) {
	if l.audit == nil {
		return
	}
	if err := audit.LogAccess(ctx, l.audit, audit.EntityPresence, s.ID, audit.ActionViewFriendPresence); err != nil {
		slog.ErrorContext(ctx, "failed to record presence access", "share_id", s.ID, "error", err)
	}
}

type invalidator interface {
	Invalidate(ids ...string)
}

// invalidate drops cached location rows whose occupant count the
// repository rewrote directly.
func (l *Ledger) invalidate(ids ...string) {
	if c, ok := l.locations.(invalidator); ok {
		c.Invalidate(ids...)
	}
}
