package memory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/campusconnect/internal/audit"
	"github.com/onnwee/campusconnect/internal/identity"
	"github.com/onnwee/campusconnect/internal/location"
	"github.com/onnwee/campusconnect/internal/media"
	"github.com/onnwee/campusconnect/internal/tracing"
	"github.com/onnwee/campusconnect/internal/validate"
)

// FriendSource answers friendship questions for visibility checks.
type FriendSource interface {
	FriendIDs(ctx context.Context, userID string) ([]string, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// StoreConfig holds the store's collaborators.
type StoreConfig struct {
	Repository Repository
	Friends    FriendSource
	Users      identity.Repository
	Locations  location.Repository
	Media      *media.Uploader
	Audit      audit.Repository // optional
	Metrics    *Metrics         // optional
}

// Store applies visibility and ownership rules to memories.
type Store struct {
	repo      Repository
	friends   FriendSource
	users     identity.Repository
	locations location.Repository
	media     *media.Uploader
	audit     audit.Repository
	metrics   *Metrics
	now       func() time.Time
}

// NewStore creates a Store.
func NewStore(cfg StoreConfig) *Store {
	return &Store{
		repo:      cfg.Repository,
		friends:   cfg.Friends,
		users:     cfg.Users,
		locations: cfg.Locations,
		media:     cfg.Media,
		audit:     cfg.Audit,
		metrics:   cfg.Metrics,
		now:       time.Now,
	}
}

// Item is a memory as shown to one viewer.
type Item struct {
	*Memory
	MediaURL     string `json:"media_url,omitempty"`
	UserHasLiked bool   `json:"user_has_liked"`
	CanEdit      bool   `json:"can_edit"`
}

// Page is one page of a newest-first listing.
type Page struct {
	Items      []*Item `json:"memories"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// CreateInput is the memory form.
type CreateInput struct {
	UserID      string
	LocationID  string
	Title       string
	Description string
	Visibility  string
	Tags        string // comma-separated
	Filename    string // empty when no file was attached
	Data        []byte
}

// Create validates and stores a memory with its optional media.
func (s *Store) Create(ctx context.Context, in CreateInput) (_ *Memory, err error) {
	ctx, end := tracing.StartSpan(ctx, "memory.Create")
	defer func() { end(err) }()

	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" || in.LocationID == "" {
		return nil, ErrMissingFields
	}
	title, err := validate.MemoryTitle(in.Title)
	if err != nil {
		return nil, invalid("title", err)
	}
	desc, err := validate.MemoryDescription(in.Description)
	if err != nil {
		return nil, invalid("description", err)
	}
	vis, err := ParseVisibility(in.Visibility)
	if err != nil {
		return nil, err
	}
	tags, err := validate.Tags(in.Tags)
	if err != nil {
		return nil, invalid("tags", err)
	}
	loc, err := s.locations.Get(ctx, in.LocationID)
	if err != nil {
		return nil, err
	}

	up, err := s.media.Save(ctx, in.Filename, in.Data)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	m := &Memory{
		UserID:      in.UserID,
		LocationID:  loc.ID,
		Title:       title,
		Description: desc,
		MediaType:   up.Type,
		MediaKey:    up.Key,
		Visibility:  vis,
		Tags:        tags,
		YearCreated: now.Year(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		s.media.Remove(ctx, up.Key)
		return nil, err
	}
	m.LocationName = loc.Name
	s.metrics.incCreated(string(m.MediaType))
	slog.InfoContext(ctx, "memory created", "memory_id", m.ID, "user_id", m.UserID,
		"location_id", m.LocationID, "visibility", m.Visibility, "media_type", m.MediaType)
	return m, nil
}

// CanView reports whether viewerID may see m. An empty viewer is anonymous
// and sees public memories only.
func (s *Store) CanView(ctx context.Context, m *Memory, viewerID string) (bool, error) {
	switch m.Visibility {
	case VisibilityPublic:
		return true, nil
	case VisibilityPrivate:
		return viewerID != "" && m.UserID == viewerID, nil
	case VisibilityFriends:
		if viewerID == "" {
			return false, nil
		}
		if m.UserID == viewerID {
			return true, nil
		}
		return s.friends.AreFriends(ctx, m.UserID, viewerID)
	}
	return false, nil
}

// LikeResult is the state after a like toggle.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// ToggleLike likes or unlikes a memory the user can see.
func (s *Store) ToggleLike(ctx context.Context, memoryID, userID string) (_ *LikeResult, err error) {
	ctx, end := tracing.StartSpan(ctx, "memory.ToggleLike")
	defer func() { end(err) }()

	m, err := s.repo.Get(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	ok, err := s.CanView(ctx, m, userID)
	if err != nil {
		return nil, err
	}
	if !ok || userID == "" {
		return nil, ErrCannotLike
	}
	liked, count, err := s.repo.ToggleLike(ctx, memoryID, userID)
	if err != nil {
		return nil, err
	}
	s.metrics.incLike(liked)
	return &LikeResult{Liked: liked, LikesCount: count}, nil
}

// IncrementView bumps the view counter.
func (s *Store) IncrementView(ctx context.Context, memoryID string) (int, error) {
	n, err := s.repo.IncrementView(ctx, memoryID)
	if err != nil {
		return 0, err
	}
	s.metrics.incView()
	return n, nil
}

// Feed returns the non-archived memories viewerID may see, newest first.
func (s *Store) Feed(ctx context.Context, viewerID, cursor string, limit int) (_ *Page, err error) {
	ctx, end := tracing.StartSpan(ctx, "memory.Feed")
	defer func() { end(err) }()

	after, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, FeedPageSize)
	var friends []string
	if viewerID != "" {
		if friends, err = s.friends.FriendIDs(ctx, viewerID); err != nil {
			return nil, err
		}
	}
	ms, err := s.repo.Feed(ctx, FeedQuery{ViewerID: viewerID, FriendIDs: friends, After: after, Limit: limit + 1})
	if err != nil {
		return nil, err
	}
	return s.page(ctx, ms, viewerID, limit)
}

// UserPage is a page of the caller's own memories with totals.
type UserPage struct {
	Page
	Stats        *Stats `json:"memory_stats"`
	ShowArchived bool   `json:"show_archived"`
}

// ByUser lists userID's own memories, optionally including archived ones.
func (s *Store) ByUser(ctx context.Context, userID string, includeArchived bool, cursor string) (_ *UserPage, err error) {
	ctx, end := tracing.StartSpan(ctx, "memory.ByUser")
	defer func() { end(err) }()

	after, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	ms, err := s.repo.ByUser(ctx, userID, includeArchived, after, MinePageSize+1)
	if err != nil {
		return nil, err
	}
	page, err := s.page(ctx, ms, userID, MinePageSize)
	if err != nil {
		return nil, err
	}
	st, err := s.repo.UserStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserPage{Page: *page, Stats: st, ShowArchived: includeArchived}, nil
}

// page trims a limit+1 result to limit and sets the continuation cursor.
func (s *Store) page(ctx context.Context, ms []*Memory, viewerID string, limit int) (*Page, error) {
	var next string
	if len(ms) > limit {
		ms = ms[:limit]
		next = CursorAfter(ms[len(ms)-1]).Encode()
	}
	items, err := s.items(ctx, ms, viewerID)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, NextCursor: next}, nil
}

// items decorates memories with names, media URLs and per-viewer flags.
func (s *Store) items(ctx context.Context, ms []*Memory, viewerID string) ([]*Item, error) {
	if len(ms) == 0 {
		return []*Item{}, nil
	}
	ids := make([]string, 0, len(ms))
	userIDs := make([]string, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.ID)
		userIDs = append(userIDs, m.UserID)
	}
	users, err := s.users.GetMany(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	liked := map[string]bool{}
	if viewerID != "" {
		if liked, err = s.repo.LikedSet(ctx, viewerID, ids); err != nil {
			return nil, err
		}
	}

	names := make(map[string]string)
	out := make([]*Item, 0, len(ms))
	for _, m := range ms {
		if u, ok := users[m.UserID]; ok {
			m.Username = u.Username
			m.AuthorName = u.DisplayName()
		}
		m.LocationName = s.locationName(ctx, names, m.LocationID)
		out = append(out, &Item{
			Memory:       m,
			MediaURL:     s.mediaURL(m),
			UserHasLiked: liked[m.ID],
			CanEdit:      m.CanEdit(viewerID),
		})
	}
	return out, nil
}

func (s *Store) locationName(ctx context.Context, cache map[string]string, id string) string {
	if name, ok := cache[id]; ok {
		return name
	}
	name := id
	if loc, err := s.locations.Get(ctx, id); err == nil {
		name = loc.Name
	}
	cache[id] = name
	return name
}

func (s *Store) mediaURL(m *Memory) string {
	if !m.HasMedia() {
		return ""
	}
	return s.media.URL(m.MediaKey)
}

// Detail is the projection returned by the detail endpoint.
type Detail struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	User         string     `json:"user"`
	Location     string     `json:"location"`
	Created      string     `json:"created"`
	LikesCount   int        `json:"likes_count"`
	ViewCount    int        `json:"view_count"`
	Tags         []string   `json:"tags"`
	MediaType    media.Type `json:"media_type"`
	MediaURL     *string    `json:"media_url"`
	Visibility   string     `json:"visibility"`
	UserHasLiked bool       `json:"user_has_liked"`
	CanEdit      bool       `json:"can_edit"`
}

// DetailTimeFormat renders Detail.Created, e.g. "March 07, 2026 at 02:15 PM".
const DetailTimeFormat = "January 02, 2006 at 03:04 PM"

// Detail returns the projection of a memory viewerID may see and counts the
// view.
func (s *Store) Detail(ctx context.Context, memoryID, viewerID string) (_ *Detail, err error) {
	ctx, end := tracing.StartSpan(ctx, "memory.Detail")
	defer func() { end(err) }()

	m, err := s.repo.Get(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	ok, err := s.CanView(ctx, m, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCannotView
	}
	views, err := s.IncrementView(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	m.ViewCount = views

	items, err := s.items(ctx, []*Memory{m}, viewerID)
	if err != nil {
		return nil, err
	}
	it := items[0]
	if viewerID != m.UserID {
		s.logAccess(ctx, m.ID, audit.ActionViewMemoryDetail)
	}

	d := &Detail{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		User:         m.AuthorName,
		Location:     m.LocationName,
		Created:      m.CreatedAt.Format(DetailTimeFormat),
		LikesCount:   m.LikesCount,
		ViewCount:    m.ViewCount,
		Tags:         m.Tags,
		MediaType:    m.MediaType,
		Visibility:   m.Visibility.Display(),
		UserHasLiked: it.UserHasLiked,
		CanEdit:      it.CanEdit,
	}
	if d.User == "" {
		d.User = m.Username
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if it.MediaURL != "" {
		d.MediaURL = &it.MediaURL
	}
	return d, nil
}

// Delete removes an owned memory and, best effort, its media.
func (s *Store) Delete(ctx context.Context, memoryID, userID string) (_ *Memory, err error) {
	ctx, end := tracing.StartSpan(ctx, "memory.Delete")
	defer func() { end(err) }()

	m, err := s.owned(ctx, memoryID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, memoryID); err != nil {
		return nil, err
	}
	s.media.Remove(ctx, m.MediaKey)
	s.logAccess(ctx, m.ID, audit.ActionDeleteMemory)
	slog.InfoContext(ctx, "memory deleted", "memory_id", m.ID, "user_id", userID)
	return m, nil
}

// ToggleArchive archives or restores an owned memory.
func (s *Store) ToggleArchive(ctx context.Context, memoryID, userID string) (*Memory, error) {
	return s.update(ctx, memoryID, userID, func(m *Memory) error {
		m.Archived = !m.Archived
		return nil
	})
}

// UpdateVisibility changes who may see an owned memory.
func (s *Store) UpdateVisibility(ctx context.Context, memoryID, userID, visibility string) (*Memory, error) {
	if visibility == "" {
		return nil, ErrInvalidVisibility
	}
	vis, err := ParseVisibility(visibility)
	if err != nil {
		return nil, err
	}
	m, err := s.update(ctx, memoryID, userID, func(m *Memory) error {
		m.Visibility = vis
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAccess(ctx, m.ID, audit.ActionChangeVisibility)
	return m, nil
}

func (s *Store) update(ctx context.Context, memoryID, userID string, fn UpdateFunc) (_ *Memory, err error) {
	ctx, end := tracing.StartSpan(ctx, "memory.Update")
	defer func() { end(err) }()

	now := s.now().UTC()
	return s.repo.Update(ctx, memoryID, func(m *Memory) error {
		if !m.CanEdit(userID) {
			return ErrNotOwner
		}
		if err := fn(m); err != nil {
			return err
		}
		m.UpdatedAt = now
		return nil
	})
}

func (s *Store) owned(ctx context.Context, memoryID, userID string) (*Memory, error) {
	m, err := s.repo.Get(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if !m.CanEdit(userID) {
		return nil, ErrNotOwner
	}
	return m, nil
}

// PublicMediaForLocation lists public image and video memories at a location.
func (s *Store) PublicMediaForLocation(ctx context.Context, locationID string, limit int) ([]*Item, error) {
	ms, err := s.repo.PublicMedia(ctx, locationID, clampLimit(limit, PublicMediaMax))
	if err != nil {
		return nil, err
	}
	return s.items(ctx, ms, "")
}

// RecentPublicMedia lists the newest public image and video memories.
func (s *Store) RecentPublicMedia(ctx context.Context, limit int) ([]*Item, error) {
	return s.PublicMediaForLocation(ctx, "", limit)
}

// PublicCounts counts public, non-archived memories per location.
func (s *Store) PublicCounts(ctx context.Context) (map[string]int, error) {
	return s.repo.PublicCounts(ctx)
}

func (s *Store) logAccess(ctx context.Context, memoryID, action string) {
	if s.audit == nil {
		return
	}
	if err := audit.LogAccess(ctx, s.audit, audit.EntityMemory, memoryID, action); err != nil {
		slog.ErrorContext(ctx, "failed to record memory access", "memory_id", memoryID, "action", action, "error", err)
	}
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, MaxPageSize)
}
