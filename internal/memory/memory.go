// Package memory stores user memories (titled posts with optional media) and
// decides per viewer who may see them.
package memory

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/campusconnect/internal/apperr"
	"github.com/onnwee/campusconnect/internal/media"
)

// Visibility controls who may view a memory.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
	VisibilityPrivate Visibility = "private"
)

// Display returns the human label for v.
func (v Visibility) Display() string {
	switch v {
	case VisibilityPublic:
		return "Public"
	case VisibilityFriends:
		return "Friends Only"
	case VisibilityPrivate:
		return "Private"
	}
	return string(v)
}

// ParseVisibility converts a form value. Empty means friends.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(s); v {
	case "":
		return VisibilityFriends, nil
	case VisibilityPublic, VisibilityFriends, VisibilityPrivate:
		return v, nil
	}
	return "", ErrInvalidVisibility
}

// Page sizes.
const (
	FeedPageSize   = 10
	MinePageSize   = 12
	MaxPageSize    = 50
	PublicMediaMax = 20
)

// Errors.
var (
	ErrMemoryNotFound    = fmt.Errorf("%w: memory not found", apperr.ErrNotFound)
	ErrInvalidVisibility = fmt.Errorf("%w: invalid visibility option", apperr.ErrInvalidInput)
	ErrMissingFields     = fmt.Errorf("%w: please fill in all required fields", apperr.ErrInvalidInput)
	ErrInvalidCursor     = fmt.Errorf("%w: invalid page cursor", apperr.ErrInvalidInput)
	ErrNotOwner          = fmt.Errorf("%w: only the author can change this memory", apperr.ErrForbidden)
	ErrCannotView        = fmt.Errorf("%w: you cannot view this memory", apperr.ErrForbidden)
	ErrCannotLike        = fmt.Errorf("%w: you cannot like this memory", apperr.ErrForbidden)
)

// Memory is a post attached to a location.
type Memory struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	LocationID  string     `json:"location_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	MediaType   media.Type `json:"media_type"`
	MediaKey    string     `json:"-"`
	Visibility  Visibility `json:"visibility"`
	Archived    bool       `json:"is_archived"`
	Featured    bool       `json:"is_featured"`
	Tags        []string   `json:"tags"`
	YearCreated int        `json:"year_created"`
	LikesCount  int        `json:"likes_count"`
	ViewCount   int        `json:"view_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Filled in for display.
	Username     string `json:"username,omitempty"`
	AuthorName   string `json:"author_name,omitempty"`
	LocationName string `json:"location_name,omitempty"`
}

// HasMedia reports whether a file is attached.
func (m *Memory) HasMedia() bool {
	return m.MediaType != media.TypeNone && m.MediaKey != ""
}

// CanEdit reports whether userID may change or delete m.
func (m *Memory) CanEdit(userID string) bool {
	return userID != "" && m.UserID == userID
}

func (m *Memory) clone() *Memory {
	out := *m
	out.Tags = append([]string(nil), m.Tags...)
	return &out
}

// Cursor marks a position in a newest-first listing.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorAfter returns the cursor that continues after m.
func CursorAfter(m *Memory) *Cursor {
	return &Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// Encode returns an opaque string form of c.
func (c *Cursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Before reports whether m sorts strictly after the cursor position, that is
// older, or equally old with a smaller id.
func (c *Cursor) Before(m *Memory) bool {
	if c == nil {
		return true
	}
	if !m.CreatedAt.Equal(c.CreatedAt) {
		return m.CreatedAt.Before(c.CreatedAt)
	}
	return m.ID < c.ID
}

// DecodeCursor parses an encoded cursor. Empty input means the first page.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{CreatedAt: t, ID: id}, nil
}

// Stats summarises a user's memories.
type Stats struct {
	Total      int `json:"total_memories"`
	TotalLikes int `json:"total_likes"`
	Archived   int `json:"archived_count"`
	Active     int `json:"active_count"`
}

// newestFirst orders by created_at then id, both descending.
func newestFirst(a, b *Memory) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func invalid(field string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperr.ErrInvalidInput, field, err)
}
