package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/onnwee/campusconnect/internal/db"
	"github.com/onnwee/campusconnect/internal/tracing"
)

// PostgresRepository stores memories in memories and likes in memory_likes.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed repository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const memoryColumns = `m.id, m.user_id, m.location_id, m.title, m.description, m.media_type, m.media_key,
	m.visibility, m.is_archived, m.is_featured, m.tags, m.year_created, m.likes_count, m.view_count,
	m.created_at, m.updated_at`

func scanMemory(row interface{ Scan(...any) error }) (*Memory, error) {
	var (
		m    Memory
		tags pq.StringArray
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.LocationID, &m.Title, &m.Description, &m.MediaType, &m.MediaKey,
		&m.Visibility, &m.Archived, &m.Featured, &tags, &m.YearCreated, &m.LikesCount, &m.ViewCount,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Tags = []string(tags)
	return &m, nil
}

// cursorArgs renders a cursor as nullable parameters.
func cursorArgs(c *Cursor) (sql.NullTime, sql.NullString) {
	if c == nil {
		return sql.NullTime{}, sql.NullString{}
	}
	return sql.NullTime{Time: c.CreatedAt, Valid: true}, sql.NullString{String: c.ID, Valid: true}
}

func (r *PostgresRepository) Create(ctx context.Context, m *Memory) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "memories", tracing.DBOperationInsert)
	defer func() { end(err) }()

	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO memories (user_id, location_id, title, description, media_type, media_key,
			visibility, tags, year_created, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id, updated_at`,
		m.UserID, m.LocationID, m.Title, m.Description, m.MediaType, m.MediaKey,
		m.Visibility, pq.Array(tags), m.YearCreated, m.CreatedAt,
	).Scan(&m.ID, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (_ *Memory, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "memories", tracing.DBOperationQuery)
	defer func() { end(err) }()

	m, err := scanMemory(r.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories m WHERE m.id::text = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Feed(ctx context.Context, q FeedQuery) ([]*Memory, error) {
	at, id := cursorArgs(q.After)
	friends := q.FriendIDs
	if friends == nil {
		friends = []string{}
	}
	return r.list(ctx, `
		WHERE NOT m.is_archived
		  AND (m.visibility = 'public'
		       OR m.user_id::text = $1
		       OR (m.visibility = 'friends' AND m.user_id::text = ANY($2)))
		  AND ($3::timestamptz IS NULL OR (m.created_at, m.id) < ($3, $4::uuid))
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $5`, q.ViewerID, pq.Array(friends), at, id, q.Limit)
}

func (r *PostgresRepository) ByUser(ctx context.Context, userID string, includeArchived bool, after *Cursor, limit int) ([]*Memory, error) {
	at, id := cursorArgs(after)
	return r.list(ctx, `
		WHERE m.user_id::text = $1
		  AND ($2 OR NOT m.is_archived)
		  AND ($3::timestamptz IS NULL OR (m.created_at, m.id) < ($3, $4::uuid))
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $5`, userID, includeArchived, at, id, limit)
}

func (r *PostgresRepository) PublicMedia(ctx context.Context, locationID string, limit int) ([]*Memory, error) {
	return r.list(ctx, `
		WHERE m.visibility = 'public' AND NOT m.is_archived
		  AND m.media_type IN ('image', 'video')
		  AND ($1 = '' OR m.location_id = $1)
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2`, locationID, limit)
}

func (r *PostgresRepository) list(ctx context.Context, tail string, args ...any) (_ []*Memory, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "memories", tracing.DBOperationQuery)
	defer func() { end(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+memoryColumns+` FROM memories m `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UserStats(ctx context.Context, userID string) (*Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(likes_count), 0), COUNT(*) FILTER (WHERE is_archived)
		FROM memories
		WHERE user_id::text = $1`, userID,
	).Scan(&s.Total, &s.TotalLikes, &s.Archived)
	if err != nil {
		return nil, fmt.Errorf("memory stats: %w", err)
	}
	s.Active = s.Total - s.Archived
	return &s, nil
}

// ToggleLike locks the memory row so the like relation and likes_count
// cannot drift apart under concurrent toggles.
func (r *PostgresRepository) ToggleLike(ctx context.Context, memoryID, userID string) (liked bool, count int, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "memory_likes", tracing.DBOperationTx)
	defer func() { end(err) }()

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM memories WHERE id::text = $1 FOR UPDATE`, memoryID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMemoryNotFound
		}
		if err != nil {
			return fmt.Errorf("lock memory: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM memory_likes WHERE memory_id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return fmt.Errorf("remove like: %w", err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("remove like: %w", err)
		}

		delta := "- 1"
		if removed == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO memory_likes (memory_id, user_id) VALUES ($1, $2)`, id, userID); err != nil {
				return fmt.Errorf("add like: %w", err)
			}
			delta = "+ 1"
			liked = true
		}
		return tx.QueryRowContext(ctx,
			`UPDATE memories SET likes_count = GREATEST(likes_count `+delta+`, 0) WHERE id = $1 RETURNING likes_count`, id,
		).Scan(&count)
	})
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

func (r *PostgresRepository) LikedSet(ctx context.Context, userID string, memoryIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if userID == "" || len(memoryIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT memory_id FROM memory_likes
		WHERE user_id::text = $1 AND memory_id::text = ANY($2)`, userID, pq.Array(memoryIDs))
	if err != nil {
		return nil, fmt.Errorf("liked memories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan liked memory: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (r *PostgresRepository) IncrementView(ctx context.Context, id string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`UPDATE memories SET view_count = view_count + 1 WHERE id::text = $1 RETURNING view_count`, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrMemoryNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment views: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, fn UpdateFunc) (out *Memory, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "memories", tracing.DBOperationUpdate)
	defer func() { end(err) }()

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		m, err := scanMemory(tx.QueryRowContext(ctx,
			`SELECT `+memoryColumns+` FROM memories m WHERE m.id::text = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMemoryNotFound
		}
		if err != nil {
			return fmt.Errorf("lock memory: %w", err)
		}
		if err := fn(m); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE memories SET visibility = $2, is_archived = $3, is_featured = $4, updated_at = $5
			WHERE id = $1`,
			m.ID, m.Visibility, m.Archived, m.Featured, m.UpdatedAt); err != nil {
			return fmt.Errorf("update memory: %w", err)
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "memories", tracing.DBOperationDelete)
	defer func() { end(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if n == 0 {
		return ErrMemoryNotFound
	}
	return nil
}

func (r *PostgresRepository) PublicCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT location_id, COUNT(*)
		FROM memories
		WHERE visibility = 'public' AND NOT is_archived
		GROUP BY location_id`)
	if err != nil {
		return nil, fmt.Errorf("public memory counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			loc string
			n   int
		)
		if err := rows.Scan(&loc, &n); err != nil {
			return nil, fmt.Errorf("scan memory count: %w", err)
		}
		out[loc] = n
	}
	return out, rows.Err()
}
