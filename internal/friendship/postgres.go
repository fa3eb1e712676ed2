package friendship

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/campusconnect/internal/db"
	"github.com/onnwee/campusconnect/internal/tracing"
)

// PostgresRepository stores relations in the friendships table. The unordered
// pair is unique through the uq_friendships_pair index.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed repository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const friendshipColumns = `id, from_user_id, to_user_id, status, created_at, accepted_at`

func scanFriendship(row interface{ Scan(...any) error }) (*Friendship, error) {
	var (
		f          Friendship
		acceptedAt sql.NullTime
	)
	if err := row.Scan(&f.ID, &f.FromUserID, &f.ToUserID, &f.Status, &f.CreatedAt, &acceptedAt); err != nil {
		return nil, err
	}
	if acceptedAt.Valid {
		f.AcceptedAt = &acceptedAt.Time
	}
	return &f, nil
}

func (r *PostgresRepository) Create(ctx context.Context, f *Friendship) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "friendships", tracing.DBOperationInsert)
	defer func() { end(err) }()

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO friendships (from_user_id, to_user_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		f.FromUserID, f.ToUserID, f.Status,
	).Scan(&f.ID, &f.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrRelationExists
	}
	if err != nil {
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Friendship, error) {
	return r.one(ctx, `SELECT `+friendshipColumns+` FROM friendships WHERE id = $1`, id)
}

func (r *PostgresRepository) Between(ctx context.Context, a, b string) (*Friendship, error) {
	return r.one(ctx, `
		SELECT `+friendshipColumns+` FROM friendships
		WHERE (from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1)`, a, b)
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*Friendship, error) {
	f, err := scanFriendship(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get friendship: %w", err)
	}
	return f, nil
}

// Resolve uses a conditional statement so that two concurrent responses
// cannot both succeed. When nothing matches, the row is read to tell a
// missing request from one the responder may not resolve.
func (r *PostgresRepository) Resolve(ctx context.Context, id, responder string, accept bool, at time.Time) (_ *Friendship, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "friendships", tracing.DBOperationUpdate)
	defer func() { end(err) }()

	var row *sql.Row
	if accept {
		row = r.db.QueryRowContext(ctx, `
			UPDATE friendships SET status = 'accepted', accepted_at = $3
			WHERE id = $1 AND to_user_id = $2 AND status = 'pending'
			RETURNING `+friendshipColumns, id, responder, at)
	} else {
		row = r.db.QueryRowContext(ctx, `
			DELETE FROM friendships
			WHERE id = $1 AND to_user_id = $2 AND status = 'pending'
			RETURNING `+friendshipColumns, id, responder)
	}
	f, err := scanFriendship(row)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolve friendship: %w", err)
	}
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrNotRecipient
}

func (r *PostgresRepository) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT CASE WHEN from_user_id = $1 THEN to_user_id ELSE from_user_id END AS friend_id
		FROM friendships
		WHERE status = 'accepted' AND (from_user_id = $1 OR to_user_id = $1)
		ORDER BY friend_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresRepository) Pending(ctx context.Context, userID string, received bool) ([]*Friendship, error) {
	column := "from_user_id"
	if received {
		column = "to_user_id"
	}
	return r.many(ctx, `
		SELECT `+friendshipColumns+` FROM friendships
		WHERE `+column+` = $1 AND status = 'pending'
		ORDER BY created_at DESC`, userID)
}

func (r *PostgresRepository) RelationsFor(ctx context.Context, userID string) ([]*Friendship, error) {
	return r.many(ctx, `
		SELECT `+friendshipColumns+` FROM friendships
		WHERE from_user_id = $1 OR to_user_id = $1`, userID)
}

func (r *PostgresRepository) many(ctx context.Context, query string, args ...any) ([]*Friendship, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	var out []*Friendship
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
