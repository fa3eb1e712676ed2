package presence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/campusconnect/internal/db"
	"github.com/onnwee/campusconnect/internal/tracing"
)

// PostgresRepository stores shares in presence_shares. At most one active
// row per user is enforced by the uq_presence_one_active partial index.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed repository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const shareColumns = `id, user_id, location_id, status_message, is_active, created_at, expires_at`

const recountSQL = `
	UPDATE locations l SET
		active_users_count = (
			SELECT COUNT(*) FROM presence_shares p
			WHERE p.location_id = l.id AND p.is_active AND p.expires_at > $2
		),
		updated_at = NOW()
	WHERE l.id = ANY($1)`

func scanShare(row interface{ Scan(...any) error }) (*Share, error) {
	var s Share
	if err := row.Scan(&s.ID, &s.UserID, &s.LocationID, &s.Status, &s.Active, &s.CreatedAt, &s.ExpiresAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func recount(ctx context.Context, tx *sql.Tx, now time.Time, locationIDs []string) error {
	if len(locationIDs) == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, recountSQL, pq.Array(locationIDs), now); err != nil {
		return fmt.Errorf("recount occupancy: %w", err)
	}
	return nil
}

func collectLocations(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	seen := make(map[string]bool)
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func (r *PostgresRepository) Sweep(ctx context.Context, now time.Time) (swept int, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "presence_shares", tracing.DBOperationTx)
	defer func() { end(err) }()

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			UPDATE presence_shares SET is_active = FALSE
			WHERE is_active AND expires_at <= $1
			RETURNING location_id`, now)
		if err != nil {
			return fmt.Errorf("sweep expired shares: %w", err)
		}
		locations, err := collectLocations(rows)
		if err != nil {
			return fmt.Errorf("scan swept shares: %w", err)
		}
		swept = len(locations)
		return recount(ctx, tx, now, locations)
	})
	return swept, err
}

func (r *PostgresRepository) Activate(ctx context.Context, s *Share, now time.Time) (touched []string, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "presence_shares", tracing.DBOperationTx)
	defer func() { end(err) }()

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			UPDATE presence_shares SET is_active = FALSE
			WHERE user_id = $1 AND is_active
			RETURNING location_id`, s.UserID)
		if err != nil {
			return fmt.Errorf("deactivate previous shares: %w", err)
		}
		previous, err := collectLocations(rows)
		if err != nil {
			return fmt.Errorf("scan previous shares: %w", err)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO presence_shares (user_id, location_id, status_message, is_active, created_at, expires_at)
			VALUES ($1, $2, $3, TRUE, $4, $5)
			RETURNING id`,
			s.UserID, s.LocationID, s.Status, s.CreatedAt, s.ExpiresAt,
		).Scan(&s.ID)
		if db.IsUniqueViolation(err) {
			return ErrShareConflict
		}
		if err != nil {
			return fmt.Errorf("insert share: %w", err)
		}
		s.Active = true

		touched = appendUnique(previous, s.LocationID)
		return recount(ctx, tx, now, touched)
	})
	if err != nil {
		return nil, err
	}
	return touched, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, userID string, now time.Time) (vacated *Share, touched []string, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "presence_shares", tracing.DBOperationTx)
	defer func() { end(err) }()

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			UPDATE presence_shares SET is_active = FALSE
			WHERE user_id = $1 AND is_active
			RETURNING `+shareColumns, userID)
		if err != nil {
			return fmt.Errorf("deactivate shares: %w", err)
		}
		for rows.Next() {
			s, err := scanShare(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan share: %w", err)
			}
			touched = appendUnique(touched, s.LocationID)
			if now.Before(s.ExpiresAt) {
				s.Active = false
				vacated = s
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		return recount(ctx, tx, now, touched)
	})
	if err != nil {
		return nil, nil, err
	}
	return vacated, touched, nil
}

func (r *PostgresRepository) Current(ctx context.Context, userID string, now time.Time) (*Share, error) {
	s, err := scanShare(r.db.QueryRowContext(ctx, `
		SELECT `+shareColumns+` FROM presence_shares
		WHERE user_id = $1 AND is_active AND expires_at > $2`, userID, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveShare
	}
	if err != nil {
		return nil, fmt.Errorf("current share: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) LiveForUsers(ctx context.Context, userIDs []string, now, since time.Time, limit int) (_ []*Share, err error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	ctx, end := tracing.StartDBSpan(ctx, "presence_shares", tracing.DBOperationQuery)
	defer func() { end(err) }()

	query := `
		SELECT ` + shareColumns + ` FROM presence_shares
		WHERE user_id = ANY($1) AND is_active AND expires_at > $2 AND created_at >= $3
		ORDER BY created_at DESC`
	args := []any{pq.Array(userIDs), now, since}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("live shares: %w", err)
	}
	defer rows.Close()

	var out []*Share
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
