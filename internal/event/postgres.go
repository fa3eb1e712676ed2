package event

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

// PostgresRepository stores events in events, rosters in event_participants
// and logs in event_activities.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed repository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const eventColumns = `e.id, e.organizer_id, e.location_id, e.event_type, e.title, e.description,
	e.starts_at, e.ends_at, e.max_participants, e.current_participants, e.status,
	e.is_started, e.started_at, e.is_public, e.created_at,
	COALESCE(ARRAY(SELECT p.user_id::text FROM event_participants p WHERE p.event_id = e.id ORDER BY p.joined_at, p.user_id), '{}')`

func scanEvent(row interface{ Scan(...any) error }) (*Event, error) {
	var (
		e            Event
		startedAt    sql.NullTime
		participants pq.StringArray
	)
	if err := row.Scan(&e.ID, &e.OrganizerID, &e.LocationID, &e.Type, &e.Title, &e.Description,
		&e.StartsAt, &e.EndsAt, &e.MaxParticipants, &e.CurrentParticipants, &e.Status,
		&e.Started, &startedAt, &e.Public, &e.CreatedAt, &participants); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		e.StartedAt = &startedAt.Time
	}
	e.Participants = []string(participants)
	return &e, nil
}

func insertActivity(ctx context.Context, tx *sql.Tx, eventID string, a *Activity) error {
	a.EventID = eventID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO event_activities (event_id, user_id, activity_type, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		eventID, a.UserID, a.Type, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert event activity: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, e *Event, first *Activity) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "events", tracing.DBOperationTx)
	defer func() { end(err) }()

	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		e.CurrentParticipants = len(e.Participants)
		err := tx.QueryRowContext(ctx, `
			INSERT INTO events (organizer_id, location_id, event_type, title, description,
				starts_at, ends_at, max_participants, current_participants, status, is_public, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`,
			e.OrganizerID, e.LocationID, e.Type, e.Title, e.Description,
			e.StartsAt, e.EndsAt, e.MaxParticipants, e.CurrentParticipants, e.Status, e.Public, e.CreatedAt,
		).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		for _, userID := range e.Participants {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO event_participants (event_id, user_id, joined_at) VALUES ($1, $2, $3)`,
				e.ID, userID, e.CreatedAt); err != nil {
				return fmt.Errorf("insert participant: %w", err)
			}
		}
		if first != nil {
			return insertActivity(ctx, tx, e.ID, first)
		}
		return nil
	})
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// Mutate holds a row lock on the event for the whole change so concurrent
// joins cannot overfill the roster.
func (r *PostgresRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (out *Event, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "events", tracing.DBOperationTx)
	defer func() { end(err) }()

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		e, err := scanEvent(tx.QueryRowContext(ctx,
			`SELECT `+eventColumns+` FROM events e WHERE e.id = $1 FOR UPDATE OF e`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		if err != nil {
			return fmt.Errorf("lock event: %w", err)
		}

		before := make(map[string]bool, len(e.Participants))
		for _, p := range e.Participants {
			before[p] = true
		}
		act, err := fn(e)
		if err != nil {
			return err
		}
		e.CurrentParticipants = len(e.Participants)

		after := make(map[string]bool, len(e.Participants))
		for _, p := range e.Participants {
			after[p] = true
			if !before[p] {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO event_participants (event_id, user_id) VALUES ($1, $2)`, id, p); err != nil {
					return fmt.Errorf("add participant: %w", err)
				}
			}
		}
		for p := range before {
			if !after[p] {
				if _, err := tx.ExecContext(ctx,
					`DELETE FROM event_participants WHERE event_id = $1 AND user_id = $2`, id, p); err != nil {
					return fmt.Errorf("remove participant: %w", err)
				}
			}
		}

		var startedAt sql.NullTime
		if e.StartedAt != nil {
			startedAt = sql.NullTime{Time: *e.StartedAt, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE events SET current_participants = $2, status = $3, is_started = $4, started_at = $5
			WHERE id = $1`,
			id, e.CurrentParticipants, e.Status, e.Started, startedAt); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		if act != nil {
			if err := insertActivity(ctx, tx, id, act); err != nil {
				return err
			}
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) Activities(ctx context.Context, eventID string) ([]*Activity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.event_id, a.user_id, a.activity_type, a.created_at, u.username
		FROM event_activities a
		JOIN users u ON u.id = a.user_id
		WHERE a.event_id = $1
		ORDER BY a.created_at DESC, a.id DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []*Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.EventID, &a.UserID, &a.Type, &a.CreatedAt, &a.Username); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ByOrganizer(ctx context.Context, userID string, now time.Time) ([]*Event, error) {
	return r.list(ctx, `
		WHERE e.organizer_id = $1 AND e.status = 'active' AND e.ends_at > $2
		ORDER BY e.starts_at`, userID, now)
}

func (r *PostgresRepository) ActiveForOrganizers(ctx context.Context, userIDs []string, startAfter time.Time, limit int) ([]*Event, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	tail := `
		WHERE e.organizer_id = ANY($1) AND e.status = 'active' AND e.starts_at >= $2
		ORDER BY e.created_at DESC`
	args := []any{pq.Array(userIDs), startAfter}
	if limit > 0 {
		tail += ` LIMIT $3`
		args = append(args, limit)
	}
	return r.list(ctx, tail, args...)
}

func (r *PostgresRepository) list(ctx context.Context, tail string, args ...any) (_ []*Event, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "events", tracing.DBOperationQuery)
	defer func() { end(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events e `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
