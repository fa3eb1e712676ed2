package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/campusconnect/internal/db"
	"github.com/onnwee/campusconnect/internal/tracing"
)

// PostgresRepository stores users in the users table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed repository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const userColumns = `id, username, email, first_name, last_name, bio, password_hash, last_seen, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Bio,
		&u.PasswordHash, &u.LastSeen, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts u and fills ID and timestamps from the database.
func (r *PostgresRepository) Create(ctx context.Context, u *User) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "users", tracing.DBOperationInsert)
	defer func() { end(err) }()

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, first_name, last_name, bio, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, last_seen, created_at`,
		u.Username, u.Email, u.FirstName, u.LastName, u.Bio, u.PasswordHash,
	).Scan(&u.ID, &u.LastSeen, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && db.IsUniqueViolation(err) {
			if strings.Contains(pqErr.Constraint, "email") {
				return ErrEmailTaken
			}
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID returns the user with id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetByUsername looks the user up case-insensitively.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `WHERE LOWER(username) = LOWER($1)`, username)
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetMany returns the users found among ids.
func (r *PostgresRepository) GetMany(ctx context.Context, ids []string) (map[string]*User, error) {
	out := make(map[string]*User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// Search matches username and names with ILIKE.
func (r *PostgresRepository) Search(ctx context.Context, query string, exclude []string, limit int) ([]*User, error) {
	if exclude == nil {
		exclude = []string{}
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE NOT (id = ANY($1))
		  AND ($2 = '' OR username ILIKE $3 OR first_name ILIKE $3 OR last_name ILIKE $3)
		ORDER BY username
		LIMIT $4`,
		pq.Array(exclude), query, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var results []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// TouchLastSeen updates last_seen.
func (r *PostgresRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last_seen: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
