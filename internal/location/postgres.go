package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/onnwee/campusconnect/internal/tracing"
)

// PostgresRepository stores locations in the locations table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed repository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const locationColumns = `id, zone, number, name, location_type, seating_capacity, power_outlets,
	wifi_available, free_space, is_active, active_users_count, crowd_level, updated_at`

func scanLocation(row interface{ Scan(...any) error }) (*Location, error) {
	var (
		loc    Location
		number sql.NullInt64
	)
	if err := row.Scan(&loc.ID, &loc.Zone, &number, &loc.Name, &loc.Type, &loc.SeatingCapacity,
		&loc.PowerOutlets, &loc.WiFi, &loc.FreeSpace, &loc.Active, &loc.ActiveUsers,
		&loc.CrowdLevel, &loc.UpdatedAt); err != nil {
		return nil, err
	}
	if number.Valid {
		n := int(number.Int64)
		loc.Number = &n
	}
	return &loc, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Location, error) {
	loc, err := scanLocation(r.db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = $1 AND is_active`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return loc, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context) (_ []*Location, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "locations", tracing.DBOperationQuery)
	defer func() { end(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+locationColumns+` FROM locations
		WHERE is_active
		ORDER BY CASE zone WHEN 'A' THEN 0 WHEN 'B' THEN 1 WHEN 'C' THEN 2 ELSE 3 END, name`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var out []*Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Upsert(ctx context.Context, loc *Location) error {
	var number sql.NullInt64
	if loc.Number != nil {
		number = sql.NullInt64{Int64: int64(*loc.Number), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO locations (id, zone, number, name, location_type, seating_capacity,
			power_outlets, wifi_available, free_space, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			zone = EXCLUDED.zone,
			number = EXCLUDED.number,
			name = EXCLUDED.name,
			location_type = EXCLUDED.location_type,
			seating_capacity = EXCLUDED.seating_capacity,
			power_outlets = EXCLUDED.power_outlets,
			wifi_available = EXCLUDED.wifi_available,
			free_space = EXCLUDED.free_space,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()`,
		loc.ID, loc.Zone, number, loc.Name, loc.Type, loc.SeatingCapacity,
		loc.PowerOutlets, loc.WiFi, loc.FreeSpace, loc.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert location %s: %w", loc.ID, err)
	}
	return nil
}

func (r *PostgresRepository) SetActiveUsers(ctx context.Context, id string, count int) error {
	return r.exec(ctx, `UPDATE locations SET active_users_count = $2, updated_at = NOW() WHERE id = $1`, id, count)
}

func (r *PostgresRepository) SetCrowdLevel(ctx context.Context, id string, level CrowdLevel) error {
	if !level.Valid() {
		return ErrInvalidCrowdLevel
	}
	return r.exec(ctx, `UPDATE locations SET crowd_level = $2, updated_at = NOW() WHERE id = $1`, id, level)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLocationNotFound
	}
	return nil
}
