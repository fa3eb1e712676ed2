package review

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/onnwee/campusconnect/internal/db"
	"github.com/onnwee/campusconnect/internal/location"
	"github.com/onnwee/campusconnect/internal/tracing"
)

// PostgresRepository stores reviews in the reviews table and writes the
// derived crowd level to locations in the same transaction.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed repository.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const reviewColumns = `r.id, r.user_id, r.location_id, r.wifi_rating, r.cleanliness_rating, r.noise_rating,
	r.overall_rating, r.crowd_level, r.category, r.review_text, r.created_at, u.username, l.name`

const reviewFrom = ` FROM reviews r
	JOIN users u ON u.id = r.user_id
	JOIN locations l ON l.id = r.location_id`

func scanReview(row interface{ Scan(...any) error }) (*Review, error) {
	var r Review
	if err := row.Scan(&r.ID, &r.UserID, &r.LocationID, &r.WiFi, &r.Cleanliness, &r.Noise,
		&r.Overall, &r.CrowdLevel, &r.Category, &r.Text, &r.CreatedAt, &r.Username, &r.LocationName); err != nil {
		return nil, err
	}
	return &r, nil
}

// Upsert relies on xmax = 0 to tell an insert from a conflict update.
func (p *PostgresRepository) Upsert(ctx context.Context, r *Review, crowdSince time.Time) (res *UpsertResult, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationTx)
	defer func() { end(err) }()

	res = &UpsertResult{}
	err = db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO reviews (user_id, location_id, wifi_rating, cleanliness_rating, noise_rating,
				overall_rating, crowd_level, category, review_text, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (user_id, location_id) DO UPDATE SET
				wifi_rating = EXCLUDED.wifi_rating,
				cleanliness_rating = EXCLUDED.cleanliness_rating,
				noise_rating = EXCLUDED.noise_rating,
				overall_rating = EXCLUDED.overall_rating,
				crowd_level = EXCLUDED.crowd_level,
				category = EXCLUDED.category,
				review_text = EXCLUDED.review_text,
				created_at = EXCLUDED.created_at
			RETURNING id, (xmax = 0) AS inserted`,
			r.UserID, r.LocationID, r.WiFi, r.Cleanliness, r.Noise,
			r.Overall, r.CrowdLevel, r.Category, r.Text, r.CreatedAt,
		).Scan(&r.ID, &res.Inserted)
		if err != nil {
			return fmt.Errorf("upsert review: %w", err)
		}

		levels, err := crowdLevels(ctx, tx, r.LocationID, crowdSince)
		if err != nil {
			return err
		}
		level, ok := DominantCrowdLevel(levels)
		if !ok {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE locations SET crowd_level = $2, updated_at = NOW() WHERE id = $1`,
			r.LocationID, level); err != nil {
			return fmt.Errorf("update crowd level: %w", err)
		}
		res.CrowdLevel, res.CrowdUpdated = level, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func crowdLevels(ctx context.Context, q queryer, locationID string, since time.Time) ([]location.CrowdLevel, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT crowd_level FROM reviews
		WHERE location_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id DESC`, locationID, since)
	if err != nil {
		return nil, fmt.Errorf("recent crowd levels: %w", err)
	}
	defer rows.Close()

	var levels []location.CrowdLevel
	for rows.Next() {
		var l location.CrowdLevel
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan crowd level: %w", err)
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

func (p *PostgresRepository) RecentCrowdLevels(ctx context.Context, locationID string, since time.Time) ([]location.CrowdLevel, error) {
	return crowdLevels(ctx, p.db, locationID, since)
}

func (p *PostgresRepository) ForLocation(ctx context.Context, locationID string, limit int) ([]*Review, error) {
	return p.list(ctx, `WHERE r.location_id = $1 ORDER BY r.created_at DESC LIMIT $2`, locationID, limit)
}

func (p *PostgresRepository) ByUser(ctx context.Context, userID string) ([]*Review, error) {
	return p.list(ctx, `WHERE r.user_id = $1 ORDER BY r.created_at DESC`, userID)
}

func (p *PostgresRepository) ByUsers(ctx context.Context, userIDs []string, limit int) ([]*Review, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return p.list(ctx, `WHERE r.user_id = ANY($1) ORDER BY r.created_at DESC LIMIT $2`, pq.Array(userIDs), limit)
}

func (p *PostgresRepository) Recent(ctx context.Context, limit int) ([]*Review, error) {
	return p.list(ctx, `ORDER BY r.created_at DESC LIMIT $1`, limit)
}

func (p *PostgresRepository) list(ctx context.Context, tail string, args ...any) (_ []*Review, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "reviews", tracing.DBOperationQuery)
	defer func() { end(err) }()

	rows, err := p.db.QueryContext(ctx, `SELECT `+reviewColumns+reviewFrom+` `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []*Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresRepository) LocationStats(ctx context.Context, locationID string) (*LocationStats, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT crowd_level, COUNT(*), COALESCE(SUM(overall_rating), 0)
		FROM reviews WHERE location_id = $1
		GROUP BY crowd_level`, locationID)
	if err != nil {
		return nil, fmt.Errorf("location review stats: %w", err)
	}
	defer rows.Close()

	stats := &LocationStats{CrowdDistribution: make(map[location.CrowdLevel]int)}
	sum := 0.0
	for rows.Next() {
		var (
			level    location.CrowdLevel
			count    int
			levelSum float64
		)
		if err := rows.Scan(&level, &count, &levelSum); err != nil {
			return nil, fmt.Errorf("scan review stats: %w", err)
		}
		stats.CrowdDistribution[level] = count
		stats.TotalReviews += count
		sum += levelSum
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if stats.TotalReviews > 0 {
		stats.AverageRating = roundRating(sum / float64(stats.TotalReviews))
	}
	return stats, nil
}

func (p *PostgresRepository) Summaries(ctx context.Context, since time.Time) (map[string]*Summary, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT location_id,
			AVG(overall_rating)::float8,
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= $1),
			ARRAY_AGG(DISTINCT category ORDER BY category)
		FROM reviews
		GROUP BY location_id`, since)
	if err != nil {
		return nil, fmt.Errorf("review summaries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Summary)
	for rows.Next() {
		var (
			s          Summary
			categories pq.StringArray
		)
		if err := rows.Scan(&s.LocationID, &s.AverageRating, &s.ReviewCount, &s.RecentCount, &categories); err != nil {
			return nil, fmt.Errorf("scan review summary: %w", err)
		}
		s.AverageRating = roundRating(s.AverageRating)
		for _, c := range categories {
			s.Categories = append(s.Categories, Category(c))
		}
		out[s.LocationID] = &s
	}
	return out, rows.Err()
}
