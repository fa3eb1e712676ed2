package health

import (
	"context"
)

// DBPinger is satisfied by *sql.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// DBChecker reports Postgres reachability.
type DBChecker struct {
	db DBPinger
}

// NewDBChecker creates a database health checker.
func NewDBChecker(db DBPinger) *DBChecker {
	return &DBChecker{db: db}
}

// Name implements Checker.
func (d *DBChecker) Name() string { return "database" }

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}
