package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository stores audit events. Queries return newest first; limit 0 means no limit.
type Repository interface {
	LogAccess(ctx context.Context, entry LogEntry) (*AuditLog, error)
	QueryByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*AuditLog, error)
	QueryByUser(ctx context.Context, userID string, limit int) ([]*AuditLog, error)
}

// InMemoryRepository keeps audit events in insertion order.
type InMemoryRepository struct {
	mu   sync.RWMutex
	logs []*AuditLog
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// LogAccess appends an event.
func (r *InMemoryRepository) LogAccess(_ context.Context, entry LogEntry) (*AuditLog, error) {
	log := newAuditLog(entry)

	r.mu.Lock()
	r.logs = append(r.logs, log)
	r.mu.Unlock()

	out := *log
	return &out, nil
}

// QueryByEntity returns events for one entity.
func (r *InMemoryRepository) QueryByEntity(_ context.Context, entityType, entityID string, limit int) ([]*AuditLog, error) {
	return r.query(func(l *AuditLog) bool {
		return l.EntityType == entityType && l.EntityID == entityID
	}, limit), nil
}

// QueryByUser returns events performed by one user.
func (r *InMemoryRepository) QueryByUser(_ context.Context, userID string, limit int) ([]*AuditLog, error) {
	return r.query(func(l *AuditLog) bool { return l.UserID == userID }, limit), nil
}

func (r *InMemoryRepository) query(match func(*AuditLog) bool, limit int) []*AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*AuditLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		if !match(r.logs[i]) {
			continue
		}
		out := *r.logs[i]
		results = append(results, &out)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results
}

func newAuditLog(entry LogEntry) *AuditLog {
	return &AuditLog{
		ID:         uuid.NewString(),
		UserID:     entry.UserID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		RequestID:  entry.RequestID,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}
}

// PostgresRepository stores audit events in the audit_logs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const auditColumns = `id, user_id, entity_type, entity_id, action, request_id, ip_address, user_agent, created_at`

// LogAccess inserts an event.
func (r *PostgresRepository) LogAccess(ctx context.Context, entry LogEntry) (*AuditLog, error) {
	log := newAuditLog(entry)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (`+auditColumns+`)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9)`,
		log.ID, log.UserID, log.EntityType, log.EntityID, log.Action,
		log.RequestID, log.IPAddress, log.UserAgent, log.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit log: %w", err)
	}
	return log, nil
}

// QueryByEntity returns events for one entity.
func (r *PostgresRepository) QueryByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*AuditLog, error) {
	return r.query(ctx, `WHERE entity_type = $1 AND entity_id = $2`, limit, entityType, entityID)
}

// QueryByUser returns events performed by one user.
func (r *PostgresRepository) QueryByUser(ctx context.Context, userID string, limit int) ([]*AuditLog, error) {
	return r.query(ctx, `WHERE user_id = $1`, limit, userID)
}

func (r *PostgresRepository) query(ctx context.Context, where string, limit int, args ...any) ([]*AuditLog, error) {
	q := `SELECT ` + auditColumns + ` FROM audit_logs ` + where + ` ORDER BY created_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var results []*AuditLog
	for rows.Next() {
		var (
			l      AuditLog
			userID sql.NullString
		)
		if err := rows.Scan(&l.ID, &userID, &l.EntityType, &l.EntityID, &l.Action,
			&l.RequestID, &l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		l.UserID = userID.String
		results = append(results, &l)
	}
	return results, rows.Err()
}
