// Package stats counts insert-or-update outcomes for upserted entities.
package stats

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
)

// UpsertCounter tracks how often an upsert created a row versus replaced one.
// Safe for concurrent use.
type UpsertCounter struct {
	total *prometheus.CounterVec
}

// NewUpsertCounter creates an unregistered counter.
func NewUpsertCounter() *UpsertCounter {
	return &UpsertCounter{
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_upserts_total",
				Help: "Upserts by entity and whether a row was inserted or updated",
			},
			[]string{"entity", "outcome"},
		),
	}
}

// Register adds the counter to reg.
func (c *UpsertCounter) Register(reg prometheus.Registerer) error {
	return reg.Register(c.total)
}

// Record counts one upsert of entity.
func (c *UpsertCounter) Record(entity string, inserted bool) {
	outcome := OutcomeUpdated
	if inserted {
		outcome = OutcomeInserted
	}
	c.total.WithLabelValues(entity, outcome).Inc()
}

// Collector exposes the underlying vector for tests and custom registries.
func (c *UpsertCounter) Collector() prometheus.Collector {
	return c.total
}

// LogRecord records the outcome and logs it at debug level.
func (c *UpsertCounter) LogRecord(logger *slog.Logger, entity, id string, inserted bool) {
	c.Record(entity, inserted)
	logger.Debug("upsert", "entity", entity, "id", id, "inserted", inserted)
}
