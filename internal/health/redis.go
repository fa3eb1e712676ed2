// Package health provides readiness checks for the server's backing services.
package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Checker is one dependency probed by the readiness endpoint.
type Checker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

// DefaultTimeout bounds each individual probe.
const DefaultTimeout = 2 * time.Second

// RedisPinger is satisfied by *redis.Client and redis.UniversalClient.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker reports Redis reachability.
type RedisChecker struct {
	client RedisPinger
}

// NewRedisChecker creates a Redis health checker.
func NewRedisChecker(client RedisPinger) *RedisChecker {
	return &RedisChecker{client: client}
}

// Name implements Checker.
func (r *RedisChecker) Name() string { return "redis" }

// HealthCheck sends PING.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// CheckAll runs every checker with its own timeout and returns "ok" or the
// error text per checker name, plus whether all passed.
func CheckAll(ctx context.Context, checkers ...Checker) (map[string]string, bool) {
	results := make(map[string]string, len(checkers))
	healthy := true
	for _, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		err := c.HealthCheck(cctx)
		cancel()
		if err != nil {
			results[c.Name()] = err.Error()
			healthy = false
			continue
		}
		results[c.Name()] = "ok"
	}
	return results, healthy
}
