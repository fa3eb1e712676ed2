package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Repository stores replayable responses.
type Repository interface {
	Get(ctx context.Context, key string) (*Record, error)
	// Store saves rec unless its key is taken, in which case it returns ErrKeyExists.
	Store(ctx context.Context, rec *Record) error
	// DeleteOlderThan removes records created before now-age.
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// InMemoryRepository is a map-backed Repository.
type InMemoryRepository struct {
	mu   sync.RWMutex
	keys map[string]*Record
	now  func() time.Time
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{keys: make(map[string]*Record), now: time.Now}
}

func (r *InMemoryRepository) Get(_ context.Context, key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.keys[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *InMemoryRepository) Store(_ context.Context, rec *Record) error {
	if rec.Key == "" {
		return ErrInvalidKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keys[rec.Key]; exists {
		return ErrKeyExists
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	cp := *rec
	r.keys[rec.Key] = &cp
	return nil
}

func (r *InMemoryRepository) DeleteOlderThan(_ context.Context, age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-age)
	var deleted int64
	for key, rec := range r.keys {
		if rec.CreatedAt.Before(cutoff) {
			delete(r.keys, key)
			deleted++
		}
	}
	return deleted, nil
}

// RedisRepository stores records as JSON strings that expire on their own.
type RedisRepository struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisRepository creates a repository whose records live for ttl
// (DefaultExpiry when ttl <= 0).
func NewRedisRepository(client redis.Cmdable, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	return &RedisRepository{client: client, prefix: "idempotency:", ttl: ttl}
}

func (r *RedisRepository) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

func (r *RedisRepository) Store(ctx context.Context, rec *Record) error {
	if rec.Key == "" {
		return ErrInvalidKey
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	ok, err := r.client.SetNX(ctx, r.prefix+rec.Key, raw, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("store idempotency key: %w", err)
	}
	if !ok {
		return ErrKeyExists
	}
	return nil
}

// DeleteOlderThan is a no-op: Redis expires records after the TTL.
func (r *RedisRepository) DeleteOlderThan(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

// Cleanup returns a job that removes records older than expiry.
func Cleanup(repo Repository, expiry time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		deleted, err := repo.DeleteOlderThan(ctx, expiry)
		if err != nil {
			return fmt.Errorf("cleanup idempotency keys: %w", err)
		}
		if deleted > 0 {
			slog.InfoContext(ctx, "cleaned up old idempotency keys", "deleted", deleted, "older_than", expiry)
		}
		return nil
	}
}
