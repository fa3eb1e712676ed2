package idempotency

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key  string
		want error
	}{
		{"", ErrInvalidKey},
		{"form-1", nil},
		{string(make([]byte, MaxKeyLength)), nil},
		{string(make([]byte, MaxKeyLength+1)), ErrKeyTooLong},
	}
	for _, tt := range tests {
		if err := ValidateKey(tt.key); !errors.Is(err, tt.want) {
			t.Errorf("ValidateKey(len %d) = %v, want %v", len(tt.key), err, tt.want)
		}
	}
}

func TestInMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	if _, err := repo.Get(ctx, "u1:k"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get() error = %v, want ErrKeyNotFound", err)
	}

	rec := &Record{Key: ScopedKey("u1", "k"), Method: "POST", Route: "/memories", StatusCode: 200, Body: `{"ok":true}`}
	if err := repo.Store(ctx, rec); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := repo.Store(ctx, rec); !errors.Is(err, ErrKeyExists) {
		t.Errorf("second Store() error = %v, want ErrKeyExists", err)
	}

	got, err := repo.Get(ctx, "u1:k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Body != rec.Body || got.CreatedAt.IsZero() {
		t.Errorf("Get() = %+v", got)
	}

	repo.now = func() time.Time { return time.Now().Add(2 * DefaultExpiry) }
	deleted, err := repo.DeleteOlderThan(ctx, DefaultExpiry)
	if err != nil || deleted != 1 {
		t.Errorf("DeleteOlderThan() = %d, %v; want 1", deleted, err)
	}
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	_ = repo.Store(ctx, &Record{Key: "old", CreatedAt: time.Now().Add(-48 * time.Hour)})
	_ = repo.Store(ctx, &Record{Key: "new"})

	if err := Cleanup(repo, DefaultExpiry)(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := repo.Get(ctx, "old"); !errors.Is(err, ErrKeyNotFound) {
		t.Error("old record should be removed")
	}
	if _, err := repo.Get(ctx, "new"); err != nil {
		t.Errorf("new record should remain: %v", err)
	}
}

func TestRedisRepository(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	repo := NewRedisRepository(client, time.Minute)
	key := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer client.Del(context.Background(), repo.prefix+key)

	if _, err := repo.Get(ctx, key); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get() error = %v, want ErrKeyNotFound", err)
	}
	rec := &Record{Key: key, StatusCode: 303, Location: "/dashboard"}
	if err := repo.Store(ctx, rec); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := repo.Store(ctx, rec); !errors.Is(err, ErrKeyExists) {
		t.Errorf("second Store() error = %v, want ErrKeyExists", err)
	}
	got, err := repo.Get(ctx, key)
	if err != nil || got.Location != "/dashboard" || got.StatusCode != 303 {
		t.Errorf("Get() = %+v, %v", got, err)
	}
	if ttl := client.TTL(ctx, repo.prefix+key).Val(); ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %v, want within 1m", ttl)
	}
}
