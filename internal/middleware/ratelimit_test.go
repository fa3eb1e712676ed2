package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestInMemoryRateLimitStore_Allow(t *testing.T) {
	tests := []struct {
		name          string
		limit         int
		wantAllowed   []bool
		wantRemaining []int
	}{
		{
			name:          "allows requests under limit",
			limit:         5,
			wantAllowed:   []bool{true, true, true},
			wantRemaining: []int{4, 3, 2},
		},
		{
			name:          "blocks requests past limit",
			limit:         2,
			wantAllowed:   []bool{true, true, false, false},
			wantRemaining: []int{1, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewInMemoryRateLimitStore()
			config := RateLimitConfig{RequestsPerWindow: tt.limit, WindowDuration: time.Minute}

			for i := range tt.wantAllowed {
				allowed, remaining, _ := store.Allow(context.Background(), "k", config)
				if allowed != tt.wantAllowed[i] {
					t.Errorf("request %d: allowed=%v, want %v", i+1, allowed, tt.wantAllowed[i])
				}
				if remaining != tt.wantRemaining[i] {
					t.Errorf("request %d: remaining=%d, want %d", i+1, remaining, tt.wantRemaining[i])
				}
			}
		})
	}
}

func TestInMemoryRateLimitStore_WindowExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemoryRateLimitStore()
	store.now = func() time.Time { return now }
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 10 * time.Second}

	if allowed, _, _ := store.Allow(context.Background(), "k", config); !allowed {
		t.Fatal("first request should be allowed")
	}
	allowed, _, retryAfter := store.Allow(context.Background(), "k", config)
	if allowed {
		t.Fatal("second request should be blocked")
	}
	if retryAfter != 10 {
		t.Errorf("retryAfter = %d, want 10", retryAfter)
	}

	now = now.Add(10 * time.Second)
	if allowed, _, _ := store.Allow(context.Background(), "k", config); !allowed {
		t.Error("request after window should be allowed")
	}
}

func TestInMemoryRateLimitStore_Concurrency(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 50, WindowDuration: time.Minute}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _, _ := store.Allow(context.Background(), "shared", config); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 50 {
		t.Errorf("allowed %d requests, want 50", allowedCount)
	}
}

func TestInMemoryRateLimitStore_Cleanup(t *testing.T) {
	now := time.Now()
	store := NewInMemoryRateLimitStore()
	store.now = func() time.Time { return now }
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second}

	store.Allow(context.Background(), "a", config)
	store.Allow(context.Background(), "b", config)

	now = now.Add(2 * time.Second)
	store.Cleanup()

	if n := len(store.buckets); n != 0 {
		t.Errorf("expected 0 buckets after cleanup, got %d", n)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		xri        string
		remoteAddr string
		want       string
	}{
		{"remote addr", "", "", "10.0.0.1:5555", "10.0.0.1"},
		{"forwarded chain", "203.0.113.7, 10.0.0.2", "", "10.0.0.1:5555", "203.0.113.7"},
		{"forwarded with port", "203.0.113.7:443", "", "10.0.0.1:5555", "203.0.113.7"},
		{"real ip", "", " 198.51.100.4 ", "10.0.0.1:5555", "198.51.100.4"},
		{"ipv6 remote", "", "", "[2001:db8::1]:8080", "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserKeyFunc(t *testing.T) {
	keyFunc := UserKeyFunc()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	if got := keyFunc(req); got != "ip:10.0.0.9" {
		t.Errorf("anonymous key = %q, want ip:10.0.0.9", got)
	}

	req = req.WithContext(SetUserID(req.Context(), "u1"))
	if got := keyFunc(req); got != "user:u1" {
		t.Errorf("authenticated key = %q, want user:u1", got)
	}
}

func TestRateLimiter_BlocksExcessiveTraffic(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	metrics := NewMetrics()

	handler := RateLimiter("global", store, config, IPKeyFunc(), metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.RemoteAddr = "192.0.2.1:1000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
		last = rr
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	retry, err := strconv.Atoi(last.Header().Get("Retry-After"))
	if err != nil || retry <= 0 {
		t.Errorf("expected positive Retry-After, got %q", last.Header().Get("Retry-After"))
	}
	if last.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("expected X-RateLimit-Reset header")
	}
	if got := last.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("X-RateLimit-Limit = %q, want 2", got)
	}
}

func TestRateLimiter_DifferentClientsIndependent(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	handler := RateLimiter("global", store, config, IPKeyFunc(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, addr := range []string{"192.0.2.1:1", "192.0.2.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("client %s: expected 200, got %d", addr, rr.Code)
		}
	}
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  RateLimitConfig
		wantErr bool
	}{
		{"valid", RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second}, false},
		{"zero requests", RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Second}, true},
		{"zero window", RateLimitConfig{RequestsPerWindow: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	for _, cfg := range []RateLimitConfig{DefaultGlobalLimit(), DefaultAuthLimit(), DefaultWriteLimit()} {
		if err := cfg.Validate(); err != nil {
			t.Errorf("default limit invalid: %v", err)
		}
	}
}

var _ RateLimitStore = (*InMemoryRateLimitStore)(nil)
var _ RateLimitStore = (*RedisRateLimitStore)(nil)
