package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/onnwee/campusconnect/internal/idempotency"
)

func TestIdempotency(t *testing.T) {
	repo := idempotency.NewInMemoryRepository()
	var calls atomic.Int32
	handler := Idempotency(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	}))

	send := func(path, user, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if key != "" {
			req.Header.Set(IdempotencyKeyHeader, key)
		}
		if user != "" {
			req = req.WithContext(SetUserID(req.Context(), user))
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	first := send("/memories", "u1", "k1")
	second := send("/memories", "u1", "k1")
	if calls.Load() != 1 {
		t.Fatalf("handler calls = %d, want 1", calls.Load())
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("replayed body = %s, want %s", second.Body.String(), first.Body.String())
	}
	if second.Header().Get(IdempotentReplayHeader) != "true" {
		t.Error("expected replay header")
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Errorf("replayed content type = %q", second.Header().Get("Content-Type"))
	}

	// Same key from another user is a different submission.
	send("/memories", "u2", "k1")
	if calls.Load() != 2 {
		t.Errorf("handler calls = %d, want 2", calls.Load())
	}

	// No key and no user pass through.
	send("/memories", "u1", "")
	send("/memories", "", "k1")
	if calls.Load() != 4 {
		t.Errorf("handler calls = %d, want 4", calls.Load())
	}

	// Failures are not cached.
	send("/fail", "u1", "k2")
	send("/fail", "u1", "k2")
	if calls.Load() != 6 {
		t.Errorf("handler calls = %d, want 6", calls.Load())
	}
}

func TestIdempotency_InvalidKey(t *testing.T) {
	handler := Idempotency(idempotency.NewInMemoryRepository())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))
	req := httptest.NewRequest(http.MethodPost, "/dashboard", nil)
	req.Header.Set(IdempotencyKeyHeader, strings.Repeat("k", idempotency.MaxKeyLength+1))
	req = req.WithContext(SetUserID(req.Context(), "u1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "idempotency_key_too_long") {
		t.Errorf("got %d %s", rr.Code, rr.Body.String())
	}
}

func TestIdempotency_ReplaysRedirects(t *testing.T) {
	repo := idempotency.NewInMemoryRepository()
	var calls atomic.Int32
	handler := Idempotency(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Redirect(w, r, "/dashboard?level=success", http.StatusSeeOther)
	}))
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/dashboard", nil)
		req.Header.Set(IdempotencyKeyHeader, "form-1")
		req = req.WithContext(SetUserID(req.Context(), "u1"))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/dashboard?level=success" {
			t.Errorf("attempt %d: %d location=%q", i, rr.Code, rr.Header().Get("Location"))
		}
	}
	if calls.Load() != 1 {
		t.Errorf("handler calls = %d, want 1", calls.Load())
	}
}
