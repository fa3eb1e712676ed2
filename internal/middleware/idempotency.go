package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/campusconnect/internal/idempotency"
)

// IdempotencyKeyHeader carries the client's key for a form submission.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayHeader marks a replayed response.
const IdempotentReplayHeader = "Idempotent-Replayed"

type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *idempotencyResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.body.Write(b[:n])
	return n, err
}

func (w *idempotencyResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// cacheable reports whether a status is an outcome worth replaying: a
// success, or the 303 a browser form receives after an action.
func cacheable(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusSeeOther
}

// Idempotency replays the first response of a POST that carries an
// Idempotency-Key header. Requests without the header pass through. It must
// run after RequireAuth: keys are scoped per user.
func Idempotency(repo idempotency.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			userID := GetUserID(r.Context())
			if r.Method != http.MethodPost || key == "" || userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			if err := idempotency.ValidateKey(key); err != nil {
				code, message := "invalid_idempotency_key", "Invalid Idempotency-Key format"
				if errors.Is(err, idempotency.ErrKeyTooLong) {
					code, message = "idempotency_key_too_long", "Idempotency-Key exceeds maximum length of 64 characters"
				}
				UpdateResponseContext(w, SetErrorCode(ctx, code))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
				return
			}

			scoped := idempotency.ScopedKey(userID, key)
			existing, err := repo.Get(ctx, scoped)
			switch {
			case err == nil:
				slog.InfoContext(ctx, "idempotency key found, replaying response",
					"route", existing.Route, "status", existing.StatusCode)
				if existing.ContentType != "" {
					w.Header().Set("Content-Type", existing.ContentType)
				}
				if existing.Location != "" {
					w.Header().Set("Location", existing.Location)
				}
				w.Header().Set(IdempotentReplayHeader, "true")
				w.WriteHeader(existing.StatusCode)
				_, _ = w.Write([]byte(existing.Body))
				return
			case !errors.Is(err, idempotency.ErrKeyNotFound):
				slog.ErrorContext(ctx, "failed to check idempotency key", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			capture := &idempotencyResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			if !cacheable(capture.statusCode) {
				return
			}
			body := capture.body.String()
			rec := &idempotency.Record{
				Key:          scoped,
				Method:       r.Method,
				Route:        r.URL.Path,
				StatusCode:   capture.statusCode,
				ContentType:  w.Header().Get("Content-Type"),
				Location:     w.Header().Get("Location"),
				Body:         body,
				ResponseHash: idempotency.ComputeResponseHash(body),
			}
			if err := repo.Store(ctx, rec); err != nil && !errors.Is(err, idempotency.ErrKeyExists) {
				slog.ErrorContext(ctx, "failed to store idempotency key", "error", err)
			}
		})
	}
}
