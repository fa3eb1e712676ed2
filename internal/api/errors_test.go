package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/campusconnect/internal/apperr"
	"github.com/onnwee/campusconnect/internal/event"
	"github.com/onnwee/campusconnect/internal/friendship"
	"github.com/onnwee/campusconnect/internal/identity"
	"github.com/onnwee/campusconnect/internal/location"
	"github.com/onnwee/campusconnect/internal/media"
	"github.com/onnwee/campusconnect/internal/memory"
	"github.com/onnwee/campusconnect/internal/middleware"
	"github.com/onnwee/campusconnect/internal/presence"
	"github.com/onnwee/campusconnect/internal/review"
)

func TestWriteError_Envelope(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, context.Background(), http.StatusUnprocessableEntity, ErrCodeCapacity, `Event "Calc <review>" is full`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var raw map[string]map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v (%s)", err, w.Body.String())
	}
	if len(raw) != 1 || len(raw["error"]) != 2 {
		t.Fatalf("envelope = %v, want exactly error.code and error.message", raw)
	}
	if raw["error"]["code"] != ErrCodeCapacity || raw["error"]["message"] != `Event "Calc <review>" is full` {
		t.Errorf("error = %v", raw["error"])
	}
}

func TestWriteError_LoggedWithErrorCode(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := middleware.RequestID(middleware.Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeServiceError(w, r, event.ErrNotOrganizer, "Failed to start event")
	})))

	req := httptest.NewRequest(http.MethodPost, "/dashboard", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}

	var entry struct {
		Level     string `json:"level"`
		Status    int    `json:"status"`
		ErrorCode string `json:"error_code"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log: %v (%s)", err, buf.String())
	}
	if entry.Level != "WARN" || entry.Status != http.StatusForbidden {
		t.Errorf("log level/status = %s/%d, want WARN/403", entry.Level, entry.Status)
	}
	if entry.ErrorCode != ErrCodeForbidden {
		t.Errorf("logged error_code = %q, want %q", entry.ErrorCode, ErrCodeForbidden)
	}
	if entry.RequestID != "req-42" {
		t.Errorf("logged request_id = %q, want req-42", entry.RequestID)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := map[string]int{
		ErrCodeValidation:    http.StatusBadRequest,
		ErrCodeBadRequest:    http.StatusBadRequest,
		ErrCodeUnknownAction: http.StatusBadRequest,
		ErrCodeAuthFailed:    http.StatusUnauthorized,
		ErrCodeForbidden:     http.StatusForbidden,
		ErrCodeNotFound:      http.StatusNotFound,
		ErrCodeConflict:      http.StatusConflict,
		ErrCodeCapacity:      http.StatusUnprocessableEntity,
		ErrCodeRateLimited:   http.StatusTooManyRequests,
		ErrCodeInternal:      http.StatusInternalServerError,
		"something_else":     http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := StatusCodeMapping(code); got != want {
			t.Errorf("StatusCodeMapping(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		// friendship
		{friendship.ErrRequestNotFound, ErrCodeNotFound},
		{friendship.ErrNotRecipient, ErrCodeForbidden},
		{friendship.ErrSelfRequest, ErrCodeValidation},
		{friendship.ErrAlreadyFriends, ErrCodeConflict},
		{friendship.ErrRequestPending, ErrCodeConflict},
		{friendship.ErrBlocked, ErrCodeConflict},
		// presence
		{presence.ErrNoActiveShare, ErrCodeNotFound},
		{presence.ErrInvalidStatus, ErrCodeValidation},
		{presence.ErrNotVisible, ErrCodeForbidden},
		{presence.ErrShareConflict, ErrCodeConflict},
		// reviews and locations
		{review.ErrRatingOutOfRange, ErrCodeValidation},
		{review.ErrInvalidCategory, ErrCodeValidation},
		{location.ErrLocationNotFound, ErrCodeNotFound},
		{location.ErrInvalidCrowdLevel, ErrCodeValidation},
		// events
		{event.ErrEventNotFound, ErrCodeNotFound},
		{event.ErrInvalidCapacity, ErrCodeValidation},
		{event.ErrInvalidWindow, ErrCodeValidation},
		{event.ErrNotOrganizer, ErrCodeForbidden},
		{event.ErrOrganizerLeave, ErrCodeForbidden},
		{event.ErrNotActive, ErrCodeForbidden},
		{event.ErrEventFull, ErrCodeCapacity},
		// memories and media
		{memory.ErrMemoryNotFound, ErrCodeNotFound},
		{memory.ErrInvalidVisibility, ErrCodeValidation},
		{memory.ErrNotOwner, ErrCodeForbidden},
		{memory.ErrCannotLike, ErrCodeForbidden},
		{media.ErrUnsupportedType, ErrCodeValidation},
		{media.ErrFileTooLarge, ErrCodeValidation},
		// identity
		{identity.ErrUsernameTaken, ErrCodeConflict},
		{identity.ErrInvalidCredentials, ErrCodeValidation},
		// wrapped and unclassified
		{fmt.Errorf("join event e-1: %w", event.ErrEventFull), ErrCodeCapacity},
		{fmt.Errorf("wrapped: %w", apperr.ErrConflict), ErrCodeConflict},
		{errors.New("connection reset"), ErrCodeInternal},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{event.ErrEventFull, "Event is full"},
		{event.ErrOrganizerLeave, "Event organizer cannot leave, cancel the event instead"},
		{event.ErrAlreadyJoined, "Already participating in this event"},
		{friendship.ErrSelfRequest, "Cannot send a friend request to yourself"},
		{friendship.ErrRequestPending, "Friend request already sent"},
		{presence.ErrNoActiveShare, "No active share"},
		{review.ErrRatingOutOfRange, "Ratings must be between 1 and 10"},
		{location.ErrLocationNotFound, "Location not found"},
		{memory.ErrCannotView, "You cannot view this memory"},
		{media.ErrUnsupportedType, "Unsupported media type"},
		{identity.ErrInvalidCredentials, "Invalid username or password"},
		{errors.New("plain failure"), "Plain failure"},
	}
	for _, tt := range tests {
		if got := userMessage(tt.err); got != tt.want {
			t.Errorf("userMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"capacity", event.ErrEventFull, http.StatusUnprocessableEntity, ErrCodeCapacity, "Event is full"},
		{"conflict", friendship.ErrAlreadyFriends, http.StatusConflict, ErrCodeConflict, "Already friends"},
		{"not found", memory.ErrMemoryNotFound, http.StatusNotFound, ErrCodeNotFound, "Memory not found"},
		{"internal hidden", errors.New("pq: password authentication failed"), http.StatusInternalServerError, ErrCodeInternal, "Failed to load dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeServiceError(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil), tt.err, "Failed to load dashboard")

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error.Code != tt.wantCode || resp.Error.Message != tt.wantMessage {
				t.Errorf("error = %+v, want %s %q", resp.Error, tt.wantCode, tt.wantMessage)
			}
		})
	}
}
