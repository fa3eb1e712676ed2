package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/onnwee/campusconnect/internal/apperr"
	"github.com/onnwee/campusconnect/internal/middleware"
)

// Level is the severity of an action outcome.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// ActionResult is the outcome of a form action. Every action produces one,
// including failures, so the page can show a message and carry on.
type ActionResult struct {
	Action       string `json:"action"`
	Level        Level  `json:"level"`
	Message      string `json:"message"`
	ReviewPrompt any    `json:"review_prompt,omitempty"`
	Data         any    `json:"data,omitempty"`

	status int
	code   string
}

func success(action, message string, data any) ActionResult {
	return ActionResult{Action: action, Level: LevelSuccess, Message: message, Data: data, status: http.StatusOK}
}

func info(action, message string) ActionResult {
	return ActionResult{Action: action, Level: LevelInfo, Message: message, status: http.StatusOK}
}

func failure(action, code, message string) ActionResult {
	return ActionResult{Action: action, Level: LevelError, Message: message, status: StatusCodeMapping(code), code: code}
}

// fromError builds the result for a failed action. No-op errors are
// informational. Errors without a kind are logged and replaced by fallback.
func fromError(r *http.Request, action string, err error, fallback string) ActionResult {
	if errors.Is(err, apperr.ErrNoChange) {
		return info(action, userMessage(err))
	}
	code := ErrorCode(err)
	if code == ErrCodeInternal {
		slog.ErrorContext(r.Context(), "action failed", "action", action, "error", err)
		return failure(action, code, fallback)
	}
	return failure(action, code, userMessage(err))
}

// wantsHTML reports whether the client is a browser expecting a page.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// respondAction answers a form action. Browsers are redirected back to page
// with the outcome in the query string; API clients get the result as JSON.
func respondAction(w http.ResponseWriter, r *http.Request, page string, res ActionResult) {
	if res.code != "" {
		middleware.UpdateResponseContext(w, middleware.SetErrorCode(r.Context(), res.code))
	}
	if wantsHTML(r) {
		q := url.Values{}
		q.Set("level", string(res.Level))
		q.Set("message", res.Message)
		if res.Action != "" {
			q.Set("action", res.Action)
		}
		http.Redirect(w, r, page+"?"+q.Encode(), http.StatusSeeOther)
		return
	}
	status := res.status
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, r, status, res)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// requireUser returns the authenticated user or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return "", false
	}
	return userID, true
}

// parseForm accepts urlencoded and multipart bodies.
func parseForm(r *http.Request, maxMemory int64) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxMemory)
	}
	return r.ParseForm()
}

func badForm(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid form body")
}

func unknownAction(action string) ActionResult {
	if action == "" {
		return failure(action, ErrCodeUnknownAction, "Missing action")
	}
	return failure(action, ErrCodeUnknownAction, "Unknown action: "+action)
}
