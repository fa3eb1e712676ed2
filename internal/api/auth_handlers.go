package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/onnwee/campusconnect/internal/identity"
	"github.com/onnwee/campusconnect/internal/middleware"
)

// SignupRequest is the registration body.
type SignupRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest is the login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by signup, login and refresh.
type AuthResponse struct {
	Message      string            `json:"message,omitempty"`
	User         *identity.Summary `json:"user,omitempty"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

// decodeBody fills dst from a JSON body, or from form fields named by the
// JSON tags otherwise.
func decodeBody(r *http.Request, dst any, fields map[string]*string) error {
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		return json.NewDecoder(r.Body).Decode(dst)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	for name, ptr := range fields {
		*ptr = r.PostForm.Get(name)
	}
	return nil
}

// Signup handles POST /auth/signup.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeBody(r, &req, map[string]*string{
		"username": &req.Username, "email": &req.Email, "password": &req.Password,
		"first_name": &req.FirstName, "last_name": &req.LastName,
	}); err != nil {
		badForm(w, r)
		return
	}

	u, err := h.identity.Register(r.Context(), identity.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to create account")
		return
	}
	h.issueTokens(w, r, u, http.StatusCreated, "Account created successfully!")
}

// Login handles POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req, map[string]*string{"username": &req.Username, "password": &req.Password}); err != nil {
		badForm(w, r)
		return
	}

	u, err := h.identity.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid username or password.")
		return
	}
	if err != nil {
		writeServiceError(w, r, err, "Failed to sign in")
		return
	}
	h.issueTokens(w, r, u, http.StatusOK, "Welcome back!")
}

// Refresh handles POST /auth/refresh.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeBody(r, &req, map[string]*string{"refresh_token": &req.RefreshToken}); err != nil || req.RefreshToken == "" {
		badForm(w, r)
		return
	}

	pair, err := h.tokens.Refresh(req.RefreshToken, func(userID string) (string, error) {
		return h.identity.Username(r.Context(), userID)
	})
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid or expired refresh token")
		return
	}
	writeJSON(w, r, http.StatusOK, AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt.UTC(),
	})
}

func (h *Handlers) issueTokens(w http.ResponseWriter, r *http.Request, u *identity.User, status int, message string) {
	pair, err := h.tokens.IssuePair(u.ID, u.Username)
	if err != nil {
		writeServiceError(w, r, err, "Failed to issue tokens")
		return
	}
	summary := u.Summary()
	writeJSON(w, r, status, AuthResponse{
		Message:      message,
		User:         &summary,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt.UTC(),
	})
}
