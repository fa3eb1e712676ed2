// Package idempotency stores the outcome of client-keyed form submissions so
// a retried POST replays the first response instead of repeating the action.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultExpiry is how long a recorded response can be replayed.
const DefaultExpiry = 24 * time.Hour

// MaxKeyLength bounds client-supplied keys.
const MaxKeyLength = 64

var (
	ErrKeyNotFound = errors.New("idempotency key not found")
	ErrKeyExists   = errors.New("idempotency key already exists")
	ErrInvalidKey  = errors.New("invalid idempotency key")
	ErrKeyTooLong  = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// Record is a stored response. Key is scoped to the submitting user.
type Record struct {
	Key          string    `json:"key"`
	Method       string    `json:"method"`
	Route        string    `json:"route"`
	StatusCode   int       `json:"status_code"`
	ContentType  string    `json:"content_type,omitempty"`
	Location     string    `json:"location,omitempty"`
	Body         string    `json:"body"`
	ResponseHash string    `json:"response_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidateKey checks a client-supplied key.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// ScopedKey namespaces key by user so clients cannot replay each other's responses.
func ScopedKey(userID, key string) string {
	return userID + ":" + key
}

// ComputeResponseHash returns the hex SHA-256 of body.
func ComputeResponseHash(body string) string {
	hash := sha256.Sum256([]byte(body))
	return hex.EncodeToString(hash[:])
}
