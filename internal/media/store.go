package media

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/onnwee/campusconnect/internal/apperr"
)

// ErrBlobNotFound is returned when a key has no stored blob.
var ErrBlobNotFound = fmt.Errorf("%w: media object not found", apperr.ErrNotFound)

// BlobStore persists media bytes under object keys.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
	// URL returns the address clients fetch the blob from.
	URL(key string) string
}

// Blob is a stored object.
type Blob struct {
	ContentType string
	Data        []byte
}

// InMemoryStore keeps blobs in a map. Used for development and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string]Blob
	baseURL string
}

// NewInMemoryStore creates an empty store whose URLs are rooted at baseURL.
func NewInMemoryStore(baseURL string) *InMemoryStore {
	return &InMemoryStore{blobs: make(map[string]Blob), baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *InMemoryStore) Put(_ context.Context, key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = Blob{ContentType: contentType, Data: append([]byte(nil), data...)}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

func (s *InMemoryStore) URL(key string) string {
	return s.baseURL + "/" + key
}

// Get returns a stored blob.
func (s *InMemoryStore) Get(key string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	return b, ok
}

// Len returns the number of stored blobs.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
