package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/campusconnect/internal/tracing"
	"github.com/onnwee/campusconnect/internal/validate"
)

// Upload describes a stored attachment.
type Upload struct {
	Type Type
	Key  string
	Size int
}

// Uploader validates attachments, sanitizes images and writes them to a
// BlobStore.
type Uploader struct {
	store    BlobStore
	maxBytes int64
	sanitize func([]byte) ([]byte, error)
	now      func() time.Time
}

// NewUploader creates an Uploader. maxSizeMB <= 0 disables the size limit.
func NewUploader(store BlobStore, maxSizeMB int) *Uploader {
	cfg := DefaultSanitizeConfig()
	return &Uploader{
		store:    store,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		sanitize: func(b []byte) ([]byte, error) { return SanitizeImage(b, cfg) },
		now:      time.Now,
	}
}

// Store returns the underlying blob store.
func (u *Uploader) Store() BlobStore {
	return u.store
}

// Save classifies and stores a file. An empty filename stores nothing and
// returns a TypeNone upload.
func (u *Uploader) Save(ctx context.Context, filename string, data []byte) (_ *Upload, err error) {
	ctx, end := tracing.StartSpan(ctx, "media.Save")
	defer func() { end(err) }()

	kind, err := Classify(filename)
	if err != nil {
		return nil, err
	}
	if kind == TypeNone {
		return &Upload{Type: TypeNone}, nil
	}
	if err := validate.FileSize(int64(len(data)), u.maxBytes); err != nil {
		if errors.Is(err, validate.ErrEmptyFile) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("%w: %v", ErrFileTooLarge, err)
	}

	if kind == TypeImage {
		if _, err := validate.ImageContent(data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
		}
		if data, err = u.sanitize(data); err != nil {
			return nil, err
		}
	}

	key, err := ObjectKey(filename, u.now())
	if err != nil {
		return nil, err
	}
	if err := u.store.Put(ctx, key, ContentType(filename), data); err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "media stored", "key", key, "type", kind, "size", len(data))
	return &Upload{Type: kind, Key: key, Size: len(data)}, nil
}

// Remove deletes a stored blob. Failures are logged and swallowed since the
// owning record is already gone.
func (u *Uploader) Remove(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := u.store.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to delete media", "key", key, "error", err)
	}
}

// URL returns the public address of key, or "" when there is no media.
func (u *Uploader) URL(key string) string {
	if key == "" {
		return ""
	}
	return u.store.URL(key)
}
