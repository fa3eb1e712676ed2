// Package media classifies, sanitizes and stores the files attached to
// memories.
package media

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/campusconnect/internal/apperr"
)

// Type is the coarse kind of an attached file.
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
	TypeAudio Type = "audio"
	TypeNone  Type = "none"
)

// Validation errors.
var (
	ErrUnsupportedType = fmt.Errorf("%w: unsupported media type", apperr.ErrInvalidInput)
	ErrFileTooLarge    = fmt.Errorf("%w: file size exceeds maximum allowed", apperr.ErrInvalidInput)
	ErrEmptyFile       = fmt.Errorf("%w: file is empty", apperr.ErrInvalidInput)
)

type format struct {
	kind        Type
	contentType string
}

// formats maps lowercase extensions to their media kind and content type.
var formats = map[string]format{
	".jpg":  {TypeImage, "image/jpeg"},
	".jpeg": {TypeImage, "image/jpeg"},
	".png":  {TypeImage, "image/png"},
	".gif":  {TypeImage, "image/gif"},
	".webp": {TypeImage, "image/webp"},
	".mp4":  {TypeVideo, "video/mp4"},
	".avi":  {TypeVideo, "video/x-msvideo"},
	".mov":  {TypeVideo, "video/quicktime"},
	".wmv":  {TypeVideo, "video/x-ms-wmv"},
	".mp3":  {TypeAudio, "audio/mpeg"},
	".wav":  {TypeAudio, "audio/wav"},
	".ogg":  {TypeAudio, "audio/ogg"},
}

// Classify returns the media type for a file name. An empty name means no
// file was attached.
func Classify(filename string) (Type, error) {
	if strings.TrimSpace(filename) == "" {
		return TypeNone, nil
	}
	f, ok := formats[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filepath.Ext(filename))
	}
	return f.kind, nil
}

// ContentType returns the content type stored with a blob of this name.
func ContentType(filename string) string {
	if f, ok := formats[strings.ToLower(filepath.Ext(filename))]; ok {
		return f.contentType
	}
	return "application/octet-stream"
}

// ObjectKey builds a unique key for an upload made at t.
// Pattern: memories/YYYY/MM/uuid.ext
func ObjectKey(filename string, t time.Time) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := formats[ext]; !ok {
		return "", ErrUnsupportedType
	}
	t = t.UTC()
	return fmt.Sprintf("memories/%04d/%02d/%s%s", t.Year(), int(t.Month()), uuid.NewString(), ext), nil
}
