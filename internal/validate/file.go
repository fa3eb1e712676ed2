package validate

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// File validation errors.
var (
	ErrInvalidMIMEType = errors.New("invalid MIME type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyFile       = errors.New("file is empty")
)

// Image MIME types accepted for memory uploads.
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// FileSize checks that a payload is non-empty and within maxBytes (0 = unlimited).
func FileSize(sizeBytes, maxBytes int64) error {
	if sizeBytes <= 0 {
		return ErrEmptyFile
	}
	if maxBytes > 0 && sizeBytes > maxBytes {
		return fmt.Errorf("%w: got %d bytes, maximum is %d", ErrFileTooLarge, sizeBytes, maxBytes)
	}
	return nil
}

// ImageContent sniffs the leading bytes and confirms they are an accepted
// image format regardless of the file name.
func ImageContent(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	for _, allowed := range AllowedImageTypes {
		if sniffed == allowed {
			return sniffed, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMIMEType, sniffed)
}
