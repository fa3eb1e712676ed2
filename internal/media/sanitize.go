package media

import (
	"fmt"

	"github.com/h2non/bimg"
)

// SanitizeConfig controls image re-encoding.
type SanitizeConfig struct {
	// Quality for JPEG/WebP encoding (1-100)
	Quality int
	// MaxDimension bounds the longer edge (0 = no limit)
	MaxDimension int
}

// DefaultSanitizeConfig returns the settings used for memory uploads.
func DefaultSanitizeConfig() SanitizeConfig {
	return SanitizeConfig{Quality: 85, MaxDimension: 2048}
}

// SanitizeImage strips EXIF and other metadata (GPS, camera details,
// timestamps) and re-encodes the image in its original format, applying the
// EXIF orientation first so the result displays the same way.
// GIFs are returned unchanged because they carry no EXIF block.
func SanitizeImage(data []byte, cfg SanitizeConfig) ([]byte, error) {
	img := bimg.NewImage(data)
	meta, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image metadata: %v", ErrUnsupportedType, err)
	}
	if meta.Type == "gif" {
		return data, nil
	}

	options := bimg.Options{
		Quality:       cfg.Quality,
		StripMetadata: true,
		Type:          imageType(meta.Type),
	}
	if cfg.MaxDimension > 0 {
		w, h := meta.Size.Width, meta.Size.Height
		switch {
		case w >= h && w > cfg.MaxDimension:
			options.Width = cfg.MaxDimension
		case h > w && h > cfg.MaxDimension:
			options.Height = cfg.MaxDimension
		}
	}

	out, err := img.Process(options)
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}
	return out, nil
}

func imageType(t string) bimg.ImageType {
	switch t {
	case "png":
		return bimg.PNG
	case "webp":
		return bimg.WEBP
	default:
		return bimg.JPEG
	}
}

// HasEXIF reports whether identifying EXIF fields survive in an image.
func HasEXIF(data []byte) (bool, error) {
	meta, err := bimg.NewImage(data).Metadata()
	if err != nil {
		return false, fmt.Errorf("failed to read image metadata: %w", err)
	}
	exif := meta.EXIF
	return exif.Make != "" || exif.Model != "" ||
		exif.GPSLatitude != "" || exif.GPSLongitude != "" ||
		exif.DateTimeOriginal != "" || exif.Software != "", nil
}
