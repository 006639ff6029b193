// Package image handles sanitization of sighting photos: metadata
// stripping and re-encoding before anything is stored or served.
package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/h2non/bimg"
)

// ErrNotDataURL is returned when a string is not a base64 image data URL.
var ErrNotDataURL = errors.New("not a base64 image data URL")

// ProcessorConfig holds configuration for photo processing.
type ProcessorConfig struct {
	// Quality for JPEG/WebP encoding (1-100, default: 85)
	Quality int
	// OutputFormat specifies the output format (jpeg, webp, png)
	OutputFormat string
	// StripMetadata removes all EXIF/metadata (default: true)
	StripMetadata bool
	// MaxWidth limits image width (0 = no limit)
	MaxWidth int
	// MaxHeight limits image height (0 = no limit)
	MaxHeight int
}

// DefaultConfig returns the defaults used for sighting photos: JPEG at
// quality 85, metadata stripped, capped at 1600px on the long edge.
// Sighting coordinates are explicit user input; whatever GPS data the
// camera embedded must never leak through the photo itself.
func DefaultConfig() ProcessorConfig {
	return ProcessorConfig{
		Quality:       85,
		OutputFormat:  "jpeg",
		StripMetadata: true,
		MaxWidth:      1600,
		MaxHeight:     1600,
	}
}

// Process sanitizes a photo with the default configuration.
func Process(r io.Reader) ([]byte, error) {
	return ProcessWithConfig(r, DefaultConfig())
}

// ProcessWithConfig strips metadata, applies size constraints, and
// re-encodes the photo.
func ProcessWithConfig(r io.Reader, config ProcessorConfig) ([]byte, error) {
	inputBytes, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input image: %w", err)
	}

	img := bimg.NewImage(inputBytes)
	metadata, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read image metadata: %w", err)
	}

	options := bimg.Options{
		Quality:       config.Quality,
		StripMetadata: config.StripMetadata,
	}

	switch config.OutputFormat {
	case "jpeg", "jpg":
		options.Type = bimg.JPEG
	case "webp":
		options.Type = bimg.WEBP
	case "png":
		options.Type = bimg.PNG
	default:
		options.Type = determineImageType(metadata.Type)
	}

	// Downscale only; small photos keep their dimensions.
	if config.MaxWidth > 0 && metadata.Size.Width > config.MaxWidth {
		options.Width = config.MaxWidth
	}
	if config.MaxHeight > 0 && metadata.Size.Height > config.MaxHeight {
		options.Height = config.MaxHeight
	}

	outputBytes, err := img.Process(options)
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return outputBytes, nil
}

// ProcessBytes is a convenience wrapper for processing photo bytes
// directly.
func ProcessBytes(inputBytes []byte) ([]byte, error) {
	return ProcessWithConfig(bytes.NewReader(inputBytes), DefaultConfig())
}

// SanitizeDataURL decodes a base64 image data URL, sanitizes the photo,
// and re-encodes it as a JPEG data URL. Remote URLs and other strings
// return ErrNotDataURL so callers can pass them through unchanged.
func SanitizeDataURL(dataURL string) (string, error) {
	payload, ok := splitDataURL(dataURL)
	if !ok {
		return "", ErrNotDataURL
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode data URL payload: %w", err)
	}

	processed, err := ProcessBytes(raw)
	if err != nil {
		return "", err
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(processed), nil
}

// splitDataURL returns the base64 payload of an image data URL.
func splitDataURL(s string) (string, bool) {
	if !strings.HasPrefix(s, "data:image/") {
		return "", false
	}
	idx := strings.Index(s, ";base64,")
	if idx == -1 {
		return "", false
	}
	return s[idx+len(";base64,"):], true
}

// determineImageType maps bimg's string type to a bimg.ImageType.
func determineImageType(typeStr string) bimg.ImageType {
	switch typeStr {
	case "jpeg":
		return bimg.JPEG
	case "png":
		return bimg.PNG
	case "webp":
		return bimg.WEBP
	case "gif":
		return bimg.GIF
	default:
		return bimg.JPEG
	}
}

// VerifyNoEXIF reports whether the photo carries no identifying EXIF
// fields. Used by tests to prove sanitization worked.
func VerifyNoEXIF(imageBytes []byte) (bool, error) {
	img := bimg.NewImage(imageBytes)
	metadata, err := img.Metadata()
	if err != nil {
		return false, fmt.Errorf("failed to read image metadata: %w", err)
	}

	exif := metadata.EXIF
	hasEXIF := exif.Make != "" || exif.Model != "" ||
		exif.GPSLatitude != "" || exif.GPSLongitude != "" ||
		exif.DateTimeOriginal != "" || exif.Software != ""

	return !hasEXIF, nil
}
