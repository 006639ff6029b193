package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/h2non/bimg"
)

// testPNG renders a small solid-color PNG in memory.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test PNG: %v", err)
	}
	return buf.Bytes()
}

func TestSplitDataURL(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantOK bool
	}{
		{"valid jpeg data URL", "data:image/jpeg;base64,abcd", true},
		{"valid png data URL", "data:image/png;base64,abcd", true},
		{"remote URL", "https://example.com/cat.jpg", false},
		{"non-image data URL", "data:text/plain;base64,abcd", false},
		{"missing base64 marker", "data:image/jpeg,abcd", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := splitDataURL(tt.input)
			if ok != tt.wantOK {
				t.Errorf("splitDataURL(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
		})
	}
}

func TestSanitizeDataURLRejectsNonDataURLs(t *testing.T) {
	if _, err := SanitizeDataURL("https://example.com/cat.jpg"); !errors.Is(err, ErrNotDataURL) {
		t.Errorf("err = %v, want ErrNotDataURL", err)
	}
	if _, err := SanitizeDataURL("data:image/jpeg;base64,!!not-base64!!"); err == nil {
		t.Error("invalid base64 accepted")
	}
}

func TestProcessBytes(t *testing.T) {
	input := testPNG(t, 64, 48)

	out, err := ProcessBytes(input)
	if err != nil {
		t.Fatalf("ProcessBytes: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty output")
	}

	meta, err := bimg.NewImage(out).Metadata()
	if err != nil {
		t.Fatalf("reading output metadata: %v", err)
	}
	if meta.Type != "jpeg" {
		t.Errorf("output type = %q, want jpeg", meta.Type)
	}
	if meta.Size.Width != 64 || meta.Size.Height != 48 {
		t.Errorf("small image was resized: %dx%d", meta.Size.Width, meta.Size.Height)
	}

	clean, err := VerifyNoEXIF(out)
	if err != nil {
		t.Fatalf("VerifyNoEXIF: %v", err)
	}
	if !clean {
		t.Error("output still carries EXIF metadata")
	}
}

func TestProcessDownscalesLargePhotos(t *testing.T) {
	input := testPNG(t, 2400, 1200)

	out, err := ProcessWithConfig(bytes.NewReader(input), DefaultConfig())
	if err != nil {
		t.Fatalf("ProcessWithConfig: %v", err)
	}

	meta, err := bimg.NewImage(out).Metadata()
	if err != nil {
		t.Fatalf("reading output metadata: %v", err)
	}
	if meta.Size.Width > 1600 {
		t.Errorf("width = %d, want <= 1600", meta.Size.Width)
	}
}

func TestSanitizeDataURLRoundTrip(t *testing.T) {
	input := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, 32, 32))

	out, err := SanitizeDataURL(input)
	if err != nil {
		t.Fatalf("SanitizeDataURL: %v", err)
	}
	if !strings.HasPrefix(out, "data:image/jpeg;base64,") {
		t.Errorf("output prefix = %q, want JPEG data URL", out[:min(40, len(out))])
	}

	payload := strings.TrimPrefix(out, "data:image/jpeg;base64,")
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		t.Errorf("output payload is not valid base64: %v", err)
	}
}

func TestProcessRejectsGarbage(t *testing.T) {
	if _, err := ProcessBytes([]byte("definitely not an image")); err == nil {
		t.Error("garbage bytes accepted")
	}
}
