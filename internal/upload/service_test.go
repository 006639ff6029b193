package upload

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		wantErr     error
	}{
		{"image/jpeg", nil},
		{"image/png", nil},
		{"image/webp", nil},
		{"image/gif", ErrUnsupportedType},
		{"audio/mpeg", ErrUnsupportedType},
		{"application/pdf", ErrUnsupportedType},
		{"", ErrUnsupportedType},
	}

	for _, tt := range tests {
		if err := ValidateContentType(tt.contentType); !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidateContentType(%q) = %v, want %v", tt.contentType, err, tt.wantErr)
		}
	}
}

func TestValidateFileSize(t *testing.T) {
	svc := &Service{maxSizeBytes: 10 * 1024 * 1024}

	if err := svc.ValidateFileSize(5 * 1024 * 1024); err != nil {
		t.Errorf("5MB rejected: %v", err)
	}
	if err := svc.ValidateFileSize(11 * 1024 * 1024); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("11MB error = %v, want ErrFileTooLarge", err)
	}
	if err := svc.ValidateFileSize(0); err == nil {
		t.Error("zero size accepted")
	}
	if err := svc.ValidateFileSize(-1); err == nil {
		t.Error("negative size accepted")
	}
}

func TestGenerateObjectKey(t *testing.T) {
	t.Run("temp prefix when no sighting", func(t *testing.T) {
		key, err := GenerateObjectKey("image/jpeg", nil)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(key, "sightings/temp/") {
			t.Errorf("key = %q, want sightings/temp/ prefix", key)
		}
		if !strings.HasSuffix(key, ".jpg") {
			t.Errorf("key = %q, want .jpg suffix", key)
		}
	})

	t.Run("sighting id prefix", func(t *testing.T) {
		id := "abc-123"
		key, err := GenerateObjectKey("image/png", &id)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(key, "sightings/abc-123/") {
			t.Errorf("key = %q, want sightings/abc-123/ prefix", key)
		}
		if !strings.HasSuffix(key, ".png") {
			t.Errorf("key = %q, want .png suffix", key)
		}
	})

	t.Run("path traversal stripped", func(t *testing.T) {
		id := "../../etc/passwd"
		key, err := GenerateObjectKey("image/webp", &id)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(key, "..") || strings.Contains(key, "etc/passwd") {
			t.Errorf("key = %q contains unsanitized input", key)
		}
	})

	t.Run("id of only bad chars rejected", func(t *testing.T) {
		id := "../.."
		if _, err := GenerateObjectKey("image/jpeg", &id); !errors.Is(err, ErrInvalidSightingID) {
			t.Errorf("err = %v, want ErrInvalidSightingID", err)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		if _, err := GenerateObjectKey("video/mp4", nil); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("err = %v, want ErrUnsupportedType", err)
		}
	})

	t.Run("keys are unique", func(t *testing.T) {
		a, _ := GenerateObjectKey("image/jpeg", nil)
		b, _ := GenerateObjectKey("image/jpeg", nil)
		if a == b {
			t.Error("two keys for identical input collided")
		}
	})
}

func TestNewServiceValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServiceConfig
	}{
		{"missing bucket", ServiceConfig{AccessKeyID: "k", SecretAccessKey: "s", Endpoint: "https://r2.example.com"}},
		{"missing access key", ServiceConfig{BucketName: "b", SecretAccessKey: "s", Endpoint: "https://r2.example.com"}},
		{"missing secret", ServiceConfig{BucketName: "b", AccessKeyID: "k", Endpoint: "https://r2.example.com"}},
		{"missing endpoint", ServiceConfig{BucketName: "b", AccessKeyID: "k", SecretAccessKey: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewService(tt.cfg); err == nil {
				t.Error("expected config error")
			}
		})
	}
}

func TestNewServiceDefaults(t *testing.T) {
	svc, err := NewService(ServiceConfig{
		BucketName:      "cat-photos",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "https://account.r2.cloudflarestorage.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if svc.maxSizeBytes != 10*1024*1024 {
		t.Errorf("maxSizeBytes = %d, want default 10MB", svc.maxSizeBytes)
	}
	if svc.urlExpiry.Minutes() != 5 {
		t.Errorf("urlExpiry = %v, want 5m", svc.urlExpiry)
	}
}
