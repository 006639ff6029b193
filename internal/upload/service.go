// Package upload provides signed-URL generation for direct photo
// uploads to R2-compatible object storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Allowed MIME types. Sighting photos only; no audio or video.
const (
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEImageWebP = "image/webp"
)

// Validation errors.
var (
	ErrUnsupportedType   = errors.New("unsupported content type")
	ErrFileTooLarge      = errors.New("file size exceeds maximum allowed")
	ErrInvalidSightingID = errors.New("invalid sighting ID")
)

// AllowedMIMETypes maps allowed MIME types to their file extensions.
var AllowedMIMETypes = map[string]string{
	MIMEImageJPEG: ".jpg",
	MIMEImagePNG:  ".png",
	MIMEImageWebP: ".webp",
}

// SignedURLRequest represents a request for a signed upload URL.
type SignedURLRequest struct {
	ContentType string  // MIME type of the photo
	SizeBytes   int64   // Size of the file in bytes
	SightingID  *string // Optional sighting ID; nil keys under "temp"
}

// SignedURLResponse contains the signed URL and object metadata.
type SignedURLResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service generates pre-signed PUT URLs for photo uploads.
type Service struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	maxSizeBytes  int64
	urlExpiry     time.Duration
	timeNow       func() time.Time
}

// ServiceConfig holds configuration for the upload service.
type ServiceConfig struct {
	BucketName       string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string
	MaxSizeMB        int
	URLExpiryMinutes int
}

// NewService creates an upload service against an R2-compatible
// endpoint.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 5
	}

	// R2 uses the auto region and path-style addressing.
	s3Client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &Service{
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		maxSizeBytes:  int64(cfg.MaxSizeMB) * 1024 * 1024,
		urlExpiry:     time.Duration(cfg.URLExpiryMinutes) * time.Minute,
		timeNow:       time.Now,
	}, nil
}

// ValidateContentType checks that the content type is an allowed image
// type.
func ValidateContentType(contentType string) error {
	if _, ok := AllowedMIMETypes[contentType]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// ValidateFileSize checks that the file size is within limits.
func (s *Service) ValidateFileSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return errors.New("file size must be positive")
	}
	if sizeBytes > s.maxSizeBytes {
		return ErrFileTooLarge
	}
	return nil
}

// GenerateObjectKey creates a unique object key for the upload.
// Pattern: sightings/{sightingId or temp}/uuid.ext
func GenerateObjectKey(contentType string, sightingID *string) (string, error) {
	ext, ok := AllowedMIMETypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	prefix := "temp"
	if sightingID != nil && *sightingID != "" {
		sanitized := sanitizePathComponent(*sightingID)
		if sanitized == "" {
			return "", ErrInvalidSightingID
		}
		prefix = sanitized
	}

	return fmt.Sprintf("sightings/%s/%s%s", prefix, uuid.New().String(), ext), nil
}

// sanitizePathComponent strips everything but alphanumerics, hyphens,
// and underscores.
func sanitizePathComponent(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// GenerateSignedURL generates a pre-signed PUT URL for direct upload.
func (s *Service) GenerateSignedURL(ctx context.Context, req SignedURLRequest) (*SignedURLResponse, error) {
	if err := ValidateContentType(req.ContentType); err != nil {
		return nil, err
	}
	if err := s.ValidateFileSize(req.SizeBytes); err != nil {
		return nil, err
	}

	key, err := GenerateObjectKey(req.ContentType, req.SightingID)
	if err != nil {
		return nil, err
	}

	putObjectInput := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		ContentType:   aws.String(req.ContentType),
		ContentLength: aws.Int64(req.SizeBytes),
	}

	presignedReq, err := s.presignClient.PresignPutObject(ctx, putObjectInput, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign request: %w", err)
	}

	return &SignedURLResponse{
		URL:       presignedReq.URL,
		Key:       key,
		ExpiresAt: s.timeNow().Add(s.urlExpiry),
	}, nil
}
