package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oryza-labs/cat-explorer/internal/upload"
)

// SignUploadRequest is the request body for POST /uploads/sign.
type SignUploadRequest struct {
	ContentType string  `json:"contentType"`
	SizeBytes   int64   `json:"sizeBytes"`
	SightingID  *string `json:"sightingId,omitempty"`
}

// SignUploadResponse is the response for POST /uploads/sign.
type SignUploadResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresAt string `json:"expiresAt"`
}

// UploadHandlers holds dependencies for upload HTTP handlers.
type UploadHandlers struct {
	uploadService *upload.Service
}

// NewUploadHandlers creates an UploadHandlers instance.
func NewUploadHandlers(uploadService *upload.Service) *UploadHandlers {
	return &UploadHandlers{uploadService: uploadService}
}

// SignUpload handles POST /uploads/sign, generating a pre-signed PUT
// URL for a photo upload.
func (h *UploadHandlers) SignUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploadService == nil {
		WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable, "Photo uploads are not configured")
		return
	}

	var req SignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.ContentType == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "contentType is required")
		return
	}
	if req.SizeBytes <= 0 {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "sizeBytes must be positive")
		return
	}

	signedURL, err := h.uploadService.GenerateSignedURL(r.Context(), upload.SignedURLRequest{
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		SightingID:  req.SightingID,
	})
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrUnsupportedType):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeUnsupportedType,
				"Unsupported content type. Allowed types: image/jpeg, image/png, image/webp")
		case errors.Is(err, upload.ErrFileTooLarge):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "File size exceeds maximum allowed")
		case errors.Is(err, upload.ErrInvalidSightingID):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "Invalid sighting ID")
		default:
			slog.ErrorContext(r.Context(), "failed to generate signed URL", "error", err)
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to generate signed URL")
		}
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, SignUploadResponse{
		URL:       signedURL.URL,
		Key:       signedURL.Key,
		ExpiresAt: signedURL.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
