package api

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/oryza-labs/cat-explorer/internal/audit"
	"github.com/oryza-labs/cat-explorer/internal/auth"
	"github.com/oryza-labs/cat-explorer/internal/feed"
	"github.com/oryza-labs/cat-explorer/internal/geo"
	"github.com/oryza-labs/cat-explorer/internal/image"
	"github.com/oryza-labs/cat-explorer/internal/middleware"
	"github.com/oryza-labs/cat-explorer/internal/sighting"
)

// MaxSightingNameLength bounds the cat's display name.
const MaxSightingNameLength = 120

// CreateSightingRequest is the request body for creating a sighting.
// Tags accept either a JSON array or a comma-separated string.
type CreateSightingRequest struct {
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	Description string            `json:"description,omitempty"`
	Location    sighting.Location `json:"location"`
	Tags        json.RawMessage   `json:"tags,omitempty"`
}

// UpdateSightingRequest is the request body for updating a sighting.
// Absent fields are left untouched.
type UpdateSightingRequest struct {
	Name        *string            `json:"name,omitempty"`
	Image       *string            `json:"image,omitempty"`
	Description *string            `json:"description,omitempty"`
	Location    *sighting.Location `json:"location,omitempty"`
	Tags        json.RawMessage    `json:"tags,omitempty"`
}

// AdminChecker answers whether an identity is an administrator.
type AdminChecker interface {
	IsAdmin(id auth.Identity) bool
}

// SightingHandlers holds dependencies for sighting HTTP handlers.
type SightingHandlers struct {
	repo    sighting.Repository
	admin   AdminChecker
	feed    *feed.Broadcaster
	metrics *middleware.Metrics
	trail   *audit.Trail
}

// NewSightingHandlers creates a SightingHandlers instance. feed, metrics,
// and trail may be nil.
func NewSightingHandlers(repo sighting.Repository, admin AdminChecker, broadcaster *feed.Broadcaster, metrics *middleware.Metrics, trail *audit.Trail) *SightingHandlers {
	return &SightingHandlers{
		repo:    repo,
		admin:   admin,
		feed:    broadcaster,
		metrics: metrics,
		trail:   trail,
	}
}

// sightingIDFromPath extracts the id segment from /sightings/{id}.
func sightingIDFromPath(path string) string {
	id := strings.TrimPrefix(path, "/sightings/")
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// List handles GET /sightings. With lat and lng query parameters it
// returns records within radius_km (default 10), nearest-first;
// otherwise it returns the most recent records.
func (h *SightingHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	latRaw, lngRaw := q.Get("lat"), q.Get("lng")
	if latRaw == "" && lngRaw == "" {
		records, err := h.repo.ListRecent(r.Context(), limit)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, r.Context(), http.StatusOK, records)
		return
	}

	if latRaw == "" || lngRaw == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "lat and lng must be provided together")
		return
	}

	lat, latErr := strconv.ParseFloat(latRaw, 64)
	lng, lngErr := strconv.ParseFloat(lngRaw, 64)
	if latErr != nil || lngErr != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "lat and lng must be numbers")
		return
	}

	point := geo.Point{Lat: lat, Lng: lng}
	if !point.Valid() {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "lat/lng out of range")
		return
	}

	// radius_km is the documented name; distance is accepted for older
	// clients.
	radiusKm := 0.0
	raw := q.Get("radius_km")
	if raw == "" {
		raw = q.Get("distance")
	}
	if raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "radius_km must be a positive number")
			return
		}
		radiusKm = v
	}

	records, err := h.repo.ListNear(r.Context(), point, radiusKm, limit)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, records)
}

// Get handles GET /sightings/{id}.
func (h *SightingHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := sightingIDFromPath(r.URL.Path)
	if id == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Missing sighting ID")
		return
	}

	rec, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, rec)
}

// Create handles POST /sightings. Requires authentication; the record's
// owner is the caller.
func (h *SightingHandlers) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req CreateSightingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if len(req.Name) > MaxSightingNameLength {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "name is too long")
		return
	}

	img, err := sanitizeImage(req.Image)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "image could not be processed")
		return
	}

	rec := &sighting.Record{
		Name:        html.EscapeString(req.Name),
		Image:       img,
		Description: html.EscapeString(strings.TrimSpace(req.Description)),
		Location:    req.Location,
		Tags:        sighting.ParseTags(req.Tags),
		OwnerID:     identity.Subject,
		OwnerEmail:  identity.Email,
	}

	stored, err := h.repo.Create(r.Context(), rec)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncSightingsCreated()
	}
	if h.feed != nil {
		h.feed.Created(stored)
	}

	writeJSON(w, r.Context(), http.StatusCreated, stored)
}

// Update handles PUT /sightings/{id}. The owner may edit their own
// record; administrators may edit any record.
func (h *SightingHandlers) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	id := sightingIDFromPath(r.URL.Path)
	if id == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Missing sighting ID")
		return
	}

	var req UpdateSightingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	// Ownership is enforced inside the single store round trip: the
	// patch carries the expected owner unless the caller is an admin.
	patch := &sighting.Patch{
		Description: req.Description,
		Location:    req.Location,
		EditorEmail: identity.Email,
	}
	if !h.admin.IsAdmin(identity) {
		patch.RequireOwnerID = identity.Subject
	}
	if req.Name != nil {
		name := html.EscapeString(strings.TrimSpace(*req.Name))
		if len(name) > MaxSightingNameLength {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "name is too long")
			return
		}
		patch.Name = &name
	}
	if req.Image != nil {
		img, err := sanitizeImage(*req.Image)
		if err != nil {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "image could not be processed")
			return
		}
		patch.Image = &img
	}
	if req.Tags != nil {
		patch.Tags = sighting.ParseTags(req.Tags)
	}

	updated, err := h.repo.Update(r.Context(), id, patch)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	if updated.OwnerID != identity.Subject {
		h.trail.Record(r, identity, audit.ActionEditForeignSighting, id)
	}
	if h.feed != nil {
		h.feed.Updated(updated)
	}

	writeJSON(w, r.Context(), http.StatusOK, updated)
}

// Delete handles DELETE /sightings/{id}. Administrators only; deletion
// is physical and irreversible.
func (h *SightingHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	if !h.admin.IsAdmin(identity) {
		WriteError(w, r.Context(), http.StatusForbidden, ErrCodeForbidden, "Only administrators may delete sightings")
		return
	}

	id := sightingIDFromPath(r.URL.Path)
	if id == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Missing sighting ID")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}

	h.trail.Record(r, identity, audit.ActionDeleteSighting, id)
	if h.metrics != nil {
		h.metrics.IncSightingsDeleted()
	}
	if h.feed != nil {
		h.feed.Deleted(id)
	}

	writeJSON(w, r.Context(), http.StatusOK, map[string]string{"message": "Sighting deleted"})
}

// sanitizeImage strips metadata from embedded photos. Remote URLs pass
// through untouched; the store validates their shape.
func sanitizeImage(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	sanitized, err := image.SanitizeDataURL(raw)
	if errors.Is(err, image.ErrNotDataURL) {
		return raw, nil
	}
	if err != nil {
		return "", err
	}
	return sanitized, nil
}
