// Package sighting provides the model and repositories for stray-cat
// sighting records, including spatial retrieval.
package sighting

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oryza-labs/cat-explorer/internal/geo"
)

// MaxEmbeddedImageBytes is the ceiling for base64-embedded photos after
// client-side compression. Larger payloads must go through the upload
// signing flow instead.
const MaxEmbeddedImageBytes = 1 << 20

// Location is the wire/storage form of a record's position:
// coordinates are [lng, lat], per GeoJSON convention. Coordinates is a
// pointer so an omitted pair is distinguishable from an explicit [0, 0];
// a bare `{"location":{}}` must fail validation, not land on Null Island.
type Location struct {
	Coordinates *[2]float64 `json:"coordinates"`
	Address     string      `json:"address,omitempty"`
}

// NewLocation builds a Location from wire-order (lng, lat) coordinates.
func NewLocation(lng, lat float64) Location {
	return Location{Coordinates: &[2]float64{lng, lat}}
}

// Point returns the location as a named geo.Point. Absent coordinates
// yield an invalid point.
func (l Location) Point() geo.Point {
	if l.Coordinates == nil {
		return geo.Point{Lat: math.NaN(), Lng: math.NaN()}
	}
	return geo.FromCoordinates(*l.Coordinates)
}

// Record is one cat-sighting entry.
//
// ID, CreatedAt, and OwnerID are immutable after creation. UpdatedAt is
// refreshed on every successful mutation and never precedes CreatedAt.
type Record struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Image           string    `json:"image"`
	Description     string    `json:"description,omitempty"`
	Location        Location  `json:"location"`
	Tags            []string  `json:"tags,omitempty"`
	OwnerID         string    `json:"ownerId"`
	OwnerEmail      string    `json:"ownerEmail,omitempty"`
	LastEditorEmail string    `json:"lastEditorEmail,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Position implements geo.Locatable.
func (r Record) Position() geo.Point {
	return r.Location.Point()
}

// Patch describes a partial update to a record. Nil fields are left
// untouched. Owner identity and creation time are not patchable.
type Patch struct {
	Name        *string   `json:"name,omitempty"`
	Image       *string   `json:"image,omitempty"`
	Description *string   `json:"description,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Tags        []string  `json:"tags,omitempty"`

	// EditorEmail is recorded as lastEditorEmail on the stored record.
	EditorEmail string `json:"-"`

	// RequireOwnerID, when non-empty, makes the update fail with
	// ErrNotOwner unless the stored record's ownerId matches. It lets
	// the ownership check ride the same store round trip as the write.
	RequireOwnerID string `json:"-"`
}

// Validate checks the invariants required before a record may be
// persisted. It returns a *ValidationError naming the first offending
// field, or nil.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	if strings.TrimSpace(r.Image) == "" {
		return &ValidationError{Field: "image", Reason: "image is required"}
	}
	if err := validateImage(r.Image); err != nil {
		return err
	}
	if r.Location.Coordinates == nil {
		return &ValidationError{Field: "location.coordinates", Reason: "coordinates are required"}
	}
	if !r.Location.Point().Valid() {
		return &ValidationError{Field: "location.coordinates", Reason: "coordinates must be a [lng, lat] pair within valid ranges"}
	}
	return nil
}

// validateImage accepts either a remote URL or a base64 data URL under
// the embedded-size ceiling.
func validateImage(image string) error {
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return nil
	}
	if strings.HasPrefix(image, "data:image/") {
		idx := strings.Index(image, ";base64,")
		if idx == -1 {
			return &ValidationError{Field: "image", Reason: "data URL must be base64-encoded"}
		}
		payload := image[idx+len(";base64,"):]
		decoded := base64.StdEncoding.DecodedLen(len(payload))
		if decoded > MaxEmbeddedImageBytes {
			return &ValidationError{
				Field:  "image",
				Reason: fmt.Sprintf("embedded image exceeds %d bytes", MaxEmbeddedImageBytes),
			}
		}
		return nil
	}
	return &ValidationError{Field: "image", Reason: "image must be a URL or a base64 data URL"}
}

// ParseTags normalizes the tag input accepted on create: either a JSON
// array of strings or a single comma-separated string. Empty entries are
// dropped, surrounding whitespace trimmed.
func ParseTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var joined string
		if err := json.Unmarshal(raw, &joined); err != nil {
			return nil
		}
		list = strings.Split(joined, ",")
	}

	tags := make([]string, 0, len(list))
	for _, t := range list {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
