package sighting

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oryza-labs/cat-explorer/internal/geo"
)

// Query defaults, matching the observed behavior of the catalogue.
const (
	DefaultRecentLimit = 20
	DefaultNearLimit   = 50
	DefaultRadiusKm    = 10.0
)

// MaxListLimit caps client-supplied list sizes so a single request
// cannot dump the whole table.
const MaxListLimit = 100

// OpTimeout bounds every store round trip. Operations that exceed it are
// abandoned and reported as ErrUpstreamTimeout rather than left pending.
const OpTimeout = 5 * time.Second

// Repository defines the data operations for sighting records. There is
// exactly one data-access abstraction; all implementations share the same
// timeout-and-fail policy and never retry within a single request.
type Repository interface {
	// Create validates and persists a new record, assigning its id and
	// timestamps. Returns the stored record.
	Create(ctx context.Context, rec *Record) (*Record, error)

	// GetByID returns the record, ErrInvalidID for malformed ids, or
	// ErrNotFound.
	GetByID(ctx context.Context, id string) (*Record, error)

	// ListRecent returns up to limit records, newest-first.
	ListRecent(ctx context.Context, limit int) ([]*Record, error)

	// ListNear returns up to limit records within radiusKm of point,
	// nearest-first. Ordering comes from the spatial index; callers must
	// not re-sort.
	ListNear(ctx context.Context, point geo.Point, radiusKm float64, limit int) ([]*Record, error)

	// Update merges patch into the stored record, refreshes updatedAt,
	// and records the editor's email. Returns the updated record,
	// ErrNotFound, or ErrNotOwner when patch.RequireOwnerID does not
	// match the stored owner.
	Update(ctx context.Context, id string, patch *Patch) (*Record, error)

	// Delete physically removes the record. Returns ErrNotFound when
	// already absent. There is no soft delete.
	Delete(ctx context.Context, id string) error
}

// ValidateID checks that id is a well-formed identifier. It runs before
// any store round trip so malformed ids never reach the database.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

// normalizeRecentLimit applies the default, floor, and ceiling.
func normalizeRecentLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return min(limit, MaxListLimit)
}

// normalizeNearLimit applies the default, floor, and ceiling.
func normalizeNearLimit(limit int) int {
	if limit <= 0 {
		return DefaultNearLimit
	}
	return min(limit, MaxListLimit)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// SetClock overrides the repository clock. Test use only.
func (r *InMemoryRepository) SetClock(now func() time.Time) {
	r.now = now
}

// Create validates and stores a new record.
func (r *InMemoryRepository) Create(ctx context.Context, rec *Record) (*Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	stored := cloneRecord(rec)
	stored.ID = uuid.New().String()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.records[stored.ID] = stored
	return cloneRecord(stored), nil
}

// GetByID returns a copy of the record to avoid external modification.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// ListRecent returns records ordered by createdAt descending.
func (r *InMemoryRepository) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	limit = normalizeRecentLimit(limit)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, cloneRecord(rec))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListNear filters by haversine distance and sorts nearest-first.
func (r *InMemoryRepository) ListNear(ctx context.Context, point geo.Point, radiusKm float64, limit int) ([]*Record, error) {
	limit = normalizeNearLimit(limit)
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, 0)
	for _, rec := range r.records {
		if geo.Distance(point, rec.Position()) <= radiusKm {
			out = append(out, cloneRecord(rec))
		}
	}
	geo.SortByDistance(out, point)

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update merges the patch into the stored record.
func (r *InMemoryRepository) Update(ctx context.Context, id string, patch *Patch) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.RequireOwnerID != "" && rec.OwnerID != patch.RequireOwnerID {
		return nil, ErrNotOwner
	}

	updated := cloneRecord(rec)
	applyPatch(updated, patch)
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = r.now().UTC()
	updated.LastEditorEmail = patch.EditorEmail

	r.records[id] = updated
	return cloneRecord(updated), nil
}

// Delete removes the record. Deletion is physical and irreversible.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

// applyPatch merges non-nil patch fields into rec. Owner identity and
// creation time are never touched.
func applyPatch(rec *Record, patch *Patch) {
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Image != nil {
		rec.Image = *patch.Image
	}
	if patch.Description != nil {
		rec.Description = *patch.Description
	}
	if patch.Location != nil {
		rec.Location = *patch.Location
	}
	if patch.Tags != nil {
		rec.Tags = append([]string(nil), patch.Tags...)
	}
}

// cloneRecord returns a deep copy so callers cannot mutate stored state.
func cloneRecord(rec *Record) *Record {
	cp := *rec
	if rec.Tags != nil {
		cp.Tags = append([]string(nil), rec.Tags...)
	}
	if rec.Location.Coordinates != nil {
		coords := *rec.Location.Coordinates
		cp.Location.Coordinates = &coords
	}
	return &cp
}
