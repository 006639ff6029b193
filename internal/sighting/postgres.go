package sighting

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/oryza-labs/cat-explorer/internal/geo"
	"github.com/oryza-labs/cat-explorer/internal/tracing"
)

// PostGISRequirement documents that the application requires PostgreSQL
// with PostGIS. PostGIS provides the spherical-geometry index backing
// ListNear's nearest-first guarantee.
const PostGISRequirement = "PostGIS extension is required for geo queries"

// VersionQuery is the SQL query to verify PostGIS is available.
const VersionQuery = "SELECT PostGIS_Version()"

const sightingColumns = `id, name, image, description, ST_X(location::geometry), ST_Y(location::geometry), address, tags, owner_id, owner_email, last_editor_email, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL with PostGIS.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// Create validates and persists a new record.
func (r *PostgresRepository) Create(ctx context.Context, rec *Record) (*Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	ctx, endSpan := tracing.StartDBSpan(ctx, "sightings", tracing.DBOperationInsert)

	query := `
		INSERT INTO sightings (id, name, image, description, location, address, tags, owner_id, owner_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	stored := cloneRecord(rec)
	stored.ID = uuid.New().String()
	p := stored.Location.Point()

	err := r.db.QueryRowContext(ctx, query,
		stored.ID, stored.Name, stored.Image, nullable(stored.Description),
		p.Lng, p.Lat, nullable(stored.Location.Address),
		pq.Array(stored.Tags), stored.OwnerID, nullable(stored.OwnerEmail),
	).Scan(&stored.CreatedAt, &stored.UpdatedAt)
	endSpan(err)
	if err != nil {
		r.logger.Error("failed to insert sighting",
			slog.String("error", err.Error()),
			slog.String("owner_id", stored.OwnerID))
		return nil, r.translate(err, "insert sighting")
	}

	return stored, nil
}

// GetByID returns the record or ErrNotFound. Malformed ids are rejected
// before any query runs.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	ctx, endSpan := tracing.StartDBSpan(ctx, "sightings", tracing.DBOperationQuery)

	query := `SELECT ` + sightingColumns + ` FROM sightings WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	endSpan(err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, r.translate(err, "get sighting")
	}
	return rec, nil
}

// ListRecent returns up to limit records, newest-first.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	limit = normalizeRecentLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	ctx, endSpan := tracing.StartDBSpan(ctx, "sightings", tracing.DBOperationQuery)

	query := `SELECT ` + sightingColumns + ` FROM sightings ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	endSpan(err)
	if err != nil {
		return nil, r.translate(err, "list recent sightings")
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListNear returns records within radiusKm of point, nearest-first.
// Ordering comes from the PostGIS KNN index, not recomputed in Go.
func (r *PostgresRepository) ListNear(ctx context.Context, point geo.Point, radiusKm float64, limit int) ([]*Record, error) {
	limit = normalizeNearLimit(limit)
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	ctx, endSpan := tracing.StartDBSpan(ctx, "sightings", tracing.DBOperationQuery)

	query := `
		SELECT ` + sightingColumns + `
		FROM sightings
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, query, point.Lng, point.Lat, radiusKm*1000, limit)
	endSpan(err)
	if err != nil {
		return nil, r.translate(err, "list nearby sightings")
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Update merges patch into the stored record inside a transaction,
// refreshing updated_at and last_editor_email.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch *Patch) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	ctx, endSpan := tracing.StartDBSpan(ctx, "sightings", tracing.DBOperationUpdate)

	rec, err := r.updateTx(ctx, id, patch)
	endSpan(err)
	return rec, err
}

func (r *PostgresRepository) updateTx(ctx context.Context, id string, patch *Patch) (*Record, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, r.translate(err, "begin update transaction")
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback update transaction",
				slog.String("error", err.Error()))
		}
	}()

	query := `SELECT ` + sightingColumns + ` FROM sightings WHERE id = $1 FOR UPDATE`
	rec, err := scanRecord(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, r.translate(err, "lock sighting for update")
	}
	if patch.RequireOwnerID != "" && rec.OwnerID != patch.RequireOwnerID {
		return nil, ErrNotOwner
	}

	applyPatch(rec, patch)
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	p := rec.Location.Point()
	update := `
		UPDATE sightings
		SET name = $2, image = $3, description = $4,
		    location = ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography,
		    address = $7, tags = $8, last_editor_email = $9,
		    updated_at = GREATEST(NOW(), created_at)
		WHERE id = $1
		RETURNING updated_at
	`
	err = tx.QueryRowContext(ctx, update,
		id, rec.Name, rec.Image, nullable(rec.Description),
		p.Lng, p.Lat, nullable(rec.Location.Address),
		pq.Array(rec.Tags), nullable(patch.EditorEmail),
	).Scan(&rec.UpdatedAt)
	if err != nil {
		return nil, r.translate(err, "update sighting")
	}

	if err := tx.Commit(); err != nil {
		return nil, r.translate(err, "commit update transaction")
	}

	rec.LastEditorEmail = patch.EditorEmail
	return rec, nil
}

// Delete physically removes the record. No soft delete: a deleted
// sighting is gone for good.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	ctx, endSpan := tracing.StartDBSpan(ctx, "sightings", tracing.DBOperationDelete)

	result, err := r.db.ExecContext(ctx, `DELETE FROM sightings WHERE id = $1`, id)
	endSpan(err)
	if err != nil {
		return r.translate(err, "delete sighting")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return r.translate(err, "delete sighting")
	}
	if affected == 0 {
		return ErrNotFound
	}

	r.logger.Info("sighting deleted",
		slog.String("sighting_id", id))
	return nil
}

// translate maps driver errors to the repository's error taxonomy. Full
// diagnostic detail is logged; callers see only the sentinel.
func (r *PostgresRepository) translate(err error, op string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		r.logger.Error("store operation timed out", slog.String("op", op))
		return ErrUpstreamTimeout
	case isConnectionError(err):
		r.logger.Error("store unavailable",
			slog.String("op", op),
			slog.String("error", err.Error()))
		return ErrUpstreamUnavailable
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// isConnectionError reports whether err indicates a failed connection
// rather than a query-level problem.
func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanRecord.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec                    Record
		lng, lat               float64
		description, address   sql.NullString
		ownerEmail, lastEditor sql.NullString
		tags                   pq.StringArray
		createdAt, updatedAt   time.Time
	)

	err := row.Scan(&rec.ID, &rec.Name, &rec.Image, &description,
		&lng, &lat, &address, &tags,
		&rec.OwnerID, &ownerEmail, &lastEditor,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.Description = description.String
	rec.Location = Location{
		Coordinates: &[2]float64{lng, lat},
		Address:     address.String,
	}
	rec.Tags = tags
	rec.OwnerEmail = ownerEmail.String
	rec.LastEditorEmail = lastEditor.String
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	out := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sighting row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sighting rows: %w", err)
	}
	return out, nil
}

// nullable converts an empty string to NULL for optional columns.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
