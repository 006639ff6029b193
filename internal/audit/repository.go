package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// opTimeout bounds audit writes so a slow trail cannot stall moderation.
const opTimeout = 5 * time.Second

// Repository stores moderation audit entries.
type Repository interface {
	Record(ctx context.Context, entry Entry) error
}

// PostgresRepository persists entries to the audit_log table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Record validates and inserts the entry.
func (r *PostgresRepository) Record(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		INSERT INTO audit_log (id, actor_id, actor_email, action, entity_id, request_id, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(), entry.ActorID, nullable(entry.ActorEmail),
		entry.Action, entry.EntityID,
		nullable(entry.RequestID), nullable(entry.IPAddress))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InMemoryRepository is an in-memory Repository for testing and
// development.
type InMemoryRepository struct {
	mu      sync.Mutex
	entries []Entry
}

// NewInMemoryRepository creates an empty InMemoryRepository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Record validates and appends the entry.
func (r *InMemoryRepository) Record(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, entry)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (r *InMemoryRepository) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}
