// Package audit records privileged moderation actions so that admin
// deletes and edits of other people's sightings leave a reviewable
// trail.
package audit

import (
	"errors"
	"time"
)

var (
	// ErrInvalidAction is returned for actions outside the whitelist.
	ErrInvalidAction = errors.New("audit action not recognized")
	// ErrInvalidEntityID is returned when the entity id is empty.
	ErrInvalidEntityID = errors.New("audit entity id cannot be empty")
	// ErrMissingActor is returned when no actor is attached to the entry.
	ErrMissingActor = errors.New("audit entry requires an actor")
)

// Actions that produce an audit entry. Owner edits of their own records
// are ordinary activity and are not audited.
const (
	ActionDeleteSighting      = "sighting.delete"
	ActionEditForeignSighting = "sighting.edit_other"
)

// validActions is the whitelist of auditable actions.
var validActions = map[string]bool{
	ActionDeleteSighting:      true,
	ActionEditForeignSighting: true,
}

// Entry is one recorded moderation action.
type Entry struct {
	ID         string
	ActorID    string
	ActorEmail string
	Action     string
	EntityID   string
	CreatedAt  time.Time

	// Request metadata, best effort.
	RequestID string
	IPAddress string
}

// Validate checks the fields required before an entry may be stored.
func (e *Entry) Validate() error {
	if !validActions[e.Action] {
		return ErrInvalidAction
	}
	if e.EntityID == "" {
		return ErrInvalidEntityID
	}
	if e.ActorID == "" {
		return ErrMissingActor
	}
	return nil
}
