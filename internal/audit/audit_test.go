package audit

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/oryza-labs/cat-explorer/internal/auth"
)

func TestEntryValidate(t *testing.T) {
	valid := Entry{
		ActorID:  "admin-1",
		Action:   ActionDeleteSighting,
		EntityID: "0f8fad5b-d9cb-469f-a165-70867728950e",
	}

	tests := []struct {
		name    string
		mutate  func(*Entry)
		wantErr error
	}{
		{"valid_delete", func(e *Entry) {}, nil},
		{"valid_foreign_edit", func(e *Entry) { e.Action = ActionEditForeignSighting }, nil},
		{"unknown_action", func(e *Entry) { e.Action = "sighting.read" }, ErrInvalidAction},
		{"empty_action", func(e *Entry) { e.Action = "" }, ErrInvalidAction},
		{"missing_entity", func(e *Entry) { e.EntityID = "" }, ErrInvalidEntityID},
		{"missing_actor", func(e *Entry) { e.ActorID = "" }, ErrMissingActor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := valid
			tt.mutate(&entry)
			if err := entry.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInMemoryRepositoryRecord(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := t.Context()

	err := repo.Record(ctx, Entry{
		ActorID:    "admin-1",
		ActorEmail: "admin@example.com",
		Action:     ActionDeleteSighting,
		EntityID:   "sighting-1",
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if err := repo.Record(ctx, Entry{Action: "bogus"}); err == nil {
		t.Error("Record() accepted invalid entry")
	}

	entries := repo.Entries()
	if len(entries) != 1 {
		t.Fatalf("Entries() returned %d entries, want 1", len(entries))
	}
	got := entries[0]
	if got.ID == "" || got.CreatedAt.IsZero() {
		t.Error("Record() did not assign id and timestamp")
	}
	if got.ActorEmail != "admin@example.com" || got.Action != ActionDeleteSighting {
		t.Errorf("recorded entry = %+v", got)
	}
}

func TestExtractIPAddress(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote_addr_only",
			remoteAddr: "203.0.113.7:52100",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded_for_chain",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"},
			want:       "198.51.100.4",
		},
		{
			name:       "real_ip",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
		{
			name:       "ipv6_remote",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("DELETE", "/sightings/abc", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := extractIPAddress(r); got != tt.want {
				t.Errorf("extractIPAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrailRecord(t *testing.T) {
	repo := NewInMemoryRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trail := NewTrail(repo, logger)

	r := httptest.NewRequest("DELETE", "/sightings/abc", nil)
	r.RemoteAddr = "203.0.113.7:52100"
	actor := auth.Identity{Subject: "admin-1", Email: "admin@example.com"}

	trail.Record(r, actor, ActionDeleteSighting, "abc")

	entries := repo.Entries()
	if len(entries) != 1 {
		t.Fatalf("trail recorded %d entries, want 1", len(entries))
	}
	got := entries[0]
	if got.ActorID != "admin-1" || got.EntityID != "abc" || got.IPAddress != "203.0.113.7" {
		t.Errorf("recorded entry = %+v", got)
	}
}

func TestTrailNilSafe(t *testing.T) {
	var trail *Trail
	r := httptest.NewRequest("DELETE", "/sightings/abc", nil)

	// Must not panic with no trail configured.
	trail.Record(r, auth.Identity{Subject: "admin-1"}, ActionDeleteSighting, "abc")

	disabled := NewTrail(nil, nil)
	disabled.Record(r, auth.Identity{Subject: "admin-1"}, ActionDeleteSighting, "abc")
}
