// Package feed provides WebSocket broadcasting of catalogue changes so
// map clients can update without polling.
package feed

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/oryza-labs/cat-explorer/internal/geo"
	"github.com/oryza-labs/cat-explorer/internal/sighting"
)

// Event types published on the feed.
const (
	EventSightingCreated = "sighting.created"
	EventSightingUpdated = "sighting.updated"
	EventSightingDeleted = "sighting.deleted"
)

// Event is one catalogue change. Record is nil for deletions; ID is
// always set. Area is the record's coarse geohash cell so map clients
// can decide whether the event touches their viewport before decoding
// coordinates.
type Event struct {
	Type   string           `json:"type"`
	ID     string           `json:"id"`
	Area   string           `json:"area,omitempty"`
	Record *sighting.Record `json:"record,omitempty"`
}

// subscriber pairs a connection with its write lock. gorilla/websocket
// allows at most one concurrent writer per connection.
type subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Broadcaster fans catalogue events out to every connected client.
// Delivery is best-effort; a slow client loses events rather than
// stalling the writer.
type Broadcaster struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*subscriber
	logger      *slog.Logger
}

// NewBroadcaster creates a feed broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		connections: make(map[*websocket.Conn]*subscriber),
		logger:      logger,
	}
}

// Subscribe registers a WebSocket connection.
func (b *Broadcaster) Subscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[conn] = &subscriber{conn: conn}
}

// Unsubscribe removes a WebSocket connection.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connections, conn)
}

// Broadcast sends the event to all subscribers.
func (b *Broadcaster) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.connections) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal feed event", "error", err)
		return
	}

	for _, sub := range b.connections {
		sub.mu.Lock()
		err := sub.conn.WriteMessage(websocket.TextMessage, data)
		sub.mu.Unlock()
		if err != nil {
			b.logger.Warn("failed to send feed event",
				"error", err,
				"event_type", event.Type,
			)
			// Connection is cleaned up when the client disconnects.
		}
	}
}

// Created publishes a creation event.
func (b *Broadcaster) Created(rec *sighting.Record) {
	b.Broadcast(Event{
		Type:   EventSightingCreated,
		ID:     rec.ID,
		Area:   geo.EncodeCoarse(rec.Position()),
		Record: rec,
	})
}

// Updated publishes an update event.
func (b *Broadcaster) Updated(rec *sighting.Record) {
	b.Broadcast(Event{
		Type:   EventSightingUpdated,
		ID:     rec.ID,
		Area:   geo.EncodeCoarse(rec.Position()),
		Record: rec,
	})
}

// Deleted publishes a deletion event.
func (b *Broadcaster) Deleted(id string) {
	b.Broadcast(Event{Type: EventSightingDeleted, ID: id})
}

// ConnectionCount returns the number of active connections.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}
