package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/oryza-labs/cat-explorer/internal/feed"
	"github.com/oryza-labs/cat-explorer/internal/middleware"
)

// FeedHandlers serves the live sighting feed over WebSocket.
type FeedHandlers struct {
	broadcaster *feed.Broadcaster
	upgrader    websocket.Upgrader
}

// NewFeedHandlers creates a FeedHandlers instance. allowedOrigins is
// the same allowlist the CORS middleware uses; an empty list admits
// only same-origin clients.
func NewFeedHandlers(broadcaster *feed.Broadcaster, allowedOrigins []string) *FeedHandlers {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &FeedHandlers{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return origins[origin]
			},
		},
	}
}

// Subscribe handles GET /sightings/feed, upgrading the connection and
// streaming catalogue change events until the client disconnects.
func (h *FeedHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	h.broadcaster.Subscribe(conn)

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "feed client subscribed", "request_id", requestID)

	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		slog.InfoContext(ctx, "feed client unsubscribed", "request_id", requestID)
	}()

	// Clients do not send messages; reading detects disconnection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
