package audit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/oryza-labs/cat-explorer/internal/auth"
	"github.com/oryza-labs/cat-explorer/internal/middleware"
)

// Trail records moderation actions from inside HTTP handlers. Recording
// is best effort: a failed write is logged, never surfaced to the user,
// so a broken trail cannot block moderation itself.
type Trail struct {
	repo   Repository
	logger *slog.Logger
}

// NewTrail creates a Trail. A nil repo disables recording.
func NewTrail(repo Repository, logger *slog.Logger) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{repo: repo, logger: logger}
}

// Record writes one entry for the given request. The actor and request
// id come from the request context, the IP address from its headers.
func (t *Trail) Record(r *http.Request, actor auth.Identity, action, entityID string) {
	if t == nil || t.repo == nil {
		return
	}

	entry := Entry{
		ActorID:    actor.Subject,
		ActorEmail: actor.Email,
		Action:     action,
		EntityID:   entityID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IPAddress:  extractIPAddress(r),
	}

	if err := t.repo.Record(r.Context(), entry); err != nil {
		t.logger.Warn("failed to record audit entry",
			slog.String("action", action),
			slog.String("entity_id", entityID),
			slog.String("error", err.Error()))
	}
}

// extractIPAddress returns the client IP, preferring proxy headers.
// Ports are stripped so the value fits an inet column.
func extractIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.Index(xff, ","); idx != -1 {
			first = xff[:idx]
		}
		return stripPort(strings.TrimSpace(first))
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return stripPort(strings.TrimSpace(xri))
	}
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
