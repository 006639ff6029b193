package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oryza-labs/cat-explorer/internal/middleware"
)

// RouterConfig carries the dependencies the router wires together.
type RouterConfig struct {
	Sightings *SightingHandlers
	Auth      *AuthHandlers
	Uploads   *UploadHandlers
	Health    *HealthHandlers
	Feed      *FeedHandlers

	TokenValidator middleware.TokenValidator
	RateLimitStore middleware.RateLimitStore
	Metrics        *middleware.Metrics
	Registry       *prometheus.Registry

	AllowedOrigins []string
	TracingEnabled bool
	ServiceName    string
}

// NewRouter assembles the API surface with its middleware chain:
// RequestID -> Tracing -> Logging -> Metrics -> CORS -> rate limits ->
// per-route auth.
func NewRouter(logger *slog.Logger, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	requireAuth := middleware.Authenticate(cfg.TokenValidator)
	optionalAuth := middleware.OptionalAuthenticate(cfg.TokenValidator)

	var globalLimit, authLimit, searchLimit func(http.Handler) http.Handler
	if cfg.RateLimitStore != nil {
		globalLimit = middleware.RateLimiter(cfg.RateLimitStore, middleware.DefaultGlobalLimit(), middleware.IdentityKeyFunc())
		authLimit = middleware.RateLimiter(cfg.RateLimitStore, middleware.DefaultAuthLimit(), middleware.IPKeyFunc())
		searchLimit = middleware.RateLimiter(cfg.RateLimitStore, middleware.DefaultSearchLimit(), middleware.IdentityKeyFunc())
	} else {
		passthrough := func(next http.Handler) http.Handler { return next }
		globalLimit, authLimit, searchLimit = passthrough, passthrough, passthrough
	}

	// Sighting collection: anonymous reads, authenticated writes.
	mux.Handle("/sightings", optionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			searchLimit(http.HandlerFunc(cfg.Sightings.List)).ServeHTTP(w, r)
		case http.MethodPost:
			globalLimit(requireAuth(http.HandlerFunc(cfg.Sightings.Create))).ServeHTTP(w, r)
		default:
			writeMethodNotAllowed(w, r)
		}
	})))

	// Live feed, then single-record routes.
	mux.Handle("/sightings/feed", http.HandlerFunc(cfg.Feed.Subscribe))
	mux.Handle("/sightings/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			globalLimit(http.HandlerFunc(cfg.Sightings.Get)).ServeHTTP(w, r)
		case http.MethodPut:
			globalLimit(requireAuth(http.HandlerFunc(cfg.Sightings.Update))).ServeHTTP(w, r)
		case http.MethodDelete:
			globalLimit(requireAuth(http.HandlerFunc(cfg.Sightings.Delete))).ServeHTTP(w, r)
		default:
			writeMethodNotAllowed(w, r)
		}
	}))

	mux.Handle("/auth/login", authLimit(method(http.MethodGet, cfg.Auth.Login)))
	mux.Handle("/auth/callback", authLimit(method(http.MethodGet, cfg.Auth.Callback)))
	mux.Handle("/auth/refresh", authLimit(method(http.MethodPost, cfg.Auth.Refresh)))

	mux.Handle("/uploads/sign", globalLimit(requireAuth(method(http.MethodPost, cfg.Uploads.SignUpload))))

	mux.Handle("/health", method(http.MethodGet, cfg.Health.Health))
	mux.Handle("/ready", method(http.MethodGet, cfg.Health.Ready))

	if cfg.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		writeJSON(w, r.Context(), http.StatusOK, map[string]string{
			"service": "cat-explorer-api",
			"version": "0.1.0",
		})
	})

	var handler http.Handler = mux
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins))(handler)
	if cfg.Metrics != nil {
		handler = middleware.HTTPMetrics(cfg.Metrics)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(cfg.ServiceName)(handler)
	}
	handler = middleware.RequestID(handler)

	return handler
}

// method restricts a handler to one HTTP method.
func method(allowed string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != allowed {
			writeMethodNotAllowed(w, r)
			return
		}
		fn(w, r)
	})
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
}
