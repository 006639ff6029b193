// Package config provides configuration loading and validation for the
// API server. It uses koanf to merge environment variables with optional
// file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (optional: list cache and distributed rate limits)
	RedisURL string `koanf:"redis_url"`

	// JWT authentication. PreviousSecret enables zero-downtime rotation.
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Google OAuth
	GoogleClientID     string `koanf:"google_client_id"`
	GoogleClientSecret string `koanf:"google_client_secret"`
	GoogleRedirectURL  string `koanf:"google_redirect_url"`

	// AdminEmails designate administrator accounts. Comma-separated in
	// the environment variable.
	AdminEmails []string `koanf:"admin_emails"`

	// AllowedOrigins for CORS and the WebSocket feed.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// R2 (Cloudflare Object Storage, optional)
	R2BucketName      string `koanf:"r2_bucket_name"`
	R2AccessKeyID     string `koanf:"r2_access_key_id"`
	R2SecretAccessKey string `koanf:"r2_secret_access_key"`
	R2Endpoint        string `koanf:"r2_endpoint"`
	R2MaxUploadSizeMB int    `koanf:"r2_max_upload_size_mb"`

	// Tracing
	TracingEnabled  bool    `koanf:"tracing_enabled"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	OTLPProtocol    string  `koanf:"otlp_protocol"` // otlp-grpc or otlp-http
	TraceSampleRate float64 `koanf:"trace_sample_rate"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL        = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret          = errors.New("JWT_SECRET is required")
	ErrMissingGoogleClientID     = errors.New("GOOGLE_CLIENT_ID is required")
	ErrMissingGoogleClientSecret = errors.New("GOOGLE_CLIENT_SECRET is required")
	ErrMissingGoogleRedirectURL  = errors.New("GOOGLE_REDIRECT_URL is required")
	ErrMissingR2BucketName       = errors.New("R2_BUCKET_NAME is required")
	ErrMissingR2AccessKeyID      = errors.New("R2_ACCESS_KEY_ID is required")
	ErrMissingR2SecretAccessKey  = errors.New("R2_SECRET_ACCESS_KEY is required")
	ErrMissingR2Endpoint         = errors.New("R2_ENDPOINT is required")
	ErrInvalidPort               = errors.New("PORT must be a valid integer")
	ErrInvalidUploadSize         = errors.New("R2_MAX_UPLOAD_SIZE_MB must be a valid integer")
	ErrInvalidSampleRate         = errors.New("TRACE_SAMPLE_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultR2MaxUploadSizeMB = 10
	DefaultOTLPProtocol      = "otlp-grpc"
	DefaultTraceSampleRate   = 0.1
)

// Load reads configuration from environment variables and an optional
// YAML file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if
// valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"CATEXP_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	maxUploadSize, uploadSizeErr := getEnvIntOrDefault("R2_MAX_UPLOAD_SIZE_MB", k.Int("r2_max_upload_size_mb"), DefaultR2MaxUploadSizeMB, ErrInvalidUploadSize)
	if uploadSizeErr != nil {
		loadErrs = append(loadErrs, uploadSizeErr)
	}

	sampleRate, sampleErr := getEnvFloatOrDefault("CATEXP_TRACE_SAMPLE_RATE", k.Float64("trace_sample_rate"), DefaultTraceSampleRate)
	if sampleErr != nil {
		loadErrs = append(loadErrs, sampleErr)
	}

	tracingEnabled := false
	if k.Exists("tracing_enabled") {
		tracingEnabled = k.Bool("tracing_enabled")
	}
	if val := os.Getenv("CATEXP_TRACING_ENABLED"); val != "" {
		tracingEnabled = parseBool(val, tracingEnabled)
	}

	cfg := &Config{
		Port:               port,
		Env:                getEnvOrDefaultMulti([]string{"CATEXP_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:        getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:           getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:          getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:  getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		GoogleClientID:     getEnvOrKoanf("GOOGLE_CLIENT_ID", k, "google_client_id"),
		GoogleClientSecret: getEnvOrKoanf("GOOGLE_CLIENT_SECRET", k, "google_client_secret"),
		GoogleRedirectURL:  getEnvOrKoanf("GOOGLE_REDIRECT_URL", k, "google_redirect_url"),
		AdminEmails:        getEnvListOrKoanf("CATEXP_ADMIN_EMAILS", k, "admin_emails"),
		AllowedOrigins:     getEnvListOrKoanf("CATEXP_ALLOWED_ORIGINS", k, "allowed_origins"),
		R2BucketName:       getEnvOrKoanf("R2_BUCKET_NAME", k, "r2_bucket_name"),
		R2AccessKeyID:      getEnvOrKoanf("R2_ACCESS_KEY_ID", k, "r2_access_key_id"),
		R2SecretAccessKey:  getEnvOrKoanf("R2_SECRET_ACCESS_KEY", k, "r2_secret_access_key"),
		R2Endpoint:         getEnvOrKoanf("R2_ENDPOINT", k, "r2_endpoint"),
		R2MaxUploadSizeMB:  maxUploadSize,
		TracingEnabled:     tracingEnabled,
		OTLPEndpoint:       getEnvOrDefault("CATEXP_OTLP_ENDPOINT", k.String("otlp_endpoint"), ""),
		OTLPProtocol:       getEnvOrDefault("CATEXP_OTLP_PROTOCOL", k.String("otlp_protocol"), DefaultOTLPProtocol),
		TraceSampleRate:    sampleRate,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set,
// otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvListOrKoanf parses a comma-separated environment variable,
// falling back to a YAML list.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	raw := os.Getenv(envKey)
	var parts []string
	if raw != "" {
		parts = strings.Split(raw, ",")
	} else {
		parts = k.Strings(koanfKey)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in
// order. Returns the first non-empty value found, otherwise the koanf
// value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set,
// otherwise the koanf value, or default. Returns the key's sentinel
// error if the environment variable is set but cannot be parsed.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int, invalid error) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s=%q: %w", envKey, val, invalid)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in
// order.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if
// set, otherwise the koanf value, or default.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// parseBool interprets common truthy/falsy strings, keeping the
// fallback for anything else.
func parseBool(val string, fallback bool) bool {
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.GoogleClientID == "" {
		errs = append(errs, ErrMissingGoogleClientID)
	}
	if c.GoogleClientSecret == "" {
		errs = append(errs, ErrMissingGoogleClientSecret)
	}
	if c.GoogleRedirectURL == "" {
		errs = append(errs, ErrMissingGoogleRedirectURL)
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}

	// R2 configuration is optional. Only validate fields if any R2
	// value is set; without it embedded data URLs are the only photo
	// path.
	if c.R2BucketName != "" || c.R2AccessKeyID != "" || c.R2SecretAccessKey != "" || c.R2Endpoint != "" {
		if c.R2BucketName == "" {
			errs = append(errs, ErrMissingR2BucketName)
		}
		if c.R2AccessKeyID == "" {
			errs = append(errs, ErrMissingR2AccessKeyID)
		}
		if c.R2SecretAccessKey == "" {
			errs = append(errs, ErrMissingR2SecretAccessKey)
		}
		if c.R2Endpoint == "" {
			errs = append(errs, ErrMissingR2Endpoint)
		}
	}

	return errs
}

// UploadConfigured reports whether the R2 upload path is usable.
func (c *Config) UploadConfigured() bool {
	return c.R2BucketName != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2Endpoint != ""
}

// LogSummary returns a summary of the configuration suitable for
// logging. All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"redis_url":             maskDatabaseURL(c.RedisURL),
		"jwt_secret":            maskSecret(c.JWTSecret),
		"jwt_previous_secret":   maskSecret(c.JWTPreviousSecret),
		"google_client_id":      c.GoogleClientID,
		"google_client_secret":  maskSecret(c.GoogleClientSecret),
		"google_redirect_url":   c.GoogleRedirectURL,
		"admin_emails":          fmt.Sprintf("%d configured", len(c.AdminEmails)),
		"allowed_origins":       strings.Join(c.AllowedOrigins, ","),
		"r2_bucket_name":        c.R2BucketName,
		"r2_access_key_id":      maskSecret(c.R2AccessKeyID),
		"r2_secret_access_key":  maskSecret(c.R2SecretAccessKey),
		"r2_endpoint":           c.R2Endpoint,
		"r2_max_upload_size_mb": fmt.Sprintf("%d", c.R2MaxUploadSizeMB),
		"tracing_enabled":       fmt.Sprintf("%t", c.TracingEnabled),
		"otlp_endpoint":         c.OTLPEndpoint,
		"otlp_protocol":         c.OTLPProtocol,
		"trace_sample_rate":     fmt.Sprintf("%g", c.TraceSampleRate),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters.
// Secrets shorter than 8 characters are fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL. Supports
// postgres://, postgresql://, and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
