// Package main is the entry point for the Cat Explorer API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/oryza-labs/cat-explorer/internal/api"
	"github.com/oryza-labs/cat-explorer/internal/audit"
	"github.com/oryza-labs/cat-explorer/internal/auth"
	"github.com/oryza-labs/cat-explorer/internal/config"
	"github.com/oryza-labs/cat-explorer/internal/feed"
	"github.com/oryza-labs/cat-explorer/internal/health"
	"github.com/oryza-labs/cat-explorer/internal/middleware"
	"github.com/oryza-labs/cat-explorer/internal/sighting"
	"github.com/oryza-labs/cat-explorer/internal/tracing"
	"github.com/oryza-labs/cat-explorer/internal/upload"
)

const serviceName = "cat-explorer-api"

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Cat Explorer API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	logger.Info("configuration loaded")
	for key, val := range cfg.LogSummary() {
		logger.Debug("config", key, val)
	}

	// Tracing.
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.OTLPProtocol,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TraceSampleRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Database.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		logger.Warn("database not reachable at startup", "error", err)
	}
	cancel()

	// Redis is optional: without it the list cache is skipped and rate
	// limits are per-replica.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	// Metrics.
	metrics := middleware.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	// Sighting store, optionally wrapped with the Redis list cache.
	var repo sighting.Repository = sighting.NewPostgresRepository(db, logger)
	if redisClient != nil {
		repo = sighting.NewCachedRepository(repo, redisClient, sighting.DefaultCacheTTL, logger)
	}

	// Auth.
	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	verifier := auth.NewGoogleVerifier(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	adminChecker := auth.NewAdminChecker(cfg.AdminEmails)

	// Uploads are optional; without R2 credentials the endpoint is not
	// registered and clients embed photos as data URLs.
	var uploadHandlers *api.UploadHandlers
	if cfg.UploadConfigured() {
		uploadService, err := upload.NewService(upload.ServiceConfig{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			MaxSizeMB:       cfg.R2MaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to initialize upload service", "error", err)
			os.Exit(1)
		}
		uploadHandlers = api.NewUploadHandlers(uploadService)
	} else {
		logger.Info("photo uploads disabled: R2 not configured")
		uploadHandlers = api.NewUploadHandlers(nil)
	}

	// Rate limits: shared across replicas when Redis is available.
	var rateLimitStore middleware.RateLimitStore
	if redisClient != nil {
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient, logger, metrics)
	} else {
		store := middleware.NewInMemoryRateLimitStore()
		rateLimitStore = store
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				store.Cleanup()
			}
		}()
	}

	// Health checkers.
	healthConfig := api.HealthHandlersConfig{DBChecker: health.NewDBChecker(db)}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}

	broadcaster := feed.NewBroadcaster(logger)
	trail := audit.NewTrail(audit.NewPostgresRepository(db), logger)

	handler := api.NewRouter(logger, api.RouterConfig{
		Sightings:      api.NewSightingHandlers(repo, adminChecker, broadcaster, metrics, trail),
		Auth:           api.NewAuthHandlers(verifier, jwtService, cfg.Env == "production"),
		Uploads:        uploadHandlers,
		Health:         api.NewHealthHandlers(healthConfig),
		Feed:           api.NewFeedHandlers(broadcaster, cfg.AllowedOrigins),
		TokenValidator: jwtService,
		RateLimitStore: rateLimitStore,
		Metrics:        metrics,
		Registry:       registry,
		AllowedOrigins: cfg.AllowedOrigins,
		TracingEnabled: cfg.TracingEnabled,
		ServiceName:    serviceName,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
