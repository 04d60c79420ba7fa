package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatrix/internal/ai"
	"github.com/eldtechnologies/chatrix/internal/api"
	"github.com/eldtechnologies/chatrix/internal/api/middleware"
	"github.com/eldtechnologies/chatrix/internal/config"
	"github.com/eldtechnologies/chatrix/internal/handlers"
	"github.com/eldtechnologies/chatrix/internal/ratelimit"
	"github.com/eldtechnologies/chatrix/internal/realtime"
	"github.com/eldtechnologies/chatrix/internal/store"
)

// devJWTSecret signs sessions when JWT_SECRET is unset outside production.
const devJWTSecret = "chatrix-development-secret"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// User store: PostgreSQL when configured, SQLite otherwise
	var users store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgStore.Close()

		logger.Info().Msg("running database migrations...")
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		users = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sqliteStore.Close()
		users = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite user store")
	}

	// Redis backs human conversations, shared rate-limit counters and IP blocks
	var (
		messages store.MessageStore
		counter  ratelimit.Counter
		blocker  *middleware.IPBlocker
	)
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()

		messages = redisStore
		counter = ratelimit.NewRedisCounter(redisStore.Client())
		blocker = middleware.NewIPBlocker(redisStore.Client())
		logger.Info().Msg("connected to Redis")
	} else {
		memory := ratelimit.NewMemoryCounter()
		go memory.Run(ctx, time.Minute)
		counter = memory
		logger.Warn().Msg("REDIS_URL not set: rate limits are per instance and human messaging is disabled")
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = devJWTSecret
		logger.Warn().Msg("JWT_SECRET not set, using development secret")
	}
	if cfg.AIAPIKey == "" {
		logger.Warn().Msg("GROQ_API_KEY not set, AI chat will report misconfiguration")
	}

	gateway := ai.NewGateway(ai.GatewayConfig{
		APIKey:  cfg.AIAPIKey,
		BaseURL: cfg.AIBaseURL,
		Model:   cfg.AIModel,
	})

	hub := realtime.NewHub(logger, cfg.CORSOrigins)
	defer hub.Close()

	limiter := ratelimit.NewTiered(counter, logger, "ratelimit:ai:", ratelimit.AITiers()...)

	// Create router
	router := api.NewRouter(logger, api.Options{
		Handlers: handlers.Deps{
			Users:     users,
			Messages:  messages,
			AI:        gateway,
			Realtime:  hub,
			AITimeout: cfg.AITimeout,
			JWTSecret: secret,
			Secure:    !cfg.IsDevelopment(),
			Logger:    logger,
		},
		AILimiter: middleware.NewRateLimiter(limiter, blocker, logger, middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		}),
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
	})

	// Create server
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Covers the AI provider call plus response write.
		WriteTimeout: cfg.AITimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("model", cfg.AIModel).
			Msg("starting Chatrix server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
