package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"readtrack-backend/internal/cache"
	"readtrack-backend/internal/config"
	"readtrack-backend/internal/database"
	"readtrack-backend/internal/handlers"
	"readtrack-backend/internal/logger"
	"readtrack-backend/internal/middleware"
	"readtrack-backend/internal/repository"
	"readtrack-backend/internal/router"
	"readtrack-backend/internal/services"
	"readtrack-backend/internal/tracker"
	"readtrack-backend/internal/websocket"
	"readtrack-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logger.Initialize(cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Msg("🚀 Starting ReadTrack Backend...")

	ctx := context.Background()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.DefaultPoolOptions)
	if err != nil {
		log.Fatal().Err(err).Msg("✗ PostgreSQL connection failed")
	}
	defer pool.Close()
	log.Info().Msg("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("✗ Redis connection failed")
	}
	defer redisClients.Close()
	log.Info().Msg("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("✗ Database migration failed")
	}
	log.Info().Msg("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	sessionRepo := repository.NewSessionRepo(pool)
	profileRepo := repository.NewProfileRepo(pool)

	// ──── Step 5: Initialize Analytics Cache ────
	resultCache, err := cache.New(cache.Config{
		MaxSizeMB: cfg.AnalyticsCacheMaxMB,
		Counters:  cfg.AnalyticsCacheCounters,
		TTL:       cfg.AnalyticsCacheTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("✗ Analytics cache initialization failed")
	}
	defer resultCache.Close()

	// ──── Initialize Services ────
	loc := cfg.Location()
	analyticsService := services.NewAnalyticsService(sessionRepo, profileRepo, resultCache, loc)
	profileAggregator := services.NewProfileAggregator(profileRepo, loc)
	eventPublisher := services.NewEventPublisher(redisClients.Queue)

	// ──── Step 6: Start Progress Flush Workers ────
	flushQueue := worker.NewEnqueuer(redisClients.Queue)
	workerPool := worker.NewPool(redisClients.Queue, sessionRepo, cfg.FlushWorkers)
	workerPool.Start()

	// ──── Step 7: Start Reading Trackers ────
	registry := tracker.NewRegistry(func() *tracker.Tracker {
		return tracker.New(sessionRepo, flushQueue, profileAggregator, eventPublisher, tracker.Options{
			HeartbeatInterval:   cfg.HeartbeatInterval,
			FlushEvery:          cfg.ScrollFlushEvery,
			CompletionThreshold: cfg.CompletionThreshold,
		})
	})
	sweeper := tracker.NewSweeper(registry, tracker.SystemClock, cfg.SessionIdleTimeout, cfg.SweepInterval)
	sweeper.Start()

	// ──── Step 8: Start WebSocket Hub ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, services.ReadingEventsChannel)
	log.Info().Msg("✓ WebSocket hub started")

	// ──── Step 9: Start HTTP Server ────
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go limiter.RunCleanup(cleanupCtx, 5*time.Minute)

	r := router.New(
		jwtAuth,
		limiter,
		handlers.NewHealthHandler(pool, redisClients, resultCache, registry.Len, wsHub.Len),
		handlers.NewReadingHandler(registry),
		handlers.NewAnalyticsHandler(analyticsService, loc),
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)

		sweeper.Stop()
		ended := registry.CloseAll(ctx)
		log.Info().Int("sessions", ended).Msg("open reading sessions finalized")

		workerPool.Stop()
		wsHub.Close()
	}()

	log.Info().Msgf("✓ ReadTrack Backend ready on http://localhost:%s", cfg.Port)
	log.Info().Msgf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Info().Msgf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server error")
	}
	<-shutdownDone
}
