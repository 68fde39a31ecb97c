package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/dev-starline/thecalcify/internal/app"
	"github.com/dev-starline/thecalcify/internal/config"
	"github.com/dev-starline/thecalcify/internal/coordination"
	"github.com/dev-starline/thecalcify/internal/database"
	"github.com/dev-starline/thecalcify/internal/dispatch"
	"github.com/dev-starline/thecalcify/internal/domain"
	"github.com/dev-starline/thecalcify/internal/feed"
	"github.com/dev-starline/thecalcify/internal/hub"
	"github.com/dev-starline/thecalcify/internal/platform/logging"
	"github.com/dev-starline/thecalcify/internal/platform/retry"
	"github.com/dev-starline/thecalcify/internal/platform/version"
	"github.com/dev-starline/thecalcify/internal/queue"
	"github.com/dev-starline/thecalcify/internal/redis"
	"github.com/dev-starline/thecalcify/internal/registry"
	"github.com/dev-starline/thecalcify/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Orchestrators may start us before the cache is routable.
	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			slog.Warn("Redis not reachable yet, retrying", "attempt", attempt, "backoff", wait, "error", err)
		},
	}
	err = retry.DoVoid(ctx, policy, func() error {
		return client.Ping(ctx)
	})
	if err != nil {
		slog.Error("Failed to ping Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// setupDB is optional: without a DATABASE_URL the service runs with
// pass-through display names and empty symbol lists.
func setupDB(cfg *config.Config) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		slog.Info("No database configured, instrument resolution disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return pool
}

func runGracefulShutdown(srv *server.Server, cancelWorkers context.CancelFunc, dispatcher *dispatch.Dispatcher, liveHub *hub.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Stop producing first, then drain deliveries, then drop clients.
		cancelWorkers()
		dispatcher.Stop()
		liveHub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Tag())

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	pool := setupDB(cfg)
	if pool != nil {
		defer pool.Close()
	}

	tickStore := redis.NewTickStore(redisClient)
	userStore := redis.NewUserStore(redisClient, cfg.RedisPrefix)

	var instruments domain.InstrumentResolver
	if pool != nil {
		instruments = database.NewInstrumentRepo(pool)
	}

	resolver := domain.NewGroupResolver(cfg.AppEnv)
	groupRegistry := registry.NewGroupRegistry(resolver)
	directory := registry.NewConnectionDirectory()

	deliveryQueue := queue.New(queue.DefaultCapacity)

	appSvc := app.NewService(tickStore, userStore, instruments, resolver, nil, deliveryQueue, clock)
	liveHub := hub.New(groupRegistry, directory, resolver, appSvc, clock, cfg.MaxWebSocketConnections)
	appSvc.SetPusher(liveHub)

	dispatcher := dispatch.NewDispatcher(deliveryQueue, liveHub, clock, cfg.DispatchGracePeriod)
	ingestor := feed.NewIngestor(redisClient.Underlying(), cfg.FeedChannel, tickStore, deliveryQueue)

	instanceID := uuid.NewString()
	instances := coordination.NewInstanceRegistry(
		redisClient.Underlying(), cfg.RedisPrefix, instanceID,
		cfg.HeartbeatInterval, version.Get().Tag(), clock, liveHub.ConnectionCount,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	go ingestor.Start(workerCtx)
	go appSvc.RunRefreshWorker(workerCtx)
	go instances.Start(workerCtx)

	// The dispatcher terminates through queue closure in Stop, not ctx,
	// so shutdown can still drain pending deliveries.
	go dispatcher.Run(context.Background())

	healthChecks := []server.HealthCheck{
		{Name: "redis", Check: redisClient.Ping},
	}
	if pool != nil {
		healthChecks = append(healthChecks, server.HealthCheck{Name: "database", Check: pool.Ping})
	}

	srv := server.NewServer(cfg, appSvc, liveHub, instances, healthChecks)

	done := runGracefulShutdown(srv, cancelWorkers, dispatcher, liveHub)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
