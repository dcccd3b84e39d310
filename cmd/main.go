// cmd/main.go is the registration gateway entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	memorylimit "github.com/ulule/limiter/v3/drivers/store/memory"
	redislimit "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/AurelionFutureForge/registration-gateway/internal/audit"
	"github.com/AurelionFutureForge/registration-gateway/internal/backend"
	"github.com/AurelionFutureForge/registration-gateway/internal/config"
	"github.com/AurelionFutureForge/registration-gateway/internal/ctxlog"
	"github.com/AurelionFutureForge/registration-gateway/internal/database"
	"github.com/AurelionFutureForge/registration-gateway/internal/handler"
	"github.com/AurelionFutureForge/registration-gateway/internal/handoff"
	"github.com/AurelionFutureForge/registration-gateway/internal/repository"
	"github.com/AurelionFutureForge/registration-gateway/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = ctxlog.WithLogger(ctx, logger)

	// ── 1. Stores ────────────────────────────────────────────────────────
	var (
		store      handoff.Store
		svcOpts    []service.Option
		limitStore limiter.Store = memorylimit.NewStore()
		closers    []io.Closer
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	switch cfg.HandoffStore {
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.DB, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("connected to postgres", "host", cfg.DB.Host, "db", cfg.DB.DBName)

		handoffs := repository.NewHandoffRepository(pool, cfg.HandoffTTL)
		store = handoffs
		svcOpts = append(svcOpts, service.WithLedger(repository.NewUnconfirmedPaymentRepository(pool)))
		go purgeExpired(ctx, handoffs, logger)

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		closers = append(closers, rdb)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		logger.Info("connected to redis", "addr", cfg.RedisAddr)

		store = handoff.NewRedisStore(rdb, cfg.HandoffTTL)
		if limitStore, err = redislimit.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "regform:limit"}); err != nil {
			return fmt.Errorf("rate limit store: %w", err)
		}

	default:
		logger.Warn("using in-memory hand-off store; payment returns do not survive a restart")
		store = handoff.NewMemoryStore()
	}

	// ── 2. Audit sink ────────────────────────────────────────────────────
	var sink audit.Sink = audit.LogSink{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		ks := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, ks)
		sink = audit.Multi{sink, ks}
		logger.Info("publishing audit records to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	svcOpts = append(svcOpts,
		service.WithAuditSink(sink),
		service.WithPhaseObserver(func(formKey string, p service.Phase) {
			logger.Debug("submission phase", "form", formKey, "phase", p.String())
		}),
	)

	// ── 3. Wire up layers ────────────────────────────────────────────────
	client := backend.New(backend.Options{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout})
	svc := service.NewRegistrationService(client, store, svcOpts...)
	h := handler.NewRegistrationHandler(svc, handler.Options{
		HomeURL:       cfg.HomeURL,
		SecureCookies: cfg.SecureCookies,
	})

	rate, err := limiter.NewRateFromFormatted(cfg.SubmitRateLimit)
	if err != nil {
		return fmt.Errorf("SUBMIT_RATE_LIMIT: %w", err)
	}
	router := handler.NewRouter(h, handler.RouterOptions{
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		SubmitLimit: handler.RateLimit(limitStore, rate),
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.BackendTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "backend", cfg.BackendURL, "handoff_store", cfg.HandoffStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// purgeExpired removes abandoned hand-offs from Postgres every few minutes.
func purgeExpired(ctx context.Context, repo *repository.HandoffRepository, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired handoffs", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired handoffs", "count", n)
			}
		}
	}
}
