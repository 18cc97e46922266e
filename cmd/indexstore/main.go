package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstore/internal/config"
	"github.com/kailas-cloud/indexstore/internal/db"
	"github.com/kailas-cloud/indexstore/internal/db/bolt"
	"github.com/kailas-cloud/indexstore/internal/db/pebble"
	dbRedis "github.com/kailas-cloud/indexstore/internal/db/redis"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
	logpkg "github.com/kailas-cloud/indexstore/internal/logger"
	"github.com/kailas-cloud/indexstore/internal/metrics"
	"github.com/kailas-cloud/indexstore/internal/storage"
	chiTransport "github.com/kailas-cloud/indexstore/internal/transport/chi"
	adminuc "github.com/kailas-cloud/indexstore/internal/usecase/admin"
	healthuc "github.com/kailas-cloud/indexstore/internal/usecase/health"
	mirroruc "github.com/kailas-cloud/indexstore/internal/usecase/mirror"
	"github.com/kailas-cloud/indexstore/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting indexstore server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("storage_path", cfg.Storage.Path),
		zap.Bool("mirror", cfg.Mirror.Enabled),
	)

	engine, err := openEngine(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to open storage engine", zap.Error(err))
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("Failed to close storage engine", zap.Error(err))
		}
	}()

	// Register metrics explicitly (no init())
	metrics.RegisterStorageMetrics()
	metrics.RegisterHTTPMetrics()
	if pe, ok := engine.(*pebble.Engine); ok {
		prometheus.MustRegister(metrics.NewPebbleCollector(pe.DB()))
	}

	ctx := context.Background()
	if err := engine.Ping(ctx); err != nil {
		logger.Fatal("Storage engine not ready", zap.Error(err))
	}
	logger.Info("Storage engine opened", zap.String("engine", engine.Name()))

	policy := domidx.FailurePolicy{
		MinAttempts: cfg.Index.FailureMinAttempts,
		MaxRate:     cfg.Index.FailureMaxRate,
	}
	store := storage.New(engine, logger).WithMaxErrors(cfg.Index.MaxErrorsPerIndex)

	// Pass nil interface (not typed nil pointer!) if the mirror is disabled.
	var mirrorPinger healthuc.Pinger
	if cfg.Mirror.Enabled {
		mirror, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Mirror.Addrs,
			Username:  cfg.Mirror.Username,
			Password:  cfg.Mirror.Password,
			DB:        cfg.Mirror.DB,
			KeyPrefix: cfg.Mirror.KeyPrefix,
		})
		if err != nil {
			logger.Fatal("Failed to create mirror client", zap.Error(err))
		}
		defer mirror.Close()
		mirror.WithFailurePolicy(policy)

		if err := mirror.WaitForReady(ctx, time.Duration(cfg.Mirror.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Mirror not ready", zap.Error(err))
		}

		mirrorSvc := mirroruc.New(store, mirror, logger)
		if err := mirrorSvc.Resync(ctx); err != nil {
			logger.Warn("Initial mirror resync failed", zap.Error(err))
		}
		store.OnCommit(mirrorSvc.OnCommit)
		mirrorPinger = mirror
		logger.Info("Connected to mirror", zap.Strings("addrs", cfg.Mirror.Addrs))
	}

	adminSvc := adminuc.New(store, store, policy)
	healthSvc := healthuc.New(store, mirrorPinger)

	server := chiTransport.NewServer(adminSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	chiTransport.HandlerWithOptions(server, chiTransport.ChiServerOptions{BaseRouter: r})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openEngine selects the storage engine by driver.
func openEngine(cfg config.StorageConfig, logger *zap.Logger) (db.Engine, error) {
	switch cfg.Driver {
	case config.DriverBolt:
		e, err := bolt.Open(bolt.Config{
			Path:    cfg.Path,
			Sync:    cfg.Sync,
			Timeout: time.Duration(cfg.LockTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.DriverPebble:
		e, err := pebble.Open(pebble.Config{
			Path:     cfg.Path,
			Sync:     cfg.Sync,
			InMemory: cfg.InMemory,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
