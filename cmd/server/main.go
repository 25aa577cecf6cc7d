// Package main runs the univoice dapp backend API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/yangsenessa/univoice-dapp/internal/app"
	"github.com/yangsenessa/univoice-dapp/internal/config"
	"github.com/yangsenessa/univoice-dapp/internal/httpapi"
	"github.com/yangsenessa/univoice-dapp/internal/metrics"
	"github.com/yangsenessa/univoice-dapp/internal/middleware"
	"github.com/yangsenessa/univoice-dapp/internal/storage"
	"github.com/yangsenessa/univoice-dapp/internal/storage/arena"
	"github.com/yangsenessa/univoice-dapp/internal/storage/arenastore"
	"github.com/yangsenessa/univoice-dapp/internal/storage/memory"
	"github.com/yangsenessa/univoice-dapp/internal/storage/postgres"
	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging).WithField("service", "univoice")

	if err := run(cfg, log); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	opts := app.Options{
		ChainTimeout:   cfg.Chain.Timeout,
		CheckpointSpec: cfg.Storage.CheckpointSpec,
	}

	var stores app.Stores
	switch cfg.Storage.Driver {
	case config.DriverArena:
		ar, err := arena.Open(cfg.Storage.ArenaDir)
		if err != nil {
			return fmt.Errorf("open arena %s: %w", cfg.Storage.ArenaDir, err)
		}
		defer ar.Close()

		store, err := arenastore.Open(ar)
		if err != nil {
			return fmt.Errorf("replay arena: %w", err)
		}
		if n := store.DegradedVoiceAssets(); n > 0 {
			log.WithField("count", n).Warn("voice assets failed to decode and were skipped")
		}
		stores = storesFromSingle(store)
		opts.Checkpointer = store
	case config.DriverPostgres:
		store, err := postgres.Connect(cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		stores = storesFromSingle(store)
	case config.DriverMemory:
		store := memory.New()
		stores = storesFromSingle(store)
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Redis.Addr != "" {
		cache := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer cache.Close()
		opts.Cache = cache
	}

	m := metrics.New()
	opts.Metrics = m

	application, err := app.New(stores, opts, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	auth := middleware.NewAuth([]byte(cfg.Auth.Secret), log)
	handler := httpapi.New(httpapi.Services{
		Info:     application.Info,
		Profiles: application.Profiles,
		Rewards:  application.Rewards,
		Tasks:    application.Tasks,
		Registry: application.Registry,
		Licenses: application.Licenses,
		Voice:    application.Voice,
	}, auth, log)

	router := mux.NewRouter()
	router.Use(middleware.NewTracing(log).Handler)
	router.Use(middleware.NewCORS(cfg.CORS).Handler)
	router.Use(middleware.Metrics(m))
	router.Use(middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log).Handler)

	handler.Register(router)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("application stop")
	}

	log.Info("stopped")
	return nil
}

// combinedStore is satisfied by the arena, postgres and memory stores,
// each of which implements every per-domain store interface.
type combinedStore interface {
	storage.InfoStore
	storage.ProfileStore
	storage.RewardStore
	storage.TaskStore
	storage.RegistryStore
	storage.VoiceStore
	storage.LicenseStore
}

// storesFromSingle fans a combined store out to the per-domain slots.
func storesFromSingle(s combinedStore) app.Stores {
	return app.Stores{
		Info:     s,
		Profiles: s,
		Rewards:  s,
		Tasks:    s,
		Registry: s,
		Voice:    s,
		Licenses: s,
	}
}
