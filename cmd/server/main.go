// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/zionscheck/internal/auth"
	"github.com/jason-s-yu/zionscheck/internal/cache"
	"github.com/jason-s-yu/zionscheck/internal/config"
	"github.com/jason-s-yu/zionscheck/internal/database"
	"github.com/jason-s-yu/zionscheck/internal/game"
	"github.com/jason-s-yu/zionscheck/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	ttl, err := auth.ParseTokenExpireTime(cfg.TokenExpireTime)
	if err != nil {
		logger.Fatalf("TOKEN_EXPIRE_TIME: %v", err)
	}
	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		err = auth.InitFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, ttl)
	} else {
		err = auth.Init(ttl)
	}
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules := game.DefaultHouseRules()
	rules.MaxPlayers = cfg.MaxPlayers
	rules.TurnTimerSec = cfg.TurnTimerSec

	hub := handlers.NewHub(logger)
	opts := game.RegistryOptions{Rules: rules, Logger: logger, Broadcaster: hub}

	if !cfg.DisablePersistence {
		pool, err := database.ConnectDB(ctx, cfg.PostgresURL())
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.Fatalf("database: %v", err)
		}
		opts.Store = database.NewSnapshotStore(pool)
		opts.Actions = database.NewActionStore(pool)
		logger.Info("connected to database")
	}
	if !cfg.DisableActionLogger {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		opts.Publisher = cache.NewPublisher(rdb, cfg.HistorianQueue)
		logger.WithField("queue", cfg.HistorianQueue).Info("publishing game actions")
	}

	registry := game.NewSessionRegistry(opts)
	go registry.RunJanitor(ctx, cfg.JanitorInterval, cfg.SessionIdleTimeout)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.NewGameServer(registry, hub, logger).Routes(),
	}
	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("saving final snapshots")
	}
}
