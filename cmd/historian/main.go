// cmd/historian/main.go pops game actions from the Redis queue and persists them to Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/zionscheck/internal/cache"
	"github.com/jason-s-yu/zionscheck/internal/config"
	"github.com/jason-s-yu/zionscheck/internal/database"
	"github.com/jason-s-yu/zionscheck/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.PostgresURL())
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatalf("database: %v", err)
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	svc := historian.NewService(
		historian.NewRedisSource(rdb, cfg.HistorianQueue),
		database.NewActionStore(pool),
		historian.Options{
			BatchSize:         cfg.HistorianBatchSize,
			FlushInterval:     cfg.HistorianFlushInterval(),
			InactivityTimeout: cfg.InactivityTimeout,
			Logger:            logger,
		},
	)
	svc.Run(ctx)
	logger.Info("historian shutdown complete")
}
