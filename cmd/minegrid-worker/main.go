package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"minegrid/internal/cache"
	"minegrid/internal/config"
	"minegrid/internal/db"
	"minegrid/internal/events"
	"minegrid/internal/game"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// The worker runs the periodic jobs that do not belong in request handling:
// settling expired auctions and keeping the shared leaderboard cache warm.
// The engine finalizes auctions lazily on touch, so the sweep is optional
// and off by default.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	var sharedCache cache.Cache
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("parse redis url", "err", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		sharedCache = cache.NewRedis(client)
		publisher = events.NewRedisPublisher(client, logger)
	}

	gameSvc := game.NewService(pool, logger, publisher)

	sched, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("scheduler init failed", "err", err)
		os.Exit(1)
	}

	if cfg.SweepEnabled {
		_, err = sched.NewJob(
			gocron.DurationJob(cfg.SweepEvery),
			gocron.NewTask(func() {
				settled, err := gameSvc.FinalizeExpiredAuctions(ctx)
				if err != nil {
					logger.Error("auction sweep failed", "err", err)
					return
				}
				if settled > 0 {
					logger.Info("auction sweep", "settled", settled)
				}
			}),
		)
		if err != nil {
			logger.Error("schedule auction sweep", "err", err)
			os.Exit(1)
		}
	}

	if sharedCache != nil {
		_, err = sched.NewJob(
			gocron.DurationJob(cfg.CacheEvery),
			gocron.NewTask(func() {
				rows, err := gameSvc.Leaderboard(ctx, 100)
				if err != nil {
					logger.Error("leaderboard refresh failed", "err", err)
					return
				}
				payload, err := json.Marshal(map[string]any{"leaderboard": rows})
				if err != nil {
					return
				}
				if err := sharedCache.Set(ctx, "minegrid:leaderboard", payload, 0); err != nil {
					logger.Error("leaderboard cache write failed", "err", err)
				}
			}),
		)
		if err != nil {
			logger.Error("schedule leaderboard refresh", "err", err)
			os.Exit(1)
		}
	}

	sched.Start()
	logger.Info("minegrid worker running",
		"sweep_enabled", cfg.SweepEnabled,
		"sweep_every", cfg.SweepEvery.String(),
		"cache_refresh", sharedCache != nil,
	)

	<-ctx.Done()
	if err := sched.Shutdown(); err != nil {
		logger.Error("scheduler shutdown", "err", err)
	}
}
