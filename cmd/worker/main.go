// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carterperez-dev/entitlement-engine/internal/config"
	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/payment"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
	"github.com/carterperez-dev/entitlement-engine/internal/sweep"
)

const stopTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run every sweep once and exit")
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log).With("component", "worker")
	slog.SetDefault(logger)

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // process exit

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redis.Close() //nolint:errcheck // process exit

	subs := subscription.NewService(subscription.NewRepository(db.DB), logger)
	payments := payment.NewService(payment.Deps{
		Repo:   payment.NewRepository(db.DB),
		Tx:     core.NewTxManager(db.DB),
		Logger: logger,
	})

	jobs := []sweep.Job{
		{
			Name:     "expire_subscriptions",
			Schedule: cfg.Worker.ExpirySchedule,
			Timeout:  2 * time.Minute,
			Run:      subs.ExpireDue,
		},
		{
			Name:     "fail_stale_payments",
			Schedule: cfg.Worker.PendingSchedule,
			Timeout:  2 * time.Minute,
			Run: func(ctx context.Context) (int, error) {
				return payments.FailStale(ctx, cfg.Worker.PendingMaxAge)
			},
		},
	}

	runner := sweep.NewRunner(
		sweep.NewRedisLocker(redis.Locker(), logger),
		cfg.Worker.LockExpiry,
		logger,
	)

	if once {
		for _, job := range jobs {
			if err := runner.Execute(ctx, job); err != nil {
				return err
			}
		}
		return nil
	}

	scheduler, err := runner.Schedule(ctx, jobs...)
	if err != nil {
		return err
	}

	scheduler.Start()
	logger.Info("worker started",
		"expiry_schedule", cfg.Worker.ExpirySchedule,
		"pending_schedule", cfg.Worker.PendingSchedule,
		"pending_max_age", cfg.Worker.PendingMaxAge,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	select {
	case <-scheduler.Stop().Done():
		logger.Info("worker stopped")
	case <-time.After(stopTimeout):
		logger.Warn("worker stop timed out with jobs still running")
	}

	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
