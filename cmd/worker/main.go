// Package main runs the reminder dispatch worker: a cron-driven poller that
// hands due reminders to the delivery queue, and a consumer that drains it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clientdesk/backend/config"
	"github.com/clientdesk/backend/internal/reminders"
	"github.com/clientdesk/backend/internal/worker"
	"github.com/clientdesk/backend/pkg/database"
	"github.com/clientdesk/backend/pkg/queue"
	"github.com/clientdesk/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	reminderRepo := reminders.NewRepository()
	jobQueue := queue.NewQueue(rdb.Client, logger)

	dispatcher := worker.NewDispatcher(pool, reminderRepo, jobQueue, logger)
	consumer := worker.NewConsumer(jobQueue, &worker.LogNotifier{Logger: logger}, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := dispatcher.Run(workerCtx, cfg.Schedule.DispatchCron); err != nil {
			logger.Fatal("dispatcher", zap.Error(err))
		}
	}()
	go consumer.Run(workerCtx)
	logger.Info("worker started", zap.String("dispatch_cron", cfg.Schedule.DispatchCron))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
