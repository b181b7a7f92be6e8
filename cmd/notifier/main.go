// Command notifier delivers staff notifications queued by the API through
// RabbitMQ or asynq.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/arnavshah/covers-scheduler-api/pkg/config"
	"github.com/arnavshah/covers-scheduler-api/pkg/logging"
	"github.com/arnavshah/covers-scheduler-api/pkg/notify"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	logger, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("could not build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sender := notify.NewLogSender(logger)

	switch cfg.NotifyBackend {
	case "amqp":
		logger.Info("consuming notifications", zap.String("queue", cfg.NotifyQueue))
		if err := notify.ConsumeAMQP(ctx, cfg.AMQPURL, cfg.NotifyQueue, sender, logger); err != nil {
			logger.Fatal("consumer stopped", zap.Error(err))
		}
	case "asynq":
		srv := asynq.NewServer(
			asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisQueueDB},
			asynq.Config{Concurrency: cfg.NotifyWorkers},
		)
		mux := asynq.NewServeMux()
		mux.HandleFunc(notify.TypeSendSMS, notify.HandleSMSTask(sender))

		if err := srv.Start(mux); err != nil {
			logger.Fatal("asynq server failed", zap.Error(err))
		}
		logger.Info("processing notification tasks", zap.String("redis", cfg.RedisAddr))
		<-ctx.Done()
		srv.Shutdown()
	default:
		logger.Fatal("notifier needs NOTIFY_BACKEND=amqp or asynq", zap.String("backend", cfg.NotifyBackend))
	}
	logger.Info("notifier stopped")
}
