package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"nexus/extractor/internal/app"
	"nexus/extractor/internal/config"
	"nexus/extractor/internal/logger"
)

func main() {
	// Structured logger with correlation id propagation
	base := slog.NewJSONHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(logger.NewContextHandler(base)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	deps, err := app.Bootstrap(cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()
	slog.Info("migrations applied, dependencies ready")

	application := app.New(cfg, deps.DB, deps.NSQProducer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Queue intake: extraction requests published on extract.task
	if cfg.EnableTaskConsumer {
		consumer, err := nsq.NewConsumer(config.TopicExtractTask, "extractor", nsq.NewConfig())
		if err != nil {
			slog.Error("failed to create NSQ task consumer", "error", err)
			os.Exit(1)
		}
		consumer.AddHandler(application.TaskConsumer)
		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			slog.Error("failed to connect to NSQLookupd", "error", err)
		} else {
			slog.Info("NSQ task consumer connected", "topic", config.TopicExtractTask)
		}
		defer consumer.Stop()
	}

	if err := application.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
