package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vendorhub/internal/util"
	"vendorhub/pkg/queue"
	"vendorhub/services/notifier/internal/app"
	"vendorhub/services/notifier/internal/config"
	"vendorhub/services/notifier/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var sender app.Sender = app.LogSender{}
	if strings.TrimSpace(cfg.WebhookURL) != "" {
		webhook, err := app.NewWebhookSender(cfg.WebhookURL, cfg.WebhookToken, time.Duration(cfg.WebhookTimeoutSeconds)*time.Second)
		if err != nil {
			log.Fatalf("failed to init webhook sender: %v", err)
		}
		sender = webhook
	} else {
		logger.Warn("webhook url not set, notifications are only logged")
	}

	stream := strings.TrimSpace(cfg.QueueName)
	if stream == "" {
		stream = "vendorhub:notifications"
	}
	q, err := queue.NewRedisQueue(queue.RedisQueueConfig{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		Stream:     stream,
		Group:      cfg.QueueGroup,
		MaxRetries: cfg.QueueMaxRetries,
		RetryDelay: time.Duration(cfg.QueueRetryDelaySeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("failed to init queue: %v", err)
	}
	defer q.Close()

	appCore, err := app.New(app.Config{
		Sender:        sender,
		RatePerSecond: cfg.RatePerSecond,
		RateBurst:     cfg.RateBurst,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{Jobs: q, JobsToken: cfg.JobsToken})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		slog.Info("notifier server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	slog.Info("notifier consuming", "stream", stream, "concurrency", cfg.QueueConcurrency)
	if err := appCore.Run(ctx, q, cfg.QueueConcurrency); err != nil {
		logger.Error("notifier stopped", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}
