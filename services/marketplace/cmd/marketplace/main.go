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

	"github.com/redis/go-redis/v9"

	"vendorhub/internal/util"
	"vendorhub/pkg/events"
	"vendorhub/pkg/queue"
	"vendorhub/pkg/storage"
	"vendorhub/pkg/store"
	"vendorhub/services/marketplace/internal/app"
	"vendorhub/services/marketplace/internal/config"
	"vendorhub/services/marketplace/internal/server"
)

const defaultNotificationStream = "vendorhub:notifications"

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	connMaxLifetime := mustDuration("dbConnMaxLifetime", cfg.DBConnMaxLifetime)
	queryTimeout := mustDuration("dbQueryTimeout", cfg.DBQueryTimeout)
	jwtLeeway := mustDuration("jwtLeeway", cfg.JWTLeeway)
	sessionTTL := mustDuration("sessionTTL", cfg.SessionTTL)
	photoURLExpiry := mustDuration("photoURLExpiry", cfg.PhotoURLExpiry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer redisClient.Close()

	var objects storage.ObjectStore
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioStore, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.MinioRegion,
		})
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		objects = minioStore
	} else {
		logger.Warn("minio endpoint not set, photos are kept in memory")
	}

	var publisher events.Publisher = events.LogPublisher{}
	if strings.TrimSpace(cfg.AMQPURL) != "" {
		amqpPublisher, err := events.NewAMQPPublisher(events.AMQPConfig{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange})
		if err != nil {
			log.Fatalf("failed to init event publisher: %v", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	stream := strings.TrimSpace(cfg.NotificationStream)
	if stream == "" {
		stream = defaultNotificationStream
	}
	notifications, err := queue.NewRedisQueueWithClient(redisClient, queue.RedisQueueConfig{Stream: stream})
	if err != nil {
		log.Fatalf("failed to init notification queue: %v", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		StoreOptions: []store.GormStoreOption{
			store.WithPool(cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, connMaxLifetime),
			store.WithQueryTimeout(queryTimeout),
		},
		Redis:          redisClient,
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
		JWTAudience:    cfg.JWTAudience,
		JWTLeeway:      jwtLeeway,
		SessionTTL:     sessionTTL,
		PhotoURLExpiry: photoURLExpiry,
		MaxPhotoBytes:  cfg.MaxPhotoBytes,
		CampaignBatch:  cfg.CampaignBatchSize,
		Objects:        objects,
		Notifications:  notifications,
		Events:         publisher,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer func() {
		if err := appCore.Close(); err != nil {
			logger.Error("store close error", "err", err)
		}
	}()

	httpServer, err := server.New(server.Config{
		App:                      appCore,
		Redis:                    redisClient,
		CORSOrigins:              cfg.CORSOrigins,
		TrustedProxyCIDRs:        cfg.TrustedProxyCIDRs,
		SignupRateLimitPerMinute: cfg.SignupRateLimitPerMinute,
		LoginRateLimitPerMinute:  cfg.LoginRateLimitPerMinute,
		ReviewRateLimitPerMinute: cfg.ReviewRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	}()

	slog.Info("marketplace server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func mustDuration(field, raw string) time.Duration {
	d, err := config.ParseDuration(field, raw)
	if err != nil {
		log.Fatalf("failed to parse %s: %v", field, err)
	}
	return d
}
