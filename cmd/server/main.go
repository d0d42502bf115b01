package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"anoa.com/tutorhub/internal/bootstrap"
	"anoa.com/tutorhub/internal/config"
	dispatchMQ "anoa.com/tutorhub/internal/modules/dispatch/delivery/mq"
	"anoa.com/tutorhub/internal/server"
	"anoa.com/tutorhub/pkg/database"
	"anoa.com/tutorhub/pkg/logger"
	"anoa.com/tutorhub/pkg/mailer"
	"anoa.com/tutorhub/pkg/mq"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		logg.Fatal("failed to connect database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logg.Fatal("migration failed", zap.Error(err))
	}
	if !cfg.IsProduction() {
		// Outside production the read models are owned locally.
		if err := bootstrap.MigrateReadModels(db); err != nil {
			logg.Fatal("read model migration failed", zap.Error(err))
		}
		if cfg.AdminSeedPassword != "" {
			if err := bootstrap.SeedAdminUser(db, cfg.AdminSeedEmail, cfg.AdminSeedPassword, logg); err != nil {
				logg.Fatal("failed to seed admin user", zap.Error(err))
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := server.Dependencies{
		Config: cfg,
		DB:     db,
		Logger: logg,
		Redis:  connectRedis(ctx, cfg.RedisURL, logg),
		Mailer: newMailer(cfg.SMTP, logg),
	}
	if cfg.MeiliSearchHost != "" {
		host := cfg.MeiliSearchHost
		if !strings.HasPrefix(host, "http") {
			host = "http://" + host + ":7700"
		}
		deps.Meili = meilisearch.New(host, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	} else {
		logg.Warn("MEILISEARCH_HOST not set, inbox search disabled")
	}

	var consumer *mq.Consumer
	if cfg.RabbitMQURL != "" {
		publisher, err := mq.NewPublisher(cfg.RabbitMQURL)
		if err != nil {
			logg.Fatal("failed to init MQ publisher", zap.Error(err))
		}
		defer publisher.Close()
		deps.Publisher = publisher

		consumer, err = mq.NewConsumer(cfg.RabbitMQURL, dispatchMQ.QueueName, dispatchMQ.RoutingKeys(), logg)
		if err != nil {
			logg.Fatal("failed to init MQ consumer", zap.Error(err))
		}
		defer consumer.Close()
	} else {
		logg.Warn("RABBITMQ_URL not set, domain events will only arrive over HTTP")
	}

	srv := server.NewServer(deps)

	if consumer != nil {
		consumer.SetHandler(srv.EventHandler().Handle)
		go func() {
			if err := consumer.StartConsuming(ctx); err != nil {
				logg.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info("server listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.AppEnv))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Error("server shutdown error", zap.Error(err))
	}

	if deps.Redis != nil {
		_ = deps.Redis.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logg.Info("shutdown complete")
}

func connectRedis(ctx context.Context, url string, logg *zap.Logger) *redis.Client {
	if url == "" {
		logg.Warn("REDIS_URL not set, using in-process cache without live feed or rate limiting")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logg.Fatal("invalid REDIS_URL", zap.Error(err))
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logg.Warn("redis unreachable, continuing without it", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

func newMailer(smtp mailer.SMTPConfig, logg *zap.Logger) mailer.Sender {
	if smtp.Host == "" {
		logg.Warn("SMTP_HOST not set, emails are logged instead of sent")
		return mailer.NewLogSender(logg)
	}
	return mailer.NewSMTPSender(smtp)
}
