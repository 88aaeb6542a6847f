package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	stan "github.com/nats-io/stan.go"

	"kassa/internal/config"
	"kassa/internal/consumers"
	"kassa/internal/database"
	"kassa/internal/embed"
	"kassa/internal/logger"
	"kassa/internal/messaging"
	"kassa/internal/models"
	"kassa/internal/repository"
)

const (
	auditQueue = "kassa-audit"
	embedQueue = "kassa-embed"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("failed to run migrations", "error", err)
	}

	nats, err := messaging.Connect(cfg.NATS)
	if err != nil {
		logger.Fatal("failed to connect to NATS", "error", err)
	}
	defer nats.Close()

	outcomes := consumers.NewPaymentOutcomes(repository.NewAttemptRepository(db))
	lifecycle := consumers.NewCheckoutEvents(repository.NewEventRepository(db))
	forwarder := consumers.NewEmbedForwarder(embed.NewNotifier(cfg.Embedding))

	var subs []stan.Subscription
	subscribe := func(subject, queue string, handler func(data []byte) error) {
		sub, err := nats.QueueSubscribe(subject, queue, handler)
		if err != nil {
			logger.Fatal("failed to subscribe", "subject", subject, "error", err)
		}
		subs = append(subs, sub)
		logger.Get().Info("subscribed", "subject", subject, "queue", queue)
	}

	subscribe(models.EventPaymentOutcome, auditQueue, outcomes.Handle)
	for _, subject := range []string{
		models.EventCheckoutConfirmed,
		models.EventCheckoutCancelled,
		models.EventCheckoutExpired,
		models.EventCheckoutFailed,
	} {
		subscribe(subject, auditQueue, lifecycle.Handler(subject))
		subscribe(subject, embedQueue, forwarder.Handler(subject))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("shutting down consumers")
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			logger.Get().Error("failed to close subscription", "error", err)
		}
	}
}
