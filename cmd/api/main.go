package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kassa/internal/api"
	"kassa/internal/cache"
	"kassa/internal/config"
	"kassa/internal/database"
	"kassa/internal/embed"
	"kassa/internal/handlers"
	"kassa/internal/logger"
	"kassa/internal/messaging"
	"kassa/internal/payment"
	"kassa/internal/repository"
	"kassa/internal/reservation"
	"kassa/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	deps := service.Deps{
		Repo: reservation.NewClient(cfg.Reservation),
		Providers: payment.NewFactory(
			payment.NewGateway(cfg.Payment),
			"http://localhost:"+cfg.Port,
		),
	}

	var attempts *repository.AttemptRepository
	if db, err := database.Connect(cfg.Database); err != nil {
		log.Warn("running without attempt audit", "error", err)
	} else {
		defer db.Close()
		if err := db.RunMigrations(); err != nil {
			logger.Fatal("failed to run migrations", "error", err)
		}
		attempts = repository.NewAttemptRepository(db)
	}

	if sessions, err := cache.NewSessionStore(cfg.Redis); err != nil {
		log.Warn("running without session snapshots", "error", err)
	} else {
		defer sessions.Close()
		deps.Sessions = sessions
	}

	// With an event bus the consumers binary forwards terminal events to
	// embedding hosts; without one they are delivered directly.
	if nats, err := messaging.Connect(cfg.NATS); err != nil {
		log.Warn("running without lifecycle events, delivering embedding callbacks directly", "error", err)
		deps.Embeds = embed.NewNotifier(cfg.Embedding)
	} else {
		defer nats.Close()
		deps.Events = nats
	}

	checkoutSvc := service.NewCheckoutService(deps, service.Config{
		PollInterval:    cfg.PollInterval,
		SessionGrace:    cfg.SessionGrace,
		DefaultLanguage: cfg.DefaultLanguage,
	})
	defer checkoutSvc.Shutdown()

	server := api.NewServer(cfg.GinMode, handlers.New(checkoutSvc, attempts))

	go func() {
		log.Info("starting checkout API", "port", cfg.Port)
		if err := server.Run(cfg.Port); err != nil {
			logger.Fatal("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
}
