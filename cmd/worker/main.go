package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saxon-wu/living/config"
	"github.com/saxon-wu/living/internal/events"
	"github.com/saxon-wu/living/internal/jobs"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/media"
	"github.com/saxon-wu/living/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.IsDevelopment())

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName: cfg.OTelServiceName + "-worker",
		Endpoint:    cfg.OTelEndpoint,
		Environment: cfg.Environment,
	})
	if err != nil {
		logging.Logger().Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logging.Logger().Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	store := media.NewStore(cfg.UploadDir, cfg.CacheDir, media.NewProcessor(cfg.ImageWorkers))

	server := jobs.NewServer(cfg.RedisAddr(), 10, store)
	go func() {
		if err := server.Start(); err != nil {
			logging.Logger().Fatal().Err(err).Msg("failed to start worker")
		}
	}()

	sweeper := jobs.NewSweeper(cfg.CacheDir, cfg.VariantMaxAge)
	if err := sweeper.Register("@hourly"); err != nil {
		logging.Logger().Fatal().Err(err).Msg("failed to schedule cache sweep")
	}
	sweeper.Start()

	if cfg.NatsURL != "" {
		subscriber, err := events.NewNATSPublisher(cfg.NatsURL)
		if err != nil {
			logging.Logger().Warn().Err(err).Msg("nats unavailable, not following domain events")
		} else {
			defer subscriber.Close()
			log := logging.Component("events")
			if _, err := events.Subscribe(subscriber.Conn(), func(e events.Event) {
				log.Info().
					Str("subject", e.Subject).
					Str("actor", e.ActorUUID).
					Str("target", e.TargetUUID).
					Bool("active", e.Active).
					Msg("domain event")
			}); err != nil {
				logging.Logger().Warn().Err(err).Msg("failed to subscribe to domain events")
			}
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger().Info().Msg("shutting down worker")
	sweeper.Stop()
	server.Shutdown()
}
