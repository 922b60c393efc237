// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/arenadesk/arenadesk/internal/booking"
	"github.com/arenadesk/arenadesk/internal/config"
	"github.com/arenadesk/arenadesk/internal/db"
	"github.com/arenadesk/arenadesk/internal/ratelimit"
	"github.com/arenadesk/arenadesk/internal/scheduler"
)

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	engine := booking.New(database, booking.Policy{
		MaxDurationHours:  cfg.Booking.MaxDurationHours,
		LeadTime:          cfg.Booking.LeadTime.Std(),
		CommitRetries:     cfg.Booking.CommitRetries,
		ReferenceAttempts: cfg.Booking.ReferenceAttempts,
		PhoneRegion:       cfg.Booking.PhoneRegion,
		PendingGrace:      cfg.Booking.PendingGrace.Std(),
	})

	limiter := ratelimit.New(nil)
	defer limiter.Close()

	if err := scheduler.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	if _, err := scheduler.RegisterExpiryJob(engine, cfg.Booking.ExpiryInterval.Std()); err != nil {
		log.Fatal().Err(err).Msg("Failed to register expiry job")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop scheduler")
		}
	}()

	server := newServer(cfg, engine, limiter)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Run server
	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.App.ShutdownTimeout > 0 {
		return cfg.App.ShutdownTimeout.Std()
	}
	return 30 * time.Second
}
