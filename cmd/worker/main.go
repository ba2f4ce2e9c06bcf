// Worker deletes expired one-time codes every REAPER_INTERVAL. DATABASE_URL is required.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"secret-vault/backend/internal/config"
	"secret-vault/backend/internal/db"
	"secret-vault/backend/internal/logging"
	otprepo "secret-vault/backend/internal/otp/repository"
	otpservice "secret-vault/backend/internal/otp/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env, "worker")
	logging.SetGlobal(logger)

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("worker: DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("worker: database")
	}
	defer conn.Close()

	reaper := otpservice.NewReaper(otprepo.NewPostgresStore(conn), cfg.ReaperInterval(), logger)
	log.Info().Dur("interval", cfg.ReaperInterval()).Msg("worker: reaping expired codes")
	reaper.Run(ctx)
	log.Info().Msg("worker: stopped")
}
