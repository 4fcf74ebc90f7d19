package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var database *sql.DB
	if config.Database.Enabled {
		database, err = setupDatabase()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.Close()
	} else {
		log.Info().Msg("database disabled, running memory-only")
	}

	services, err := setupServices(config, database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire services")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if services.Feed != nil {
		go func() {
			if err := services.Feed.Start(ctx); err != nil {
				log.Error().Err(err).Msg("feed consumer exited")
			}
		}()
		defer services.Feed.Stop()
	}

	if services.Relay != nil {
		go func() {
			if err := services.Relay.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event relay exited")
			}
		}()
		defer services.Relay.Stop()
	}

	server := setupServer(config, services)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
