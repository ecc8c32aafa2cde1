package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/SanteonNL/fornax/api"
	"github.com/SanteonNL/fornax/config"
	"github.com/SanteonNL/fornax/loader"
	"github.com/SanteonNL/fornax/pipeline"
	"github.com/SanteonNL/fornax/remote"
)

func main() {
	log := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).
		With().Timestamp().Logger()
	log.Info().Msg("Starting fornax")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := loader.Migrate(cfg.DatabaseDSN); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	db, err := loader.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()

	store := loader.NewPostgresStore(db, log)
	pipe := pipeline.NewService(pipeline.SQLStore{PostgresStore: store}, log, cfg.Workers)

	var remoteClient *remote.Client
	if cfg.RemoteFHIRBaseURL != "" {
		remoteClient = remote.NewClient(cfg.RemoteFHIRBaseURL, cfg.RemoteFetchCount, log)
		log.Info().
			Str("remote_fhir_url", cfg.RemoteFHIRBaseURL).
			Int("fetch_count", cfg.RemoteFetchCount).
			Msg("Remote bundle pulling enabled")
	}

	router := api.NewRouter(pipe, remoteClient, log)
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router.SetupRoutes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Listening for ingestion requests")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
}
