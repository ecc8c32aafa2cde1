// Command ingest runs one ingestion batch from a directory of documents
// and prints the batch result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/SanteonNL/fornax/config"
	"github.com/SanteonNL/fornax/loader"
	"github.com/SanteonNL/fornax/pipeline"
	"github.com/SanteonNL/fornax/reader"
)

func main() {
	inputDir := flag.String("input", "", "directory of .json documents to ingest (overrides FORNAX_INPUT_DIR)")
	flag.Parse()

	log := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	dir := *inputDir
	if dir == "" {
		dir = cfg.InputDir
	}
	if dir == "" {
		log.Fatal().Msg("No input directory given; use -input or FORNAX_INPUT_DIR")
	}

	if err := loader.Migrate(cfg.DatabaseDSN); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	db, err := loader.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()

	sources, err := reader.DirectorySources(dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to scan input directory")
	}
	if len(sources) == 0 {
		log.Warn().Str("dir", dir).Msg("No .json files found in input directory")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := loader.NewPostgresStore(db, log)
	pipe := pipeline.NewService(pipeline.SQLStore{PostgresStore: store}, log, cfg.Workers)

	result, runErr := pipe.Run(ctx, sources)

	out, err := json.MarshalIndent(result, "", "  ")
	if err == nil {
		fmt.Println(string(out))
	}

	if runErr != nil {
		os.Exit(1)
	}
}
