package main

import (
	"context"
	"flag"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/persona-coach/internal/config"
	infraBQ "github.com/dvloznov/persona-coach/internal/infra/bigquery"
	"github.com/dvloznov/persona-coach/internal/logger"
)

func main() {
	dotenvErr := config.LoadDotEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	var (
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "", "Directory of migration files (default: the migrations built into the binary)")
	)
	flag.StringVar(&cfg.ProjectID, "project", cfg.ProjectID, "GCP project ID (or set GOOGLE_CLOUD_PROJECT)")
	flag.StringVar(&cfg.Dataset, "dataset", cfg.Dataset, "BigQuery dataset ID (or set BQ_DATASET)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	flag.Parse()

	log := logger.NewService("migrate", cfg.LogLevel)
	if dotenvErr != nil {
		log.Debug().Err(dotenvErr).Msg("No .env loaded")
	}

	if cfg.ProjectID == "" {
		log.Fatal().Msg("Error: -project flag or GOOGLE_CLOUD_PROJECT is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	tables := infraBQ.Tables{ProjectID: cfg.ProjectID, Dataset: cfg.Dataset}
	log.Info().Str("project", tables.ProjectID).Str("dataset", tables.Dataset).Msg("Connected to BigQuery")

	source := infraBQ.EmbeddedMigrations()
	if *migrationsDir != "" {
		source = os.DirFS(*migrationsDir)
	}

	migrations, err := infraBQ.ReadMigrations(source, tables, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}

	count, err := infraBQ.NewMigrator(client, tables, *appliedBy, log).Apply(ctx, migrations)
	if err != nil {
		log.Fatal().Err(err).Int("applied", count).Msg("Migration failed")
	}

	if count == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
		return
	}
	log.Info().Int("applied", count).Msg("Successfully applied migrations")
}
