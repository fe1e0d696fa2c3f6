package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/persona-coach/internal/config"
	"github.com/dvloznov/persona-coach/internal/gcs"
	"github.com/dvloznov/persona-coach/internal/logger"
	"github.com/dvloznov/persona-coach/internal/scrape"
)

func main() {
	_ = config.LoadDotEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	defaultDir := "data"
	if cfg.Bucket != "" {
		defaultDir = "gs://" + cfg.Bucket + "/kb"
	}

	var (
		rawURL = flag.String("url", "", "Page to scrape (required)")
		dir    = flag.String("dir", defaultDir, "Output directory: local path or gs://bucket/prefix")
	)
	flag.Parse()

	log := logger.NewService("scrape", cfg.LogLevel)

	if *rawURL == "" {
		log.Fatal().Msg("Usage: scrape -url URL [-dir DIR]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	location, err := scrape.New(nil, gcs.NewGCSStorageService()).Scrape(ctx, *rawURL, *dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Scrape failed")
	}

	fmt.Printf("Saved %s to %s\n", *rawURL, location)
}
