package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/persona-coach/internal/app"
	"github.com/dvloznov/persona-coach/internal/config"
	"github.com/dvloznov/persona-coach/internal/gcs"
	"github.com/dvloznov/persona-coach/internal/llm"
	"github.com/dvloznov/persona-coach/internal/logger"
	"github.com/dvloznov/persona-coach/internal/pipeline"
)

func main() {
	dotenvErr := config.LoadDotEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	flag.StringVar(&cfg.VectorStore, "vector-store", cfg.VectorStore, "vector store backend: bigquery or memory")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall deadline")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: index [options] SOURCE...")
		fmt.Fprintln(os.Stderr, "SOURCE is a local path or gs://bucket/object of a .pdf, .txt or .md document.")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logger.NewService("index", cfg.LogLevel)
	if dotenvErr != nil {
		log.Debug().Err(dotenvErr).Msg("No .env file loaded")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Create context with timeout so the CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store, err := app.NewVectorStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open vector store")
	}
	defer store.Close()

	embedder, err := app.NewEmbedder(ctx, cfg, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create embedder")
	}
	defer embedder.Close()

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	indexer := pipeline.NewIndexer(pipeline.Deps{
		Storage:   gcs.NewGCSStorageService(),
		Extractor: gemini,
		Embedder:  embedder,
		Store:     store,
	})

	failed := 0
	total := 0
	for _, source := range flag.Args() {
		log.Info().Str("source", source).Msg("Starting indexing")
		n, err := indexer.IndexDocument(ctx, source)
		if err != nil {
			log.Error().Err(err).Str("source", source).Msg("Indexing failed")
			failed++
			continue
		}
		total += n
		fmt.Printf("Indexed %d chunks from %s\n", n, source)
	}

	if failed > 0 {
		log.Fatal().Int("failed", failed).Int("chunks", total).Msg("Indexing finished with errors")
	}
	fmt.Printf("Indexing completed successfully: %d chunks.\n", total)
}
