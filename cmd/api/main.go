package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/persona-coach/internal/api/handlers"
	"github.com/dvloznov/persona-coach/internal/api/middleware"
	"github.com/dvloznov/persona-coach/internal/app"
	"github.com/dvloznov/persona-coach/internal/coach"
	"github.com/dvloznov/persona-coach/internal/config"
	"github.com/dvloznov/persona-coach/internal/gcs"
	infraBQ "github.com/dvloznov/persona-coach/internal/infra/bigquery"
	"github.com/dvloznov/persona-coach/internal/jobs"
	"github.com/dvloznov/persona-coach/internal/jobs/inmemory"
	"github.com/dvloznov/persona-coach/internal/llm"
	"github.com/dvloznov/persona-coach/internal/logger"
	"github.com/dvloznov/persona-coach/internal/metrics"
	"github.com/dvloznov/persona-coach/internal/persona"
	"github.com/dvloznov/persona-coach/internal/pipeline"
	"github.com/dvloznov/persona-coach/internal/rag"
	"github.com/dvloznov/persona-coach/internal/scrape"
)

var errIndexingDisabled = errors.New("indexing is disabled: embedder or Gemini client unavailable")

func main() {
	dotenvErr := config.LoadDotEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		fallback := logger.New()
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	log := logger.NewService("api", cfg.LogLevel)
	if dotenvErr != nil {
		log.Warn().Err(dotenvErr).Msg("No .env file loaded")
	}

	ctx := context.Background()
	m := metrics.New("api")
	storage := gcs.NewGCSStorageService()

	// Persona model
	model, err := persona.LoadModel(ctx, storage, cfg.PersonaModelURI)
	if err != nil {
		log.Fatal().Err(err).Str("model", cfg.PersonaModelURI).Msg("Failed to load persona model")
	}
	predictor := persona.NewPredictorFromModel(model)
	log.Info().Str("model", cfg.PersonaModelURI).Msg("Persona model loaded")

	var recorder handlers.PredictionRecorder
	if cfg.ProjectID != "" {
		predictionLog, err := infraBQ.NewPredictionLog(ctx, app.Tables(cfg))
		if err != nil {
			log.Warn().Err(err).Msg("Prediction log disabled")
		} else {
			defer predictionLog.Close()
			recorder = predictionLog
		}
	}

	// Advice
	adviceCompleter, err := app.NewAdviceCompleter(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create advice provider")
	}
	advisor := coach.New(adviceCompleter, log, m.ObserveLLM)

	// Knowledge base: chat and indexing share the embedder and the store.
	store, err := app.NewVectorStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open vector store")
	}
	defer store.Close()

	var chat handlers.ChatService
	var indexer *pipeline.Indexer
	embedder, err := app.NewEmbedder(ctx, cfg, m, log)
	gemini, gerr := llm.NewGeminiClient(ctx, cfg.GeminiModel)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Embedder unavailable, chat and indexing disabled")
	case gerr != nil:
		log.Warn().Err(gerr).Msg("Gemini unavailable, chat and indexing disabled")
	default:
		defer embedder.Close()
		retriever := rag.NewRetriever(embedder, store, cfg.RetrieverK)
		chat = rag.NewChatService(retriever, app.Observe(gemini, m), log)
		indexer = pipeline.NewIndexer(pipeline.Deps{
			Storage:   storage,
			Extractor: gemini,
			Embedder:  embedder,
			Store:     store,
			Counter:   func(n int) { m.ChunksIndexed.Add(float64(n)) },
		})
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.IndexDocumentJob) error {
		if indexer == nil {
			m.IndexJobResults.WithLabelValues("error").Inc()
			return errIndexingDisabled
		}
		err := indexer.HandleJob(logger.WithContext(ctx, log), job)
		if err != nil {
			m.IndexJobResults.WithLabelValues("error").Inc()
			return err
		}
		m.IndexJobResults.WithLabelValues("ok").Inc()
		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	scrapeDir := "data"
	if cfg.Bucket != "" {
		scrapeDir = "gs://" + cfg.Bucket + "/kb"
	}

	// Initialize handlers
	personaHandler := handlers.NewPersonaHandler(predictor, recorder, m, cfg.MaxUploadBytes, log)
	adviceHandler := handlers.NewAdviceHandler(advisor, log)
	chatHandler := handlers.NewChatHandler(chat, log)
	indexHandler := handlers.NewIndexHandler(jobQueue, scrape.New(nil, storage), scrapeDir, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/predict_csv", middleware.Method(personaHandler.PredictCSV, http.MethodPost))
	mux.HandleFunc("/generate_advice", middleware.Method(adviceHandler.GenerateAdvice, http.MethodPost))
	mux.HandleFunc("/chat", middleware.Method(chatHandler.Chat, http.MethodPost))
	mux.HandleFunc("/api/index", middleware.Method(indexHandler.EnqueueIndexing, http.MethodPost))
	mux.HandleFunc("/api/scrape", middleware.Method(indexHandler.ScrapePage, http.MethodPost))
	mux.HandleFunc("/api/jobs", middleware.Method(jobsHandler.ListJobs, http.MethodGet))
	mux.HandleFunc("/api/jobs/", middleware.Method(func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	}, http.MethodGet))
	mux.HandleFunc("/health", middleware.Method(handlers.Health, http.MethodGet))
	mux.Handle("/metrics", m.Handler())

	// Apply middleware
	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.Metrics(m),
		middleware.CORS,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
