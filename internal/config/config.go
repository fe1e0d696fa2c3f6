// Package config collects process settings from .env, the environment and flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Advice providers.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// Vector store backends.
const (
	StoreBigQuery = "bigquery"
	StoreMemory   = "memory"
)

// Config holds every setting shared by the binaries.
type Config struct {
	Port     string
	LogLevel string

	PersonaModelURI string
	MaxUploadBytes  int64

	ProjectID string
	Dataset   string
	Bucket    string

	GeminiModel         string
	EmbeddingModel      string
	EmbeddingDimensions int

	AdviceProvider string
	GroqAPIKey     string
	GroqModel      string

	VectorStore string
	RetrieverK  int
	RedisAddr   string
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Port:                "8080",
		LogLevel:            "info",
		PersonaModelURI:     "models/persona_model.json",
		MaxUploadBytes:      10 << 20,
		Dataset:             "coach",
		GeminiModel:         "gemini-2.5-flash",
		EmbeddingModel:      "gemini-embedding-001",
		EmbeddingDimensions: 384,
		AdviceProvider:      ProviderGroq,
		GroqModel:           "llama-3.1-8b-instant",
		VectorStore:         StoreBigQuery,
		RetrieverK:          4,
	}
}

// LoadDotEnv loads the given .env files (default ".env"). A missing file is
// not an error; the returned error is for the caller to log as a warning.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// FromEnv overlays environment variables on the defaults.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("PORT", &cfg.Port)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("PERSONA_MODEL_URI", &cfg.PersonaModelURI)
	str("GOOGLE_CLOUD_PROJECT", &cfg.ProjectID)
	str("BQ_DATASET", &cfg.Dataset)
	str("GCS_BUCKET", &cfg.Bucket)
	str("GEMINI_MODEL", &cfg.GeminiModel)
	str("EMBEDDING_MODEL", &cfg.EmbeddingModel)
	str("ADVICE_PROVIDER", &cfg.AdviceProvider)
	str("GROQ_API_KEY", &cfg.GroqAPIKey)
	str("GROQ_MODEL", &cfg.GroqModel)
	str("VECTOR_STORE", &cfg.VectorStore)
	str("REDIS_ADDR", &cfg.RedisAddr)

	if v, ok := lookup("EMBEDDING_DIMENSIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: EMBEDDING_DIMENSIONS: %w", err)
		}
		cfg.EmbeddingDimensions = n
	}
	if v, ok := lookup("RETRIEVER_K"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: RETRIEVER_K: %w", err)
		}
		cfg.RetrieverK = n
	}
	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("config: MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}

	cfg.AdviceProvider = strings.ToLower(cfg.AdviceProvider)
	cfg.VectorStore = strings.ToLower(cfg.VectorStore)
	return cfg, cfg.Validate()
}

// RegisterFlags binds command-line overrides for the most common settings.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Port, "port", c.Port, "HTTP server port (or set PORT env)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&c.PersonaModelURI, "model", c.PersonaModelURI, "persona model artifact: local path or gs://bucket/object")
	fs.StringVar(&c.VectorStore, "vector-store", c.VectorStore, "vector store backend: bigquery or memory")
	fs.StringVar(&c.AdviceProvider, "advice-provider", c.AdviceProvider, "advice LLM provider: groq or gemini")
}

// Validate checks enumerated settings and numeric ranges.
func (c Config) Validate() error {
	switch c.AdviceProvider {
	case ProviderGroq, ProviderGemini:
	default:
		return fmt.Errorf("config: unknown ADVICE_PROVIDER %q", c.AdviceProvider)
	}
	switch c.VectorStore {
	case StoreBigQuery, StoreMemory:
	default:
		return fmt.Errorf("config: unknown VECTOR_STORE %q", c.VectorStore)
	}
	if c.RetrieverK <= 0 {
		return fmt.Errorf("config: RETRIEVER_K must be positive, got %d", c.RetrieverK)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("config: EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}
