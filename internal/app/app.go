// Package app builds the shared collaborators of the binaries from Config.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/persona-coach/internal/config"
	"github.com/dvloznov/persona-coach/internal/embedding"
	infraBQ "github.com/dvloznov/persona-coach/internal/infra/bigquery"
	"github.com/dvloznov/persona-coach/internal/llm"
	"github.com/dvloznov/persona-coach/internal/metrics"
	"github.com/dvloznov/persona-coach/internal/rag"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// embeddingCacheTTL is how long a cached embedding lives in Redis.
const embeddingCacheTTL = 30 * 24 * time.Hour

// Tables returns the BigQuery dataset location from cfg.
func Tables(cfg config.Config) infraBQ.Tables {
	return infraBQ.Tables{ProjectID: cfg.ProjectID, Dataset: cfg.Dataset}
}

// NewEmbedder creates the Gemini embedder, wrapped in a Redis cache when
// REDIS_ADDR is set and reachable. m may be nil.
func NewEmbedder(ctx context.Context, cfg config.Config, m *metrics.Metrics, log zerolog.Logger) (embedding.Embedder, error) {
	inner, err := llm.NewGeminiEmbedder(ctx, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr == "" {
		return inner, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, embeddings will not be cached")
		_ = client.Close()
		return inner, nil
	}

	var observer embedding.CacheObserver
	if m != nil {
		observer = func(result string) { m.EmbeddingCache.WithLabelValues(result).Inc() }
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("Embedding cache enabled")
	return embedding.NewCachedEmbedder(inner, embedding.NewRedisCache(client, embeddingCacheTTL), log, observer), nil
}

// VectorStore is a rag.VectorStore together with its release function.
type VectorStore struct {
	rag.VectorStore
	close func() error
}

// Close releases the store's client, if any.
func (s *VectorStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// NewVectorStore opens the store selected by VECTOR_STORE.
func NewVectorStore(ctx context.Context, cfg config.Config) (*VectorStore, error) {
	switch cfg.VectorStore {
	case config.StoreMemory:
		return &VectorStore{VectorStore: rag.NewMemoryStore()}, nil
	case config.StoreBigQuery:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("NewVectorStore: GOOGLE_CLOUD_PROJECT is required for the bigquery store")
		}
		store, err := infraBQ.NewChunkStore(ctx, Tables(cfg))
		if err != nil {
			return nil, err
		}
		return &VectorStore{VectorStore: store, close: store.Close}, nil
	default:
		return nil, fmt.Errorf("NewVectorStore: unknown store %q", cfg.VectorStore)
	}
}

// NewAdviceCompleter creates the completer selected by ADVICE_PROVIDER.
func NewAdviceCompleter(ctx context.Context, cfg config.Config) (llm.Completer, error) {
	switch cfg.AdviceProvider {
	case config.ProviderGroq:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("NewAdviceCompleter: GROQ_API_KEY is required for the groq provider")
		}
		return llm.NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel), nil
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("NewAdviceCompleter: unknown provider %q", cfg.AdviceProvider)
	}
}

// ObservedCompleter counts every completion in LLMCalls.
type ObservedCompleter struct {
	llm.Completer
	metrics *metrics.Metrics
}

// Observe wraps c so its calls are counted in m.
func Observe(c llm.Completer, m *metrics.Metrics) *ObservedCompleter {
	return &ObservedCompleter{Completer: c, metrics: m}
}

// Complete implements llm.Completer.
func (c *ObservedCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	text, err := c.Completer.Complete(ctx, req)
	c.metrics.ObserveLLM(c.Name(), err)
	return text, err
}
