package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// CacheObserver is notified of every cache lookup result ("hit", "miss" or "error").
type CacheObserver func(result string)

// CachedEmbedder consults a Cache before delegating to an inner Embedder.
// Cache failures degrade to a direct call.
type CachedEmbedder struct {
	inner    Embedder
	cache    Cache
	log      zerolog.Logger
	observer CacheObserver
}

// NewCachedEmbedder wraps inner with cache. observer may be nil.
func NewCachedEmbedder(inner Embedder, cache Cache, log zerolog.Logger, observer CacheObserver) *CachedEmbedder {
	if observer == nil {
		observer = func(string) {}
	}
	return &CachedEmbedder{inner: inner, cache: cache, log: log, observer: observer}
}

// Generate implements Embedder.
func (e *CachedEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	hashes := make([]string, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		hashes[i] = ContentHash(e.inner.Model(), e.inner.Dimensions(), text)
		v, err := e.cache.Get(ctx, hashes[i])
		switch {
		case err == nil:
			e.observer("hit")
			out[i] = v
			continue
		case errors.Is(err, ErrCacheMiss):
			e.observer("miss")
		default:
			e.observer("error")
			e.log.Warn().Err(err).Msg("embedding cache lookup failed")
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := e.inner.Generate(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = fresh[j]
		if err := e.cache.Put(ctx, hashes[i], fresh[j]); err != nil {
			e.log.Warn().Err(err).Msg("embedding cache store failed")
		}
	}
	return out, nil
}

// Dimensions implements Embedder.
func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

// Model implements Embedder.
func (e *CachedEmbedder) Model() string { return e.inner.Model() }

// Close implements Embedder. It also closes the cache when the cache holds a
// connection of its own.
func (e *CachedEmbedder) Close() error {
	err := e.inner.Close()
	if c, ok := e.cache.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

var _ Embedder = (*CachedEmbedder)(nil)
