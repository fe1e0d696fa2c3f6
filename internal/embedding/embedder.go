// Package embedding generates and caches vector embeddings for the
// knowledge-base retriever.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Generate creates one embedding per input text, in input order.
	Generate(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the length of every vector Generate returns.
	Dimensions() int

	// Model returns the model identifier used by this embedder.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache provides content-addressed caching for embeddings.
type Cache interface {
	// Get returns ErrCacheMiss when nothing is stored under contentHash.
	Get(ctx context.Context, contentHash string) ([]float32, error)

	Put(ctx context.Context, contentHash string, embedding []float32) error
}

// ErrCacheMiss is returned by Cache.Get for unknown hashes.
var ErrCacheMiss = errors.New("embedding cache miss")

// ContentHash keys a text for a given model and dimensionality, so that a
// model change never serves stale vectors.
func ContentHash(model string, dimensions int, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(dimensions)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// EmbedQuery embeds a single text.
func EmbedQuery(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Generate(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vecs))
	}
	return vecs[0], nil
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero-magnitude vectors are an error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same dimension: %d != %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("one or both vectors have zero magnitude")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Normalize scales v in place to unit length. Zero vectors are left alone.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	mag := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / mag)
	}
}
