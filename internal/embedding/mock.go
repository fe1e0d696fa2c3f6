package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync/atomic"
)

// HashEmbedder produces deterministic unit vectors from a SHA-256 of the
// text. It has no semantic quality and serves offline runs and tests.
type HashEmbedder struct {
	dimensions int
	calls      atomic.Int64
}

// NewHashEmbedder creates a HashEmbedder (default 384 dimensions).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Generate implements Embedder.
func (e *HashEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.calls.Add(int64(len(texts)))

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	seed := sha256.Sum256([]byte(text))
	v := make([]float32, e.dimensions)
	var block [36]byte
	copy(block[:32], seed[:])
	for i := range v {
		binary.LittleEndian.PutUint32(block[32:], uint32(i/8))
		h := sha256.Sum256(block[:])
		word := binary.LittleEndian.Uint32(h[(i%8)*4:])
		v[i] = float32(word%2000)/1000.0 - 1.0
	}
	Normalize(v)
	return v
}

// Calls reports how many texts have been embedded.
func (e *HashEmbedder) Calls() int64 { return e.calls.Load() }

// Dimensions implements Embedder.
func (e *HashEmbedder) Dimensions() int { return e.dimensions }

// Model implements Embedder.
func (e *HashEmbedder) Model() string { return "sha256-hash" }

// Close implements Embedder.
func (e *HashEmbedder) Close() error { return nil }

var _ Embedder = (*HashEmbedder)(nil)
