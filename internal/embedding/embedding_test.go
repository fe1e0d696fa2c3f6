package embedding

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dvloznov/persona-coach/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(384)
	vecs, err := e.Generate(context.Background(), []string{"save more", "save more", "spend less"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Len(t, vecs[0], 384)
	assert.Equal(t, vecs[0], vecs[1])
	assert.NotEqual(t, vecs[0], vecs[2])
	assert.InDelta(t, 1.0, norm(vecs[0]), 1e-5)
	assert.Equal(t, int64(3), e.Calls())
}

func TestHashEmbedder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).Generate(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCosineSimilarity(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = CosineSimilarity([]float32{1, 0}, []float32{0, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = CosineSimilarity([]float32{1, 1}, []float32{-1, -1})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)

	_, err = CosineSimilarity([]float32{1}, []float32{1, 2})
	assert.Error(t, err)

	_, err = CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	assert.Error(t, err)
}

func TestContentHash(t *testing.T) {
	a := ContentHash("m", 384, "text")
	assert.Len(t, a, 64)
	assert.Equal(t, a, ContentHash("m", 384, "text"))
	assert.NotEqual(t, a, ContentHash("m", 768, "text"))
	assert.NotEqual(t, a, ContentHash("other", 384, "text"))
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	data, err := encodeVector(in)
	require.NoError(t, err)

	out, err := decodeVector(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector(data[:len(data)-2])
	assert.Error(t, err)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func (failingCache) Put(context.Context, string, []float32) error {
	return errors.New("connection refused")
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := NewHashEmbedder(16)
	results := map[string]int{}
	e := NewCachedEmbedder(inner, NewMemoryCache(), logger.NewWithWriter(&bytes.Buffer{}), func(r string) { results[r]++ })

	first, err := e.Generate(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.Calls())

	second, err := e.Generate(ctx, []string{"b", "c", "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), inner.Calls())

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, 2, results["hit"])
	assert.Equal(t, 3, results["miss"])
	assert.Equal(t, 16, e.Dimensions())
	assert.Equal(t, inner.Model(), e.Model())
}

func TestCachedEmbedder_DegradesOnCacheFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	inner := NewHashEmbedder(8)
	e := NewCachedEmbedder(inner, failingCache{}, logger.NewWithWriter(buf), nil)

	vecs, err := e.Generate(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Contains(t, buf.String(), "embedding cache lookup failed")
}

type closingCache struct {
	*MemoryCache
	closed bool
}

func (c *closingCache) Close() error {
	c.closed = true
	return nil
}

func TestCachedEmbedder_CloseReleasesCache(t *testing.T) {
	cache := &closingCache{MemoryCache: NewMemoryCache()}
	e := NewCachedEmbedder(NewHashEmbedder(4), cache, logger.NewWithWriter(&bytes.Buffer{}), nil)

	require.NoError(t, e.Close())
	assert.True(t, cache.closed)

	assert.NoError(t, NewCachedEmbedder(NewHashEmbedder(4), NewMemoryCache(), logger.NewWithWriter(&bytes.Buffer{}), nil).Close())
}

func TestEmbedQuery(t *testing.T) {
	v, err := EmbedQuery(context.Background(), NewHashEmbedder(4), "q")
	require.NoError(t, err)
	assert.Len(t, v, 4)
}

// setupTestRedis connects to a local Redis or skips.
func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	client.FlushDB(ctx)
	return client
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	cache := NewRedisCache(setupTestRedis(t), time.Minute)
	defer cache.Close()

	_, err := cache.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Put(ctx, "k", []float32{1, 2, 3}))
	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, got)
}
