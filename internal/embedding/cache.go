package embedding

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "embedding:"

// RedisCache stores embeddings in Redis as little-endian float32 blobs.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache on client. A zero ttl keeps entries forever.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Close releases the underlying Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, contentHash string) ([]float32, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+contentHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get embedding: %w", err)
	}
	return decodeVector(data)
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, contentHash string, embedding []float32) error {
	data, err := encodeVector(embedding)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, redisKeyPrefix+contentHash, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set embedding: %w", err)
	}
	return nil
}

func encodeVector(v []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int32(len(v))); err != nil {
		return nil, fmt.Errorf("failed to write vector length: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("failed to write vector values: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeVector(data []byte) ([]float32, error) {
	r := bytes.NewReader(data)
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("failed to read vector length: %w", err)
	}
	if n < 0 || int(n)*4 != r.Len() {
		return nil, fmt.Errorf("corrupt vector blob: length %d with %d bytes", n, r.Len())
	}
	v := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("failed to read vector values: %w", err)
	}
	return v, nil
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]float32
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]float32)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, contentHash string) ([]float32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[contentHash]
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]float32(nil), v...), nil
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, contentHash string, embedding []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[contentHash] = append([]float32(nil), embedding...)
	return nil
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*MemoryCache)(nil)
)
