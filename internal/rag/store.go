// Package rag implements the knowledge-base half of the coach: chunking,
// vector storage, retrieval and retrieval-augmented answers.
package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/persona-coach/internal/embedding"
)

// Chunk is one embedded piece of a source document.
type Chunk struct {
	ID        string
	Source    string
	Index     int
	Text      string
	Embedding []float32
}

// ScoredChunk is a search hit; Score is cosine similarity, higher is closer.
type ScoredChunk struct {
	Chunk
	Score float64
}

// VectorStore persists chunks and answers nearest-neighbour queries.
type VectorStore interface {
	// Upsert stores chunks, replacing any with the same ID.
	Upsert(ctx context.Context, chunks []Chunk) error

	// Search returns up to k chunks ordered by decreasing similarity.
	Search(ctx context.Context, query []float32, k int) ([]ScoredChunk, error)

	// DeleteSource removes every chunk of a source document.
	DeleteSource(ctx context.Context, source string) error
}

// MemoryStore is a brute-force in-process VectorStore.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []Chunk
	byID   map[string]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

// Upsert implements VectorStore.
func (s *MemoryStore) Upsert(_ context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("MemoryStore.Upsert: chunk %d of %q has no ID", c.Index, c.Source)
		}
		c.Embedding = append([]float32(nil), c.Embedding...)
		if i, ok := s.byID[c.ID]; ok {
			s.chunks[i] = c
			continue
		}
		s.byID[c.ID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
	}
	return nil
}

// Search implements VectorStore. Chunks whose similarity cannot be computed
// (dimension mismatch, zero vectors) are skipped. Ties keep insertion order.
func (s *MemoryStore) Search(_ context.Context, query []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]ScoredChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		score, err := embedding.CosineSimilarity(query, c.Embedding)
		if err != nil {
			continue
		}
		hits = append(hits, ScoredChunk{Chunk: c, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteSource implements VectorStore.
func (s *MemoryStore) DeleteSource(_ context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.Source != source {
			kept = append(kept, c)
		}
	}
	s.chunks = kept

	s.byID = make(map[string]int, len(kept))
	for i, c := range kept {
		s.byID[c.ID] = i
	}
	return nil
}

// Len returns the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

var _ VectorStore = (*MemoryStore)(nil)
