package rag

import (
	"context"
	"fmt"

	"github.com/dvloznov/persona-coach/internal/embedding"
)

// DefaultK is how many chunks a question retrieves.
const DefaultK = 4

// Retriever embeds a question and fetches its nearest chunks.
type Retriever struct {
	embedder embedding.Embedder
	store    VectorStore
	k        int
}

// NewRetriever creates a Retriever returning k chunks (DefaultK when k <= 0).
func NewRetriever(embedder embedding.Embedder, store VectorStore, k int) *Retriever {
	if k <= 0 {
		k = DefaultK
	}
	return &Retriever{embedder: embedder, store: store, k: k}
}

// Retrieve returns the chunks closest to question.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]ScoredChunk, error) {
	vec, err := embedding.EmbedQuery(ctx, r.embedder, question)
	if err != nil {
		return nil, fmt.Errorf("Retriever.Retrieve: embedding question: %w", err)
	}
	hits, err := r.store.Search(ctx, vec, r.k)
	if err != nil {
		return nil, fmt.Errorf("Retriever.Retrieve: searching store: %w", err)
	}
	return hits, nil
}
