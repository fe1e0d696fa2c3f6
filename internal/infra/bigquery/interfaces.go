// Package bigquery persists knowledge-base chunks and persona predictions in
// BigQuery and applies the dataset's schema migrations.
package bigquery

import (
	"context"

	"github.com/dvloznov/persona-coach/internal/persona"
	"github.com/dvloznov/persona-coach/internal/rag"
)

// PredictionRepository records persona predictions.
type PredictionRepository interface {
	Record(ctx context.Context, requestID string, out *persona.Outcome) error
	Close() error
}

// ChunkRepository is a rag.VectorStore whose client must be released.
type ChunkRepository interface {
	rag.VectorStore
	Close() error
}

var (
	_ PredictionRepository = (*PredictionLog)(nil)
	_ ChunkRepository      = (*ChunkStore)(nil)
)
