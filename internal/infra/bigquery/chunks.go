package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/persona-coach/internal/rag"
	"google.golang.org/api/iterator"
)

// ChunkRow is one row of the kb_chunks table.
type ChunkRow struct {
	ChunkID    string    `bigquery:"chunk_id"`    // REQUIRED
	Source     string    `bigquery:"source"`      // REQUIRED
	ChunkIndex int64     `bigquery:"chunk_index"` // REQUIRED
	Text       string    `bigquery:"text"`        // REQUIRED
	Embedding  []float64 `bigquery:"embedding"`   // REPEATED
	IndexedTS  time.Time `bigquery:"indexed_ts"`  // REQUIRED
}

type scoredChunkRow struct {
	ChunkID    string  `bigquery:"chunk_id"`
	Source     string  `bigquery:"source"`
	ChunkIndex int64   `bigquery:"chunk_index"`
	Text       string  `bigquery:"text"`
	Score      float64 `bigquery:"score"`
}

// UpsertChunksWithClient merges rows into kb_chunks keyed by chunk_id.
func UpsertChunksWithClient(ctx context.Context, client *bigquery.Client, tables Tables, rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}

	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING UNNEST(@rows) S
		ON T.chunk_id = S.chunk_id
		WHEN MATCHED THEN UPDATE SET
			source = S.source,
			chunk_index = S.chunk_index,
			text = S.text,
			embedding = S.embedding,
			indexed_ts = S.indexed_ts
		WHEN NOT MATCHED THEN INSERT (chunk_id, source, chunk_index, text, embedding, indexed_ts)
		VALUES (S.chunk_id, S.source, S.chunk_index, S.text, S.embedding, S.indexed_ts)
	`, tables.Ref(chunksTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: rows},
	}

	return runDML(ctx, q, "UpsertChunksWithClient")
}

// SearchChunksWithClient returns the k rows closest to query by cosine distance.
func SearchChunksWithClient(ctx context.Context, client *bigquery.Client, tables Tables, query []float64, k int) ([]scoredChunkRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			chunk_id,
			source,
			chunk_index,
			text,
			1 - ML.DISTANCE(embedding, @query, 'COSINE') AS score
		FROM %s
		WHERE ARRAY_LENGTH(embedding) = ARRAY_LENGTH(@query)
		ORDER BY score DESC, indexed_ts ASC
		LIMIT @k
	`, tables.Ref(chunksTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "query", Value: query},
		{Name: "k", Value: k},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("SearchChunksWithClient: reading query: %w", err)
	}

	var rows []scoredChunkRow
	for {
		var row scoredChunkRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("SearchChunksWithClient: iterating: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// DeleteChunksBySourceWithClient removes every chunk of source.
func DeleteChunksBySourceWithClient(ctx context.Context, client *bigquery.Client, tables Tables, source string) error {
	q := client.Query(fmt.Sprintf(`DELETE FROM %s WHERE source = @source`, tables.Ref(chunksTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "source", Value: source},
	}
	return runDML(ctx, q, "DeleteChunksBySourceWithClient")
}

// ChunkStore is the rag.VectorStore backed by the kb_chunks table. It holds
// a shared BigQuery client.
type ChunkStore struct {
	client *bigquery.Client
	tables Tables
	now    func() time.Time
}

// NewChunkStore creates a ChunkStore with its own client.
func NewChunkStore(ctx context.Context, tables Tables) (*ChunkStore, error) {
	client, err := bigquery.NewClient(ctx, tables.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewChunkStore: creating client: %w", err)
	}
	return &ChunkStore{client: client, tables: tables, now: time.Now}, nil
}

// Close closes the BigQuery client connection.
func (s *ChunkStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Upsert implements rag.VectorStore.
func (s *ChunkStore) Upsert(ctx context.Context, chunks []rag.Chunk) error {
	return UpsertChunksWithClient(ctx, s.client, s.tables, toChunkRows(chunks, s.now()))
}

// Search implements rag.VectorStore.
func (s *ChunkStore) Search(ctx context.Context, query []float32, k int) ([]rag.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := SearchChunksWithClient(ctx, s.client, s.tables, toFloat64(query), k)
	if err != nil {
		return nil, err
	}

	hits := make([]rag.ScoredChunk, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, rag.ScoredChunk{
			Chunk: rag.Chunk{
				ID:     r.ChunkID,
				Source: r.Source,
				Index:  int(r.ChunkIndex),
				Text:   r.Text,
			},
			Score: r.Score,
		})
	}
	return hits, nil
}

// DeleteSource implements rag.VectorStore.
func (s *ChunkStore) DeleteSource(ctx context.Context, source string) error {
	return DeleteChunksBySourceWithClient(ctx, s.client, s.tables, source)
}

func toChunkRows(chunks []rag.Chunk, ts time.Time) []ChunkRow {
	rows := make([]ChunkRow, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, ChunkRow{
			ChunkID:    c.ID,
			Source:     c.Source,
			ChunkIndex: int64(c.Index),
			Text:       c.Text,
			Embedding:  toFloat64(c.Embedding),
			IndexedTS:  ts,
		})
	}
	return rows
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
