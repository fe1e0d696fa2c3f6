package llm

import (
	"context"
	"fmt"

	"github.com/dvloznov/persona-coach/internal/embedding"
	"google.golang.org/genai"
)

// embedBatchSize is the most contents sent in one EmbedContent call.
const embedBatchSize = 100

// GeminiEmbedder implements embedding.Embedder with the genai EmbedContent API.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	taskType   string
}

// NewGeminiEmbedder creates an embedder producing vectors of the given size.
func NewGeminiEmbedder(ctx context.Context, model string, dimensions int) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiEmbedder: create genai client: %w", err)
	}
	return &GeminiEmbedder{
		client:     client,
		model:      model,
		dimensions: dimensions,
		taskType:   "SEMANTIC_SIMILARITY",
	}, nil
}

// Generate implements embedding.Embedder. Reduced-dimension outputs are not
// unit length, so every vector is normalized before it is returned.
func (e *GeminiEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	cfg := &genai.EmbedContentConfig{
		TaskType:             e.taskType,
		OutputDimensionality: genai.Ptr(int32(e.dimensions)),
	}

	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: text}},
			})
		}

		resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
		if err != nil {
			return nil, fmt.Errorf("GeminiEmbedder.Generate: embed content: %w", err)
		}
		if len(resp.Embeddings) != len(contents) {
			return nil, fmt.Errorf("GeminiEmbedder.Generate: got %d embeddings for %d texts", len(resp.Embeddings), len(contents))
		}

		for _, emb := range resp.Embeddings {
			if len(emb.Values) != e.dimensions {
				return nil, fmt.Errorf("GeminiEmbedder.Generate: got %d dimensions, want %d", len(emb.Values), e.dimensions)
			}
			v := append([]float32(nil), emb.Values...)
			embedding.Normalize(v)
			out = append(out, v)
		}
	}

	return out, nil
}

// Dimensions implements embedding.Embedder.
func (e *GeminiEmbedder) Dimensions() int { return e.dimensions }

// Model implements embedding.Embedder.
func (e *GeminiEmbedder) Model() string { return e.model }

// Close implements embedding.Embedder.
func (e *GeminiEmbedder) Close() error { return nil }

var _ embedding.Embedder = (*GeminiEmbedder)(nil)
