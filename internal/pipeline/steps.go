// Package pipeline indexes knowledge-base documents for retrieval: each
// document is fetched, turned into text, split into overlapping chunks,
// embedded and written to the vector store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/dvloznov/persona-coach/internal/embedding"
	"github.com/dvloznov/persona-coach/internal/logger"
	"github.com/dvloznov/persona-coach/internal/rag"
	"github.com/google/uuid"
)

// Document types the extractor understands.
const (
	MIMETypePDF      = "application/pdf"
	MIMETypeText     = "text/plain"
	MIMETypeMarkdown = "text/markdown"
)

// ErrUnsupportedType is returned for documents that are neither PDF nor text.
var ErrUnsupportedType = errors.New("unsupported document type")

// ErrNoText is returned when a document yields no indexable text.
var ErrNoText = errors.New("document contains no text")

// PipelineStep represents a single step in the indexing pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Source     string
	MIMEType   string
	Data       []byte
	Text       string
	Pieces     []string
	Embeddings [][]float32
	Chunks     []rag.Chunk
}

// DetectMIMEType maps a location's extension to a supported document type.
func DetectMIMEType(location string) (string, error) {
	switch strings.ToLower(path.Ext(location)) {
	case ".pdf":
		return MIMETypePDF, nil
	case ".txt":
		return MIMETypeText, nil
	case ".md", ".markdown":
		return MIMETypeMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, location)
	}
}

// ChunkID derives a stable identifier from the chunk's source and position,
// so re-indexing a document overwrites its previous rows.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(index))).String()
}

// Step 1: FetchStep reads the document bytes.
type FetchStep struct {
	Storage StorageService
}

func (s *FetchStep) Execute(ctx context.Context, state *PipelineState) error {
	mimeType, err := DetectMIMEType(state.Source)
	if err != nil {
		return err
	}

	data, err := s.Storage.Read(ctx, state.Source)
	if err != nil {
		return fmt.Errorf("FetchStep: %w", err)
	}

	state.MIMEType = mimeType
	state.Data = data
	return nil
}

// Step 2: ExtractTextStep turns the document into plain text. PDFs go
// through the extractor; text and Markdown are used as-is.
type ExtractTextStep struct {
	Extractor TextExtractor
}

func (s *ExtractTextStep) Execute(ctx context.Context, state *PipelineState) error {
	switch state.MIMEType {
	case MIMETypePDF:
		if s.Extractor == nil {
			return fmt.Errorf("ExtractTextStep: no extractor configured for %s", state.Source)
		}
		text, err := s.Extractor.ExtractText(ctx, state.Data, state.MIMEType)
		if err != nil {
			return fmt.Errorf("ExtractTextStep: %w", err)
		}
		state.Text = text
	default:
		state.Text = string(state.Data)
	}

	if strings.TrimSpace(state.Text) == "" {
		return fmt.Errorf("%w: %s", ErrNoText, state.Source)
	}
	return nil
}

// Step 3: SplitStep cuts the text into overlapping chunks.
type SplitStep struct {
	Splitter *rag.Splitter
}

func (s *SplitStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Pieces = s.Splitter.Split(state.Text)
	if len(state.Pieces) == 0 {
		return fmt.Errorf("%w: %s", ErrNoText, state.Source)
	}
	return nil
}

// Step 4: EmbedStep embeds every chunk.
type EmbedStep struct {
	Embedder embedding.Embedder
}

func (s *EmbedStep) Execute(ctx context.Context, state *PipelineState) error {
	vectors, err := s.Embedder.Generate(ctx, state.Pieces)
	if err != nil {
		return fmt.Errorf("EmbedStep: %w", err)
	}
	if len(vectors) != len(state.Pieces) {
		return fmt.Errorf("EmbedStep: got %d embeddings for %d chunks", len(vectors), len(state.Pieces))
	}

	state.Embeddings = vectors
	state.Chunks = make([]rag.Chunk, len(state.Pieces))
	for i, text := range state.Pieces {
		state.Chunks[i] = rag.Chunk{
			ID:        ChunkID(state.Source, i),
			Source:    state.Source,
			Index:     i,
			Text:      text,
			Embedding: vectors[i],
		}
	}
	return nil
}

// Step 5: StoreChunksStep replaces the source's chunks in the vector store.
type StoreChunksStep struct {
	Store   rag.VectorStore
	Counter ChunkCounter
}

func (s *StoreChunksStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Store.DeleteSource(ctx, state.Source); err != nil {
		return fmt.Errorf("StoreChunksStep: deleting old chunks: %w", err)
	}
	if err := s.Store.Upsert(ctx, state.Chunks); err != nil {
		return fmt.Errorf("StoreChunksStep: %w", err)
	}
	if s.Counter != nil {
		s.Counter(len(state.Chunks))
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("source", state.Source).
		Int("chunks", len(state.Chunks)).
		Msg("Stored chunks")
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Deps are the collaborators of the standard indexing pipeline.
type Deps struct {
	Storage   StorageService
	Extractor TextExtractor
	Splitter  *rag.Splitter
	Embedder  embedding.Embedder
	Store     rag.VectorStore
	Counter   ChunkCounter
}

// NewIndexingPipeline creates the standard 5-step pipeline for indexing documents.
func NewIndexingPipeline(deps Deps) *Pipeline {
	splitter := deps.Splitter
	if splitter == nil {
		splitter = rag.NewSplitter()
	}
	return NewPipeline(
		&FetchStep{Storage: deps.Storage},
		&ExtractTextStep{Extractor: deps.Extractor},
		&SplitStep{Splitter: splitter},
		&EmbedStep{Embedder: deps.Embedder},
		&StoreChunksStep{Store: deps.Store, Counter: deps.Counter},
	)
}
