package pipeline

import (
	"context"
)

// StorageService reads source documents from GCS or the local filesystem.
type StorageService interface {
	Read(ctx context.Context, location string) ([]byte, error)
}

// TextExtractor turns a binary document into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ChunkCounter is told how many chunks each run stored.
type ChunkCounter func(n int)
