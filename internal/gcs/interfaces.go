package gcs

import (
	"context"
)

// StorageService provides an interface for object storage operations.
// Locations are either gs://bucket/object URIs or local filesystem paths.
type StorageService interface {
	// Read returns the full contents of the object or file at location.
	Read(ctx context.Context, location string) ([]byte, error)

	// Write stores data at location, creating parent directories for local paths.
	Write(ctx context.Context, location string, data []byte, contentType string) error

	// Filename returns the final path element of a location.
	Filename(location string) string
}

// GCSStorageService is the StorageService backed by Google Cloud Storage for
// gs:// locations and the local filesystem otherwise.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

// Read delegates to Read.
func (s *GCSStorageService) Read(ctx context.Context, location string) ([]byte, error) {
	return Read(ctx, location)
}

// Write delegates to Write.
func (s *GCSStorageService) Write(ctx context.Context, location string, data []byte, contentType string) error {
	return Write(ctx, location, data, contentType)
}

// Filename delegates to Filename.
func (s *GCSStorageService) Filename(location string) string {
	return Filename(location)
}

var _ StorageService = (*GCSStorageService)(nil)
