// Package gcs reads and writes objects on Google Cloud Storage, falling back to
// the local filesystem for locations that are not gs:// URIs.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const scheme = "gs://"

// uploadTimeout bounds a single object write.
const uploadTimeout = 2 * time.Minute

// IsURI reports whether location names a GCS object.
func IsURI(location string) bool {
	return strings.HasPrefix(location, scheme)
}

// ParseURI splits gs://bucket/path/to/object into bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, scheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Join appends name to a gs:// prefix or a local directory.
func Join(dir, name string) string {
	if IsURI(dir) {
		return strings.TrimSuffix(dir, "/") + "/" + name
	}
	return filepath.Join(dir, name)
}

// Filename extracts the final element of a location.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func Filename(location string) string {
	if !IsURI(location) {
		return filepath.Base(location)
	}
	parts := strings.SplitN(strings.TrimPrefix(location, scheme), "/", 2)
	if len(parts) < 2 {
		return parts[0]
	}
	return path.Base(parts[1])
}

// Read returns the bytes stored at location.
func Read(ctx context.Context, location string) ([]byte, error) {
	if !IsURI(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", location, err)
		}
		return data, nil
	}
	return FetchFromGCS(ctx, location)
}

// FetchFromGCS downloads the file bytes from the given GCS URI.
func FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseURI(gcsURI)
	if err != nil {
		return nil, err
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: creating storage client: %w", err)
	}
	defer storageClient.Close()

	rc, err := storageClient.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading bytes: %w", err)
	}

	return data, nil
}

// Write stores data at location.
func Write(ctx context.Context, location string, data []byte, contentType string) error {
	if !IsURI(location) {
		if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
			return fmt.Errorf("create directory for %q: %w", location, err)
		}
		if err := os.WriteFile(location, data, 0o644); err != nil {
			return fmt.Errorf("write %q: %w", location, err)
		}
		return nil
	}
	return UploadBytes(ctx, location, bytes.NewReader(data), contentType)
}

// UploadBytes streams r to the given GCS URI.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func UploadBytes(ctx context.Context, gcsURI string, r io.Reader, contentType string) error {
	bucketName, objectName, err := ParseURI(gcsURI)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy data to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}
