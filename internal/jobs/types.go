// Package jobs defines knowledge-base indexing jobs and the queue and store
// contracts that carry them.
package jobs

import (
	"context"
	"errors"
	"time"
)

// JobStatus is the lifecycle state of an indexing job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying marks a failed attempt waiting for its backoff.
	JobStatusRetrying JobStatus = "retrying"
)

// ErrJobNotFound is returned by a JobStore for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// IndexDocumentJob splits, embeds and stores one document in the vector store.
type IndexDocumentJob struct {
	JobID string `json:"job_id"`
	// Source is a gs:// URI or a path under the knowledge-base directory.
	Source string    `json:"source"`
	Status JobStatus `json:"status"`
	// Chunks is the number of chunks written on success.
	Chunks      int        `json:"chunks"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Publisher enqueues indexing jobs.
type Publisher interface {
	PublishIndexDocument(ctx context.Context, job *IndexDocumentJob) error
	Close() error
}

// Consumer runs a JobHandler over queued jobs until stopped.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A non-nil error makes the job eligible for retry.
type JobHandler func(ctx context.Context, job *IndexDocumentJob) error

// JobStore keeps job state for GET /api/jobs.
type JobStore interface {
	// SaveJob saves or replaces a job's state.
	SaveJob(ctx context.Context, job *IndexDocumentJob) error
	// GetJob returns ErrJobNotFound for unknown IDs.
	GetJob(ctx context.Context, jobID string) (*IndexDocumentJob, error)
	// ListJobs returns matching jobs, oldest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*IndexDocumentJob, error)
}

// JobFilter narrows ListJobs. Zero fields match everything.
type JobFilter struct {
	Source string
	Status JobStatus
	Limit  int
	Offset int
}
