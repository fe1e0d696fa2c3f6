// Package inmemory runs indexing jobs on a channel-backed worker pool. Jobs do
// not survive a restart.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/persona-coach/internal/jobs"
	"github.com/google/uuid"
)

var errQueueClosed = errors.New("queue is closed")

// Queue is both the jobs.Publisher and the jobs.Consumer.
type Queue struct {
	pending chan *jobs.IndexDocumentJob
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	store   jobs.JobStore
	closed  bool

	workers    int
	maxRetries int
	backoff    time.Duration
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent workers (default 2).
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithRetries sets the retry budget and the base backoff. Attempt n waits
// n*backoff before it is requeued.
func WithRetries(maxRetries int, backoff time.Duration) Option {
	return func(q *Queue) {
		q.maxRetries = maxRetries
		q.backoff = backoff
	}
}

// NewQueue creates a queue holding up to bufferSize unclaimed jobs. store may
// be nil.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		pending:    make(chan *jobs.IndexDocumentJob, bufferSize),
		done:       make(chan struct{}),
		store:      store,
		workers:    2,
		maxRetries: 3,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishIndexDocument assigns an ID and defaults, records the job and
// enqueues it. It blocks while the buffer is full.
func (q *Queue) PublishIndexDocument(ctx context.Context, job *jobs.IndexDocumentJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return errQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}
	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishIndexDocument: saving job: %w", err)
		}
	}

	select {
	case q.pending <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return errQueueClosed
	}
}

// Start launches the workers and returns immediately.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return errQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, handler)
	}
	return nil
}

func (q *Queue) work(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case job := <-q.pending:
			q.run(ctx, job, handler)
		}
	}
}

func (q *Queue) run(ctx context.Context, job *jobs.IndexDocumentJob, handler jobs.JobHandler) {
	started := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	q.save(ctx, job)

	err := handler(ctx, job)

	finished := time.Now()
	job.CompletedAt = &finished
	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	case job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		time.AfterFunc(time.Duration(job.RetryCount)*q.backoff, func() {
			job.Status = jobs.JobStatusPending
			job.StartedAt = nil
			job.CompletedAt = nil
			_ = q.PublishIndexDocument(ctx, job)
		})
	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
	}
	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.IndexDocumentJob) {
	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop closes the queue and waits for in-flight jobs, or for ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
