package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/persona-coach/internal/jobs"
)

// Store keeps indexing jobs in memory. Callers always get copies.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.IndexDocumentJob
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.IndexDocumentJob)}
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.IndexDocumentJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *job
	s.jobs[job.JobID] = &saved
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.IndexDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	found := *job
	return &found, nil
}

func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.IndexDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.IndexDocumentJob
	for _, job := range s.jobs {
		if filter.Source != "" && job.Source != filter.Source {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		found := *job
		result = append(result, &found)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.IndexDocumentJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)
