package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/persona-coach/internal/jobs"
	"github.com/dvloznov/persona-coach/internal/logger"
)

// Indexer runs the indexing pipeline for one document at a time.
type Indexer struct {
	pipeline *Pipeline
}

// NewIndexer creates an Indexer over the standard pipeline.
func NewIndexer(deps Deps) *Indexer {
	return &Indexer{pipeline: NewIndexingPipeline(deps)}
}

// IndexDocument indexes the document at source (local path or gs:// URI) and
// returns the number of chunks stored.
func (ix *Indexer) IndexDocument(ctx context.Context, source string) (int, error) {
	state := &PipelineState{Source: source}
	if err := ix.pipeline.Execute(ctx, state); err != nil {
		return 0, fmt.Errorf("IndexDocument %s: %w", source, err)
	}
	return len(state.Chunks), nil
}

// HandleJob is a jobs.JobHandler for index-document jobs.
func (ix *Indexer) HandleJob(ctx context.Context, indexJob *jobs.IndexDocumentJob) error {
	if indexJob == nil {
		return fmt.Errorf("HandleJob: nil job")
	}

	log := logger.FromContext(ctx).With().
		Str("job_id", indexJob.JobID).
		Str("source", indexJob.Source).
		Logger()
	log.Info().Msg("Processing index job")

	n, err := ix.IndexDocument(logger.WithContext(ctx, log), indexJob.Source)
	if err != nil {
		log.Error().Err(err).Msg("Pipeline execution failed")
		return err
	}

	indexJob.Chunks = n
	log.Info().Int("chunks", n).Msg("Pipeline execution completed successfully")
	return nil
}
