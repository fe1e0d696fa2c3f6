package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// Table names inside the configured dataset.
const (
	chunksTable      = "kb_chunks"
	predictionsTable = "persona_predictions"
	migrationsTable  = "schema_migrations"
)

// Tables locates the dataset every repository writes to.
type Tables struct {
	ProjectID string
	Dataset   string
}

// Ref returns the backtick-quoted, fully qualified name of table.
func (t Tables) Ref(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", t.ProjectID, t.Dataset, table)
}

// runDML runs a DML or DDL statement and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query, op string) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}

	return nil
}
