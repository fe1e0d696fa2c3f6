package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/persona-coach/internal/persona"
	"github.com/google/uuid"
)

// PredictionRecord is one /predict_csv outcome as stored in persona_predictions.
type PredictionRecord struct {
	PredictionID string
	RequestID    string
	Cluster      int
	Persona      string
	Rows         int
	PeriodStart  civil.Date
	PeriodEnd    civil.Date
	Features     persona.FeatureVector
	CreatedTS    time.Time
}

// NewPredictionRecord builds a record from a pipeline outcome.
func NewPredictionRecord(requestID string, out *persona.Outcome) PredictionRecord {
	return PredictionRecord{
		PredictionID: uuid.New().String(),
		RequestID:    requestID,
		Cluster:      out.Result.Cluster,
		Persona:      out.Result.Persona,
		Rows:         out.Rows,
		PeriodStart:  civil.DateOf(out.First),
		PeriodEnd:    civil.DateOf(out.Last),
		Features:     out.Features,
		CreatedTS:    time.Now().UTC(),
	}
}

// InsertPredictionWithClient inserts rec using the provided BigQuery client.
func InsertPredictionWithClient(ctx context.Context, client *bigquery.Client, tables Tables, rec PredictionRecord) error {
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("InsertPredictionWithClient: encoding features: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s
		(prediction_id, request_id, cluster, persona, row_count, period_start, period_end, features, created_ts)
		VALUES (@prediction_id, @request_id, @cluster, @persona, @row_count, @period_start, @period_end, PARSE_JSON(@features), @created_ts)
	`, tables.Ref(predictionsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "prediction_id", Value: rec.PredictionID},
		{Name: "request_id", Value: rec.RequestID},
		{Name: "cluster", Value: rec.Cluster},
		{Name: "persona", Value: rec.Persona},
		{Name: "row_count", Value: rec.Rows},
		{Name: "period_start", Value: rec.PeriodStart},
		{Name: "period_end", Value: rec.PeriodEnd},
		{Name: "features", Value: string(features)},
		{Name: "created_ts", Value: rec.CreatedTS},
	}

	return runDML(ctx, q, "InsertPredictionWithClient")
}

// PredictionLog records persona predictions in BigQuery.
type PredictionLog struct {
	client *bigquery.Client
	tables Tables
}

// NewPredictionLog creates a PredictionLog with its own client.
func NewPredictionLog(ctx context.Context, tables Tables) (*PredictionLog, error) {
	client, err := bigquery.NewClient(ctx, tables.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewPredictionLog: creating client: %w", err)
	}
	return &PredictionLog{client: client, tables: tables}, nil
}

// Record stores the outcome of one prediction request.
func (l *PredictionLog) Record(ctx context.Context, requestID string, out *persona.Outcome) error {
	return InsertPredictionWithClient(ctx, l.client, l.tables, NewPredictionRecord(requestID, out))
}

// Close closes the BigQuery client connection.
func (l *PredictionLog) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}
