// Package persona derives a spending persona from an uploaded transaction ledger.
//
// The flow is strictly sequential: Clean validates and coerces the table,
// Extract builds the FeatureVector, the fitted Transformer and Classifier
// assign a cluster, and Resolve names it.
package persona

import (
	"errors"
	"time"
)

// Result is the public answer for one upload.
type Result struct {
	Cluster int    `json:"cluster"`
	Persona string `json:"persona"`
}

// Outcome carries a Result together with the intermediate values that
// produced it, for callers that record predictions.
type Outcome struct {
	Result   Result
	Persona  Persona
	Features FeatureVector
	Rows     int
	First    time.Time
	Last     time.Time
}

// Predictor runs the pipeline against fitted artifacts. The artifacts are
// never mutated, so one Predictor may serve concurrent requests.
type Predictor struct {
	scaler     Transformer
	classifier Classifier
}

// NewPredictor creates a Predictor over the given fitted artifacts.
func NewPredictor(scaler Transformer, classifier Classifier) *Predictor {
	return &Predictor{scaler: scaler, classifier: classifier}
}

// NewPredictorFromModel creates a Predictor from a parsed model artifact.
func NewPredictorFromModel(m *Model) *Predictor {
	return NewPredictor(m.Scaler, m.Classifier)
}

// Predict returns the cluster and persona for the table.
func (p *Predictor) Predict(t *Table) (Result, error) {
	out, err := p.Run(t)
	if err != nil {
		return Result{}, err
	}
	return out.Result, nil
}

// Run executes the full pipeline and returns every intermediate value.
func (p *Predictor) Run(t *Table) (*Outcome, error) {
	set, err := Clean(t)
	if err != nil {
		return nil, err
	}

	features := Extract(set)

	normalized, err := p.scaler.Transform(features)
	if err != nil {
		return nil, asAdapterError("transform", err)
	}
	cluster, err := p.classifier.Predict(normalized)
	if err != nil {
		return nil, asAdapterError("predict", err)
	}

	persona := Resolve(cluster)
	first, last := set.Period()
	return &Outcome{
		Result:   Result{Cluster: int(cluster), Persona: persona.String()},
		Persona:  persona,
		Features: features,
		Rows:     len(set),
		First:    first,
		Last:     last,
	}, nil
}

func asAdapterError(op string, err error) error {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae
	}
	return &AdapterError{Op: op, Err: err}
}
