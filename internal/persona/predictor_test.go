package persona

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTransformer is a Transformer whose behaviour is set per test.
type mockTransformer struct {
	TransformFunc func(fv FeatureVector) (NormalizedVector, error)
}

func (m *mockTransformer) Transform(fv FeatureVector) (NormalizedVector, error) {
	if m.TransformFunc != nil {
		return m.TransformFunc(fv)
	}
	return NormalizedVector(fv.Values()), nil
}

// mockClassifier is a Classifier whose behaviour is set per test.
type mockClassifier struct {
	PredictFunc func(v NormalizedVector) (ClusterID, error)
}

func (m *mockClassifier) Predict(v NormalizedVector) (ClusterID, error) {
	if m.PredictFunc != nil {
		return m.PredictFunc(v)
	}
	return 0, nil
}

const sampleCSV = `timestamp,amount,category
2024-01-03 10:00:00,100,Survival
2024-01-06 12:00:00,200,Growth
2024-01-10 23:30:00,50,Joy
2024-01-13 02:00:00,650,Impulse
`

func TestPredictor_Predict(t *testing.T) {
	var seen FeatureVector
	p := NewPredictor(
		&mockTransformer{TransformFunc: func(fv FeatureVector) (NormalizedVector, error) {
			seen = fv
			return NormalizedVector(fv.Values()), nil
		}},
		&mockClassifier{PredictFunc: func(v NormalizedVector) (ClusterID, error) {
			return 2, nil
		}},
	)

	res, err := p.Predict(mustReadCSV(t, sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, Result{Cluster: 2, Persona: "Spontaneous Spender"}, res)
	assert.Equal(t, 1000.0, seen.TotalSpend)
	assert.Equal(t, 0.65, seen.ImpulseSpendingPct)
}

func TestPredictor_Run(t *testing.T) {
	p := NewPredictor(&mockTransformer{}, &mockClassifier{PredictFunc: func(NormalizedVector) (ClusterID, error) {
		return 9, nil
	}})

	out, err := p.Run(mustReadCSV(t, sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, UnknownPersona, out.Persona)
	assert.Equal(t, Result{Cluster: 9, Persona: "Unknown Persona"}, out.Result)
	assert.Equal(t, 4, out.Rows)
	assert.Equal(t, 3, out.First.Day())
	assert.Equal(t, 13, out.Last.Day())
}

func TestPredictor_SchemaErrorBeforeAdapter(t *testing.T) {
	called := false
	p := NewPredictor(&mockTransformer{TransformFunc: func(fv FeatureVector) (NormalizedVector, error) {
		called = true
		return nil, nil
	}}, &mockClassifier{})

	_, err := p.Predict(mustReadCSV(t, "timestamp,amount\n2024-01-01,1\n"))
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.False(t, called, "no numeric work should run on a schema failure")
}

func TestPredictor_AdapterErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name       string
		transform  *mockTransformer
		classifier *mockClassifier
		op         string
	}{
		{
			name:       "transform fails",
			transform:  &mockTransformer{TransformFunc: func(FeatureVector) (NormalizedVector, error) { return nil, boom }},
			classifier: &mockClassifier{},
			op:         "transform",
		},
		{
			name:       "predict fails",
			transform:  &mockTransformer{},
			classifier: &mockClassifier{PredictFunc: func(NormalizedVector) (ClusterID, error) { return 0, boom }},
			op:         "predict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPredictor(tt.transform, tt.classifier).Predict(mustReadCSV(t, sampleCSV))
			var adapterErr *AdapterError
			require.True(t, errors.As(err, &adapterErr))
			assert.Equal(t, tt.op, adapterErr.Op)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func testArtifact(names []string, centers [][]float64) []byte {
	a := map[string]interface{}{
		"feature_names": names,
		"scaler": map[string]interface{}{
			"mean":  make([]float64, len(names)),
			"scale": ones(len(names)),
		},
		"kmeans": map[string]interface{}{
			"cluster_centers": centers,
		},
	}
	data, _ := json.Marshal(a)
	return data
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func TestParseModel_EndToEnd(t *testing.T) {
	far := make([]float64, 12)
	for i := range far {
		far[i] = 1e6
	}
	sample := Extract(mustClean(t, sampleCSV)).Values()

	model, err := ParseModel(testArtifact(FeatureNames(), [][]float64{far, far, far, sample}))
	require.NoError(t, err)

	res, err := NewPredictorFromModel(model).Predict(mustReadCSV(t, sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, Result{Cluster: 3, Persona: "Routine Essentialist"}, res)
}

func mustClean(t *testing.T, data string) TransactionSet {
	t.Helper()
	set, err := Clean(mustReadCSV(t, data))
	require.NoError(t, err)
	return set
}

func TestParseModel_RejectsFeatureMismatch(t *testing.T) {
	swapped := FeatureNames()
	swapped[1], swapped[2] = swapped[2], swapped[1]

	tests := []struct {
		name string
		data []byte
	}{
		{"swapped order", testArtifact(swapped, [][]float64{make([]float64, 12)})},
		{"missing feature", testArtifact(FeatureNames()[:11], [][]float64{make([]float64, 11)})},
		{"wrong centre width", testArtifact(FeatureNames(), [][]float64{make([]float64, 5)})},
		{"no centres", testArtifact(FeatureNames(), nil)},
		{"not json", []byte("joblib")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModel(tt.data)
			var adapterErr *AdapterError
			require.True(t, errors.As(err, &adapterErr), "got %v", err)
		})
	}
}

type mockModelSource struct {
	ReadFunc func(ctx context.Context, location string) ([]byte, error)
}

func (m *mockModelSource) Read(ctx context.Context, location string) ([]byte, error) {
	return m.ReadFunc(ctx, location)
}

func TestLoadModel(t *testing.T) {
	src := &mockModelSource{ReadFunc: func(ctx context.Context, location string) ([]byte, error) {
		if location != "gs://models/persona_model.json" {
			return nil, errors.New("object not found")
		}
		return testArtifact(FeatureNames(), [][]float64{make([]float64, 12)}), nil
	}}

	model, err := LoadModel(context.Background(), src, "gs://models/persona_model.json")
	require.NoError(t, err)
	assert.NotNil(t, model.Scaler)

	_, err = LoadModel(context.Background(), src, "missing.json")
	var adapterErr *AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.Equal(t, "load", adapterErr.Op)
}

func TestStandardScaler_Transform(t *testing.T) {
	mean := make([]float64, 12)
	scale := ones(12)
	mean[0], scale[0] = 500, 250
	scale[1] = 0

	s, err := NewStandardScaler(mean, scale)
	require.NoError(t, err)

	out, err := s.Transform(FeatureVector{TotalSpend: 1000, ImpulseSpendingPct: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 2.0, out[0])
	assert.Equal(t, 0.5, out[1])

	short, err := NewStandardScaler([]float64{0}, []float64{1})
	require.NoError(t, err)
	_, err = short.Transform(FeatureVector{})
	var adapterErr *AdapterError
	assert.True(t, errors.As(err, &adapterErr))

	_, err = s.Transform(FeatureVector{TotalSpend: math.Inf(1)})
	assert.True(t, errors.As(err, &adapterErr))
}

func TestNearestCentroid_Predict(t *testing.T) {
	c, err := NewNearestCentroid([][]float64{{0, 0}, {10, 10}, {0, 0}})
	require.NoError(t, err)

	id, err := c.Predict(NormalizedVector{9, 8})
	require.NoError(t, err)
	assert.Equal(t, ClusterID(1), id)

	id, err = c.Predict(NormalizedVector{1, 1})
	require.NoError(t, err)
	assert.Equal(t, ClusterID(0), id, "ties resolve to the lowest index")

	_, err = c.Predict(NormalizedVector{1})
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "expects 2 dimensions"))
}
