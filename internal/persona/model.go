package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// NormalizedVector is a FeatureVector after the fitted scaler was applied.
type NormalizedVector []float64

// ClusterID is the index of the centroid a vector was assigned to.
type ClusterID int

// Transformer is a fitted normalization transform.
type Transformer interface {
	Transform(fv FeatureVector) (NormalizedVector, error)
}

// Classifier is a fitted cluster assignment function.
type Classifier interface {
	Predict(v NormalizedVector) (ClusterID, error)
}

// StandardScaler applies (x - mean) / scale per feature.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler builds a scaler from fitted statistics. A zero scale is
// treated as 1 so constant features pass through centred but unscaled.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) != len(scale) {
		return nil, &AdapterError{Op: "scaler", Err: fmt.Errorf("mean has %d entries, scale has %d", len(mean), len(scale))}
	}
	s := &StandardScaler{
		mean:  append([]float64(nil), mean...),
		scale: make([]float64, len(scale)),
	}
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

// Transform implements Transformer.
func (s *StandardScaler) Transform(fv FeatureVector) (NormalizedVector, error) {
	x := fv.Values()
	if len(x) != len(s.mean) {
		return nil, &AdapterError{Op: "transform", Err: fmt.Errorf("scaler expects %d features, got %d", len(s.mean), len(x))}
	}
	out := make(NormalizedVector, len(x))
	for i, v := range x {
		out[i] = (v - s.mean[i]) / s.scale[i]
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, &AdapterError{Op: "transform", Err: fmt.Errorf("feature %q is not finite after scaling", featureNames[i])}
		}
	}
	return out, nil
}

// NearestCentroid assigns a vector to the closest fitted k-means centre.
type NearestCentroid struct {
	centers [][]float64
}

// NewNearestCentroid builds a classifier from fitted cluster centres.
func NewNearestCentroid(centers [][]float64) (*NearestCentroid, error) {
	if len(centers) == 0 {
		return nil, &AdapterError{Op: "classifier", Err: fmt.Errorf("no cluster centres")}
	}
	dim := len(centers[0])
	c := &NearestCentroid{centers: make([][]float64, len(centers))}
	for i, center := range centers {
		if len(center) != dim {
			return nil, &AdapterError{Op: "classifier", Err: fmt.Errorf("centre %d has %d dimensions, want %d", i, len(center), dim)}
		}
		c.centers[i] = append([]float64(nil), center...)
	}
	return c, nil
}

// Predict implements Classifier. Ties go to the lowest cluster index.
func (c *NearestCentroid) Predict(v NormalizedVector) (ClusterID, error) {
	if len(v) != len(c.centers[0]) {
		return 0, &AdapterError{Op: "predict", Err: fmt.Errorf("classifier expects %d dimensions, got %d", len(c.centers[0]), len(v))}
	}
	best, bestDist := 0, math.Inf(1)
	for i, center := range c.centers {
		if d := floats.Distance(v, center, 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return ClusterID(best), nil
}

// Model bundles the fitted artifacts exported by the training notebook.
type Model struct {
	Scaler     *StandardScaler
	Classifier *NearestCentroid
}

// modelArtifact is the JSON export of the fitted scaler and k-means model.
type modelArtifact struct {
	FeatureNames []string `json:"feature_names"`
	Scaler       struct {
		Mean  []float64 `json:"mean"`
		Scale []float64 `json:"scale"`
	} `json:"scaler"`
	KMeans struct {
		ClusterCenters [][]float64 `json:"cluster_centers"`
	} `json:"kmeans"`
}

// ParseModel decodes a model artifact and checks it against FeatureNames.
// Any difference in feature order or set is rejected here, at load time.
func ParseModel(data []byte) (*Model, error) {
	var a modelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &AdapterError{Op: "load", Err: fmt.Errorf("decoding artifact: %w", err)}
	}

	if len(a.FeatureNames) != len(featureNames) {
		return nil, &AdapterError{Op: "load", Err: fmt.Errorf("artifact was fitted on %d features, extractor produces %d", len(a.FeatureNames), len(featureNames))}
	}
	for i, name := range a.FeatureNames {
		if name != featureNames[i] {
			return nil, &AdapterError{Op: "load", Err: fmt.Errorf("feature %d is %q in artifact, %q in extractor", i, name, featureNames[i])}
		}
	}
	if len(a.Scaler.Mean) != len(featureNames) {
		return nil, &AdapterError{Op: "load", Err: fmt.Errorf("scaler has %d features, want %d", len(a.Scaler.Mean), len(featureNames))}
	}

	scaler, err := NewStandardScaler(a.Scaler.Mean, a.Scaler.Scale)
	if err != nil {
		return nil, err
	}
	classifier, err := NewNearestCentroid(a.KMeans.ClusterCenters)
	if err != nil {
		return nil, err
	}
	if len(a.KMeans.ClusterCenters[0]) != len(featureNames) {
		return nil, &AdapterError{Op: "load", Err: fmt.Errorf("cluster centres have %d dimensions, want %d", len(a.KMeans.ClusterCenters[0]), len(featureNames))}
	}

	return &Model{Scaler: scaler, Classifier: classifier}, nil
}

// ModelSource reads raw artifact bytes from a local path or object URI.
type ModelSource interface {
	Read(ctx context.Context, location string) ([]byte, error)
}

// LoadModel reads and parses the artifact at location.
func LoadModel(ctx context.Context, src ModelSource, location string) (*Model, error) {
	data, err := src.Read(ctx, location)
	if err != nil {
		return nil, &AdapterError{Op: "load", Err: fmt.Errorf("reading %s: %w", location, err)}
	}
	return ParseModel(data)
}
