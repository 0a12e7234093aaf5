package estimator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// ModelSpec is the serialized form of a linear model, loadable from JSON
// so retrained weights ship without a rebuild.
type ModelSpec struct {
	ID      string    `json:"id"`
	Bias    float64   `json:"bias"`
	Weights []float64 `json:"weights"`
}

// Linear is a logistic regression estimator over the canonical feature
// vector. It stands in for either trained classifier in the pool.
type Linear struct {
	id      string
	bias    float64
	weights []float64
}

// NewLinear creates a linear estimator from a model spec.
func NewLinear(spec ModelSpec) (*Linear, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("linear model: id is required")
	}
	if len(spec.Weights) == 0 {
		return nil, fmt.Errorf("linear model %s: weights are required", spec.ID)
	}
	return &Linear{id: spec.ID, bias: spec.Bias, weights: spec.Weights}, nil
}

// LoadLinear reads a model spec from a JSON file.
func LoadLinear(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("linear model: read %s: %w", path, err)
	}
	var spec ModelSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("linear model: parse %s: %w", path, err)
	}
	return NewLinear(spec)
}

func (l *Linear) ID() string { return l.id }

func (l *Linear) Dimensions() int { return len(l.weights) }

// Score computes sigmoid(w·x + b).
func (l *Linear) Score(ctx context.Context, vec FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(vec) != len(l.weights) {
		return 0, ErrFeatureShapeMismatch
	}

	z := l.bias
	for i, w := range l.weights {
		z += w * vec[i]
	}
	return sigmoid(z), nil
}

// DefaultLocalModel returns the shipped in-region model. Its weights
// favour amount magnitude and penalize distance inside the home region.
func DefaultLocalModel() *Linear {
	m, _ := NewLinear(ModelSpec{
		ID:   LocalModelID,
		Bias: -4.2,
		Weights: []float64{
			0.0008, // amount
			0.25,   // log amount
			0.015,  // hour of day
			0.10,   // weekend
			-0.35,  // user in region
			-0.35,  // merchant in region
			0.60,   // degree distance
		},
	})
	return m
}

// DefaultGlobalModel returns the shipped cross-border model.
func DefaultGlobalModel() *Linear {
	m, _ := NewLinear(ModelSpec{
		ID:   GlobalModelID,
		Bias: -3.1,
		Weights: []float64{
			0.0006, // amount
			0.30,   // log amount
			0.010,  // hour of day
			0.05,   // weekend
			-0.20,  // user in region
			-0.20,  // merchant in region
			0.08,   // degree distance
		},
	})
	return m
}
