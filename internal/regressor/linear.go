package regressor

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gonum/floats"
)

// Linear is an ordinary linear model whose coefficients are keyed by
// column name. Columns without a coefficient weigh zero.
type Linear struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`

	weights []float64
}

type linearArtifact struct {
	Kind         string             `json:"kind"`
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

// DecodeLinear parses {"kind":"linear","intercept":..,"coefficients":{..}}.
func DecodeLinear(payload []byte) (*Linear, error) {
	var a linearArtifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("%w: linear: %v", ErrUnsupportedModel, err)
	}
	if len(a.Coefficients) == 0 {
		return nil, fmt.Errorf("%w: linear model has no coefficients", ErrUnsupportedModel)
	}
	return &Linear{Intercept: a.Intercept, Coefficients: a.Coefficients}, nil
}

// Bind lays the coefficients out in column order. Every coefficient must
// name a column.
func (m *Linear) Bind(columns []string) error {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}

	var unknown []string
	weights := make([]float64, len(columns))
	for name, w := range m.Coefficients {
		i, ok := index[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		weights[i] = w
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: coefficients for unknown columns %q", ErrFeatureMismatch, unknown)
	}

	m.weights = weights
	return nil
}

func (m *Linear) Kind() string { return KindLinear }

// Predict returns intercept + w·x.
func (m *Linear) Predict(features []float64) (float64, error) {
	if m.weights == nil {
		return 0, ErrNotBound
	}
	if len(features) != len(m.weights) {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrFeatureMismatch, len(features), len(m.weights))
	}
	return m.Intercept + floats.Dot(m.weights, features), nil
}

func (m *Linear) Info() map[string]interface{} {
	return map[string]interface{}{
		"kind":         KindLinear,
		"coefficients": len(m.Coefficients),
		"bound":        m.weights != nil,
	}
}
