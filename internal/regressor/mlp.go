package regressor

import (
	"encoding/json"
	"fmt"

	"github.com/gonum/floats"
)

// MLP is a feed-forward network: each layer computes h·W + b, hidden layers
// apply ReLU and the single-unit output layer is linear.
type MLP struct {
	featureNames []string
	inputDim     int
	layers       []denseLayer
}

type denseLayer struct {
	// columns[j] holds the weights into unit j.
	columns [][]float64
	bias    []float64
}

type mlpArtifact struct {
	Kind         string   `json:"kind"`
	FeatureNames []string `json:"feature_names"`
	Layers       []struct {
		Weights [][]float64 `json:"weights"`
		Bias    []float64   `json:"bias"`
	} `json:"layers"`
}

// DecodeMLP parses {"kind":"mlp","layers":[{"weights":[[..]],"bias":[..]}]}
// where weights is inputs x units.
func DecodeMLP(payload []byte) (*MLP, error) {
	var a mlpArtifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("%w: mlp: %v", ErrUnsupportedModel, err)
	}
	if len(a.Layers) == 0 {
		return nil, fmt.Errorf("%w: mlp has no layers", ErrUnsupportedModel)
	}

	m := &MLP{featureNames: a.FeatureNames}
	width := 0
	for i, l := range a.Layers {
		rows := len(l.Weights)
		if rows == 0 {
			return nil, fmt.Errorf("%w: layer %d has no weights", ErrUnsupportedModel, i)
		}
		if i == 0 {
			m.inputDim = rows
		} else if rows != width {
			return nil, fmt.Errorf("%w: layer %d takes %d inputs, previous layer has %d units",
				ErrUnsupportedModel, i, rows, width)
		}

		units := len(l.Bias)
		layer := denseLayer{columns: make([][]float64, units), bias: l.Bias}
		for j := range layer.columns {
			layer.columns[j] = make([]float64, rows)
		}
		for r, row := range l.Weights {
			if len(row) != units {
				return nil, fmt.Errorf("%w: layer %d row %d has %d weights, want %d",
					ErrUnsupportedModel, i, r, len(row), units)
			}
			for j, w := range row {
				layer.columns[j][r] = w
			}
		}
		m.layers = append(m.layers, layer)
		width = units
	}
	if width != 1 {
		return nil, fmt.Errorf("%w: mlp has %d outputs, want 1", ErrUnsupportedModel, width)
	}
	if len(m.featureNames) > 0 && len(m.featureNames) != m.inputDim {
		return nil, fmt.Errorf("%w: %d feature names for %d inputs", ErrUnsupportedModel, len(m.featureNames), m.inputDim)
	}
	return m, nil
}

func (m *MLP) Kind() string { return KindMLP }

// FeatureNames is the training column order, when the artifact records it.
func (m *MLP) FeatureNames() []string {
	return append([]string(nil), m.featureNames...)
}

// Predict runs the forward pass.
func (m *MLP) Predict(features []float64) (float64, error) {
	if len(features) != m.inputDim {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrFeatureMismatch, len(features), m.inputDim)
	}
	h := features
	for i, l := range m.layers {
		out := make([]float64, len(l.bias))
		for j, col := range l.columns {
			v := l.bias[j] + floats.Dot(h, col)
			if i < len(m.layers)-1 && v < 0 {
				v = 0
			}
			out[j] = v
		}
		h = out
	}
	return h[0], nil
}

func (m *MLP) Info() map[string]interface{} {
	return map[string]interface{}{
		"kind":      KindMLP,
		"layers":    len(m.layers),
		"input_dim": m.inputDim,
	}
}
