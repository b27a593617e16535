// Package regressor loads trained price models and evaluates them on
// encoded feature vectors.
package regressor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Model kinds understood by Decode.
const (
	KindLinear  = "linear"
	KindXGBoost = "xgboost"
	KindMLP     = "mlp"
	KindFunc    = "func"
)

var (
	// ErrUnsupportedModel reports an artifact of an unknown kind or layout.
	ErrUnsupportedModel = errors.New("unsupported model")
	// ErrFeatureMismatch reports a vector or artifact that disagrees with
	// the feature layout.
	ErrFeatureMismatch = errors.New("feature mismatch")
	// ErrNotBound reports use of a model before it was bound to columns.
	ErrNotBound = errors.New("model not bound to a feature layout")
)

// Predictor maps one feature vector to a price. Implementations are
// immutable once prepared and safe for concurrent use.
type Predictor interface {
	Kind() string
	Predict(features []float64) (float64, error)
	Info() map[string]interface{}
}

// Binder is implemented by models that address features by name and must
// resolve those names against the column order before predicting.
type Binder interface {
	Bind(columns []string) error
}

// Named is implemented by models whose artifact records the column order
// they were trained on.
type Named interface {
	FeatureNames() []string
}

// Prepare binds p to columns and verifies any recorded training order.
func Prepare(p Predictor, columns []string) error {
	if b, ok := p.(Binder); ok {
		if err := b.Bind(columns); err != nil {
			return err
		}
	}
	n, ok := p.(Named)
	if !ok {
		return nil
	}
	names := n.FeatureNames()
	if len(names) == 0 {
		return nil
	}
	if len(names) != len(columns) {
		return fmt.Errorf("%w: model has %d features, schema has %d", ErrFeatureMismatch, len(names), len(columns))
	}
	for i := range names {
		if names[i] != columns[i] {
			return fmt.Errorf("%w: feature %d is %q in the model, %q in the schema",
				ErrFeatureMismatch, i, names[i], columns[i])
		}
	}
	return nil
}

// Func adapts a plain function to Predictor.
type Func func(features []float64) (float64, error)

func (f Func) Kind() string { return KindFunc }

func (f Func) Predict(features []float64) (float64, error) { return f(features) }

func (f Func) Info() map[string]interface{} {
	return map[string]interface{}{"kind": KindFunc}
}

// Detect inspects a JSON artifact and names its kind.
func Detect(payload []byte) (string, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return "", fmt.Errorf("%w: not a JSON object: %v", ErrUnsupportedModel, err)
	}
	if _, ok := probe["learner"]; ok {
		return KindXGBoost, nil
	}
	if raw, ok := probe["kind"]; ok {
		var kind string
		if err := json.Unmarshal(raw, &kind); err == nil && kind != "" {
			return strings.ToLower(kind), nil
		}
	}
	return "", fmt.Errorf("%w: cannot tell the model kind", ErrUnsupportedModel)
}

// Decode builds a predictor from an artifact. An empty kind is detected
// from the payload.
func Decode(kind string, payload []byte) (Predictor, error) {
	if kind == "" {
		var err error
		if kind, err = Detect(payload); err != nil {
			return nil, err
		}
	}
	switch strings.ToLower(kind) {
	case KindLinear:
		return DecodeLinear(payload)
	case KindXGBoost:
		return DecodeXGBoost(payload)
	case KindMLP:
		return DecodeMLP(payload)
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedModel, kind)
	}
}

// LoadFile reads and decodes a model artifact from disk.
func LoadFile(path string) (Predictor, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("regressor: read %s: %w", path, err)
	}
	p, err := Decode("", payload)
	if err != nil {
		return nil, fmt.Errorf("regressor: %s: %w", path, err)
	}
	return p, nil
}
