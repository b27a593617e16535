// Package encoder turns a captured laptop configuration into the ordered
// feature vector the price model consumes.
package encoder

import (
	"errors"
	"fmt"
	"math"

	"github.com/kartoza/laptop-pricer/internal/laptop"
	"github.com/kartoza/laptop-pricer/internal/schema"
)

var (
	// ErrSchemaConsistency means the encoded values and the schema columns
	// disagree. It indicates a programming or configuration error.
	ErrSchemaConsistency = errors.New("schema consistency error")
	// ErrUnknownCategory means a selection has no entry in the schema lookup.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrInvalidInput means a raw value cannot be encoded at all.
	ErrInvalidInput = errors.New("invalid raw input")
)

// Names of the always-present scalar features.
const (
	FeatureRAM         = "Ram"
	FeatureWeight      = "Weight"
	FeaturePPI         = "PPI"
	FeatureIPS         = "IPS"
	FeatureRetina      = "Retina"
	FeatureTouchscreen = "Touchscreen"
	FeatureHD          = "HD"
)

// ScalarFeatures lists the scalar features Encode always emits.
var ScalarFeatures = []string{
	FeatureRAM, FeatureWeight, FeaturePPI, FeatureIPS, FeatureRetina, FeatureTouchscreen, FeatureHD,
}

// Vector is the model input, one value per schema column.
type Vector []float64

// Feature is a named vector entry.
type Feature struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Named pairs each value with its column name.
func (v Vector) Named(columns []string) []Feature {
	out := make([]Feature, 0, len(v))
	for i, value := range v {
		name := ""
		if i < len(columns) {
			name = columns[i]
		}
		out = append(out, Feature{Name: name, Value: value})
	}
	return out
}

// PPI is the diagonal pixel density of a screen.
func PPI(width, height, inches int) (float64, error) {
	if inches <= 0 {
		return 0, fmt.Errorf("%w: screen size must be positive, got %d", ErrInvalidInput, inches)
	}
	w, h, in := float64(width), float64(height), float64(inches)
	return math.Sqrt((w*w + h*h) / (in * in)), nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Encode maps raw onto s. It has no side effects; the same input always
// yields a bit-identical vector.
func Encode(raw laptop.RawInput, s *schema.Schema) (Vector, error) {
	ppi, err := PPI(raw.ResolutionWidth, raw.ResolutionHeight, raw.ScreenInches)
	if err != nil {
		return nil, err
	}
	if !raw.HD.Valid() {
		return nil, fmt.Errorf("%w: hd tier %d", ErrInvalidInput, int(raw.HD))
	}

	values := map[string]float64{
		FeatureRAM:         float64(raw.RAM),
		FeatureWeight:      raw.Weight,
		FeaturePPI:         ppi,
		FeatureIPS:         boolToFloat(raw.IPS),
		FeatureRetina:      boolToFloat(raw.Retina),
		FeatureTouchscreen: boolToFloat(raw.Touchscreen),
		FeatureHD:          float64(raw.HD),
	}

	for _, g := range laptop.Groups {
		label := raw.Selection(g)
		column, ok := s.Column(g, label)
		if !ok {
			return nil, fmt.Errorf("%w: %s %q", ErrUnknownCategory, g, label)
		}
		// An empty column is the group's baseline: nothing to activate.
		if column != "" {
			values[column] = 1
		}
	}

	for _, name := range s.Categorical() {
		if _, ok := values[name]; !ok {
			values[name] = 0
		}
	}

	if len(values) != s.Len() {
		return nil, fmt.Errorf("%w: encoded %d values for %d columns", ErrSchemaConsistency, len(values), s.Len())
	}

	vec := make(Vector, s.Len())
	for i, name := range s.Columns() {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("%w: no value for column %q", ErrSchemaConsistency, name)
		}
		vec[i] = v
	}
	return vec, nil
}

// Encoder binds Encode to one schema after checking that the schema's scalar
// columns are exactly the ones Encode produces.
type Encoder struct {
	schema *schema.Schema
}

// New checks s at construction so scalar drift fails at startup.
func New(s *schema.Schema) (*Encoder, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil schema", ErrSchemaConsistency)
	}
	have := make(map[string]struct{})
	for _, name := range s.Scalars() {
		have[name] = struct{}{}
	}
	for _, name := range ScalarFeatures {
		if _, ok := have[name]; !ok {
			return nil, fmt.Errorf("%w: schema lacks scalar %q", ErrSchemaConsistency, name)
		}
		delete(have, name)
	}
	for name := range have {
		return nil, fmt.Errorf("%w: schema scalar %q is not produced by the encoder", ErrSchemaConsistency, name)
	}
	return &Encoder{schema: s}, nil
}

// Encode encodes raw against the bound schema.
func (e *Encoder) Encode(raw laptop.RawInput) (Vector, error) {
	return Encode(raw, e.schema)
}

// Schema returns the bound schema.
func (e *Encoder) Schema() *schema.Schema {
	return e.schema
}
