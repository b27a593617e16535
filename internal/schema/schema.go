// Package schema holds the column layout of the trained price model and the
// lookup from form selections to one-hot columns.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/kartoza/laptop-pricer/internal/laptop"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalidSchema reports a definition that is inconsistent with itself or
// with the options the form offers.
var ErrInvalidSchema = errors.New("invalid feature schema")

// Definition is the serialised form of a schema.
type Definition struct {
	Scalars       []string `yaml:"scalars" json:"scalars"`
	Columns       []string `yaml:"columns" json:"columns"`
	Dropped       []string `yaml:"dropped" json:"dropped"`
	Unrepresented []string `yaml:"unrepresented,omitempty" json:"unrepresented,omitempty"`
}

// ParseDefinition decodes a YAML definition.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("schema: parse definition: %w", err)
	}
	return def, nil
}

// LoadDefinition reads a YAML definition from disk.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return ParseDefinition(data)
}

// DefaultDefinition returns the layout the bundled model was trained on.
func DefaultDefinition() Definition {
	def, err := ParseDefinition(defaultYAML)
	if err != nil {
		panic(err)
	}
	return def
}

// ColumnName builds the one-hot column name for a selection.
func ColumnName(g laptop.Group, label string) string {
	return string(g) + "_" + label
}

type selection struct {
	group laptop.Group
	label string
}

// Schema is an immutable, validated feature layout. It is safe for
// concurrent use.
type Schema struct {
	columns       []string
	index         map[string]int
	scalars       []string
	categorical   []string
	dropped       []string
	unrepresented []string

	// lookup maps every offered selection to its column, or to "" when the
	// selection is its group's all-zero baseline.
	lookup map[selection]string
}

// Default builds the bundled schema against the bundled catalog.
func Default() (*Schema, error) {
	return New(DefaultDefinition(), laptop.DefaultCatalog())
}

// New validates def against itself and against every label in catalog.
func New(def Definition, catalog laptop.Catalog) (*Schema, error) {
	if len(def.Columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidSchema)
	}

	s := &Schema{
		columns:       append([]string(nil), def.Columns...),
		index:         make(map[string]int, len(def.Columns)),
		scalars:       append([]string(nil), def.Scalars...),
		dropped:       append([]string(nil), def.Dropped...),
		unrepresented: append([]string(nil), def.Unrepresented...),
		lookup:        make(map[selection]string),
	}

	for i, name := range s.columns {
		if name == "" {
			return nil, fmt.Errorf("%w: empty column name at position %d", ErrInvalidSchema, i)
		}
		if _, dup := s.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidSchema, name)
		}
		s.index[name] = i
	}

	scalarSet := make(map[string]struct{}, len(s.scalars))
	for _, name := range s.scalars {
		if _, ok := s.index[name]; !ok {
			return nil, fmt.Errorf("%w: scalar %q is not a column", ErrInvalidSchema, name)
		}
		scalarSet[name] = struct{}{}
	}
	for _, name := range s.columns {
		if _, ok := scalarSet[name]; !ok {
			s.categorical = append(s.categorical, name)
		}
	}

	baseline := make(map[string]struct{}, len(s.dropped)+len(s.unrepresented))
	for _, name := range s.dropped {
		if _, ok := s.index[name]; ok {
			return nil, fmt.Errorf("%w: dropped dummy %q is also a column", ErrInvalidSchema, name)
		}
		baseline[name] = struct{}{}
	}
	for _, name := range s.unrepresented {
		if _, ok := s.index[name]; ok {
			return nil, fmt.Errorf("%w: unrepresented category %q is also a column", ErrInvalidSchema, name)
		}
		if _, ok := baseline[name]; ok {
			return nil, fmt.Errorf("%w: %q is both dropped and unrepresented", ErrInvalidSchema, name)
		}
		baseline[name] = struct{}{}
	}

	for _, g := range laptop.Groups {
		labels := catalog[g]
		if len(labels) == 0 {
			return nil, fmt.Errorf("%w: no options for group %s", ErrInvalidSchema, g)
		}
		for _, label := range labels {
			name := ColumnName(g, label)
			if _, ok := s.index[name]; ok {
				if _, scalar := scalarSet[name]; scalar {
					return nil, fmt.Errorf("%w: option %q maps to scalar column", ErrInvalidSchema, name)
				}
				s.lookup[selection{g, label}] = name
				continue
			}
			if _, ok := baseline[name]; ok {
				s.lookup[selection{g, label}] = ""
				continue
			}
			return nil, fmt.Errorf("%w: option %q of group %s has no column, dropped or unrepresented entry",
				ErrInvalidSchema, label, g)
		}
	}

	return s, nil
}

// Column resolves a selection. ok is false when the label was never
// registered; an empty column with ok true is the group baseline.
func (s *Schema) Column(g laptop.Group, label string) (column string, ok bool) {
	column, ok = s.lookup[selection{g, label}]
	return column, ok
}

// Columns returns the column names in training order.
func (s *Schema) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Len is the vector length the model expects.
func (s *Schema) Len() int {
	return len(s.columns)
}

// Index returns the position of a column.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Scalars returns the always-present numeric and binary columns.
func (s *Schema) Scalars() []string {
	return append([]string(nil), s.scalars...)
}

// Categorical returns every column that is not a scalar, in column order.
func (s *Schema) Categorical() []string {
	return append([]string(nil), s.categorical...)
}

// Dropped returns the reference categories excluded from training.
func (s *Schema) Dropped() []string {
	return append([]string(nil), s.dropped...)
}

// Unrepresented returns offered categories that training never saw.
func (s *Schema) Unrepresented() []string {
	return append([]string(nil), s.unrepresented...)
}

// Definition returns a copy of the layout in serialisable form.
func (s *Schema) Definition() Definition {
	return Definition{
		Scalars:       s.Scalars(),
		Columns:       s.Columns(),
		Dropped:       s.Dropped(),
		Unrepresented: s.Unrepresented(),
	}
}

// GroupColumns returns the one-hot columns that belong to g.
func (s *Schema) GroupColumns(g laptop.Group) []string {
	var cols []string
	seen := make(map[string]struct{})
	for sel, col := range s.lookup {
		if sel.group != g || col == "" {
			continue
		}
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		cols = append(cols, col)
	}
	sort.Slice(cols, func(i, j int) bool { return s.index[cols[i]] < s.index[cols[j]] })
	return cols
}
