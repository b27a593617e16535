// Package laptop defines the attributes a user can pick for a laptop and the
// raw record those picks are captured into.
package laptop

import (
	"fmt"
	"math"
)

// Group names a one-hot encoded attribute. The string value is the column
// prefix used by the training schema.
type Group string

const (
	GroupCompany  Group = "Company"
	GroupTypeName Group = "TypeName"
	GroupCPU      Group = "Cpu"
	GroupGPU      Group = "Gpu"
	GroupOpSys    Group = "OpSys"
)

// Groups lists every categorical group in encoding order.
var Groups = []Group{GroupCompany, GroupTypeName, GroupCPU, GroupGPU, GroupOpSys}

// Catalog maps each group to the labels the form offers, in display order.
// The first label of each group is the form default.
type Catalog map[Group][]string

// DefaultCatalog returns the options offered by the form. Labels must match
// the training-time strings exactly.
func DefaultCatalog() Catalog {
	return Catalog{
		GroupCompany:  {"Apple", "Asus", "Dell", "HP", "Lenovo", "MSI", "Toshiba", "Acer"},
		GroupTypeName: {"Gaming", "Netbook", "Notebook", "Ultrabook", "Workstation", "2 in 1 Convertible"},
		GroupCPU:      {"Intel Core i3", "Intel Core i5", "Intel Core i7", "AMD"},
		GroupGPU:      {"Intel HD Graphics", "Intel Other", "Intel UHD Graphics", "Nvidia", "AMD"},
		GroupOpSys:    {"Mac", "No OS", "Windows 10", "Windows 7", "Linux"},
	}
}

// Has reports whether label is offered for g.
func (c Catalog) Has(g Group, label string) bool {
	for _, l := range c[g] {
		if l == label {
			return true
		}
	}
	return false
}

// Default returns the first option of g, or "" when g has none.
func (c Catalog) Default(g Group) string {
	if len(c[g]) == 0 {
		return ""
	}
	return c[g][0]
}

// HDTier is the display class, encoded as its ordinal.
type HDTier int

const (
	NoHD HDTier = iota
	FullHD
	QHD
	UHD4K
)

// HDTiers lists every tier in ordinal order.
var HDTiers = []HDTier{NoHD, FullHD, QHD, UHD4K}

var hdLabels = map[HDTier]string{
	NoHD:   "No HD",
	FullHD: "Full HD",
	QHD:    "QHD",
	UHD4K:  "4K HD",
}

func (t HDTier) String() string {
	if l, ok := hdLabels[t]; ok {
		return l
	}
	return fmt.Sprintf("HDTier(%d)", int(t))
}

// Valid reports whether t is one of the known tiers.
func (t HDTier) Valid() bool {
	_, ok := hdLabels[t]
	return ok
}

// ParseHDTier maps a display label back to its tier.
func ParseHDTier(label string) (HDTier, error) {
	for _, t := range HDTiers {
		if hdLabels[t] == label {
			return t, nil
		}
	}
	return NoHD, fmt.Errorf("unknown HD tier %q", label)
}

// Range bounds a numeric control.
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Step    float64 `json:"step"`
}

// Contains reports whether v lies within the closed range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp limits v to the range.
func (r Range) Clamp(v float64) float64 {
	switch {
	case v < r.Min:
		return r.Min
	case v > r.Max:
		return r.Max
	}
	return v
}

// Snap rounds v to the nearest multiple of the step, so repeated steps land
// on the same float64 a typed value would parse to.
func (r Range) Snap(v float64) float64 {
	switch {
	case r.Step <= 0:
		return v
	case r.Step < 1:
		scale := math.Round(1 / r.Step)
		return math.Round(v*scale) / scale
	}
	return math.Round(v/r.Step) * r.Step
}

// Control ranges and defaults of the form.
var (
	RAMRange    = Range{Min: 2, Max: 64, Default: 8, Step: 1}
	WeightRange = Range{Min: 1.0, Max: 5.0, Default: 2.5, Step: 0.01}
	WidthRange  = Range{Min: 800, Max: 3840, Default: 1920, Step: 1}
	HeightRange = Range{Min: 600, Max: 2160, Default: 1080, Step: 1}
	InchesRange = Range{Min: 10, Max: 20, Default: 15, Step: 1}
)

// RawInput is one captured set of user selections. It is built per
// interaction and never modified afterwards.
type RawInput struct {
	Company          string  `json:"company"`
	TypeName         string  `json:"type_name"`
	CPU              string  `json:"cpu"`
	GPU              string  `json:"gpu"`
	OpSys            string  `json:"opsys"`
	RAM              int     `json:"ram_gb"`
	Weight           float64 `json:"weight_kg"`
	ResolutionWidth  int     `json:"resolution_width"`
	ResolutionHeight int     `json:"resolution_height"`
	ScreenInches     int     `json:"screen_inches"`
	IPS              bool    `json:"ips"`
	Retina           bool    `json:"retina"`
	Touchscreen      bool    `json:"touchscreen"`
	HD               HDTier  `json:"hd_tier"`
}

// Selection returns the label chosen for g.
func (r RawInput) Selection(g Group) string {
	switch g {
	case GroupCompany:
		return r.Company
	case GroupTypeName:
		return r.TypeName
	case GroupCPU:
		return r.CPU
	case GroupGPU:
		return r.GPU
	case GroupOpSys:
		return r.OpSys
	}
	return ""
}
