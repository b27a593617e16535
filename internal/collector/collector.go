// Package collector captures the state of the form controls into a
// laptop.RawInput.
package collector

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kartoza/laptop-pricer/internal/laptop"
)

// ErrInvalidInput reports a control value that cannot be coerced.
var ErrInvalidInput = errors.New("invalid form input")

// Mode selects where the screen resolution comes from.
type Mode string

const (
	ModeManual Mode = "manual"
	ModeSlider Mode = "slider"
)

// Form is the raw state of every control, as the UI holds it.
type Form struct {
	Company        string  `json:"company"`
	TypeName       string  `json:"type_name"`
	CPU            string  `json:"cpu"`
	GPU            string  `json:"gpu"`
	OpSys          string  `json:"opsys"`
	RAM            int     `json:"ram_gb"`
	Weight         float64 `json:"weight_kg"`
	ResolutionMode Mode    `json:"resolution_mode"`
	ManualWidth    string  `json:"manual_width"`
	ManualHeight   string  `json:"manual_height"`
	SliderWidth    int     `json:"slider_width"`
	SliderHeight   int     `json:"slider_height"`
	ScreenInches   int     `json:"screen_inches"`
	IPS            bool    `json:"ips"`
	Retina         bool    `json:"retina"`
	Touchscreen    bool    `json:"touchscreen"`
	HD             string  `json:"hd"`
}

// DefaultForm is the state of a freshly opened form.
func DefaultForm() Form {
	c := laptop.DefaultCatalog()
	return Form{
		Company:        c.Default(laptop.GroupCompany),
		TypeName:       c.Default(laptop.GroupTypeName),
		CPU:            c.Default(laptop.GroupCPU),
		GPU:            c.Default(laptop.GroupGPU),
		OpSys:          c.Default(laptop.GroupOpSys),
		RAM:            int(laptop.RAMRange.Default),
		Weight:         laptop.WeightRange.Default,
		ResolutionMode: ModeManual,
		SliderWidth:    int(laptop.WidthRange.Default),
		SliderHeight:   int(laptop.HeightRange.Default),
		ScreenInches:   int(laptop.InchesRange.Default),
		HD:             laptop.NoHD.String(),
	}
}

// ResolutionSource records which control supplied the resolution.
type ResolutionSource struct {
	Source Mode `json:"source"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
}

// Notice tells the user that a value was not taken as entered.
type Notice struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (n Notice) String() string {
	return n.Field + ": " + n.Message
}

// Capture is the outcome of one collection cycle.
type Capture struct {
	Input      laptop.RawInput  `json:"input"`
	Resolution ResolutionSource `json:"resolution"`
	Notices    []Notice         `json:"notices,omitempty"`
}

// Collector coerces forms against a catalog of offered options.
type Collector struct {
	catalog laptop.Catalog
}

// New returns a collector for catalog.
func New(catalog laptop.Catalog) *Collector {
	return &Collector{catalog: catalog}
}

// Collect turns f into a RawInput. Bad manual resolution text never fails
// the cycle; it falls back to the sliders and adds a notice.
func (c *Collector) Collect(f Form) (Capture, error) {
	var capture Capture

	for _, g := range laptop.Groups {
		label := selection(f, g)
		if !c.catalog.Has(g, label) {
			return capture, fmt.Errorf("%w: %s %q is not an offered option", ErrInvalidInput, g, label)
		}
	}

	hd, err := laptop.ParseHDTier(f.HD)
	if err != nil {
		return capture, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	checks := []struct {
		field string
		value float64
		r     laptop.Range
	}{
		{"ram_gb", float64(f.RAM), laptop.RAMRange},
		{"weight_kg", f.Weight, laptop.WeightRange},
		{"slider_width", float64(f.SliderWidth), laptop.WidthRange},
		{"slider_height", float64(f.SliderHeight), laptop.HeightRange},
		{"screen_inches", float64(f.ScreenInches), laptop.InchesRange},
	}
	for _, check := range checks {
		if !check.r.Contains(check.value) {
			return capture, fmt.Errorf("%w: %s %v outside [%v, %v]",
				ErrInvalidInput, check.field, check.value, check.r.Min, check.r.Max)
		}
	}

	res, notices, err := ResolveResolution(f)
	if err != nil {
		return capture, err
	}

	capture.Input = laptop.RawInput{
		Company:          f.Company,
		TypeName:         f.TypeName,
		CPU:              f.CPU,
		GPU:              f.GPU,
		OpSys:            f.OpSys,
		RAM:              f.RAM,
		Weight:           f.Weight,
		ResolutionWidth:  res.Width,
		ResolutionHeight: res.Height,
		ScreenInches:     f.ScreenInches,
		IPS:              f.IPS,
		Retina:           f.Retina,
		Touchscreen:      f.Touchscreen,
		HD:               hd,
	}
	capture.Resolution = res
	capture.Notices = notices
	return capture, nil
}

// ResolveResolution picks the resolution once per cycle. Manual values win
// only when both parse as positive integers.
func ResolveResolution(f Form) (ResolutionSource, []Notice, error) {
	slider := ResolutionSource{Source: ModeSlider, Width: f.SliderWidth, Height: f.SliderHeight}

	switch Mode(strings.ToLower(strings.TrimSpace(string(f.ResolutionMode)))) {
	case ModeSlider:
		return slider, nil, nil
	case ModeManual:
	default:
		return ResolutionSource{}, nil, fmt.Errorf("%w: resolution mode %q", ErrInvalidInput, f.ResolutionMode)
	}

	w := strings.TrimSpace(f.ManualWidth)
	h := strings.TrimSpace(f.ManualHeight)
	if w == "" || h == "" {
		return slider, []Notice{{
			Field:   "resolution",
			Message: fmt.Sprintf("enter both width and height to override; using %dx%d from the sliders", slider.Width, slider.Height),
		}}, nil
	}

	width, werr := parseDimension(w)
	height, herr := parseDimension(h)
	var notices []Notice
	if werr != nil {
		notices = append(notices, Notice{Field: "manual_width", Message: werr.Error()})
	}
	if herr != nil {
		notices = append(notices, Notice{Field: "manual_height", Message: herr.Error()})
	}
	if len(notices) > 0 {
		notices = append(notices, Notice{
			Field:   "resolution",
			Message: fmt.Sprintf("using %dx%d from the sliders", slider.Width, slider.Height),
		})
		return slider, notices, nil
	}

	return ResolutionSource{Source: ModeManual, Width: width, Height: height}, nil, nil
}

func parseDimension(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%d must be positive", v)
	}
	return v, nil
}

func selection(f Form, g laptop.Group) string {
	switch g {
	case laptop.GroupCompany:
		return f.Company
	case laptop.GroupTypeName:
		return f.TypeName
	case laptop.GroupCPU:
		return f.CPU
	case laptop.GroupGPU:
		return f.GPU
	case laptop.GroupOpSys:
		return f.OpSys
	}
	return ""
}

// FromValues overlays url-encoded control values on the default form.
// Checkboxes are on when present with any value other than "false" or "0".
func FromValues(values url.Values) (Form, error) {
	f := DefaultForm()

	strs := map[string]*string{
		"company":       &f.Company,
		"type_name":     &f.TypeName,
		"cpu":           &f.CPU,
		"gpu":           &f.GPU,
		"opsys":         &f.OpSys,
		"manual_width":  &f.ManualWidth,
		"manual_height": &f.ManualHeight,
		"hd":            &f.HD,
	}
	for key, dst := range strs {
		if values.Has(key) {
			*dst = values.Get(key)
		}
	}

	if values.Has("resolution_mode") {
		f.ResolutionMode = Mode(values.Get("resolution_mode"))
	}

	ints := map[string]*int{
		"ram_gb":        &f.RAM,
		"slider_width":  &f.SliderWidth,
		"slider_height": &f.SliderHeight,
		"screen_inches": &f.ScreenInches,
	}
	for key, dst := range ints {
		if !values.Has(key) {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(values.Get(key)))
		if err != nil {
			return f, fmt.Errorf("%w: %s %q", ErrInvalidInput, key, values.Get(key))
		}
		*dst = v
	}

	if values.Has("weight_kg") {
		v, err := strconv.ParseFloat(strings.TrimSpace(values.Get("weight_kg")), 64)
		if err != nil {
			return f, fmt.Errorf("%w: weight_kg %q", ErrInvalidInput, values.Get("weight_kg"))
		}
		f.Weight = v
	}

	bools := map[string]*bool{
		"ips":         &f.IPS,
		"retina":      &f.Retina,
		"touchscreen": &f.Touchscreen,
	}
	for key, dst := range bools {
		if values.Has(key) {
			v := strings.ToLower(values.Get(key))
			*dst = v != "false" && v != "0"
		}
	}

	return f, nil
}
