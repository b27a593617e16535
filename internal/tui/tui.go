// Package tui is a terminal front end for the price form. Every change
// re-runs the prediction, like the web form does.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kartoza/laptop-pricer/internal/collector"
	"github.com/kartoza/laptop-pricer/internal/laptop"
	"github.com/kartoza/laptop-pricer/internal/predict"
)

type fieldKind int

const (
	kindChoice fieldKind = iota // cycles through options with left/right
	kindNumber                  // steps through a range with left/right
	kindToggle                  // flips with enter or space
	kindText                    // free text
)

type field struct {
	label   string
	kind    fieldKind
	options []string
	rng     laptop.Range

	getText func(collector.Form) string
	setText func(*collector.Form, string)
	getNum  func(collector.Form) float64
	setNum  func(*collector.Form, float64)
	flag    func(*collector.Form) *bool

	input textinput.Model
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F5F7FA")).Background(lipgloss.Color("#243B53")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Width(20).Foreground(lipgloss.Color("#627D98"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2186EB"))
	priceStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#27AB83")).MarginTop(1)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CB6E17"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#BA2525"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9FB3C8")).MarginTop(1)
)

// Model is the bubbletea model for the form.
type Model struct {
	svc    *predict.Service
	form   collector.Form
	fields []field
	cursor int

	result *predict.Result
	err    error
}

// New returns a form model in its default state with a first prediction.
func New(svc *predict.Service) Model {
	m := Model{
		svc:  svc,
		form: collector.DefaultForm(),
	}
	m.fields = buildFields(svc.Catalog())
	m.syncInputs()
	m.recompute()
	return m
}

func choice(label string, options []string, get func(collector.Form) string, set func(*collector.Form, string)) field {
	return field{label: label, kind: kindChoice, options: options, getText: get, setText: set}
}

func number(label string, r laptop.Range, get func(collector.Form) float64, set func(*collector.Form, float64)) field {
	return field{label: label, kind: kindNumber, rng: r, getNum: get, setNum: set}
}

func toggle(label string, flag func(*collector.Form) *bool) field {
	return field{label: label, kind: kindToggle, flag: flag}
}

func text(label, placeholder string, get func(collector.Form) string, set func(*collector.Form, string)) field {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 5
	in.Width = 8
	in.Prompt = ""
	return field{label: label, kind: kindText, getText: get, setText: set, input: in}
}

func buildFields(c laptop.Catalog) []field {
	var hd []string
	for _, t := range laptop.HDTiers {
		hd = append(hd, t.String())
	}
	return []field{
		choice("Brand", c[laptop.GroupCompany],
			func(f collector.Form) string { return f.Company },
			func(f *collector.Form, v string) { f.Company = v }),
		choice("Type", c[laptop.GroupTypeName],
			func(f collector.Form) string { return f.TypeName },
			func(f *collector.Form, v string) { f.TypeName = v }),
		choice("CPU", c[laptop.GroupCPU],
			func(f collector.Form) string { return f.CPU },
			func(f *collector.Form, v string) { f.CPU = v }),
		choice("GPU", c[laptop.GroupGPU],
			func(f collector.Form) string { return f.GPU },
			func(f *collector.Form, v string) { f.GPU = v }),
		choice("Operating system", c[laptop.GroupOpSys],
			func(f collector.Form) string { return f.OpSys },
			func(f *collector.Form, v string) { f.OpSys = v }),
		number("RAM (GB)", laptop.RAMRange,
			func(f collector.Form) float64 { return float64(f.RAM) },
			func(f *collector.Form, v float64) { f.RAM = int(v) }),
		number("Weight (kg)", laptop.WeightRange,
			func(f collector.Form) float64 { return f.Weight },
			func(f *collector.Form, v float64) { f.Weight = v }),
		choice("Resolution from", []string{string(collector.ModeManual), string(collector.ModeSlider)},
			func(f collector.Form) string { return string(f.ResolutionMode) },
			func(f *collector.Form, v string) { f.ResolutionMode = collector.Mode(v) }),
		text("Manual width", "1920",
			func(f collector.Form) string { return f.ManualWidth },
			func(f *collector.Form, v string) { f.ManualWidth = v }),
		text("Manual height", "1080",
			func(f collector.Form) string { return f.ManualHeight },
			func(f *collector.Form, v string) { f.ManualHeight = v }),
		number("Slider width", laptop.WidthRange,
			func(f collector.Form) float64 { return float64(f.SliderWidth) },
			func(f *collector.Form, v float64) { f.SliderWidth = int(v) }),
		number("Slider height", laptop.HeightRange,
			func(f collector.Form) float64 { return float64(f.SliderHeight) },
			func(f *collector.Form, v float64) { f.SliderHeight = int(v) }),
		number("Screen (inches)", laptop.InchesRange,
			func(f collector.Form) float64 { return float64(f.ScreenInches) },
			func(f *collector.Form, v float64) { f.ScreenInches = int(v) }),
		toggle("IPS", func(f *collector.Form) *bool { return &f.IPS }),
		toggle("Retina", func(f *collector.Form) *bool { return &f.Retina }),
		toggle("Touchscreen", func(f *collector.Form) *bool { return &f.Touchscreen }),
		choice("HD", hd,
			func(f collector.Form) string { return f.HD },
			func(f *collector.Form, v string) { f.HD = v }),
	}
}

// Form returns the current control state.
func (m Model) Form() collector.Form {
	return m.form
}

// Result returns the latest prediction, or nil.
func (m Model) Result() *predict.Result {
	return m.result
}

// Err returns the latest error, or nil.
func (m Model) Err() error {
	return m.err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	f := &m.fields[m.cursor]

	switch key.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "up", "shift+tab":
		return m.move(-1), nil
	case "down", "tab":
		return m.move(1), nil
	}

	if f.kind == kindText {
		var cmd tea.Cmd
		f.input, cmd = f.input.Update(msg)
		if f.input.Value() != f.getText(m.form) {
			f.setText(&m.form, f.input.Value())
			m.recompute()
		}
		return m, cmd
	}

	switch key.String() {
	case "q", "esc":
		return m, tea.Quit
	case "left", "h":
		m.step(f, -1)
	case "right", "l":
		m.step(f, 1)
	case "enter", " ":
		if f.kind != kindToggle {
			return m, nil
		}
		b := f.flag(&m.form)
		*b = !*b
		m.recompute()
	}
	return m, nil
}

func (m Model) move(delta int) Model {
	m.fields[m.cursor].input.Blur()
	m.cursor = (m.cursor + delta + len(m.fields)) % len(m.fields)
	if m.fields[m.cursor].kind == kindText {
		m.fields[m.cursor].input.Focus()
	}
	return m
}

func (m *Model) step(f *field, delta int) {
	switch f.kind {
	case kindChoice:
		if len(f.options) == 0 {
			return
		}
		i := indexOf(f.options, f.getText(m.form))
		i = (i + delta + len(f.options)) % len(f.options)
		f.setText(&m.form, f.options[i])
	case kindNumber:
		v := f.getNum(m.form) + float64(delta)*f.rng.Step
		f.setNum(&m.form, f.rng.Clamp(f.rng.Snap(v)))
	default:
		return
	}
	m.recompute()
}

// syncInputs copies form text into the text inputs.
func (m *Model) syncInputs() {
	for i := range m.fields {
		if m.fields[i].kind == kindText {
			m.fields[i].input.SetValue(m.fields[i].getText(m.form))
		}
	}
}

func (m *Model) recompute() {
	m.result, m.err = m.svc.Predict(m.form)
}

func indexOf(options []string, v string) int {
	for i, o := range options {
		if o == v {
			return i
		}
	}
	return 0
}

func (f field) value(form collector.Form) string {
	switch f.kind {
	case kindChoice:
		return "‹ " + f.getText(form) + " ›"
	case kindNumber:
		v := f.getNum(form)
		if f.rng.Step < 1 {
			return "‹ " + strconv.FormatFloat(v, 'f', 2, 64) + " ›"
		}
		return "‹ " + strconv.FormatFloat(v, 'f', 0, 64) + " ›"
	case kindToggle:
		if *f.flag(&form) {
			return "[x]"
		}
		return "[ ]"
	case kindText:
		return f.input.View()
	}
	return ""
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Laptop Price Predictor"))
	b.WriteString("\n\n")

	for i, f := range m.fields {
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("> ")
		}
		b.WriteString(cursor + labelStyle.Render(f.label) + f.value(m.form) + "\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(priceStyle.Render("Predicted price: –"))
		b.WriteString("\n" + errorStyle.Render(m.err.Error()))
	case m.result != nil:
		b.WriteString(priceStyle.Render("Predicted price: " + m.result.Display))
		for _, n := range m.result.Notices {
			b.WriteString("\n" + noticeStyle.Render(n.Message))
		}
		b.WriteString(fmt.Sprintf("\n%s %dx%d", helpStyle.Render("resolution:"), m.result.Resolution.Width, m.result.Resolution.Height))
	}

	b.WriteString("\n" + helpStyle.Render("↑/↓ move • ←/→ change • enter toggle • q quit"))
	return b.String()
}
