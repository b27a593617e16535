package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kartoza/laptop-pricer/internal/collector"
	"github.com/kartoza/laptop-pricer/internal/predict"
	"github.com/kartoza/laptop-pricer/internal/regressor"
	"github.com/kartoza/laptop-pricer/internal/schema"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	s, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default failed: %v", err)
	}
	model := regressor.Func(func(x []float64) (float64, error) { return 1000 + 100*x[0], nil })
	svc, err := predict.NewService(s, model, predict.Options{})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return New(svc)
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

func repeat(k tea.KeyMsg, n int) []tea.KeyMsg {
	out := make([]tea.KeyMsg, n)
	for i := range out {
		out[i] = k
	}
	return out
}

var (
	down  = tea.KeyMsg{Type: tea.KeyDown}
	up    = tea.KeyMsg{Type: tea.KeyUp}
	right = tea.KeyMsg{Type: tea.KeyRight}
	left  = tea.KeyMsg{Type: tea.KeyLeft}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInitialPrediction(t *testing.T) {
	m := newTestModel(t)
	if m.Err() != nil {
		t.Fatalf("Unexpected error: %v", m.Err())
	}
	if m.Result() == nil || m.Result().Price != 1800 {
		t.Fatalf("Expected default price 1800, got %+v", m.Result())
	}
	view := m.View()
	if !strings.Contains(view, "Predicted price") || !strings.Contains(view, "RAM (GB)") {
		t.Errorf("View missing content:\n%s", view)
	}
}

func TestStepRAM(t *testing.T) {
	m := newTestModel(t)
	// RAM is the sixth field.
	m = press(t, m, repeat(down, 5)...)
	m = press(t, m, right, right)

	if m.Form().RAM != 10 {
		t.Errorf("Expected RAM 10, got %d", m.Form().RAM)
	}
	if m.Result().Price != 2000 {
		t.Errorf("Expected price 2000, got %v", m.Result().Price)
	}

	m = press(t, m, repeat(left, 20)...)
	if m.Form().RAM != 2 {
		t.Errorf("Expected RAM clamped to 2, got %d", m.Form().RAM)
	}
}

func TestStepWeight(t *testing.T) {
	m := newTestModel(t)
	// Weight is the seventh field.
	m = press(t, m, repeat(down, 6)...)
	m = press(t, m, left)
	if m.Form().Weight != 2.49 {
		t.Errorf("Expected weight 2.49, got %v", m.Form().Weight)
	}

	m = press(t, m, repeat(left, 37)...)
	if m.Form().Weight != 2.12 {
		t.Errorf("Expected weight 2.12, got %v", m.Form().Weight)
	}
	m = press(t, m, repeat(right, 38)...)
	if m.Form().Weight != 2.5 {
		t.Errorf("Expected weight back at 2.5, got %v", m.Form().Weight)
	}
}

func TestCycleChoice(t *testing.T) {
	m := newTestModel(t)
	first := m.Form().Company
	m = press(t, m, right)
	if m.Form().Company == first {
		t.Error("Expected brand to change")
	}
	m = press(t, m, left)
	if m.Form().Company != first {
		t.Errorf("Expected brand back to %s, got %s", first, m.Form().Company)
	}
	// Wrap around backwards.
	m = press(t, m, left)
	if m.Form().Company == first {
		t.Error("Expected wrap to the last brand")
	}
}

func TestToggle(t *testing.T) {
	m := newTestModel(t)
	// Touchscreen is second from the end; up wraps around.
	m = press(t, m, repeat(up, 2)...)
	m = press(t, m, enter)
	if !m.Form().Touchscreen {
		t.Error("Expected touchscreen on")
	}
	if !strings.Contains(m.View(), "[x]") {
		t.Error("Expected checked box in view")
	}
}

func TestManualResolution(t *testing.T) {
	m := newTestModel(t)
	if m.Result().Resolution.Source != collector.ModeSlider {
		t.Fatalf("Empty manual fields should use the sliders")
	}

	m = press(t, m, repeat(down, 8)...)
	m = press(t, m, runes("2560"))
	m = press(t, m, down)
	m = press(t, m, runes("1440"))

	if m.Form().ManualWidth != "2560" || m.Form().ManualHeight != "1440" {
		t.Fatalf("Unexpected manual fields %q x %q", m.Form().ManualWidth, m.Form().ManualHeight)
	}
	res := m.Result().Resolution
	if res.Source != collector.ModeManual || res.Width != 2560 || res.Height != 1440 {
		t.Errorf("Expected manual 2560x1440, got %+v", res)
	}

	// q is text inside a text field, not quit.
	m = press(t, m, runes("q"))
	if m.Form().ManualHeight != "1440q" {
		t.Errorf("Expected q typed into the field, got %q", m.Form().ManualHeight)
	}
	if len(m.Result().Notices) == 0 {
		t.Error("Expected a notice for non-numeric height")
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}
