package collector

import (
	"errors"
	"net/url"
	"testing"

	"github.com/kartoza/laptop-pricer/internal/laptop"
)

func newTestCollector() *Collector {
	return New(laptop.DefaultCatalog())
}

func TestDefaultFormCollects(t *testing.T) {
	capture, err := newTestCollector().Collect(DefaultForm())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	in := capture.Input
	if in.Company != "Apple" || in.TypeName != "Gaming" || in.OpSys != "Mac" {
		t.Errorf("Unexpected default selections: %+v", in)
	}
	if in.RAM != 8 || in.Weight != 2.5 || in.ScreenInches != 15 {
		t.Errorf("Unexpected default numbers: %+v", in)
	}
	if in.ResolutionWidth != 1920 || in.ResolutionHeight != 1080 {
		t.Errorf("Expected 1920x1080, got %dx%d", in.ResolutionWidth, in.ResolutionHeight)
	}
	if capture.Resolution.Source != ModeSlider {
		t.Errorf("Expected slider fallback for empty manual entry, got %s", capture.Resolution.Source)
	}
}

func TestResolveResolution(t *testing.T) {
	tests := []struct {
		name        string
		mode        Mode
		width       string
		height      string
		wantSource  Mode
		wantW       int
		wantH       int
		wantNotices bool
	}{
		{"slider", ModeSlider, "3000", "2000", ModeSlider, 1366, 768, false},
		{"manual", ModeManual, "2560", "1600", ModeManual, 2560, 1600, false},
		{"manual outside slider range", ModeManual, "7680", "4320", ModeManual, 7680, 4320, false},
		{"manual padded", ModeManual, " 1280 ", "800", ModeManual, 1280, 800, false},
		{"manual empty", ModeManual, "", "", ModeSlider, 1366, 768, true},
		{"manual half empty", ModeManual, "2560", "", ModeSlider, 1366, 768, true},
		{"manual garbage", ModeManual, "wide", "1600", ModeSlider, 1366, 768, true},
		{"manual decimal", ModeManual, "2560.5", "1600", ModeSlider, 1366, 768, true},
		{"manual negative", ModeManual, "-2560", "1600", ModeSlider, 1366, 768, true},
		{"mode case ignored", Mode("Manual"), "2560", "1600", ModeManual, 2560, 1600, false},
		{"mode padded", Mode(" SLIDER "), "2560", "1600", ModeSlider, 1366, 768, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := DefaultForm()
			f.ResolutionMode = tt.mode
			f.ManualWidth = tt.width
			f.ManualHeight = tt.height
			f.SliderWidth = 1366
			f.SliderHeight = 768

			res, notices, err := ResolveResolution(f)
			if err != nil {
				t.Fatalf("ResolveResolution failed: %v", err)
			}
			if res.Source != tt.wantSource || res.Width != tt.wantW || res.Height != tt.wantH {
				t.Errorf("Got %+v, want %s %dx%d", res, tt.wantSource, tt.wantW, tt.wantH)
			}
			if (len(notices) > 0) != tt.wantNotices {
				t.Errorf("Notices = %v, want notices: %v", notices, tt.wantNotices)
			}
		})
	}
}

func TestManualFallbackMatchesSlider(t *testing.T) {
	c := newTestCollector()

	manual := DefaultForm()
	manual.ResolutionMode = ModeManual
	manual.SliderWidth = 2880
	manual.SliderHeight = 1800

	slider := manual
	slider.ResolutionMode = ModeSlider

	a, err := c.Collect(manual)
	if err != nil {
		t.Fatalf("Collect manual failed: %v", err)
	}
	b, err := c.Collect(slider)
	if err != nil {
		t.Fatalf("Collect slider failed: %v", err)
	}
	if a.Input != b.Input {
		t.Errorf("Expected identical inputs, got %+v and %+v", a.Input, b.Input)
	}
	if len(a.Notices) == 0 {
		t.Error("Expected a notice for the manual fallback")
	}
}

func TestCollectRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Form)
	}{
		{"unknown company", func(f *Form) { f.Company = "Razer" }},
		{"unknown gpu", func(f *Form) { f.GPU = "nvidia" }},
		{"unknown hd", func(f *Form) { f.HD = "8K" }},
		{"ram too small", func(f *Form) { f.RAM = 1 }},
		{"weight too heavy", func(f *Form) { f.Weight = 5.5 }},
		{"inches zero", func(f *Form) { f.ScreenInches = 0 }},
		{"slider width", func(f *Form) { f.SliderWidth = 640 }},
		{"unknown mode", func(f *Form) { f.ResolutionMode = "auto" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := DefaultForm()
			tt.mutate(&f)
			if _, err := newTestCollector().Collect(f); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestFromValues(t *testing.T) {
	values := url.Values{
		"company":         {"Dell"},
		"cpu":             {"Intel Core i7"},
		"ram_gb":          {"16"},
		"weight_kg":       {"1.8"},
		"resolution_mode": {"Manual"},
		"manual_width":    {"3840"},
		"manual_height":   {"2160"},
		"ips":             {"on"},
		"retina":          {"false"},
		"hd":              {"4K HD"},
	}

	f, err := FromValues(values)
	if err != nil {
		t.Fatalf("FromValues failed: %v", err)
	}
	if f.Company != "Dell" || f.CPU != "Intel Core i7" || f.RAM != 16 || f.Weight != 1.8 {
		t.Errorf("Unexpected form: %+v", f)
	}
	if !f.IPS || f.Retina || f.Touchscreen {
		t.Errorf("Unexpected flags: ips=%v retina=%v touch=%v", f.IPS, f.Retina, f.Touchscreen)
	}
	if f.ScreenInches != 15 {
		t.Errorf("Expected default inches 15, got %d", f.ScreenInches)
	}

	capture, err := newTestCollector().Collect(f)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if capture.Input.HD != laptop.UHD4K || capture.Input.ResolutionWidth != 3840 {
		t.Errorf("Unexpected capture: %+v", capture.Input)
	}

	if _, err := FromValues(url.Values{"ram_gb": {"lots"}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for bad ram, got %v", err)
	}
}
