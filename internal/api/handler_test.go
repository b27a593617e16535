package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/kartoza/laptop-pricer/internal/config"
	"github.com/kartoza/laptop-pricer/internal/models"
	"github.com/kartoza/laptop-pricer/internal/predict"
	"github.com/kartoza/laptop-pricer/internal/profiles"
	"github.com/kartoza/laptop-pricer/internal/regressor"
	"github.com/kartoza/laptop-pricer/internal/schema"
)

// ramPrice prices a laptop at 1000 + 100 per GB of RAM
var ramPrice = regressor.Func(func(x []float64) (float64, error) {
	return 1000 + 100*x[0], nil
})

func newTestRouter(t *testing.T, model regressor.Predictor) *mux.Router {
	t.Helper()
	r, _ := newTestRouterWithProfiles(t, model)
	return r
}

func newTestRouterWithProfiles(t *testing.T, model regressor.Predictor) (*mux.Router, *profiles.Store) {
	t.Helper()
	s, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default failed: %v", err)
	}
	svc, err := predict.NewService(s, model, predict.Options{CacheSize: 16})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	cfg := config.Default()
	cfg.Version = "test"
	store, err := profiles.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("profiles.NewStore failed: %v", err)
	}
	handler := NewHandler(Static(svc), store, cfg, nil)
	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	return r, store
}

func serve(r http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t, ramPrice)
	w := serve(r, "GET", "/health", "", "")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	json.NewDecoder(w.Body).Decode(&response)

	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", response["status"])
	}
}

func TestInfoEndpoint(t *testing.T) {
	r := newTestRouter(t, ramPrice)
	w := serve(r, "GET", "/info", "", "")

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(w.Body).Decode(&response)

	if response["version"] != "test" {
		t.Errorf("Expected version 'test', got '%v'", response["version"])
	}
	if response["model_loaded"] != true {
		t.Errorf("Expected model_loaded true, got %v", response["model_loaded"])
	}
	if response["columns"] != float64(34) {
		t.Errorf("Expected 34 columns, got %v", response["columns"])
	}
}

func TestSchemaEndpoint(t *testing.T) {
	r := newTestRouter(t, ramPrice)
	w := serve(r, "GET", "/schema", "", "")

	var def schema.Definition
	if err := json.NewDecoder(w.Body).Decode(&def); err != nil {
		t.Fatalf("Failed to decode schema: %v", err)
	}
	if len(def.Columns) != 34 || def.Columns[0] != "Ram" {
		t.Errorf("Unexpected columns %v", def.Columns)
	}
	if len(def.Dropped) != 4 {
		t.Errorf("Expected 4 dropped references, got %v", def.Dropped)
	}
}

func TestOptionsEndpoint(t *testing.T) {
	r := newTestRouter(t, ramPrice)
	w := serve(r, "GET", "/options", "", "")

	var resp models.OptionsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode options: %v", err)
	}
	if len(resp.Groups) != 5 {
		t.Fatalf("Expected 5 groups, got %d", len(resp.Groups))
	}
	company := resp.Groups[0]
	if company.Group != "Company" || company.Default != company.Options[0] {
		t.Errorf("Unexpected company options %+v", company)
	}
	if len(resp.HDTiers) != 4 || resp.HDTiers[0] != "No HD" {
		t.Errorf("Unexpected HD tiers %v", resp.HDTiers)
	}
	if resp.Ranges["ram_gb"].Max != 64 {
		t.Errorf("Unexpected RAM range %+v", resp.Ranges["ram_gb"])
	}
}

func TestPredictEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantPrice   float64
	}{
		{"json defaults", "application/json", `{}`, http.StatusOK, 1800},
		{"json ram", "application/json", `{"ram_gb": 16}`, http.StatusOK, 2600},
		{"empty body", "", "", http.StatusOK, 1800},
		{"urlencoded", "application/x-www-form-urlencoded", url.Values{"ram_gb": {"4"}}.Encode(), http.StatusOK, 1400},
		{"unknown company", "application/json", `{"company": "Nokia"}`, http.StatusBadRequest, 0},
		{"ram out of range", "application/json", `{"ram_gb": 512}`, http.StatusBadRequest, 0},
		{"bad json", "application/json", `{"ram_gb": "lots"}`, http.StatusBadRequest, 0},
		{"json mode any case", "application/json", `{"resolution_mode": "Slider", "ram_gb": 4}`, http.StatusOK, 1400},
		{"urlencoded mode any case", "application/x-www-form-urlencoded", url.Values{"resolution_mode": {"Slider"}, "ram_gb": {"4"}}.Encode(), http.StatusOK, 1400},
		{"unknown mode", "application/json", `{"resolution_mode": "auto"}`, http.StatusBadRequest, 0},
	}

	r := newTestRouter(t, ramPrice)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, "POST", "/predict", tt.contentType, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var res predict.Result
			if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
				t.Fatalf("Failed to decode result: %v", err)
			}
			if res.Price != tt.wantPrice {
				t.Errorf("Expected price %v, got %v", tt.wantPrice, res.Price)
			}
		})
	}
}

func TestPredictUnavailable(t *testing.T) {
	r := newTestRouter(t, nil)
	if w := serve(r, "POST", "/predict", "application/json", `{}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a model, got %d", w.Code)
	}
	// Encoding does not need a model.
	if w := serve(r, "POST", "/encode", "application/json", `{}`); w.Code != http.StatusOK {
		t.Errorf("Expected 200 from encode, got %d", w.Code)
	}

	failing := regressor.Func(func([]float64) (float64, error) { return 0, errors.New("boom") })
	r = newTestRouter(t, failing)
	if w := serve(r, "POST", "/predict", "application/json", `{}`); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 for model failure, got %d", w.Code)
	}
}

func TestEncodeEndpoint(t *testing.T) {
	r := newTestRouter(t, ramPrice)
	body := `{"resolution_mode": "manual", "manual_width": "1920", "manual_height": "1080", "screen_inches": 13}`
	w := serve(r, "POST", "/encode", "application/json", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var enc predict.Encoding
	if err := json.NewDecoder(w.Body).Decode(&enc); err != nil {
		t.Fatalf("Failed to decode encoding: %v", err)
	}
	if len(enc.Vector) != 34 || len(enc.Features) != 34 {
		t.Fatalf("Expected 34 features, got %d", len(enc.Vector))
	}
	if enc.Resolution.Source != "manual" {
		t.Errorf("Expected manual resolution, got %s", enc.Resolution.Source)
	}
	if enc.Features[2].Name != "PPI" || enc.Features[2].Value < 169.4 || enc.Features[2].Value > 169.5 {
		t.Errorf("Unexpected PPI feature %+v", enc.Features[2])
	}
}

func TestPredictBatchEndpoint(t *testing.T) {
	r := newTestRouter(t, ramPrice)

	w := serve(r, "POST", "/predict/batch", "application/json", `{"forms": [{"ram_gb": 2}, {}, {"ram_gb": 32}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp models.BatchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode batch: %v", err)
	}
	want := []float64{1200, 1800, 4200}
	if len(resp.Results) != len(want) {
		t.Fatalf("Expected %d results, got %d", len(want), len(resp.Results))
	}
	for i, res := range resp.Results {
		if res.Price != want[i] {
			t.Errorf("Result %d: expected %v, got %v", i, want[i], res.Price)
		}
	}

	if w := serve(r, "POST", "/predict/batch", "application/json", `{"forms": []}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty batch, got %d", w.Code)
	}
	if w := serve(r, "POST", "/predict/batch", "application/json", `{"forms": [{}, {"hd": "8K"}]}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid form, got %d", w.Code)
	}
}

func TestStreamEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, ramPrice))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	frames := []struct {
		body       string
		wantStatus int
		wantPrice  float64
	}{
		{`{"ram_gb": 8}`, 0, 1800},
		{`{"ram_gb": 12}`, 0, 2200},
		{`{"opsys": "BeOS"}`, http.StatusBadRequest, 0},
		{`not json`, http.StatusBadRequest, 0},
	}

	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f.body)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		var reply models.StreamReply
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if reply.Status != f.wantStatus {
			t.Errorf("%s: expected status %d, got %d (%s)", f.body, f.wantStatus, reply.Status, reply.Error)
			continue
		}
		if f.wantStatus == 0 && (reply.Result == nil || reply.Result.Price != f.wantPrice) {
			t.Errorf("%s: expected price %v, got %+v", f.body, f.wantPrice, reply.Result)
		}
	}
}
