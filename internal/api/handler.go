package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/kartoza/laptop-pricer/internal/collector"
	"github.com/kartoza/laptop-pricer/internal/config"
	"github.com/kartoza/laptop-pricer/internal/encoder"
	"github.com/kartoza/laptop-pricer/internal/httputil"
	"github.com/kartoza/laptop-pricer/internal/laptop"
	"github.com/kartoza/laptop-pricer/internal/models"
	"github.com/kartoza/laptop-pricer/internal/predict"
	"github.com/kartoza/laptop-pricer/internal/profiles"
	"go.uber.org/zap"
)

const (
	maxBodyBytes  = 1 << 20
	maxBatchForms = 1000
	maxFrameBytes = 64 << 10
)

// ServiceFunc returns the prediction service current at call time.
type ServiceFunc func() *predict.Service

// Static always returns svc.
func Static(svc *predict.Service) ServiceFunc {
	return func() *predict.Service { return svc }
}

// Handler provides HTTP API endpoints
type Handler struct {
	service  ServiceFunc
	profiles *profiles.Store
	cfg      config.Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new API handler. profileStore may be nil.
func NewHandler(service ServiceFunc, profileStore *profiles.Store, cfg config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:  service,
		profiles: profileStore,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Form description
	r.HandleFunc("/schema", h.handleSchema).Methods("GET")
	r.HandleFunc("/options", h.handleOptions).Methods("GET")

	// Encoding and prediction
	r.HandleFunc("/encode", h.handleEncode).Methods("POST")
	r.HandleFunc("/predict", h.handlePredict).Methods("POST")
	r.HandleFunc("/predict/batch", h.handlePredictBatch).Methods("POST")
	r.HandleFunc("/ws", h.handleStream).Methods("GET")

	// Saved profiles
	h.registerProfileRoutes(r)
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, collector.ErrInvalidInput),
		errors.Is(err, encoder.ErrInvalidInput),
		errors.Is(err, encoder.ErrUnknownCategory):
		return http.StatusBadRequest
	case errors.Is(err, predict.ErrNoModel):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	httputil.RespondError(w, status, err.Error())
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	svc := h.service()
	info := map[string]interface{}{
		"version":       h.cfg.Version,
		"model_loaded":  svc.HasModel(),
		"model":         svc.ModelInfo(),
		"columns":       svc.Schema().Len(),
		"cache_entries": svc.CacheLen(),
	}
	httputil.RespondJSON(w, http.StatusOK, info)
}

// handleSchema returns the feature layout the model expects
func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.service().Schema().Definition())
}

// handleOptions describes every control of the form
func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	catalog := h.service().Catalog()

	resp := models.OptionsResponse{
		Ranges: map[string]laptop.Range{
			"ram_gb":        laptop.RAMRange,
			"weight_kg":     laptop.WeightRange,
			"slider_width":  laptop.WidthRange,
			"slider_height": laptop.HeightRange,
			"screen_inches": laptop.InchesRange,
		},
		ResolutionModes: []collector.Mode{collector.ModeManual, collector.ModeSlider},
		Defaults:        collector.DefaultForm(),
	}
	for _, g := range laptop.Groups {
		resp.Groups = append(resp.Groups, models.GroupOptions{
			Group:   g,
			Options: catalog[g],
			Default: catalog.Default(g),
		})
	}
	for _, tier := range laptop.HDTiers {
		resp.HDTiers = append(resp.HDTiers, tier.String())
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// handleEncode returns the feature vector for a form
func (h *Handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(w, r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	enc, err := h.service().Encode(form)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, enc)
}

// handlePredict prices one form
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(w, r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	res, err := h.service().Predict(form)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, res)
}

// handlePredictBatch prices several forms
func (h *Handler) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Forms) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "forms is required")
		return
	}
	if len(req.Forms) > maxBatchForms {
		httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("at most %d forms per batch", maxBatchForms))
		return
	}

	forms := make([]collector.Form, len(req.Forms))
	for i, raw := range req.Forms {
		form, err := overlayForm(raw)
		if err != nil {
			h.respondErr(w, fmt.Errorf("form %d: %w", i, err))
			return
		}
		forms[i] = form
	}

	results, err := h.service().PredictBatch(r.Context(), forms)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.BatchResponse{Results: results})
}

// handleStream prices each form frame sent over a websocket
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		var reply models.StreamReply
		form, err := overlayForm(data)
		if err == nil {
			reply.Result, err = h.service().Predict(form)
		}
		if err != nil {
			reply = models.StreamReply{Error: err.Error(), Status: statusFor(err)}
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

// decodeForm reads a form from JSON or url-encoded bodies. Fields the
// request omits keep their default values.
func decodeForm(w http.ResponseWriter, r *http.Request) (collector.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return collector.Form{}, fmt.Errorf("%w: %v", collector.ErrInvalidInput, err)
		}
		return collector.FromValues(r.PostForm)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return collector.Form{}, fmt.Errorf("%w: %v", collector.ErrInvalidInput, err)
	}
	return overlayForm(data)
}

func overlayForm(data []byte) (collector.Form, error) {
	form := collector.DefaultForm()
	if len(data) == 0 {
		return form, nil
	}
	if err := json.Unmarshal(data, &form); err != nil {
		return form, fmt.Errorf("%w: %v", collector.ErrInvalidInput, err)
	}
	return form, nil
}
