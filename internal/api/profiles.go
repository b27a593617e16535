package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/kartoza/laptop-pricer/internal/collector"
	"github.com/kartoza/laptop-pricer/internal/httputil"
	"github.com/kartoza/laptop-pricer/internal/profiles"
	"github.com/kartoza/laptop-pricer/internal/predict"
)

// profileRequest is the body of create and update calls
type profileRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Form        json.RawMessage `json:"form"`
}

// registerProfileRoutes sets up saved profile routes
func (h *Handler) registerProfileRoutes(r *mux.Router) {
	r.HandleFunc("/profiles", h.handleListProfiles).Methods("GET")
	r.HandleFunc("/profiles", h.handleCreateProfile).Methods("POST")
	r.HandleFunc("/profiles/{id}", h.handleGetProfile).Methods("GET")
	r.HandleFunc("/profiles/{id}", h.handleUpdateProfile).Methods("PUT")
	r.HandleFunc("/profiles/{id}", h.handleDeleteProfile).Methods("DELETE")
	r.HandleFunc("/profiles/{id}/predict", h.handlePredictProfile).Methods("POST")
}

func (h *Handler) profileError(w http.ResponseWriter, err error) {
	if errors.Is(err, profiles.ErrNotFound) {
		httputil.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.respondErr(w, err)
}

// handleListProfiles returns all saved profiles
func (h *Handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		httputil.RespondJSON(w, http.StatusOK, []*profiles.Profile{})
		return
	}
	list, err := h.profiles.List()
	if err != nil {
		h.profileError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, list)
}

// decodeProfile reads a profile request and checks its form encodes
func (h *Handler) decodeProfile(w http.ResponseWriter, r *http.Request) (*profiles.Profile, bool) {
	var req profileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	p := &profiles.Profile{Title: req.Title, Description: req.Description}
	if len(req.Form) > 0 {
		form, err := overlayForm(req.Form)
		if err != nil {
			h.respondErr(w, err)
			return nil, false
		}
		if _, err := h.service().Encode(form); err != nil {
			h.respondErr(w, err)
			return nil, false
		}
		p.Form = form
	}
	return p, true
}

// handleCreateProfile saves a new profile
func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, "profile store not available")
		return
	}
	p, ok := h.decodeProfile(w, r)
	if !ok {
		return
	}
	if p.Form == (collector.Form{}) {
		p.Form = collector.DefaultForm()
	}

	created, err := h.profiles.Create(p)
	if err != nil {
		h.profileError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, created)
}

// handleGetProfile returns one profile
func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		httputil.RespondError(w, http.StatusNotFound, "profile store not available")
		return
	}
	p, err := h.profiles.Get(mux.Vars(r)["id"])
	if err != nil {
		h.profileError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, p)
}

// handleUpdateProfile changes a profile's title, description or form
func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		httputil.RespondError(w, http.StatusNotFound, "profile store not available")
		return
	}
	updates, ok := h.decodeProfile(w, r)
	if !ok {
		return
	}
	p, err := h.profiles.Update(mux.Vars(r)["id"], updates)
	if err != nil {
		h.profileError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, p)
}

// handleDeleteProfile removes a profile
func (h *Handler) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		httputil.RespondError(w, http.StatusNotFound, "profile store not available")
		return
	}
	if err := h.profiles.Delete(mux.Vars(r)["id"]); err != nil {
		h.profileError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePredictProfile prices a saved profile with the current model
func (h *Handler) handlePredictProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		httputil.RespondError(w, http.StatusNotFound, "profile store not available")
		return
	}
	p, err := h.profiles.Get(mux.Vars(r)["id"])
	if err != nil {
		h.profileError(w, err)
		return
	}

	res, err := h.service().Predict(p.Form)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, struct {
		Profile *profiles.Profile `json:"profile"`
		Result  *predict.Result   `json:"result"`
	}{p, res})
}
