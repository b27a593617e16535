package models

import (
	"encoding/json"

	"github.com/kartoza/laptop-pricer/internal/collector"
	"github.com/kartoza/laptop-pricer/internal/laptop"
	"github.com/kartoza/laptop-pricer/internal/predict"
)

// GroupOptions lists the labels a dropdown offers, in display order
type GroupOptions struct {
	Group   laptop.Group `json:"group"`
	Options []string     `json:"options"`
	Default string       `json:"default"`
}

// OptionsResponse describes every control the form renders
type OptionsResponse struct {
	Groups          []GroupOptions          `json:"groups"`
	Ranges          map[string]laptop.Range `json:"ranges"`
	HDTiers         []string                `json:"hd_tiers"`
	ResolutionModes []collector.Mode        `json:"resolution_modes"`
	Defaults        collector.Form          `json:"defaults"`
}

// BatchRequest carries several forms to price at once. Each form is
// overlaid on the default form, so omitted fields keep their defaults.
type BatchRequest struct {
	Forms []json.RawMessage `json:"forms"`
}

// BatchResponse holds results in request order
type BatchResponse struct {
	Results []*predict.Result `json:"results"`
}

// StreamReply is one websocket reply: a result or an error
type StreamReply struct {
	Result *predict.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Status int             `json:"status,omitempty"`
}
