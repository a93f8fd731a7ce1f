package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/ayusman/formrep/internal/chart"
	"github.com/ayusman/formrep/internal/session"
)

type sessionResponse struct {
	Report  session.Report  `json:"report"`
	Summary session.Summary `json:"summary"`
	Profile string          `json:"profile,omitempty"`
}

type newSessionResponse struct {
	SessionID string `json:"session_id"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// SessionHandler serves the current session and starts new ones.
type SessionHandler struct {
	pipeline Pipeline
}

// NewSessionHandler creates a SessionHandler over p.
func NewSessionHandler(p Pipeline) *SessionHandler {
	return &SessionHandler{pipeline: p}
}

// ServeHTTP handles GET (latest report and summary) and POST (new session).
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, sessionResponse{
			Report:  h.pipeline.Last(),
			Summary: h.pipeline.Summary(),
			Profile: h.pipeline.Config().Profile,
		})
	case http.MethodPost:
		id, err := h.pipeline.NewSession()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, newSessionResponse{SessionID: id})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// EnabledHandler reads and toggles rep counting.
type EnabledHandler struct {
	pipeline Pipeline
}

// NewEnabledHandler creates an EnabledHandler over p.
func NewEnabledHandler(p Pipeline) *EnabledHandler {
	return &EnabledHandler{pipeline: p}
}

// ServeHTTP handles GET and PUT of {"enabled": bool}.
func (h *EnabledHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req enabledRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
			return
		}
		h.pipeline.SetEnabled(*req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.pipeline.IsEnabled()})
}

// ChartHandler renders the recent angle timeline as an HTML page.
type ChartHandler struct {
	pipeline Pipeline
}

// NewChartHandler creates a ChartHandler over p.
func NewChartHandler(p Pipeline) *ChartHandler {
	return &ChartHandler{pipeline: p}
}

// ServeHTTP handles GET requests for the chart page.
func (h *ChartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	thresholds := h.pipeline.Config().Thresholds
	if err := chart.Render(&buf, h.pipeline.History(), h.pipeline.Reps(), thresholds); err != nil {
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
