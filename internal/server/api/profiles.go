package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/formrep/internal/detector"
	"github.com/ayusman/formrep/internal/repcount"
	"github.com/ayusman/formrep/internal/store"
)

// Activator switches the running pipeline to a profile.
type Activator interface {
	UseProfile(p *store.Profile) (sessionID string, err error)
}

// ProfileHandler handles HTTP requests for threshold profiles.
type ProfileHandler struct {
	store     *store.Store
	activator Activator
}

// NewProfileHandler creates a ProfileHandler. The activator may be nil, in
// which case activation only updates the stored setting.
func NewProfileHandler(s *store.Store, activator Activator) *ProfileHandler {
	return &ProfileHandler{store: s, activator: activator}
}

// ServeHTTP routes /api/profiles, /api/profiles/{id} and
// /api/profiles/{id}/activate.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/profiles")

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodPut:
			h.update(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 2:
		if parts[1] != "activate" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.activate(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

type profileRequest struct {
	Name          string   `json:"name"`
	ElbowDownMax  *float64 `json:"elbow_down_max"`
	ElbowUpMin    *float64 `json:"elbow_up_min"`
	HipTolerance  *float64 `json:"hip_tolerance"`
	Side          string   `json:"side"`
	MinConfidence *float64 `json:"min_confidence"`
}

type profileResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	ElbowDownMax  float64 `json:"elbow_down_max"`
	ElbowUpMin    float64 `json:"elbow_up_min"`
	HipTolerance  float64 `json:"hip_tolerance"`
	Side          string  `json:"side"`
	MinConfidence float64 `json:"min_confidence"`
	Active        bool    `json:"active"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type listProfilesResponse struct {
	Profiles []profileResponse `json:"profiles"`
}

type activateResponse struct {
	Profile   profileResponse `json:"profile"`
	SessionID string          `json:"session_id,omitempty"`
}

func toProfileResponse(p *store.Profile, activeID string) profileResponse {
	return profileResponse{
		ID:            p.ID,
		Name:          p.Name,
		ElbowDownMax:  p.ElbowDownMax,
		ElbowUpMin:    p.ElbowUpMin,
		HipTolerance:  p.HipTolerance,
		Side:          p.Side,
		MinConfidence: p.MinConfidence,
		Active:        p.ID == activeID,
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
	}
}

// apply copies the fields present in req onto p.
func (req profileRequest) apply(p *store.Profile) {
	if req.Name != "" {
		p.Name = req.Name
	}
	if req.ElbowDownMax != nil {
		p.ElbowDownMax = *req.ElbowDownMax
	}
	if req.ElbowUpMin != nil {
		p.ElbowUpMin = *req.ElbowUpMin
	}
	if req.HipTolerance != nil {
		p.HipTolerance = *req.HipTolerance
	}
	if req.Side != "" {
		p.Side = req.Side
	}
	if req.MinConfidence != nil {
		p.MinConfidence = *req.MinConfidence
	}
}

// validateProfile checks the thresholds, side and confidence of p.
func validateProfile(p *store.Profile) error {
	t := repcount.Thresholds{
		ElbowDownMax: p.ElbowDownMax,
		ElbowUpMin:   p.ElbowUpMin,
		HipTolerance: p.HipTolerance,
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if _, err := detector.ParseSide(p.Side); err != nil {
		return err
	}
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("min confidence %.2f outside [0, 1]", p.MinConfidence)
	}
	return nil
}

func (h *ProfileHandler) activeID() string {
	p, err := h.store.ActiveProfile()
	if err != nil {
		return ""
	}
	return p.ID
}

// list handles GET /api/profiles.
func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.Profiles().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}

	active := h.activeID()
	response := listProfilesResponse{
		Profiles: make([]profileResponse, 0, len(profiles)),
	}
	for _, p := range profiles {
		response.Profiles = append(response.Profiles, toProfileResponse(p, active))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/profiles/{id}.
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := h.load(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p, h.activeID()))
}

// create handles POST /api/profiles. Omitted thresholds take the defaults.
func (h *ProfileHandler) create(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	if _, err := h.store.Profiles().GetByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Profile name already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to create profile")
		return
	}

	defaults := repcount.DefaultThresholds()
	p := &store.Profile{
		ID:            uuid.New().String(),
		ElbowDownMax:  defaults.ElbowDownMax,
		ElbowUpMin:    defaults.ElbowUpMin,
		HipTolerance:  defaults.HipTolerance,
		Side:          string(detector.SideLeft),
		MinConfidence: detector.DefaultConfig().MinConfidence,
	}
	req.apply(p)

	if err := validateProfile(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Profiles().Create(p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create profile")
		return
	}

	writeJSON(w, http.StatusCreated, toProfileResponse(p, ""))
}

// update handles PUT /api/profiles/{id}.
func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := h.load(w, id)
	if !ok {
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.apply(p)

	if err := validateProfile(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Profiles().Update(p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p, h.activeID()))
}

// delete handles DELETE /api/profiles/{id}.
func (h *ProfileHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Profiles().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// activate handles POST /api/profiles/{id}/activate. It stores the profile
// as active and, with a running pipeline, starts a new session with it.
func (h *ProfileHandler) activate(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := h.load(w, id)
	if !ok {
		return
	}

	if err := h.store.SetActiveProfile(p.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to activate profile")
		return
	}

	response := activateResponse{Profile: toProfileResponse(p, p.ID)}
	if h.activator != nil {
		sessionID, err := h.activator.UseProfile(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		response.SessionID = sessionID
	}

	writeJSON(w, http.StatusOK, response)
}

// load fetches a profile, writing the error response when it fails.
func (h *ProfileHandler) load(w http.ResponseWriter, id string) (*store.Profile, bool) {
	p, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return nil, false
	}
	return p, true
}
