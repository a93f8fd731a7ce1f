package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/formrep/internal/plugin"
	"github.com/ayusman/formrep/internal/store"
)

// HookHandler handles HTTP requests for hook bindings.
type HookHandler struct {
	store   *store.Store
	plugins *plugin.Manager
}

// NewHookHandler creates a HookHandler. When plugins is non-nil, new
// bindings must name a discovered plugin and one of its actions.
func NewHookHandler(s *store.Store, plugins *plugin.Manager) *HookHandler {
	return &HookHandler{store: s, plugins: plugins}
}

// ServeHTTP routes /api/hooks and /api/hooks/{id}.
func (h *HookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/hooks")

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
	default:
		http.NotFound(w, r)
	}
}

type hookRequest struct {
	Event      string          `json:"event"`
	ProfileID  *string         `json:"profile_id"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type hookResponse struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	ProfileID  string          `json:"profile_id,omitempty"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listHooksResponse struct {
	Hooks []hookResponse `json:"hooks"`
}

func toHookResponse(hk *store.Hook) hookResponse {
	config := hk.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return hookResponse{
		ID:         hk.ID,
		Event:      string(hk.Event),
		ProfileID:  hk.ProfileID,
		PluginName: hk.PluginName,
		ActionName: hk.ActionName,
		Config:     config,
		Enabled:    hk.Enabled,
		CreatedAt:  formatTime(hk.CreatedAt),
	}
}

// list handles GET /api/hooks.
func (h *HookHandler) list(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.store.Hooks().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list hooks")
		return
	}

	response := listHooksResponse{
		Hooks: make([]hookResponse, 0, len(hooks)),
	}
	for _, hk := range hooks {
		response.Hooks = append(response.Hooks, toHookResponse(hk))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/hooks/{id}.
func (h *HookHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	hk, ok := h.load(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toHookResponse(hk))
}

// create handles POST /api/hooks. New hooks are enabled unless stated.
func (h *HookHandler) create(w http.ResponseWriter, r *http.Request) {
	var req hookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Event == "" {
		writeError(w, http.StatusBadRequest, "event is required")
		return
	}
	if req.PluginName == "" {
		writeError(w, http.StatusBadRequest, "plugin_name is required")
		return
	}
	if req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "action_name is required")
		return
	}

	hk := &store.Hook{
		ID:      uuid.New().String(),
		Enabled: true,
	}
	if !h.apply(w, hk, req) {
		return
	}

	if err := h.store.Hooks().Create(hk); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create hook")
		return
	}

	writeJSON(w, http.StatusCreated, toHookResponse(hk))
}

// update handles PUT /api/hooks/{id}.
func (h *HookHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	hk, ok := h.load(w, id)
	if !ok {
		return
	}

	var req hookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !h.apply(w, hk, req) {
		return
	}

	if err := h.store.Hooks().Update(hk); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update hook")
		return
	}

	writeJSON(w, http.StatusOK, toHookResponse(hk))
}

// delete handles DELETE /api/hooks/{id}.
func (h *HookHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Hooks().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Hook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete hook")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// apply copies the fields present in req onto hk and validates the result.
// It writes the error response and returns false when validation fails.
func (h *HookHandler) apply(w http.ResponseWriter, hk *store.Hook, req hookRequest) bool {
	if req.Event != "" {
		event := store.HookEvent(req.Event)
		if !store.ValidHookEvent(event) {
			writeError(w, http.StatusBadRequest, "Invalid event")
			return false
		}
		hk.Event = event
	}

	if req.ProfileID != nil {
		if *req.ProfileID != "" {
			if _, err := h.store.Profiles().GetByID(*req.ProfileID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusBadRequest, "Profile not found")
					return false
				}
				writeError(w, http.StatusInternalServerError, "Failed to verify profile")
				return false
			}
		}
		hk.ProfileID = *req.ProfileID
	}

	if req.PluginName != "" {
		hk.PluginName = req.PluginName
	}
	if req.ActionName != "" {
		hk.ActionName = req.ActionName
	}
	if req.Config != nil {
		hk.Config = req.Config
	}
	if req.Enabled != nil {
		hk.Enabled = *req.Enabled
	}

	if h.plugins != nil && (req.PluginName != "" || req.ActionName != "") {
		if _, err := h.plugins.Resolve(hk.PluginName, hk.ActionName); err != nil {
			if errors.Is(err, plugin.ErrPluginNotFound) {
				writeError(w, http.StatusBadRequest, "Plugin not found")
			} else {
				writeError(w, http.StatusBadRequest, "Plugin has no such action")
			}
			return false
		}
	}

	return true
}

// load fetches a hook, writing the error response when it fails.
func (h *HookHandler) load(w http.ResponseWriter, id string) (*store.Hook, bool) {
	hk, err := h.store.Hooks().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Hook not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get hook")
		return nil, false
	}
	return hk, true
}
