// Package plugin discovers external hook plugins and runs them when the rep
// counter raises events.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Accepts reports whether action may be requested. A manifest that lists no
// actions accepts any.
func (m Manifest) Accepts(action string) bool {
	if len(m.Actions) == 0 {
		return true
	}
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is the JSON document written to a plugin's stdin.
type Request struct {
	Action    string          `json:"action"`
	Event     string          `json:"event"`
	SessionID string          `json:"session_id,omitempty"`
	Reps      int             `json:"reps"`
	Advisory  string          `json:"advisory,omitempty"`
	Message   string          `json:"message,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
