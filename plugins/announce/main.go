// Package main provides a hook plugin that announces rep counts and form
// advisories, through the system speech synthesizer or as plain text.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action    string          `json:"action"`
	Event     string          `json:"event"`
	SessionID string          `json:"session_id"`
	Reps      int             `json:"reps"`
	Advisory  string          `json:"advisory"`
	Message   string          `json:"message"`
	Config    json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the per-hook configuration.
type Config struct {
	// Every announces only every Nth rep. Zero or one announces every rep.
	Every int    `json:"every"`
	Voice string `json:"voice"`
}

var errNoSpeech = errors.New("no speech synthesizer found")

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	writeResponse(handle(req, speak))
}

// handle builds the announcement for req and delivers it with say.
func handle(req Request, say func(text, voice string) error) Response {
	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return Response{Error: fmt.Sprintf("invalid config: %v", err)}
		}
	}

	text, ok := announcement(req, cfg)
	if !ok {
		return Response{Success: true}
	}

	switch req.Action {
	case "say":
		if err := say(text, cfg.Voice); err != nil {
			return Response{Error: fmt.Sprintf("say failed: %v", err)}
		}
	case "print":
		fmt.Fprintln(os.Stderr, text)
	default:
		return Response{Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}

	data, _ := json.Marshal(map[string]string{"text": text})
	return Response{Success: true, Data: data}
}

// announcement returns the text for req, or false when nothing should be said.
func announcement(req Request, cfg Config) (string, bool) {
	switch req.Event {
	case "rep":
		if cfg.Every > 1 && req.Reps%cfg.Every != 0 {
			return "", false
		}
		return strconv.Itoa(req.Reps), true
	case "advisory":
		if req.Message == "" {
			return "", false
		}
		return req.Message, true
	default:
		return "", false
	}
}

// speak runs the platform speech synthesizer.
func speak(text, voice string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		args := []string{text}
		if voice != "" {
			args = []string{"-v", voice, text}
		}
		cmd = exec.Command("say", args...)
	default:
		path, err := exec.LookPath("espeak")
		if err != nil {
			return errNoSpeech
		}
		args := []string{text}
		if voice != "" {
			args = []string{"-v", voice, text}
		}
		cmd = exec.Command(path, args...)
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
