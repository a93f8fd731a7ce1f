// Package testdata embeds recorded keypoint sessions used by tests.
package testdata

import (
	"bytes"
	"embed"
	"fmt"
	"io"
)

//go:embed recordings/*.jsonl
var recordingsFS embed.FS

// Pushups is the name of a recording holding four clean reps, one rep with
// a sagging hip, two frames with nobody in view and one occluded frame.
const Pushups = "pushups.jsonl"

// PushupsReps is the number of reps counted in the Pushups recording.
const PushupsReps = 4

// LoadRecording returns the raw bytes of a recording by name.
func LoadRecording(name string) ([]byte, error) {
	data, err := recordingsFS.ReadFile("recordings/" + name)
	if err != nil {
		return nil, fmt.Errorf("load recording %s: %w", name, err)
	}
	return data, nil
}

// OpenRecording returns a reader over a recording by name.
func OpenRecording(name string) (io.Reader, error) {
	data, err := LoadRecording(name)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
