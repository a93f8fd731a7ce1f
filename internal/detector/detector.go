package detector

import "gocv.io/x/gocv"

// Detector defines the interface for body pose estimation implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the pose of the person in it.
	// Returns a nil Pose if no person is detected.
	Detect(frame *gocv.Mat) (*Pose, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Pose estimation modes understood by the pose service.
const (
	ModeLightweight = "lightweight"
	ModeBalanced    = "balanced"
	ModePerformance = "performance"
)

// Config holds configuration options for pose estimation.
type Config struct {
	// Mode selects the model size: lightweight, balanced or performance.
	Mode string

	// Backend is the inference runtime, e.g. "onnxruntime" or "opencv".
	Backend string

	// Device is the inference device, e.g. "cpu" or "cuda".
	Device string

	// MinConfidence is the minimum keypoint score (0.0-1.0) for a keypoint
	// to be used by the rep counter.
	MinConfidence float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Mode:          ModeLightweight,
		Backend:       "onnxruntime",
		Device:        "cpu",
		MinConfidence: 0.3,
	}
}

// ValidMode reports whether mode is a known pose estimation mode.
func ValidMode(mode string) bool {
	switch mode {
	case ModeLightweight, ModeBalanced, ModePerformance:
		return true
	}
	return false
}
