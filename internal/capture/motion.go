package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// AnalysisWidth is the width frames are shrunk to before differencing.
	AnalysisWidth = 320
	// BlurSize is the Gaussian kernel applied at AnalysisWidth.
	BlurSize = 11
	// DiffThreshold is the per-pixel grey level change that counts as motion.
	DiffThreshold = 25
)

// Motion is the result of comparing a frame with the previous one.
type Motion struct {
	Detected      bool
	ChangePercent float64
}

// MotionDetector decides whether someone is moving in front of the camera
// by differencing consecutive frames.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	baseline  gocv.Mat
	hasBase   bool
}

// NewMotionDetector returns a detector that reports motion when more than
// threshold percent of pixels change between frames.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		baseline:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and makes it the new
// baseline. The first frame after construction, Reset or Close only sets the
// baseline and reports no motion.
func (m *MotionDetector) Detect(frame *gocv.Mat) Motion {
	if frame == nil || frame.Empty() {
		return Motion{}
	}

	cur := prepare(frame)
	defer cur.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasBase {
		cur.CopyTo(&m.baseline)
		m.hasBase = true
		return Motion{}
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(cur, m.baseline, &diff)
	gocv.Threshold(diff, &diff, DiffThreshold, 255, gocv.ThresholdBinary)

	percent := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	cur.CopyTo(&m.baseline)

	return Motion{Detected: percent > m.threshold, ChangePercent: percent}
}

// prepare returns a shrunk, blurred greyscale copy of frame.
func prepare(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	if gray.Cols() > AnalysisWidth {
		h := gray.Rows() * AnalysisWidth / gray.Cols()
		gocv.Resize(gray, &gray, image.Pt(AnalysisWidth, h), 0, 0, gocv.InterpolationArea)
	}
	gocv.GaussianBlur(gray, &gray, image.Pt(BlurSize, BlurSize), 0, 0, gocv.BorderDefault)
	return gray
}

// Reset forgets the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropBaseline()
}

// Close releases the baseline. The detector stays usable.
func (m *MotionDetector) Close() {
	m.Reset()
}

func (m *MotionDetector) dropBaseline() {
	if !m.baseline.Empty() {
		m.baseline.Close()
		m.baseline = gocv.NewMat()
	}
	m.hasBase = false
}

// SetThreshold changes the motion threshold. Non-positive values are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Threshold returns the motion threshold in percent.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}
