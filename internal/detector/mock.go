package detector

import (
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns a fixed pose, or plays back a queued sequence of poses.
type MockDetector struct {
	mu    sync.Mutex
	pose  *Pose
	queue []*Pose
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPose sets the pose returned by Detect. A nil pose simulates an empty frame.
func (m *MockDetector) SetPose(p *Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pose = p
}

// Queue appends poses that Detect returns one per call before falling back
// to the pose set with SetPose.
func (m *MockDetector) Queue(poses ...*Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, poses...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next queued pose, the configured pose, or the configured error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.queue) > 0 {
		p := m.queue[0]
		m.queue = m.queue[1:]
		return p, nil
	}
	return m.pose, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Limb lengths in pixels used by PoseFromAngles.
const (
	upperArm = 100.0
	forearm  = 100.0
	torso    = 220.0
	thigh    = 180.0
)

// PoseFromAngles builds a side-view pose whose elbow angle and hip angle
// on both sides equal the given values in degrees. All keypoints get a
// score of 0.9.
func PoseFromAngles(elbowDeg, hipDeg float64) *Pose {
	pose := &Pose{Score: 0.9}

	shoulderX, shoulderY := 200.0, 200.0
	// Upper arm hangs straight down from the shoulder.
	elbowX, elbowY := shoulderX, shoulderY+upperArm
	// The forearm leaves the elbow at elbowDeg from the upper arm direction (0, -1).
	wristX, wristY := rotate(0, -1, elbowDeg)
	wristX, wristY = elbowX+forearm*wristX, elbowY+forearm*wristY

	// The torso runs horizontally from the shoulder to the hip.
	hipX, hipY := shoulderX+torso, shoulderY
	// The thigh leaves the hip at hipDeg from the torso direction (-1, 0).
	kneeX, kneeY := rotate(-1, 0, hipDeg)
	kneeX, kneeY = hipX+thigh*kneeX, hipY+thigh*kneeY

	set := func(i int, x, y float64) {
		pose.Keypoints[i] = Keypoint{X: x, Y: y, Score: 0.9}
	}

	for _, side := range []Side{SideLeft, SideRight} {
		j := side.Joints()
		set(j.Shoulder, shoulderX, shoulderY)
		set(j.Elbow, elbowX, elbowY)
		set(j.Wrist, wristX, wristY)
		set(j.Hip, hipX, hipY)
		set(j.Knee, kneeX, kneeY)
	}

	set(Nose, shoulderX-40, shoulderY-10)
	set(LeftAnkle, kneeX+(kneeX-hipX), kneeY+(kneeY-hipY))
	set(RightAnkle, kneeX+(kneeX-hipX), kneeY+(kneeY-hipY))

	return pose
}

// rotate turns the vector (x, y) by deg degrees counter-clockwise.
func rotate(x, y, deg float64) (float64, float64) {
	rad := deg * math.Pi / 180.0
	sin, cos := math.Sincos(rad)
	return x*cos - y*sin, x*sin + y*cos
}

// PlankTopPose returns a pose at the top of a push-up with a straight body.
func PlankTopPose() *Pose {
	return PoseFromAngles(172, 178)
}

// PlankBottomPose returns a pose at the bottom of a push-up with a straight body.
func PlankBottomPose() *Pose {
	return PoseFromAngles(80, 178)
}

// SaggingBottomPose returns a pose at the bottom of a push-up with the hips dropped.
func SaggingBottomPose() *Pose {
	return PoseFromAngles(80, 150)
}

// OccludedPose returns a plank pose with the wrists below any useful score.
func OccludedPose() *Pose {
	pose := PlankTopPose()
	pose.Keypoints[LeftWrist].Score = 0.05
	pose.Keypoints[RightWrist].Score = 0.05
	return pose
}
