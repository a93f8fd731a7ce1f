package replay

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/ayusman/formrep/internal/detector"
)

// Recorder writes frames in the recording format. It is safe for
// concurrent use.
type Recorder struct {
	mu    sync.Mutex
	w     *bufio.Writer
	start time.Time
	n     int
}

// NewRecorder creates a Recorder writing to w. Offsets are measured from
// the first recorded frame.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: bufio.NewWriter(w)}
}

// Record writes one frame captured at t. A nil pose records an empty frame.
func (r *Recorder) Record(t time.Time, pose *detector.Pose) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n == 0 {
		r.start = t
	}

	fj := frameJSON{T: t.Sub(r.start).Milliseconds()}
	if fj.T < 0 {
		fj.T = 0
	}
	if pose != nil {
		kps := make([][3]float64, detector.NumKeypoints)
		for i, kp := range pose.Keypoints {
			kps[i] = [3]float64{kp.X, kp.Y, kp.Score}
		}
		fj.Keypoints = &kps
	}

	data, err := json.Marshal(fj)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(append(data, '\n')); err != nil {
		return err
	}
	r.n++
	return nil
}

// Frames returns how many frames have been recorded.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Flush writes buffered frames to the underlying writer.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Flush()
}
