// Package replay reads and writes recorded keypoint streams and feeds them
// through a session offline.
//
// A recording is JSON lines, one frame per line:
//
//	{"t": 1200, "keypoints": [[x, y, score], ...17 entries]}
//	{"t": 1300, "keypoints": null}
//
// t is milliseconds since the recording started. A null keypoints value
// marks a frame where nobody was detected.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ayusman/formrep/internal/detector"
	"github.com/ayusman/formrep/internal/session"
)

// maxLineSize bounds a single recorded frame.
const maxLineSize = 1 << 20

// ErrMalformed is returned for lines that are not valid frames.
var ErrMalformed = errors.New("malformed recording")

// Frame is one recorded frame.
type Frame struct {
	// Offset is the time since the recording started.
	Offset time.Duration
	// Pose is nil when nobody was detected.
	Pose *detector.Pose
}

type frameJSON struct {
	T         int64         `json:"t"`
	Keypoints *[][3]float64 `json:"keypoints"`
}

// Reader decodes frames from a recording.
type Reader struct {
	sc   *bufio.Scanner
	line int
	last int64
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{sc: sc, last: -1}
}

// Next returns the next frame, or io.EOF at the end of the recording.
// Blank lines are skipped. Timestamps must not go backwards.
func (r *Reader) Next() (Frame, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var fj frameJSON
		if err := json.Unmarshal(line, &fj); err != nil {
			return Frame{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, r.line, err)
		}
		if fj.T < 0 || fj.T < r.last {
			return Frame{}, fmt.Errorf("%w: line %d: timestamp %d out of order", ErrMalformed, r.line, fj.T)
		}
		r.last = fj.T

		frame := Frame{Offset: time.Duration(fj.T) * time.Millisecond}
		if fj.Keypoints == nil {
			return frame, nil
		}

		kps := *fj.Keypoints
		if len(kps) != detector.NumKeypoints {
			return Frame{}, fmt.Errorf("%w: line %d: %d keypoints, want %d",
				ErrMalformed, r.line, len(kps), detector.NumKeypoints)
		}

		pose := &detector.Pose{}
		var total float64
		for i, kp := range kps {
			pose.Keypoints[i] = detector.Keypoint{X: kp[0], Y: kp[1], Score: kp[2]}
			total += kp[2]
		}
		pose.Score = total / float64(len(kps))
		frame.Pose = pose
		return frame, nil
	}

	if err := r.sc.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}

// Line returns the line number of the last frame read.
func (r *Reader) Line() int {
	return r.line
}

// Count returns the number of non-blank lines in r.
func Count(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	n := 0
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			n++
		}
	}
	return n, sc.Err()
}

// Run feeds every frame of r through s. Frame times are the session start
// plus the recorded offset. onFrame, if not nil, sees each report. Run stops
// early when ctx is cancelled and returns the summary up to that point.
func Run(ctx context.Context, r io.Reader, s *session.Session, onFrame func(session.Report)) (session.Summary, error) {
	reader := NewReader(r)
	start := s.StartedAt()

	for {
		if err := ctx.Err(); err != nil {
			return s.Summary(), err
		}

		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return s.Summary(), nil
		}
		if err != nil {
			return s.Summary(), err
		}

		report := s.ProcessAt(frame.Pose, start.Add(frame.Offset))
		if onFrame != nil {
			onFrame(report)
		}
	}
}
