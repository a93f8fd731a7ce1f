// Package session ties pose detection results to the rep counter for one
// workout set and keeps the per-set statistics.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/formrep/internal/detector"
	"github.com/ayusman/formrep/internal/repcount"
)

// DefaultHistorySize is the number of recent reports kept for charts.
const DefaultHistorySize = 600

// SkipReason explains why a frame did not reach the rep counter.
type SkipReason string

const (
	// SkipNone means the frame was evaluated.
	SkipNone SkipReason = ""
	// SkipNoPerson means the detector found nobody in the frame.
	SkipNoPerson SkipReason = "no_person"
	// SkipLowConfidence means a required keypoint was below the confidence threshold.
	SkipLowConfidence SkipReason = "low_confidence"
	// SkipDegenerate means two keypoints of a joint coincided.
	SkipDegenerate SkipReason = "degenerate_geometry"
)

// Config holds the settings for a session.
type Config struct {
	Thresholds    repcount.Thresholds
	Side          detector.Side
	MinConfidence float64
	HistorySize   int
}

// DefaultConfig returns a Config using the default thresholds on the left side.
func DefaultConfig() Config {
	return Config{
		Thresholds:    repcount.DefaultThresholds(),
		Side:          detector.SideLeft,
		MinConfidence: detector.DefaultConfig().MinConfidence,
		HistorySize:   DefaultHistorySize,
	}
}

// Report is the outcome of one frame. Skipped frames carry the retained
// phase and count with zero angles and no advisories.
type Report struct {
	repcount.Result
	SessionID string     `json:"session_id"`
	Frame     int        `json:"frame"`
	Time      time.Time  `json:"time"`
	Skipped   SkipReason `json:"skipped,omitempty"`
}

// Evaluated reports whether the frame reached the rep counter.
func (r Report) Evaluated() bool {
	return r.Skipped == SkipNone
}

// Rep records a counted repetition.
type Rep struct {
	Number int       `json:"number"`
	Frame  int       `json:"frame"`
	Time   time.Time `json:"time"`
	// Depth is the smallest elbow angle seen while at the bottom of this rep.
	Depth    float64 `json:"depth"`
	HipAngle float64 `json:"hip_angle"`
}

// Session owns one rep counter and its statistics. It is not safe for
// concurrent use.
type Session struct {
	id      string
	config  Config
	machine *repcount.Machine
	started time.Time
	now     func() time.Time

	frames        int
	evaluated     int
	goodFormCount int
	skipped       map[SkipReason]int
	reps          []Rep
	last          Report

	history    []Report
	historyPos int
}

// New creates a session with a fresh rep counter.
func New(cfg Config) (*Session, error) {
	return newSession(cfg, time.Now)
}

func newSession(cfg Config, now func() time.Time) (*Session, error) {
	if _, err := detector.ParseSide(string(cfg.Side)); err != nil {
		return nil, err
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, fmt.Errorf("min confidence %.2f outside [0, 1]", cfg.MinConfidence)
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}

	m, err := repcount.NewMachine(cfg.Thresholds)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:      uuid.NewString(),
		config:  cfg,
		machine: m,
		started: now(),
		now:     now,
		skipped: make(map[SkipReason]int),
		history: make([]Report, 0, cfg.HistorySize),
	}
	s.last = Report{
		Result:    repcount.Result{State: m.State()},
		SessionID: s.id,
		Time:      s.started,
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.config
}

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time {
	return s.started
}

// State returns the current phase and rep count.
func (s *Session) State() repcount.State {
	return s.machine.State()
}

// Last returns the most recent report.
func (s *Session) Last() Report {
	return s.last
}

// Process evaluates one frame's pose at the current time.
func (s *Session) Process(pose *detector.Pose) Report {
	return s.ProcessAt(pose, s.now())
}

// ProcessAt evaluates one frame's pose captured at t.
//
// A nil pose, a required keypoint under the confidence threshold or a
// degenerate joint skips the frame: the rep counter is not updated.
func (s *Session) ProcessAt(pose *detector.Pose, t time.Time) Report {
	s.frames++

	report := Report{
		SessionID: s.id,
		Frame:     s.frames,
		Time:      t,
	}

	reason := s.evaluate(pose, &report)
	if reason != SkipNone {
		report.Skipped = reason
		report.Result = repcount.Result{State: s.machine.State()}
		s.skipped[reason]++
	}

	s.last = report
	s.remember(report)
	return report
}

func (s *Session) evaluate(pose *detector.Pose, report *Report) SkipReason {
	if pose == nil {
		return SkipNoPerson
	}
	if !pose.Visible(s.config.Side, s.config.MinConfidence) {
		return SkipLowConfidence
	}

	elbow, ok := pose.ElbowTriple(s.config.Side).Angle()
	if !ok {
		return SkipDegenerate
	}
	hip, ok := pose.HipTriple(s.config.Side).Angle()
	if !ok {
		return SkipDegenerate
	}

	result := s.machine.Update(elbow, hip)
	report.Result = result

	s.evaluated++
	if result.GoodForm {
		s.goodFormCount++
	}

	if result.Counted {
		s.reps = append(s.reps, Rep{
			Number:   result.Count,
			Frame:    report.Frame,
			Time:     report.Time,
			Depth:    elbow,
			HipAngle: hip,
		})
	} else if result.Phase == repcount.PhaseDown && len(s.reps) > 0 {
		last := &s.reps[len(s.reps)-1]
		if elbow < last.Depth {
			last.Depth = elbow
		}
	}

	return SkipNone
}

// remember appends the report to the bounded history ring.
func (s *Session) remember(r Report) {
	if len(s.history) < s.config.HistorySize {
		s.history = append(s.history, r)
		return
	}
	s.history[s.historyPos] = r
	s.historyPos = (s.historyPos + 1) % s.config.HistorySize
}

// History returns the recent reports, oldest first.
func (s *Session) History() []Report {
	out := make([]Report, 0, len(s.history))
	out = append(out, s.history[s.historyPos:]...)
	out = append(out, s.history[:s.historyPos]...)
	return out
}

// Reps returns the counted repetitions.
func (s *Session) Reps() []Rep {
	out := make([]Rep, len(s.reps))
	copy(out, s.reps)
	return out
}
