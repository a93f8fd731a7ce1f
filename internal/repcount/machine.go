// Package repcount implements the push-up repetition state machine and
// per-frame form evaluation.
package repcount

import (
	"errors"
	"fmt"
	"math"
)

// Default thresholds in degrees.
const (
	// DefaultElbowDownMax is the elbow angle at or below which the arm is flexed (bottom).
	DefaultElbowDownMax = 90.0
	// DefaultElbowUpMin is the elbow angle at or above which the arm is extended (top).
	DefaultElbowUpMin = 160.0
	// DefaultHipTolerance is the allowed deviation of the hip angle from a straight line.
	DefaultHipTolerance = 15.0

	// straightHip is the hip angle of a perfectly straight body.
	straightHip = 180.0
)

// ErrInvalidThresholds is returned by Thresholds.Validate.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// Phase is the position in the push-up cycle inferred from the elbow angle.
type Phase string

const (
	// PhaseUnknown is the phase before the first full extension.
	PhaseUnknown Phase = "unknown"
	// PhaseUp means the arms have been fully extended.
	PhaseUp Phase = "up"
	// PhaseDown means a rep has been counted at the bottom of the movement.
	PhaseDown Phase = "down"
)

// Advisory is a form feedback message for the current frame.
type Advisory string

const (
	// AdvisoryKeepTorsoStraight is raised when the hip angle is outside tolerance.
	AdvisoryKeepTorsoStraight Advisory = "keep_torso_straight"
	// AdvisoryIncompleteRange is raised when the elbow is neither flexed nor extended.
	AdvisoryIncompleteRange Advisory = "incomplete_range"
)

// Message returns the human readable text for the advisory.
func (a Advisory) Message() string {
	switch a {
	case AdvisoryKeepTorsoStraight:
		return "Keep your back straight!"
	case AdvisoryIncompleteRange:
		return "Lower further or raise higher for full rep"
	default:
		return string(a)
	}
}

// Thresholds configures the machine. They are fixed for the lifetime of a Machine.
type Thresholds struct {
	ElbowDownMax float64 `json:"elbow_down_max"`
	ElbowUpMin   float64 `json:"elbow_up_min"`
	HipTolerance float64 `json:"hip_tolerance"`
}

// DefaultThresholds returns the standard push-up thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ElbowDownMax: DefaultElbowDownMax,
		ElbowUpMin:   DefaultElbowUpMin,
		HipTolerance: DefaultHipTolerance,
	}
}

// Validate checks that the thresholds describe a usable hysteresis band.
func (t Thresholds) Validate() error {
	switch {
	case !(t.ElbowDownMax > 0 && t.ElbowDownMax < 180):
		return fmt.Errorf("%w: elbow_down_max %.1f outside (0, 180)", ErrInvalidThresholds, t.ElbowDownMax)
	case !(t.ElbowUpMin > 0 && t.ElbowUpMin <= 180):
		return fmt.Errorf("%w: elbow_up_min %.1f outside (0, 180]", ErrInvalidThresholds, t.ElbowUpMin)
	case t.ElbowDownMax >= t.ElbowUpMin:
		return fmt.Errorf("%w: elbow_down_max %.1f must be below elbow_up_min %.1f",
			ErrInvalidThresholds, t.ElbowDownMax, t.ElbowUpMin)
	case !(t.HipTolerance > 0 && t.HipTolerance < 180):
		return fmt.Errorf("%w: hip_tolerance %.1f outside (0, 180)", ErrInvalidThresholds, t.HipTolerance)
	}
	return nil
}

// State is the rep counter state: the current phase and the number of reps.
type State struct {
	Phase Phase `json:"phase"`
	Count int   `json:"count"`
}

// Result is the outcome of evaluating one frame.
type Result struct {
	State
	ElbowAngle float64    `json:"elbow_angle"`
	HipAngle   float64    `json:"hip_angle"`
	ElbowOK    bool       `json:"elbow_ok"`
	HipOK      bool       `json:"hip_ok"`
	GoodForm   bool       `json:"good_form"`
	Counted    bool       `json:"counted"`
	Advisories []Advisory `json:"advisories"`
}

// Machine counts push-up reps from per-frame elbow and hip angles.
//
// A Machine is not safe for concurrent use. Frames without a reliable pose
// must not be passed to Update; skipping them leaves the state unchanged.
type Machine struct {
	thresholds Thresholds
	state      State
}

// NewMachine creates a Machine in the unknown phase with a zero count.
func NewMachine(t Thresholds) (*Machine, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Machine{
		thresholds: t,
		state:      State{Phase: PhaseUnknown},
	}, nil
}

// Thresholds returns the thresholds the machine was built with.
func (m *Machine) Thresholds() Thresholds {
	return m.thresholds
}

// State returns the current phase and count.
func (m *Machine) State() State {
	return m.state
}

// Update evaluates one frame.
//
// Order matters: the elbow form flag reads the phase from before this
// frame, while the counting guard reads the phase after the up transition
// of this same frame. Counting requires a straight hip but not ElbowOK.
func (m *Machine) Update(elbowAngle, hipAngle float64) Result {
	t := m.thresholds

	hipOK := math.Abs(hipAngle-straightHip) < t.HipTolerance

	var elbowOK bool
	if m.state.Phase == PhaseUp {
		elbowOK = elbowAngle < t.ElbowDownMax
	} else {
		elbowOK = elbowAngle > t.ElbowUpMin
	}

	if elbowAngle > t.ElbowUpMin {
		m.state.Phase = PhaseUp
	}

	counted := false
	if elbowAngle < t.ElbowDownMax && m.state.Phase == PhaseUp && hipOK {
		m.state.Phase = PhaseDown
		m.state.Count++
		counted = true
	}

	var advisories []Advisory
	if !hipOK {
		advisories = append(advisories, AdvisoryKeepTorsoStraight)
	}
	if elbowAngle > t.ElbowDownMax && elbowAngle < t.ElbowUpMin {
		advisories = append(advisories, AdvisoryIncompleteRange)
	}

	return Result{
		State:      m.state,
		ElbowAngle: elbowAngle,
		HipAngle:   hipAngle,
		ElbowOK:    elbowOK,
		HipOK:      hipOK,
		GoodForm:   elbowOK && hipOK,
		Counted:    counted,
		Advisories: advisories,
	}
}
