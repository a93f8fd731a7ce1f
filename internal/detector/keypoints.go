// Package detector provides body pose detection interfaces and types for rep counting.
package detector

import (
	"fmt"

	"github.com/ayusman/formrep/internal/kinematics"
)

// Body keypoint indices following the COCO 17-point layout.
const (
	Nose          = 0
	LeftEye       = 1
	RightEye      = 2
	LeftEar       = 3
	RightEar      = 4
	LeftShoulder  = 5
	RightShoulder = 6
	LeftElbow     = 7
	RightElbow    = 8
	LeftWrist     = 9
	RightWrist    = 10
	LeftHip       = 11
	RightHip      = 12
	LeftKnee      = 13
	RightKnee     = 14
	LeftAnkle     = 15
	RightAnkle    = 16
	NumKeypoints  = 17
)

// Side selects which body side is measured.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ParseSide converts a flag value into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideLeft, SideRight:
		return Side(s), nil
	}
	return "", fmt.Errorf("unknown side %q (want left or right)", s)
}

// Joints holds the keypoint indices used for one side of the body.
type Joints struct {
	Shoulder, Elbow, Wrist, Hip, Knee int
}

// Joints returns the keypoint indices for the side. Unknown sides use the left.
func (s Side) Joints() Joints {
	if s == SideRight {
		return Joints{RightShoulder, RightElbow, RightWrist, RightHip, RightKnee}
	}
	return Joints{LeftShoulder, LeftElbow, LeftWrist, LeftHip, LeftKnee}
}

// RequiredKeypoints returns the indices that must be visible to measure the side.
func (s Side) RequiredKeypoints() []int {
	j := s.Joints()
	return []int{j.Shoulder, j.Elbow, j.Wrist, j.Hip, j.Knee}
}

// Keypoint is a detected body landmark with its confidence score.
type Keypoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// Point returns the keypoint position.
func (k Keypoint) Point() kinematics.Point2D {
	return kinematics.Point2D{X: k.X, Y: k.Y}
}

// Pose is the set of COCO keypoints for a single person.
type Pose struct {
	Keypoints [NumKeypoints]Keypoint `json:"keypoints"`
	Score     float64                `json:"score"`
}

// Visible reports whether every required keypoint of the side has a score
// of at least minScore.
func (p *Pose) Visible(side Side, minScore float64) bool {
	if p == nil {
		return false
	}
	for _, i := range side.RequiredKeypoints() {
		if p.Keypoints[i].Score < minScore {
			return false
		}
	}
	return true
}

// ElbowTriple returns the (shoulder, elbow, wrist) triple for the side.
func (p *Pose) ElbowTriple(side Side) kinematics.JointTriple {
	j := side.Joints()
	return kinematics.JointTriple{
		Proximal: p.Keypoints[j.Shoulder].Point(),
		Vertex:   p.Keypoints[j.Elbow].Point(),
		Distal:   p.Keypoints[j.Wrist].Point(),
	}
}

// HipTriple returns the (shoulder, hip, knee) triple for the side.
func (p *Pose) HipTriple(side Side) kinematics.JointTriple {
	j := side.Joints()
	return kinematics.JointTriple{
		Proximal: p.Keypoints[j.Shoulder].Point(),
		Vertex:   p.Keypoints[j.Hip].Point(),
		Distal:   p.Keypoints[j.Knee].Point(),
	}
}
