// Package render draws the pose skeleton and rep counter readout onto frames.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/formrep/internal/detector"
	"github.com/ayusman/formrep/internal/repcount"
	"github.com/ayusman/formrep/internal/session"
)

var (
	White  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Green  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Red    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Orange = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	Gray   = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	Cyan   = color.RGBA{R: 0, G: 194, B: 255, A: 255}
)

// skeleton pairs COCO-17 keypoint indices joined by a limb.
var skeleton = [][2]int{
	{detector.LeftAnkle, detector.LeftKnee}, {detector.LeftKnee, detector.LeftHip},
	{detector.RightAnkle, detector.RightKnee}, {detector.RightKnee, detector.RightHip},
	{detector.LeftHip, detector.RightHip},
	{detector.LeftShoulder, detector.LeftHip}, {detector.RightShoulder, detector.RightHip},
	{detector.LeftShoulder, detector.RightShoulder},
	{detector.LeftShoulder, detector.LeftElbow}, {detector.LeftElbow, detector.LeftWrist},
	{detector.RightShoulder, detector.RightElbow}, {detector.RightElbow, detector.RightWrist},
	{detector.Nose, detector.LeftEye}, {detector.Nose, detector.RightEye},
	{detector.LeftEye, detector.LeftEar}, {detector.RightEye, detector.RightEar},
}

// Line is one row of overlay text.
type Line struct {
	Text  string
	Scale float64
	Color color.RGBA
}

// Style controls overlay drawing.
type Style struct {
	Face          gocv.HersheyFont
	Thickness     int
	LineThickness int
	JointRadius   int
	Margin        int
	MinConfidence float64
}

// DefaultStyle returns the default overlay style.
func DefaultStyle() Style {
	return Style{
		Face:          gocv.FontHersheySimplex,
		Thickness:     2,
		LineThickness: 2,
		JointRadius:   4,
		Margin:        10,
		MinConfidence: detector.DefaultConfig().MinConfidence,
	}
}

// Lines returns the readout text for a report, top to bottom.
func Lines(r session.Report) []Line {
	lines := []Line{
		{Text: fmt.Sprintf("Reps: %d", r.Count), Scale: 1, Color: Green},
	}

	if !r.Evaluated() {
		lines = append(lines, Line{Text: skipText(r.Skipped), Scale: 0.8, Color: Gray})
		return lines
	}

	lines = append(lines,
		Line{Text: fmt.Sprintf("Elbow: %ddeg", int(r.ElbowAngle)), Scale: 0.8, Color: White},
		Line{Text: fmt.Sprintf("Hip: %ddeg", int(r.HipAngle)), Scale: 0.8, Color: White},
	)

	for _, a := range r.Advisories {
		switch a {
		case repcount.AdvisoryKeepTorsoStraight:
			lines = append(lines, Line{Text: a.Message(), Scale: 0.8, Color: Red})
		default:
			lines = append(lines, Line{Text: a.Message(), Scale: 0.6, Color: Orange})
		}
	}
	return lines
}

func skipText(reason session.SkipReason) string {
	switch reason {
	case session.SkipNoPerson:
		return "No person detected"
	case session.SkipLowConfidence:
		return "Arm or hip not visible"
	case session.SkipDegenerate:
		return "Pose unclear"
	default:
		return string(reason)
	}
}

// Skeleton draws limbs and joints of pose whose keypoints pass the
// confidence gate. The arm and torso used for counting are drawn green when
// in range and red otherwise.
func Skeleton(img *gocv.Mat, pose *detector.Pose, side detector.Side, r session.Report, style Style) {
	if pose == nil {
		return
	}

	visible := func(i int) bool { return pose.Keypoints[i].Score >= style.MinConfidence }
	pt := func(i int) image.Point {
		kp := pose.Keypoints[i]
		return image.Pt(int(kp.X), int(kp.Y))
	}

	for _, limb := range skeleton {
		if visible(limb[0]) && visible(limb[1]) {
			gocv.Line(img, pt(limb[0]), pt(limb[1]), Cyan, style.LineThickness)
		}
	}

	if r.Evaluated() {
		joints := side.Joints()
		elbowColor, hipColor := Green, Green
		if !r.ElbowOK {
			elbowColor = Orange
		}
		if !r.HipOK {
			hipColor = Red
		}
		gocv.Line(img, pt(joints.Shoulder), pt(joints.Elbow), elbowColor, style.LineThickness+1)
		gocv.Line(img, pt(joints.Elbow), pt(joints.Wrist), elbowColor, style.LineThickness+1)
		gocv.Line(img, pt(joints.Shoulder), pt(joints.Hip), hipColor, style.LineThickness+1)
		gocv.Line(img, pt(joints.Hip), pt(joints.Knee), hipColor, style.LineThickness+1)
	}

	for i := range pose.Keypoints {
		if visible(i) {
			gocv.Circle(img, pt(i), style.JointRadius, White, -1)
		}
	}
}

// Readout draws the text lines in the top-left corner.
func Readout(img *gocv.Mat, lines []Line, style Style) {
	y := style.Margin
	for _, l := range lines {
		size := gocv.GetTextSize(l.Text, style.Face, l.Scale, style.Thickness)
		y += size.Y + style.Margin
		gocv.PutText(img, l.Text, image.Pt(style.Margin, y), style.Face, l.Scale, l.Color, style.Thickness)
	}
}

// Frame draws the full overlay for one processed frame.
func Frame(img *gocv.Mat, pose *detector.Pose, side detector.Side, r session.Report, style Style) {
	Skeleton(img, pose, side, r, style)
	Readout(img, Lines(r), style)
}
