package detector

import (
	"errors"
	"math"
	"strconv"
	"testing"
)

const epsilon = 1e-6

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{in: "left", want: SideLeft},
		{in: "right", want: SideRight},
		{in: "both", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSide(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSide(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSide(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSide_RequiredKeypoints(t *testing.T) {
	left := SideLeft.RequiredKeypoints()
	want := []int{5, 7, 9, 11, 13}
	for i := range want {
		if left[i] != want[i] {
			t.Errorf("left[%d] = %d, want %d", i, left[i], want[i])
		}
	}

	right := SideRight.RequiredKeypoints()
	want = []int{6, 8, 10, 12, 14}
	for i := range want {
		if right[i] != want[i] {
			t.Errorf("right[%d] = %d, want %d", i, right[i], want[i])
		}
	}
}

func TestPoseFromAngles(t *testing.T) {
	tests := []struct {
		name  string
		elbow float64
		hip   float64
	}{
		{name: "top", elbow: 170, hip: 180},
		{name: "bottom", elbow: 80, hip: 178},
		{name: "sagging", elbow: 85, hip: 150},
		{name: "piked", elbow: 120, hip: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pose := PoseFromAngles(tt.elbow, tt.hip)

			for _, side := range []Side{SideLeft, SideRight} {
				elbow, ok := pose.ElbowTriple(side).Angle()
				if !ok {
					t.Fatalf("%s elbow triple degenerate", side)
				}
				if math.Abs(elbow-tt.elbow) > epsilon {
					t.Errorf("%s elbow = %f, want %f", side, elbow, tt.elbow)
				}

				// Interior angles fold into [0, 180].
				wantHip := tt.hip
				if wantHip > 180 {
					wantHip = 360 - wantHip
				}
				hip, ok := pose.HipTriple(side).Angle()
				if !ok {
					t.Fatalf("%s hip triple degenerate", side)
				}
				if math.Abs(hip-wantHip) > epsilon {
					t.Errorf("%s hip = %f, want %f", side, hip, wantHip)
				}
			}
		})
	}
}

func TestPose_Visible(t *testing.T) {
	t.Run("all keypoints confident", func(t *testing.T) {
		if !PlankTopPose().Visible(SideLeft, 0.3) {
			t.Error("expected plank pose to be visible")
		}
	})

	t.Run("occluded wrist", func(t *testing.T) {
		pose := OccludedPose()
		if pose.Visible(SideLeft, 0.3) {
			t.Error("expected occluded left wrist to fail visibility")
		}
		if pose.Visible(SideRight, 0.3) {
			t.Error("expected occluded right wrist to fail visibility")
		}
	})

	t.Run("only one side occluded", func(t *testing.T) {
		pose := PlankTopPose()
		pose.Keypoints[RightKnee].Score = 0.1
		if !pose.Visible(SideLeft, 0.3) {
			t.Error("left side should still be visible")
		}
		if pose.Visible(SideRight, 0.3) {
			t.Error("right side should not be visible")
		}
	})

	t.Run("nil pose", func(t *testing.T) {
		var pose *Pose
		if pose.Visible(SideLeft, 0) {
			t.Error("nil pose should never be visible")
		}
	})
}

func TestParseResponse(t *testing.T) {
	t.Run("no people", func(t *testing.T) {
		pose, err := parseResponse([]byte(`{"people": []}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pose != nil {
			t.Errorf("expected nil pose, got %+v", pose)
		}
	})

	t.Run("picks highest score", func(t *testing.T) {
		line := `{"people": [` + person(0.4, 1) + `,` + person(0.8, 2) + `,` + person(0.6, 3) + `]}`
		pose, err := parseResponse([]byte(line))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pose == nil {
			t.Fatal("expected a pose")
		}
		if pose.Score != 0.8 {
			t.Errorf("Score = %f, want 0.8", pose.Score)
		}
		if pose.Keypoints[LeftElbow].X != 2 {
			t.Errorf("LeftElbow.X = %f, want 2", pose.Keypoints[LeftElbow].X)
		}
	})

	t.Run("skips short keypoint lists", func(t *testing.T) {
		pose, err := parseResponse([]byte(`{"people": [{"keypoints": [[1,2,0.9]], "score": 0.9}]}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pose != nil {
			t.Error("expected nil pose for truncated keypoints")
		}
	})

	t.Run("service error", func(t *testing.T) {
		_, err := parseResponse([]byte(`{"error": "model not loaded"}`))
		if err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := parseResponse([]byte(`not json`))
		if err == nil {
			t.Error("expected error")
		}
	})
}

// person renders a JSON person whose keypoints all sit at (x, x).
func person(score, x float64) string {
	s := `{"score": ` + ftoa(score) + `, "keypoints": [`
	for i := 0; i < NumKeypoints; i++ {
		if i > 0 {
			s += ","
		}
		s += "[" + ftoa(x) + "," + ftoa(x) + ",0.9]"
	}
	return s + "]}"
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func TestMockDetector(t *testing.T) {
	t.Run("returns nil pose by default", func(t *testing.T) {
		mock := NewMockDetector()

		pose, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if pose != nil {
			t.Errorf("expected nil pose, got %v", pose)
		}
	})

	t.Run("returns configured pose", func(t *testing.T) {
		mock := NewMockDetector()
		expected := PlankTopPose()
		mock.SetPose(expected)

		pose, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if pose != expected {
			t.Error("expected configured pose")
		}
	})

	t.Run("plays queue before fixed pose", func(t *testing.T) {
		mock := NewMockDetector()
		top, bottom := PlankTopPose(), PlankBottomPose()
		mock.SetPose(top)
		mock.Queue(bottom, nil)

		if p, _ := mock.Detect(nil); p != bottom {
			t.Error("first call should return queued bottom pose")
		}
		if p, _ := mock.Detect(nil); p != nil {
			t.Error("second call should return queued nil pose")
		}
		if p, _ := mock.Detect(nil); p != top {
			t.Error("third call should fall back to fixed pose")
		}
		if got := mock.Calls(); got != 3 {
			t.Errorf("Calls() = %d, want 3", got)
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		pose, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if pose != nil {
			t.Errorf("expected nil pose when error is set, got %v", pose)
		}
	})

	t.Run("Close returns nil", func(t *testing.T) {
		if err := NewMockDetector().Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*RTMPoseDetector)(nil)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !ValidMode(cfg.Mode) {
		t.Errorf("default mode %q is not valid", cfg.Mode)
	}
	if cfg.MinConfidence != 0.3 {
		t.Errorf("MinConfidence = %f, want 0.3", cfg.MinConfidence)
	}
	if ValidMode("turbo") {
		t.Error("ValidMode(turbo) = true, want false")
	}

	_, err := NewRTMPoseDetector(Config{Mode: "turbo"})
	if err == nil {
		t.Error("NewRTMPoseDetector with unknown mode should fail")
	}
}
