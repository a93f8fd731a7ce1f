package tray

import (
	"testing"

	"github.com/ayusman/formrep/internal/repcount"
	"github.com/ayusman/formrep/internal/session"
)

func TestTitles(t *testing.T) {
	tests := []struct {
		name         string
		report       session.Report
		wantReps     string
		wantAdvisory string
	}{
		{
			name:         "before first frame",
			report:       session.Report{},
			wantReps:     "0 reps",
			wantAdvisory: "Form: waiting",
		},
		{
			name:         "one good rep",
			report:       session.Report{Result: repcount.Result{State: repcount.State{Count: 1}}, Frame: 4},
			wantReps:     "1 rep",
			wantAdvisory: "Form: good",
		},
		{
			name: "sagging",
			report: session.Report{
				Result: repcount.Result{
					State:      repcount.State{Count: 5},
					Advisories: []repcount.Advisory{repcount.AdvisoryKeepTorsoStraight, repcount.AdvisoryIncompleteRange},
				},
				Frame: 9,
			},
			wantReps:     "5 reps",
			wantAdvisory: "Form: Keep your back straight!",
		},
		{
			name:         "skipped frame",
			report:       session.Report{Result: repcount.Result{State: repcount.State{Count: 2}}, Frame: 10, Skipped: session.SkipLowConfidence},
			wantReps:     "2 reps",
			wantAdvisory: "Form: not visible",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repsTitle(tt.report); got != tt.wantReps {
				t.Errorf("repsTitle() = %q, want %q", got, tt.wantReps)
			}
			if got := advisoryTitle(tt.report); got != tt.wantAdvisory {
				t.Errorf("advisoryTitle() = %q, want %q", got, tt.wantAdvisory)
			}
		})
	}
}

func TestToggleTitle(t *testing.T) {
	if got := toggleTitle(true); got != "● Counting" {
		t.Errorf("toggleTitle(true) = %q", got)
	}
	if got := toggleTitle(false); got != "○ Paused" {
		t.Errorf("toggleTitle(false) = %q", got)
	}
}

func TestTray_ToggleWithoutMenu(t *testing.T) {
	tr := New()
	if !tr.IsEnabled() {
		t.Fatal("new tray should be enabled")
	}

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })
	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("toggle callbacks = %v, want [false true]", got)
	}

	// Updates before the menu exists are ignored.
	tr.Update(session.Report{Frame: 1})
}

func TestTray_SetEnabledSkipsCallback(t *testing.T) {
	tr := New()
	called := false
	tr.OnToggle(func(bool) { called = true })

	tr.SetEnabled(false)
	if tr.IsEnabled() {
		t.Error("SetEnabled(false) left tray enabled")
	}
	if called {
		t.Error("SetEnabled should not call the toggle callback")
	}
}
