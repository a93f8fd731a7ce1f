package capture

import "time"

// Activity switches between idle and active capture modes. Motion makes it
// active immediately; it goes idle after no motion for the timeout.
type Activity struct {
	timeout    time.Duration
	active     bool
	lastMotion time.Time
}

// NewActivity creates an idle Activity with the given idle timeout.
func NewActivity(timeout time.Duration) *Activity {
	return &Activity{timeout: timeout}
}

// Observe records whether motion was seen at now and reports whether the
// mode changed on this call.
func (a *Activity) Observe(motion bool, now time.Time) (changed bool) {
	if motion {
		a.lastMotion = now
		if !a.active {
			a.active = true
			return true
		}
		return false
	}

	if a.active && now.Sub(a.lastMotion) > a.timeout {
		a.active = false
		return true
	}
	return false
}

// Active reports whether the tracker is in active mode.
func (a *Activity) Active() bool {
	return a.active
}
