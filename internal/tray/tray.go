// Package tray provides a system tray menu for the formrep rep counter.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/formrep/internal/session"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle     func(enabled bool)
	onNewSession func()
	onDashboard  func()
	onQuit       func()
	enabled      bool
	mu           sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuReps     *systray.MenuItem
	menuAdvisory *systray.MenuItem
}

// New creates a new Tray with counting enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback called when counting is switched on or off.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnNewSession sets the callback called when a new set is requested.
func (t *Tray) OnNewSession(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNewSession = fn
}

// OnDashboard sets the callback called when the dashboard item is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback called when the quit item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle(titleFor(session.Report{}))
	systray.SetTooltip("formrep push-up counter")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle rep counting")
	systray.AddSeparator()

	t.menuReps = systray.AddMenuItem(repsTitle(session.Report{}), "Reps in the current set")
	t.menuReps.Disable()
	t.menuAdvisory = systray.AddMenuItem(advisoryTitle(session.Report{}), "Latest form advisory")
	t.menuAdvisory.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuNewSession := systray.AddMenuItem("New Set", "Reset the rep count")
	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit formrep")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuNewSession.ClickedCh:
				t.call(func() func() { return t.onNewSession })
			case <-menuDashboard.ClickedCh:
				t.call(func() func() { return t.onDashboard })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the enabled state and notifies the callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// call runs the callback returned by get, read under the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// Update shows r in the tray title and menu.
func (t *Tray) Update(r session.Report) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuReps == nil {
		return
	}
	systray.SetTitle(titleFor(r))
	t.menuReps.SetTitle(repsTitle(r))
	t.menuAdvisory.SetTitle(advisoryTitle(r))
}

// Watch updates the tray with every report until reports is closed.
func (t *Tray) Watch(reports <-chan session.Report) {
	for r := range reports {
		t.Update(r)
	}
}

// SetEnabled sets the enabled state without calling the toggle callback.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Counting"
	}
	return "○ Paused"
}

func titleFor(r session.Report) string {
	return fmt.Sprintf("↕ %d", r.Count)
}

func repsTitle(r session.Report) string {
	if r.Count == 1 {
		return "1 rep"
	}
	return fmt.Sprintf("%d reps", r.Count)
}

// advisoryTitle shows the first advisory of an evaluated frame, or why the
// frame was skipped.
func advisoryTitle(r session.Report) string {
	switch {
	case r.Skipped != session.SkipNone:
		return "Form: not visible"
	case len(r.Advisories) > 0:
		return "Form: " + r.Advisories[0].Message()
	case r.Frame == 0:
		return "Form: waiting"
	default:
		return "Form: good"
	}
}
