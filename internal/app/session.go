package app

import (
	"fmt"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/formrep/internal/detector"
	"github.com/ayusman/formrep/internal/plugin"
	"github.com/ayusman/formrep/internal/render"
	"github.com/ayusman/formrep/internal/repcount"
	"github.com/ayusman/formrep/internal/session"
	"github.com/ayusman/formrep/internal/store"
)

// NewSession discards the current set and starts counting from zero.
func (a *App) NewSession() (string, error) {
	s, err := session.New(a.Config().Session())
	if err != nil {
		return "", err
	}

	a.sessMu.Lock()
	a.session = s
	a.advised = make(map[repcount.Advisory]bool)
	a.sessMu.Unlock()

	a.snapMu.Lock()
	a.last = session.Report{SessionID: s.ID(), Time: s.StartedAt()}
	a.snapMu.Unlock()

	log.Printf("Started session %s", s.ID())
	return s.ID(), nil
}

// UseProfile switches to the thresholds stored in p and starts a new session.
func (a *App) UseProfile(p *store.Profile) (string, error) {
	a.mu.Lock()
	cfg := a.cfg
	cfg.ApplyProfile(p)
	if err := cfg.Validate(); err != nil {
		a.mu.Unlock()
		return "", fmt.Errorf("profile %q: %w", p.Name, err)
	}
	a.cfg = cfg
	a.mu.Unlock()

	a.sessMu.Lock()
	a.profileID = p.ID
	a.sessMu.Unlock()

	log.Printf("Switched to threshold profile %q", p.Name)
	return a.NewSession()
}

// ProcessFrame runs detection on frame and feeds the result to the session.
// The frame is annotated in place and kept as the latest stream image.
func (a *App) ProcessFrame(frame *gocv.Mat, now time.Time) (session.Report, error) {
	pose, err := a.Detector().Detect(frame)
	if err != nil {
		return session.Report{}, fmt.Errorf("detect pose: %w", err)
	}

	a.sessMu.Lock()
	report := a.session.ProcessAt(pose, now)
	events := a.events(report)
	if a.recorder != nil {
		if err := a.recorder.Record(now, pose); err != nil {
			log.Printf("Error recording frame: %v", err)
		}
	}
	a.sessMu.Unlock()

	if report.Counted {
		log.Printf("Rep %d counted (elbow %.0f, hip %.0f)", report.Count, report.ElbowAngle, report.HipAngle)
	}

	render.Frame(frame, pose, a.Config().Side, report, a.style)
	a.publish(report, frame)
	a.fire(events)

	return report, nil
}

// events returns the hook events raised by report. Advisories fire only
// when they were not raised on the previous evaluated frame.
func (a *App) events(r session.Report) []plugin.Event {
	if !r.Evaluated() {
		return nil
	}

	var events []plugin.Event
	if r.Counted {
		events = append(events, plugin.Event{
			Kind:      store.HookEventRep,
			ProfileID: a.profileID,
			SessionID: r.SessionID,
			Reps:      r.Count,
			Message:   fmt.Sprintf("Rep %d", r.Count),
		})
	}

	raised := make(map[repcount.Advisory]bool, len(r.Advisories))
	for _, adv := range r.Advisories {
		raised[adv] = true
		if a.advised[adv] {
			continue
		}
		events = append(events, plugin.Event{
			Kind:      store.HookEventAdvisory,
			ProfileID: a.profileID,
			SessionID: r.SessionID,
			Reps:      r.Count,
			Advisory:  string(adv),
			Message:   adv.Message(),
		})
	}
	a.advised = raised

	return events
}

func (a *App) fire(events []plugin.Event) {
	if a.hooks == nil {
		return
	}
	for _, ev := range events {
		if _, err := a.hooks.Fire(ev); err != nil {
			log.Printf("Error firing %s hooks: %v", ev.Kind, err)
		}
	}
}

// publish stores the latest snapshot and image and notifies subscribers.
// Slow subscribers miss reports rather than stall the pipeline.
func (a *App) publish(r session.Report, frame *gocv.Mat) {
	jpeg := encodeJPEG(frame)

	a.snapMu.Lock()
	a.last = r
	if jpeg != nil {
		a.jpeg = jpeg
	}
	a.snapMu.Unlock()

	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- r:
		default:
		}
	}
}

// keepFrame stores an unannotated image while the pipeline is idle.
func (a *App) keepFrame(frame *gocv.Mat) {
	if jpeg := encodeJPEG(frame); jpeg != nil {
		a.snapMu.Lock()
		a.jpeg = jpeg
		a.snapMu.Unlock()
	}
}

func encodeJPEG(frame *gocv.Mat) []byte {
	if frame == nil || frame.Empty() {
		return nil
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// Subscribe returns a channel receiving every report and a function that
// cancels the subscription.
func (a *App) Subscribe() (<-chan session.Report, func()) {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan session.Report, subscriberBuffer)
	a.subs[id] = ch

	return ch, func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		if _, ok := a.subs[id]; ok {
			close(ch)
			delete(a.subs, id)
		}
	}
}

// Last returns the most recent report.
func (a *App) Last() session.Report {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return a.last
}

// LatestJPEG returns the most recent stream image, or nil before the first frame.
func (a *App) LatestJPEG() []byte {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return a.jpeg
}

// Summary returns the statistics of the current session.
func (a *App) Summary() session.Summary {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	return a.session.Summary()
}

// History returns the recent reports of the current session.
func (a *App) History() []session.Report {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	return a.session.History()
}

// Reps returns the reps counted in the current session.
func (a *App) Reps() []session.Rep {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	return a.session.Reps()
}

// SessionID returns the ID of the current session.
func (a *App) SessionID() string {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	return a.session.ID()
}

// ProfileID returns the ID of the threshold profile in use, if any.
func (a *App) ProfileID() string {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	return a.profileID
}

// Side returns the body side being tracked.
func (a *App) Side() detector.Side {
	return a.Config().Side
}
