package app

import (
	"errors"
	"log"
	"time"

	"github.com/ayusman/formrep/internal/capture"
)

// runPipeline reads frames until stopCh closes or the source ends.
//
// The camera starts at the idle frame rate and only checks for motion.
// Motion switches to the active rate, where frames go through pose
// detection and the session. After the idle timeout without motion it
// drops back to idle.
func (a *App) runPipeline(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	cfg := a.Config()
	interval := func(fps int) time.Duration {
		return time.Second / time.Duration(fps)
	}

	ticker := time.NewTicker(interval(cfg.IdleFPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if errors.Is(err, capture.ErrEndOfStream) {
				log.Println("Video source ended")
				return
			}
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			now := time.Now()
			motion := a.motion.Detect(frame)
			if a.activity.Observe(motion.Detected, now) {
				if a.activity.Active() {
					a.camera.SetFPS(cfg.ActiveFPS)
					ticker.Reset(interval(cfg.ActiveFPS))
					log.Printf("Switched to active mode (%.1f%% change)", motion.ChangePercent)
				} else {
					a.camera.SetFPS(cfg.IdleFPS)
					ticker.Reset(interval(cfg.IdleFPS))
					log.Println("Switched to idle mode")
				}
			}

			if !a.activity.Active() {
				a.keepFrame(frame)
				frame.Close()
				continue
			}

			if _, err := a.ProcessFrame(frame, now); err != nil {
				log.Printf("Error processing frame: %v", err)
			}
			frame.Close()
		}
	}
}
