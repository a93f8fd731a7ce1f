// Package app wires the camera, pose detector, rep-counting session and
// plugin hooks into the formrep pipeline.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/formrep/internal/capture"
	"github.com/ayusman/formrep/internal/config"
	"github.com/ayusman/formrep/internal/detector"
	"github.com/ayusman/formrep/internal/plugin"
	"github.com/ayusman/formrep/internal/render"
	"github.com/ayusman/formrep/internal/replay"
	"github.com/ayusman/formrep/internal/repcount"
	"github.com/ayusman/formrep/internal/session"
	"github.com/ayusman/formrep/internal/store"
)

// subscriberBuffer is the channel size handed to each subscriber.
const subscriberBuffer = 16

// Options holds the collaborators of an App. Camera and Detector are
// created from Config when nil; Store and Recorder are optional.
type Options struct {
	Config   config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	Recorder *replay.Recorder
}

// App runs the capture pipeline and owns the current session.
type App struct {
	store      *store.Store
	camera     capture.Camera
	motion     *capture.MotionDetector
	activity   *capture.Activity
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor
	hooks      *plugin.Dispatcher
	recorder   *replay.Recorder
	style      render.Style

	mu       sync.RWMutex
	cfg      config.Config
	detector detector.Detector
	enabled  bool
	stopCh   chan struct{}
	done     chan struct{}

	// sessMu guards the session, which is not safe for concurrent use.
	sessMu    sync.Mutex
	session   *session.Session
	profileID string
	advised   map[repcount.Advisory]bool

	snapMu sync.RWMutex
	last   session.Report
	jpeg   []byte

	subMu   sync.Mutex
	subs    map[int]chan session.Report
	nextSub int
}

// New creates an App. When a store is given, the profile named in the
// config, or else the active profile, supplies the thresholds.
func New(opts Options) (*App, error) {
	cfg := opts.Config

	a := &App{
		store:    opts.Store,
		camera:   opts.Camera,
		detector: opts.Detector,
		recorder: opts.Recorder,
		style:    render.DefaultStyle(),
		subs:     make(map[int]chan session.Report),
	}

	if a.store != nil {
		p, err := cfg.LoadProfile(a.store)
		if err != nil {
			return nil, err
		}
		if p != nil {
			a.profileID = p.ID
			log.Printf("Using threshold profile %q", p.Name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a.cfg = cfg

	s, err := session.New(cfg.Session())
	if err != nil {
		return nil, err
	}
	a.session = s
	a.advised = make(map[repcount.Advisory]bool)

	if a.camera == nil {
		a.camera = capture.NewCamera(cfg.Camera)
	}
	a.motion = capture.NewMotionDetector(cfg.MotionThreshold)
	a.activity = capture.NewActivity(cfg.IdleTimeout)

	if a.detector == nil {
		if rtm, err := detector.NewRTMPoseDetector(cfg.Detector); err == nil {
			a.detector = rtm
			log.Printf("Using RTMPose detection (%s, %s)", cfg.Detector.Mode, cfg.Detector.Device)
		} else {
			log.Printf("RTMPose not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	a.pluginMgr = plugin.NewManager(cfg.PluginDir)
	a.pluginExec = plugin.NewExecutor(cfg.HookTimeout)
	if a.store != nil {
		a.hooks = plugin.NewDispatcher(a.store.Hooks(), a.pluginMgr, a.pluginExec, cfg.HookWorkers)
	}

	return a, nil
}

// SetEnabled enables or disables rep counting.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether rep counting is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the pose detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the pose detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Config returns the configuration in effect, including any applied profile.
func (a *App) Config() config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Camera returns the frame source.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	if err := a.pluginMgr.Discover(); err != nil {
		return err
	}
	log.Printf("Discovered %d plugins in %s", len(a.pluginMgr.List()), a.pluginMgr.PluginDir())
	return nil
}

// Start opens the camera and begins the pipeline. Hook workers run until
// ctx is cancelled or Stop is called.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera %s: %w", a.cfg.Camera, err)
	}
	a.camera.SetFPS(a.cfg.IdleFPS)

	if a.hooks != nil {
		a.hooks.Start(ctx)
	}

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.stopCh, a.done)

	log.Println("Rep counting pipeline started")
	return nil
}

// Done returns a channel closed when the pipeline exits, either through
// Stop or because a video file ran out of frames. It is nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// Stop halts the pipeline and releases resources.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done := a.stopCh, a.done
	a.stopCh = nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-done
	}

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.motion.Close()

	if a.hooks != nil {
		a.hooks.Close()
	}

	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}

	if a.recorder != nil {
		if err := a.recorder.Flush(); err != nil {
			log.Printf("Error flushing recording: %v", err)
		}
	}

	a.subMu.Lock()
	for id, ch := range a.subs {
		close(ch)
		delete(a.subs, id)
	}
	a.subMu.Unlock()

	log.Println("Rep counting pipeline stopped")
}
