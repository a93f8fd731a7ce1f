// Package config resolves runtime settings from defaults, FORMREP_*
// environment variables, command-line flags and stored threshold profiles.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ayusman/formrep/internal/detector"
	"github.com/ayusman/formrep/internal/repcount"
	"github.com/ayusman/formrep/internal/session"
	"github.com/ayusman/formrep/internal/store"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "FORMREP_"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds every runtime setting of the application.
type Config struct {
	Thresholds repcount.Thresholds
	Side       detector.Side
	Detector   detector.Config

	Camera    string
	Addr      string
	DataDir   string
	PluginDir string
	WebDir    string
	Profile   string

	MotionThreshold float64
	IdleFPS         int
	ActiveFPS       int
	IdleTimeout     time.Duration
	HistorySize     int
	HookTimeout     time.Duration
	HookWorkers     int
}

// Default returns the built-in configuration.
func Default() Config {
	dataDir := ".formrep"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".formrep")
	}

	return Config{
		Thresholds:      repcount.DefaultThresholds(),
		Side:            detector.SideLeft,
		Detector:        detector.DefaultConfig(),
		Camera:          "0",
		Addr:            "127.0.0.1:8080",
		DataDir:         dataDir,
		PluginDir:       "plugins",
		WebDir:          "web",
		MotionThreshold: 1.0,
		IdleFPS:         5,
		ActiveFPS:       15,
		IdleTimeout:     2 * time.Second,
		HistorySize:     session.DefaultHistorySize,
		HookTimeout:     5 * time.Second,
		HookWorkers:     2,
	}
}

// DBPath returns the SQLite database location.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "formrep.db")
}

// Session returns the settings for a new session.
func (c Config) Session() session.Config {
	return session.Config{
		Thresholds:    c.Thresholds,
		Side:          c.Side,
		MinConfidence: c.Detector.MinConfidence,
		HistorySize:   c.HistorySize,
	}
}

// FromEnv overlays FORMREP_* variables found by lookup onto c. Unset
// variables leave the field unchanged; malformed values are errors.
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	float := func(name string, dst *float64) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = f
		return nil
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}
	duration := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("CAMERA", &c.Camera)
	str("ADDR", &c.Addr)
	str("DATA_DIR", &c.DataDir)
	str("PLUGIN_DIR", &c.PluginDir)
	str("WEB_DIR", &c.WebDir)
	str("PROFILE", &c.Profile)
	str("DETECTOR_BACKEND", &c.Detector.Backend)
	str("DETECTOR_DEVICE", &c.Detector.Device)

	var side, mode string
	str("SIDE", &side)
	if side != "" {
		c.Side = detector.Side(side)
	}
	str("DETECTOR_MODE", &mode)
	if mode != "" {
		c.Detector.Mode = mode
	}

	for _, err := range []error{
		float("ELBOW_DOWN_MAX", &c.Thresholds.ElbowDownMax),
		float("ELBOW_UP_MIN", &c.Thresholds.ElbowUpMin),
		float("HIP_TOLERANCE", &c.Thresholds.HipTolerance),
		float("MIN_CONFIDENCE", &c.Detector.MinConfidence),
		float("MOTION_THRESHOLD", &c.MotionThreshold),
		integer("IDLE_FPS", &c.IdleFPS),
		integer("ACTIVE_FPS", &c.ActiveFPS),
		integer("HISTORY_SIZE", &c.HistorySize),
		integer("HOOK_WORKERS", &c.HookWorkers),
		duration("IDLE_TIMEOUT", &c.IdleTimeout),
		duration("HOOK_TIMEOUT", &c.HookTimeout),
	} {
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	return nil
}

// ApplyProfile replaces the thresholds, side and confidence gate with those
// stored in p.
func (c *Config) ApplyProfile(p *store.Profile) {
	c.Thresholds = repcount.Thresholds{
		ElbowDownMax: p.ElbowDownMax,
		ElbowUpMin:   p.ElbowUpMin,
		HipTolerance: p.HipTolerance,
	}
	if p.Side != "" {
		c.Side = detector.Side(p.Side)
	}
	c.Detector.MinConfidence = p.MinConfidence
	c.Profile = p.Name
}

// LoadProfile applies the profile named by c.Profile, or else the active
// profile, from st. It returns nil when no name is set and nothing is active.
func (c *Config) LoadProfile(st *store.Store) (*store.Profile, error) {
	if c.Profile != "" {
		p, err := st.Profiles().GetByName(c.Profile)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", c.Profile, err)
		}
		c.ApplyProfile(p)
		return p, nil
	}

	p, err := st.ActiveProfile()
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.ApplyProfile(p)
	return p, nil
}

// ProfileFrom builds a store profile holding the thresholds of c.
func (c Config) ProfileFrom(id, name string) *store.Profile {
	return &store.Profile{
		ID:            id,
		Name:          name,
		ElbowDownMax:  c.Thresholds.ElbowDownMax,
		ElbowUpMin:    c.Thresholds.ElbowUpMin,
		HipTolerance:  c.Thresholds.HipTolerance,
		Side:          string(c.Side),
		MinConfidence: c.Detector.MinConfidence,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := detector.ParseSide(string(c.Side)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !detector.ValidMode(c.Detector.Mode) {
		return fmt.Errorf("%w: unknown detector mode %q", ErrInvalid, c.Detector.Mode)
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("%w: min confidence %.2f outside [0, 1]", ErrInvalid, c.Detector.MinConfidence)
	}
	if c.Camera == "" {
		return fmt.Errorf("%w: camera source is empty", ErrInvalid)
	}
	if c.MotionThreshold <= 0 || c.MotionThreshold > 100 {
		return fmt.Errorf("%w: motion threshold %.2f outside (0, 100]", ErrInvalid, c.MotionThreshold)
	}
	if c.IdleFPS <= 0 || c.ActiveFPS <= 0 {
		return fmt.Errorf("%w: frame rates must be positive", ErrInvalid)
	}
	if c.ActiveFPS < c.IdleFPS {
		return fmt.Errorf("%w: active fps %d below idle fps %d", ErrInvalid, c.ActiveFPS, c.IdleFPS)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("%w: idle timeout must be positive", ErrInvalid)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("%w: history size must be positive", ErrInvalid)
	}
	if c.HookWorkers <= 0 {
		return fmt.Errorf("%w: hook workers must be positive", ErrInvalid)
	}
	return nil
}
