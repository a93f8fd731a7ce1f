// Package capture reads frames from webcams and video files with GoCV and
// gates pose detection on motion.
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// Capture settings applied to webcams. Video files keep their own.
const (
	DefaultFPS    = 5
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a source that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEndOfStream is returned when a video file has no more frames.
	ErrEndOfStream = errors.New("end of stream")
	// ErrReadFailed is returned when a webcam yields no frame.
	ErrReadFailed = errors.New("failed to read frame")
)

// Camera is a source of BGR frames. ReadFrame's caller owns the returned Mat.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// SourceKind distinguishes webcams from finite media.
type SourceKind int

const (
	// SourceDevice is a webcam addressed by index.
	SourceDevice SourceKind = iota
	// SourceFile is a video file, read until ErrEndOfStream.
	SourceFile
	// SourceStream is a network stream such as rtsp:// or http://.
	SourceStream
)

// Source identifies where frames come from.
type Source struct {
	Kind   SourceKind
	Device int
	Path   string
}

// ParseSource classifies s: a non-negative integer is a webcam index, a URL
// with a scheme is a stream, anything else a file path.
func ParseSource(s string) Source {
	if id, err := strconv.Atoi(s); err == nil && id >= 0 {
		return Source{Kind: SourceDevice, Device: id}
	}
	if strings.Contains(s, "://") {
		return Source{Kind: SourceStream, Path: s}
	}
	return Source{Kind: SourceFile, Path: s}
}

func (s Source) String() string {
	if s.Kind == SourceDevice {
		return fmt.Sprintf("camera %d", s.Device)
	}
	return s.Path
}

// videoSource reads frames through an OpenCV VideoCapture.
type videoSource struct {
	src Source

	mu      sync.Mutex
	capture *gocv.VideoCapture
	fps     int
}

// NewCamera returns a Camera for the source string accepted by ParseSource.
// The capture rate starts at DefaultFPS.
func NewCamera(source string) Camera {
	return &videoSource{src: ParseSource(source), fps: DefaultFPS}
}

// Open starts capturing. Opening an open source is a no-op.
func (v *videoSource) Open() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture != nil {
		return nil
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if v.src.Kind == SourceDevice {
		vc, err = gocv.OpenVideoCapture(v.src.Device)
	} else {
		vc, err = gocv.VideoCaptureFile(v.src.Path)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", v.src, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open %s: %w", v.src, ErrCameraNotOpen)
	}

	if v.src.Kind == SourceDevice {
		vc.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
		vc.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
		vc.Set(gocv.VideoCaptureFPS, float64(v.fps))
	}

	v.capture = vc
	return nil
}

// Close releases the capture. Closing a closed source returns nil.
func (v *videoSource) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return nil
	}
	err := v.capture.Close()
	v.capture = nil
	return err
}

// ReadFrame returns the next frame. Files report ErrEndOfStream when
// exhausted; webcams report ErrReadFailed.
func (v *videoSource) ReadFrame() (*gocv.Mat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := v.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if v.src.Kind == SourceFile {
			return nil, ErrEndOfStream
		}
		return nil, fmt.Errorf("%s: %w", v.src, ErrReadFailed)
	}
	return &mat, nil
}

// SetFPS changes the capture rate. Non-positive values are ignored. Only
// webcams are asked to change their rate; files are paced by the caller.
func (v *videoSource) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.fps = fps
	if v.capture != nil && v.src.Kind == SourceDevice {
		v.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current capture rate.
func (v *videoSource) FPS() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fps
}

// IsOpen reports whether the source is capturing.
func (v *videoSource) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.capture != nil
}
