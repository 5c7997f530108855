package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"
)

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("camera: closed")

// ErrEndOfStream is returned when a file or stream has no more frames.
var ErrEndOfStream = errors.New("camera: end of stream")

// Capture reads BGR frames from an OpenCV video source.
type Capture struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	cfg    Config
	logger *slog.Logger
	closed bool
}

// Open opens the device named in cfg and applies its size and framerate.
func Open(cfg Config, logger *slog.Logger) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if idx, ok := cfg.DeviceIndex(); ok {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		vc, err = gocv.OpenVideoCapture(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera: device %s did not open", cfg.Device)
	}

	c := &Capture{vc: vc, cfg: cfg, logger: logger.With("component", "camera")}
	c.apply(cfg)

	c.logger.Info("camera opened",
		"device", cfg.Device,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
	)
	return c, nil
}

func (c *Capture) apply(cfg Config) {
	c.vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	c.vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	c.vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
}

// Reconfigure applies a new size and framerate to the open device. The
// device itself is not reopened.
func (c *Capture) Reconfigure(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.apply(cfg)
	c.cfg = cfg
	return nil
}

// Read grabs the next frame into dst. It returns ErrEndOfStream when the
// source is exhausted and ctx.Err() once ctx is done.
func (c *Capture) Read(ctx context.Context, dst *gocv.Mat) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if ok := c.vc.Read(dst); !ok || dst.Empty() {
		return ErrEndOfStream
	}
	if c.cfg.Mirror {
		gocv.Flip(*dst, dst, 1)
	}
	return nil
}

// Size returns the size of frames currently delivered.
func (c *Capture) Size() image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return image.Point{}
	}
	return image.Pt(int(c.vc.Get(gocv.VideoCaptureFrameWidth)), int(c.vc.Get(gocv.VideoCaptureFrameHeight)))
}

// Close releases the device. It is safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.vc.Close()
}
