package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-wayfinder/pkg/camera"
	"github.com/teslashibe/go-wayfinder/pkg/protocol"
	"github.com/teslashibe/go-wayfinder/pkg/proximity"
	"github.com/teslashibe/go-wayfinder/pkg/tracking"
	"github.com/teslashibe/go-wayfinder/pkg/tracking/detection"
)

// DefaultMaxEmptyReads is how many empty camera reads in a row are skipped
// before the stream is treated as ended.
const DefaultMaxEmptyReads = 30

// CameraSource captures frames, detects objects and assigns identities.
type CameraSource struct {
	capture  *camera.Capture
	detector detection.Detector
	tracker  *tracking.Tracker
	logger   *slog.Logger
	mat      gocv.Mat
	seq      uint64

	// MaxEmptyReads bounds retries of empty reads. Webcams drop the odd
	// frame; a file returns empty reads forever once finished.
	MaxEmptyReads int
}

// NewCameraSource takes ownership of capture and detector; Close releases
// both.
func NewCameraSource(capture *camera.Capture, detector detection.Detector, tracker *tracking.Tracker, logger *slog.Logger) *CameraSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CameraSource{
		capture:       capture,
		detector:      detector,
		tracker:       tracker,
		logger:        logger.With("component", "camera_source"),
		mat:           gocv.NewMat(),
		MaxEmptyReads: DefaultMaxEmptyReads,
	}
}

// Next reads, detects and tracks one frame. The returned Image is reused by
// the following call.
func (s *CameraSource) Next(ctx context.Context) (Frame, error) {
	empty := 0
	for {
		err := s.capture.Read(ctx, &s.mat)
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, camera.ErrEndOfStream):
			empty++
			if empty >= s.MaxEmptyReads {
				return Frame{}, io.EOF
			}
			s.logger.Debug("empty read, retrying", "attempt", empty)
		case errors.Is(err, camera.ErrClosed):
			return Frame{}, io.EOF
		default:
			return Frame{}, err
		}
	}

	dets, err := s.detector.Detect(s.mat)
	if err != nil {
		return Frame{}, fmt.Errorf("pipeline: detect: %w", err)
	}

	s.seq++
	return Frame{
		Frame: proximity.Frame{
			Sequence:   s.seq,
			Width:      s.mat.Cols(),
			Height:     s.mat.Rows(),
			Timestamp:  time.Now(),
			Detections: s.tracker.Update(dets),
		},
		Image: &s.mat,
	}, nil
}

// Close releases the frame buffer, the detector and the camera.
func (s *CameraSource) Close() error {
	s.mat.Close()
	return errors.Join(s.detector.Close(), s.capture.Close())
}

// FrameReader yields engine frames without images, such as the ingest
// server.
type FrameReader interface {
	Next(ctx context.Context) (proximity.Frame, error)
	Close() error
}

// Remote adapts a FrameReader to Source.
func Remote(r FrameReader) Source {
	return remoteSource{r}
}

type remoteSource struct {
	r FrameReader
}

func (s remoteSource) Next(ctx context.Context) (Frame, error) {
	f, err := s.r.Next(ctx)
	return Frame{Frame: f}, err
}

func (s remoteSource) Close() error {
	return s.r.Close()
}

// ReplaySource plays back detection frames recorded one JSON object per
// line, in the protocol.DetectionFrame format.
type ReplaySource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int

	// Interval, if set, is waited between frames.
	Interval time.Duration
}

// NewReplaySource reads from r. If r is an io.Closer it is closed by Close.
func NewReplaySource(r io.Reader) *ReplaySource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	s := &ReplaySource{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next recorded frame, skipping blank lines.
func (s *ReplaySource) Next(ctx context.Context) (Frame, error) {
	if s.Interval > 0 && s.line > 0 {
		select {
		case <-time.After(s.Interval):
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}

	for s.scanner.Scan() {
		s.line++
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var df protocol.DetectionFrame
		if err := json.Unmarshal(line, &df); err != nil {
			return Frame{}, fmt.Errorf("pipeline: replay line %d: %w", s.line, err)
		}
		f := df.ToFrame()
		if f.Sequence == 0 {
			f.Sequence = uint64(s.line)
		}
		return Frame{Frame: f}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("pipeline: replay: %w", err)
	}
	return Frame{}, io.EOF
}

// Close closes the underlying reader when it has one.
func (s *ReplaySource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

var (
	_ Source = (*CameraSource)(nil)
	_ Source = (*ReplaySource)(nil)
	_ Source = remoteSource{}
)
