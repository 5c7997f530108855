package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/overlay"
	"github.com/teslashibe/go-wayfinder/pkg/protocol"
	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

// OverlaySink draws the result onto the frame image and, when a window is
// set, shows it. Closing the window with the quit key returns ErrQuit.
type OverlaySink struct {
	Renderer *overlay.Renderer
	Window   *overlay.Window // Optional
}

// Consume draws out. Frames without an image are ignored.
func (s OverlaySink) Consume(_ context.Context, out *Output) error {
	if out.Image == nil || out.Image.Empty() {
		return nil
	}
	s.Renderer.Draw(out.Image, out.Result)
	if s.Window != nil && !s.Window.Show(*out.Image) {
		return ErrQuit
	}
	return nil
}

// Announcer queues alerts for speech. speech.Announcer satisfies it.
type Announcer interface {
	Announce(msg proximity.AlertMessage)
}

// SpeechSink forwards every alert to the announcer in detection order.
type SpeechSink struct {
	Announcer Announcer
}

// Consume queues the frame's alerts.
func (s SpeechSink) Consume(_ context.Context, out *Output) error {
	for _, a := range out.Result.Alerts {
		s.Announcer.Announce(a)
	}
	return nil
}

// Dashboard is the live view. web.Server satisfies it.
type Dashboard interface {
	RecordResult(res proximity.FrameResult)
	UpdateStatus(status protocol.StatusData)
	WantsCamera() bool
	SendCameraFrame(jpeg []byte)
}

// DashboardSink records alerts, streams the annotated image while someone
// is watching and pushes status at most once per StatusInterval.
type DashboardSink struct {
	Dashboard      Dashboard
	Quality        int                        // JPEG quality
	QualityFunc    func() int                 // Live quality, overrides Quality
	StatusInterval time.Duration              // Zero pushes every frame
	Status         func() protocol.StatusData // Builds the status snapshot

	mu         sync.Mutex
	lastStatus time.Time
	now        func() time.Time
}

// Consume updates the dashboard for one frame.
func (s *DashboardSink) Consume(_ context.Context, out *Output) error {
	s.Dashboard.RecordResult(out.Result)

	if s.Status != nil && s.statusDue() {
		s.Dashboard.UpdateStatus(s.Status())
	}

	if out.Image == nil || out.Image.Empty() || !s.Dashboard.WantsCamera() {
		return nil
	}
	jpeg, err := overlay.EncodeJPEG(*out.Image, s.quality())
	if err != nil {
		return err
	}
	s.Dashboard.SendCameraFrame(jpeg)
	return nil
}

func (s *DashboardSink) quality() int {
	if s.QualityFunc != nil {
		return s.QualityFunc()
	}
	return s.Quality
}

func (s *DashboardSink) statusDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	t := now()
	if s.StatusInterval > 0 && !s.lastStatus.IsZero() && t.Sub(s.lastStatus) < s.StatusInterval {
		return false
	}
	s.lastStatus = t
	return true
}

// Publisher forwards results off-device. emitter.Emitter satisfies it.
type Publisher interface {
	HandleResult(res proximity.FrameResult)
}

// PublishSink hands every result to the publisher.
type PublishSink struct {
	Publisher Publisher
}

// Consume publishes out.
func (s PublishSink) Consume(_ context.Context, out *Output) error {
	s.Publisher.HandleResult(out.Result)
	return nil
}

var (
	_ Sink = OverlaySink{}
	_ Sink = SpeechSink{}
	_ Sink = (*DashboardSink)(nil)
	_ Sink = PublishSink{}
	_ Sink = SinkFunc(nil)
)
