package proximity

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
)

// Overlay describes what the renderer should draw for one detection.
type Overlay struct {
	ObjectID ObjectID        `json:"object_id"`
	Box      image.Rectangle `json:"box"`
	Color    color.RGBA      `json:"color"`
	Label    string          `json:"label"`
	Distance Distance        `json:"distance_cm"`
	Zone     Zone            `json:"zone"`
}

// FrameResult is everything the engine decided about one frame.
type FrameResult struct {
	Sequence uint64         `json:"sequence"`
	Overlays []Overlay      `json:"overlays"`
	Alerts   []AlertMessage `json:"alerts"`

	// Danger is set on every frame where any kept detection is closer than
	// DangerThresholdCM, whether or not an alert was spoken.
	Danger bool `json:"danger"`

	Filtered int `json:"filtered"` // Below the confidence threshold
	Skipped  int `json:"skipped"`  // Malformed
}

// Engine runs frames through the estimator, zone classifier and policy.
// It is not safe for concurrent ProcessFrame calls; frames must be fed one
// at a time in order.
type Engine struct {
	cfg       Config
	estimator Estimator
	store     *AlertStore
	policy    *Policy
	logger    *slog.Logger

	frames uint64
}

// NewEngine creates an engine. A nil store gets a fresh one.
func NewEngine(cfg Config, store *AlertStore) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = NewAlertStore()
	}
	return &Engine{
		cfg:       cfg,
		estimator: NewEstimator(cfg.ReferenceHeightCM, cfg.FocalLength),
		store:     store,
		policy:    NewPolicy(cfg, store),
		logger:    cfg.logger(),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Store returns the alert store backing the policy.
func (e *Engine) Store() *AlertStore {
	return e.store
}

// FramesProcessed returns the number of frames seen since creation or Reset.
func (e *Engine) FramesProcessed() uint64 {
	return e.frames
}

// Reset ends the session: all alert state is dropped.
func (e *Engine) Reset() {
	e.store.Clear()
	e.frames = 0
}

// ProcessFrame evaluates every detection of f in order. A malformed
// detection is skipped without affecting the rest of the frame.
func (e *Engine) ProcessFrame(f Frame) FrameResult {
	e.frames++
	e.store.Advance(e.frames)

	result := FrameResult{Sequence: f.Sequence}

	if f.Width <= 0 {
		e.logger.Warn("frame skipped",
			"sequence", f.Sequence,
			"error", fmt.Errorf("%w: frame width %d", ErrInvalidInput, f.Width),
		)
		result.Skipped = len(f.Detections)
		return result
	}

	for _, det := range f.Detections {
		if det.Confidence < e.cfg.ConfidenceThreshold {
			result.Filtered++
			continue
		}

		overlay, alert, hasAlert, err := e.evaluate(det, f.Width)
		if err != nil {
			result.Skipped++
			e.logger.Warn("detection skipped",
				"sequence", f.Sequence,
				"object_id", det.ID,
				"error", err,
			)
			continue
		}

		result.Overlays = append(result.Overlays, overlay)
		if hasAlert {
			result.Alerts = append(result.Alerts, alert)
			e.logger.Debug("alert",
				"object_id", alert.ObjectID,
				"kind", alert.Kind,
				"distance_cm", alert.Distance,
				"zone", alert.Zone,
			)
		}
		if overlay.Distance.Measurable() && float64(overlay.Distance) < e.cfg.DangerThresholdCM {
			result.Danger = true
		}
	}

	if n := e.store.Evict(e.cfg.StoreTTLFrames); n > 0 {
		e.logger.Debug("evicted stale alert records", "count", n, "remaining", e.store.Len())
	}

	return result
}

// evaluate runs one well-formed detection through the engine.
func (e *Engine) evaluate(det Detection, frameWidth int) (Overlay, AlertMessage, bool, error) {
	if err := det.validate(); err != nil {
		return Overlay{}, AlertMessage{}, false, err
	}

	zone, err := Classify(det.Box.Min.X, frameWidth)
	if err != nil {
		return Overlay{}, AlertMessage{}, false, err
	}

	distance := e.estimator.Estimate(float64(det.PixelHeight()))

	overlay := Overlay{
		ObjectID: det.ID,
		Box:      det.Box,
		Color:    ClassColor(det.ClassID),
		Label:    Label(det, distance, zone),
		Distance: distance,
		Zone:     zone,
	}

	e.store.Touch(det.ID)
	alert, ok := e.policy.Decide(det.ID, distance, det.ClassName, zone)
	return overlay, alert, ok, nil
}

// Label formats the overlay text "<class> <conf> | <distance> cm | <zone>".
func Label(det Detection, distance Distance, zone Zone) string {
	return fmt.Sprintf("%s %.2f | %s cm | %s", det.ClassName, det.Confidence, distance, zone)
}

// ClassColor returns a stable color per class id: three base hues shifted
// a little for every further group of three classes.
func ClassColor(classID int) color.RGBA {
	if classID < 0 {
		classID = -classID
	}

	// BGR order, matching how the palette was first tuned.
	base := [3][3]int{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}}
	increments := [3][3]int{{1, -2, 1}, {-2, 1, -1}, {1, -1, 2}}

	idx := classID % 3
	step := classID / 3

	var bgr [3]uint8
	for i := 0; i < 3; i++ {
		shift := (increments[idx][i]*step%256 + 256) % 256
		v := base[idx][i] + shift
		if v > 255 {
			v = 255
		}
		bgr[i] = uint8(v)
	}

	return color.RGBA{R: bgr[2], G: bgr[1], B: bgr[0], A: 255}
}

// IsInvalidInput reports whether err marks a skipped detection or frame.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
