package proximity

import (
	"fmt"
	"image"
	"math"
	"time"
)

// ObjectID identifies one physical object across frames.
// It is assigned upstream and must stay stable while the object is tracked.
type ObjectID int64

// Detection is one labeled, scored box produced by the upstream tracker.
// The engine only reads it.
type Detection struct {
	ID         ObjectID
	ClassID    int
	ClassName  string
	Confidence float64         // 0-1
	Box        image.Rectangle // Pixel coordinates, Min = (x1,y1), Max = (x2,y2)
}

// PixelHeight returns y2 - y1. It is negative for an inverted box.
func (d Detection) PixelHeight() int {
	return d.Box.Max.Y - d.Box.Min.Y
}

// validate reports malformed geometry or fields.
func (d Detection) validate() error {
	switch {
	case d.ClassName == "":
		return fmt.Errorf("%w: detection %d has no class name", ErrInvalidInput, d.ID)
	case math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1:
		return fmt.Errorf("%w: detection %d confidence %v outside [0,1]", ErrInvalidInput, d.ID, d.Confidence)
	case d.PixelHeight() < 0:
		return fmt.Errorf("%w: detection %d has negative pixel height %d", ErrInvalidInput, d.ID, d.PixelHeight())
	case d.Box.Max.X < d.Box.Min.X:
		return fmt.Errorf("%w: detection %d has negative pixel width %d", ErrInvalidInput, d.ID, d.Box.Dx())
	}
	return nil
}

// Frame is the ordered set of detections seen in one camera frame.
type Frame struct {
	Sequence   uint64
	Width      int // Pixel width of the frame, used for zoning
	Height     int
	Timestamp  time.Time
	Detections []Detection
}
