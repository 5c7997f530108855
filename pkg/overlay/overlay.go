// Package overlay draws engine results onto camera frames and shows them.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

// DangerText is drawn on frames where an object is dangerously close.
const DangerText = "DANGER: TOO CLOSE!"

// Style controls how overlays are drawn.
type Style struct {
	BoxThickness   int
	LabelScale     float64
	LabelThickness int
	LabelOffset    int // Pixels above the box top

	DangerOrigin    image.Point
	DangerScale     float64
	DangerThickness int
	DangerColor     color.RGBA
}

// DefaultStyle returns the standard look.
func DefaultStyle() Style {
	return Style{
		BoxThickness:   2,
		LabelScale:     0.8,
		LabelThickness: 2,
		LabelOffset:    10,

		DangerOrigin:    image.Pt(50, 50),
		DangerScale:     1.2,
		DangerThickness: 3,
		DangerColor:     color.RGBA{R: 255, A: 255},
	}
}

// Renderer draws FrameResults.
type Renderer struct {
	style Style
}

// NewRenderer creates a renderer with style.
func NewRenderer(style Style) *Renderer {
	return &Renderer{style: style}
}

// Draw paints every overlay of res onto frame, plus the danger banner when
// res.Danger is set.
func (r *Renderer) Draw(frame *gocv.Mat, res proximity.FrameResult) {
	for _, o := range res.Overlays {
		gocv.Rectangle(frame, o.Box, o.Color, r.style.BoxThickness)
		gocv.PutText(frame, o.Label, LabelOrigin(o.Box, r.style.LabelOffset),
			gocv.FontHersheySimplex, r.style.LabelScale, o.Color, r.style.LabelThickness)
	}
	if res.Danger {
		gocv.PutText(frame, DangerText, r.style.DangerOrigin,
			gocv.FontHersheySimplex, r.style.DangerScale, r.style.DangerColor, r.style.DangerThickness)
	}
}

// LabelOrigin returns where a box's label baseline starts: offset pixels
// above the top-left corner, kept inside the frame.
func LabelOrigin(box image.Rectangle, offset int) image.Point {
	y := box.Min.Y - offset
	if y < offset {
		y = box.Min.Y + 2*offset
	}
	x := box.Min.X
	if x < 0 {
		x = 0
	}
	return image.Pt(x, y)
}

// EncodeJPEG encodes frame at quality (1-100).
func EncodeJPEG(frame gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("overlay: encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory that Close frees
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
