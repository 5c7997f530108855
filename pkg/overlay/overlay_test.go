package overlay

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

func TestLabelOrigin(t *testing.T) {
	tests := []struct {
		name string
		box  image.Rectangle
		want image.Point
	}{
		{"above box", image.Rect(40, 100, 140, 300), image.Pt(40, 90)},
		{"top edge moves inside", image.Rect(40, 5, 140, 300), image.Pt(40, 25)},
		{"left edge clamps", image.Rect(-20, 100, 80, 300), image.Pt(0, 90)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := LabelOrigin(tc.box, 10); got != tc.want {
				t.Errorf("LabelOrigin = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsQuit(t *testing.T) {
	if !IsQuit('q', 'q') {
		t.Error("q should quit")
	}
	if !IsQuit(0x100|'q', 'q') {
		t.Error("modifier bits should be masked")
	}
	if IsQuit(-1, 'q') {
		t.Error("no key should not quit")
	}
	if IsQuit('x', 'q') {
		t.Error("x should not quit")
	}
}

func TestDrawAndEncode(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	res := proximity.FrameResult{
		Overlays: []proximity.Overlay{{
			Box:   image.Rect(100, 100, 200, 300),
			Color: color.RGBA{G: 255, A: 255},
			Label: "person 0.90 | 80.0 cm | left",
		}},
		Danger: true,
	}
	NewRenderer(DefaultStyle()).Draw(&frame, res)

	// Box edge is drawn in the overlay color (BGR in the Mat)
	if v := frame.GetVecbAt(200, 100); v[1] != 255 {
		t.Errorf("box pixel = %v, want green", v)
	}

	data, err := EncodeJPEG(frame, 80)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("EncodeJPEG did not produce a JPEG")
	}
}
