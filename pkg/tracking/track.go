package tracking

import (
	"image"

	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

// Track is one object followed across frames.
type Track struct {
	ID      proximity.ObjectID
	ClassID int
	Box     image.Rectangle // Last matched box
	Hits    int             // Frames matched
	Misses  int             // Consecutive frames unmatched
}

// IoU returns intersection over union of two boxes, 0 when either is empty.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}
