package proximity

import "fmt"

// Zone is the horizontal third of the frame an object starts in.
type Zone int

const (
	ZoneCenter Zone = iota
	ZoneLeft
	ZoneRight
)

// String returns "left", "center" or "right".
func (z Zone) String() string {
	switch z {
	case ZoneLeft:
		return "left"
	case ZoneRight:
		return "right"
	default:
		return "center"
	}
}

// MarshalText encodes the zone by name.
func (z Zone) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

// Classify maps a box's left edge to a zone. The thirds are computed with
// integer division and both comparisons are strict, so pixels exactly on a
// boundary stay in the center.
func Classify(x1, frameWidth int) (Zone, error) {
	if frameWidth <= 0 {
		return ZoneCenter, fmt.Errorf("%w: frame width %d", ErrInvalidInput, frameWidth)
	}

	left := frameWidth / 3
	right := 2 * (frameWidth / 3)

	switch {
	case x1 < left:
		return ZoneLeft, nil
	case x1 > right:
		return ZoneRight, nil
	default:
		return ZoneCenter, nil
	}
}
