package proximity

import (
	"math"
	"strconv"
)

// Distance is an estimated distance in centimeters.
type Distance float64

// Unmeasurable is returned for degenerate boxes. It is positive infinity,
// never NaN, so ordered comparisons stay well defined.
var Unmeasurable = Distance(math.Inf(1))

// Measurable reports whether d is a finite, non-negative estimate.
func (d Distance) Measurable() bool {
	f := float64(d)
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f >= 0
}

// CM returns the distance as a float64.
func (d Distance) CM() float64 {
	return float64(d)
}

// String formats with one decimal, or "inf" for Unmeasurable.
func (d Distance) String() string {
	if !d.Measurable() {
		return "inf"
	}
	return strconv.FormatFloat(float64(d), 'f', 1, 64)
}

// MarshalJSON encodes Unmeasurable as null since JSON has no infinity.
func (d Distance) MarshalJSON() ([]byte, error) {
	if !d.Measurable() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(d), 'f', 1, 64), nil
}

// Estimator converts a box's pixel height to distance with the pinhole model:
//
//	distance = referenceHeight * focalLength / pixelHeight
type Estimator struct {
	referenceHeightCM float64
	focalLength       float64
}

// NewEstimator creates an estimator for the given calibration.
func NewEstimator(referenceHeightCM, focalLength float64) Estimator {
	return Estimator{referenceHeightCM: referenceHeightCM, focalLength: focalLength}
}

// Estimate returns the distance for a box pixelHeight pixels tall.
// Zero or negative heights return Unmeasurable.
func (e Estimator) Estimate(pixelHeight float64) Distance {
	if pixelHeight <= 0 || math.IsNaN(pixelHeight) {
		return Unmeasurable
	}
	return Distance(e.referenceHeightCM * e.focalLength / pixelHeight)
}
