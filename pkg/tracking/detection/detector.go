// Package detection runs YOLO object detection over camera frames.
package detection

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// ErrModelNotFound is returned when the model file does not exist.
var ErrModelNotFound = errors.New("detection: model not found")

// Detection is one object found in a frame, before identity is assigned.
type Detection struct {
	Box        image.Rectangle // Pixel coordinates in the source frame
	ClassID    int             // COCO class ID
	ClassName  string
	Confidence float64 // 0-1
}

// Area returns the box area in pixels.
func (d Detection) Area() int {
	return d.Box.Dx() * d.Box.Dy()
}

// Detector is the interface for object detection backends.
type Detector interface {
	// Detect finds objects in a BGR frame.
	Detect(frame gocv.Mat) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration.
type Config struct {
	ModelPath        string  `yaml:"model_path" json:"model_path"`
	ConfidenceThresh float32 `yaml:"confidence_thresh" json:"confidence_thresh"` // Candidate cut before NMS
	NMSThresh        float32 `yaml:"nms_thresh" json:"nms_thresh"`
	InputWidth       int     `yaml:"input_width" json:"input_width"`
	InputHeight      int     `yaml:"input_height" json:"input_height"`

	// Classes restricts output to these class names. Empty keeps all.
	Classes []string `yaml:"classes" json:"classes"`
}

// DefaultConfig returns defaults for YOLOv8n. The candidate threshold sits
// below the alert engine's cut so that the engine decides what is kept.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.25,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("detection: model_path is required")
	}
	if c.ConfidenceThresh < 0 || c.ConfidenceThresh > 1 {
		return fmt.Errorf("detection: confidence_thresh must be 0-1, got %v", c.ConfidenceThresh)
	}
	if c.NMSThresh < 0 || c.NMSThresh > 1 {
		return fmt.Errorf("detection: nms_thresh must be 0-1, got %v", c.NMSThresh)
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("detection: input size must be positive, got %dx%d", c.InputWidth, c.InputHeight)
	}
	return nil
}

// FilterClasses keeps detections whose class is in names. An empty names
// list returns dets unchanged.
func FilterClasses(dets []Detection, names []string) []Detection {
	if len(names) == 0 {
		return dets
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}

	out := dets[:0:0]
	for _, d := range dets {
		if keep[d.ClassName] {
			out = append(out, d)
		}
	}
	return out
}

// SortByConfidence orders dets from most to least confident. Ties keep
// their original order.
func SortByConfidence(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
}

// ClassName returns the COCO name for id, or "unknown".
func ClassName(id int) string {
	if id < 0 || id >= len(COCOClasses) {
		return "unknown"
	}
	return COCOClasses[id]
}

// COCOClasses contains the 80 COCO class names
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}
