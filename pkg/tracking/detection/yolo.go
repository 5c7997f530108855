package detection

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YOLODetector uses YOLOv8 for general object detection
type YOLODetector struct {
	net       gocv.Net
	config    Config
	mu        sync.Mutex
	inputSize image.Point
	logger    *slog.Logger
}

var _ Detector = (*YOLODetector)(nil)

// NewYOLO loads the ONNX model at cfg.ModelPath.
func NewYOLO(cfg Config, logger *slog.Logger) (*YOLODetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("detection: failed to load YOLO model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	if logger == nil {
		logger = slog.Default()
	}

	return &YOLODetector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
		logger:    logger.With("component", "yolo"),
	}, nil
}

// Detect finds objects in a BGR frame.
func (d *YOLODetector) Detect(frame gocv.Mat) ([]Detection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("detection: empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	blob := gocv.BlobFromImage(frame, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	// YOLOv8 output is [1, 84, 8400]: 4 box values then 80 class scores,
	// laid out attribute-major.
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("detection: read output: %w", err)
	}

	scaleX := float32(frame.Cols()) / float32(d.config.InputWidth)
	scaleY := float32(frame.Rows()) / float32(d.config.InputHeight)
	candidates := decodeCandidates(data, output.Size(), d.config.ConfidenceThresh, scaleX, scaleY)
	if len(candidates) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = c.box
		scores[i] = c.score
	}
	indices := gocv.NMSBoxes(boxes, scores, d.config.ConfidenceThresh, d.config.NMSThresh)

	dets := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		c := candidates[idx]
		dets = append(dets, Detection{
			Box:        c.box.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows())),
			ClassID:    c.classID,
			ClassName:  ClassName(c.classID),
			Confidence: float64(c.score),
		})
	}
	dets = FilterClasses(dets, d.config.Classes)
	SortByConfidence(dets)

	d.logger.Debug("objects detected", "count", len(dets), "candidates", len(candidates))
	return dets, nil
}

// DetectJPEG decodes a JPEG and runs Detect on it.
func (d *YOLODetector) DetectJPEG(jpeg []byte) ([]Detection, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("detection: decode image: %w", err)
	}
	defer img.Close()
	return d.Detect(img)
}

// Close releases the detector resources
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

type candidate struct {
	box     image.Rectangle
	score   float32
	classID int
}

// decodeCandidates reads raw YOLOv8 output. dims is the tensor shape
// [1, attrs, anchors]; boxes are center-format in model input pixels and
// are scaled back to the frame.
func decodeCandidates(data []float32, dims []int, thresh, scaleX, scaleY float32) []candidate {
	if len(dims) < 3 {
		return nil
	}
	attrs, anchors := dims[1], dims[2]
	if attrs < 5 || len(data) < attrs*anchors {
		return nil
	}

	var out []candidate
	for i := 0; i < anchors; i++ {
		maxScore := float32(0)
		maxClassID := 0
		for c := 4; c < attrs; c++ {
			if score := data[c*anchors+i]; score > maxScore {
				maxScore = score
				maxClassID = c - 4
			}
		}
		if maxScore < thresh {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		out = append(out, candidate{
			box: image.Rect(
				int((cx-w/2)*scaleX),
				int((cy-h/2)*scaleY),
				int((cx+w/2)*scaleX),
				int((cy+h/2)*scaleY),
			),
			score:   maxScore,
			classID: maxClassID,
		})
	}
	return out
}
