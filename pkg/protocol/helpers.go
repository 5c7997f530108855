package protocol

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/proximity"
)

// ErrWrongType is returned when a message is decoded as the wrong payload.
var ErrWrongType = errors.New("protocol: unexpected message type")

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewDetectionsMessage creates a detections message from an engine frame.
func NewDetectionsMessage(f proximity.Frame) (*Message, error) {
	return NewMessage(TypeDetections, FromFrame(f))
}

// NewAlertMessage creates an alert message for frame seq.
func NewAlertMessage(seq uint64, a proximity.AlertMessage) (*Message, error) {
	return NewMessage(TypeAlert, FromAlert(seq, a))
}

// NewDangerMessage creates a danger transition message
func NewDangerMessage(danger bool, seq uint64) (*Message, error) {
	return NewMessage(TypeDanger, DangerData{Danger: danger, Sequence: seq})
}

// NewStatusMessage creates a status message
func NewStatusMessage(status StatusData) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewErrorMessage creates an error message
func NewErrorMessage(ref MessageType, err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: err.Error(), Ref: string(ref)})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Conversions
// =============================================================================

// FromFrame converts an engine frame to its wire form.
func FromFrame(f proximity.Frame) DetectionFrame {
	out := DetectionFrame{
		Sequence:   f.Sequence,
		Width:      f.Width,
		Height:     f.Height,
		Detections: make([]DetectionData, len(f.Detections)),
	}
	if !f.Timestamp.IsZero() {
		out.Timestamp = f.Timestamp.UnixMilli()
	}
	for i, d := range f.Detections {
		out.Detections[i] = DetectionData{
			ID:         int64(d.ID),
			ClassID:    d.ClassID,
			ClassName:  d.ClassName,
			Confidence: d.Confidence,
			Box:        [4]int{d.Box.Min.X, d.Box.Min.Y, d.Box.Max.X, d.Box.Max.Y},
		}
	}
	return out
}

// ToFrame converts the wire form to an engine frame. Boxes are taken as
// sent, not canonicalized, so the engine can reject inverted ones. A zero
// timestamp is replaced with now.
func (f DetectionFrame) ToFrame() proximity.Frame {
	out := proximity.Frame{
		Sequence:   f.Sequence,
		Width:      f.Width,
		Height:     f.Height,
		Timestamp:  time.Now(),
		Detections: make([]proximity.Detection, len(f.Detections)),
	}
	if f.Timestamp > 0 {
		out.Timestamp = time.UnixMilli(f.Timestamp)
	}
	for i, d := range f.Detections {
		out.Detections[i] = proximity.Detection{
			ID:         proximity.ObjectID(d.ID),
			ClassID:    d.ClassID,
			ClassName:  d.ClassName,
			Confidence: d.Confidence,
			Box: image.Rectangle{
				Min: image.Point{X: d.Box[0], Y: d.Box[1]},
				Max: image.Point{X: d.Box[2], Y: d.Box[3]},
			},
		}
	}
	return out
}

// FromAlert converts an alert decision to its wire form.
func FromAlert(seq uint64, a proximity.AlertMessage) AlertData {
	out := AlertData{
		Sequence:  seq,
		ObjectID:  int64(a.ObjectID),
		Text:      a.Text,
		IsDanger:  a.IsDanger,
		ClassName: a.ClassName,
		Zone:      a.Zone.String(),
		Kind:      a.Kind.String(),
	}
	if a.Distance.Measurable() {
		cm := a.Distance.CM()
		out.DistanceCM = &cm
	}
	return out
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetDetectionFrame extracts a detection frame from a message
func (m *Message) GetDetectionFrame() (*DetectionFrame, error) {
	if m.Type != TypeDetections {
		return nil, fmt.Errorf("%w: %q", ErrWrongType, m.Type)
	}
	var data DetectionFrame
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAlertData extracts alert data from a message
func (m *Message) GetAlertData() (*AlertData, error) {
	var data AlertData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetDangerData extracts danger data from a message
func (m *Message) GetDangerData() (*DangerData, error) {
	var data DangerData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts status data from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
