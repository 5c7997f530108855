// Package protocol defines the WebSocket message types exchanged between
// wayfinder, remote detectors and dashboard clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Detector → wayfinder
	TypeDetections MessageType = "detections" // One frame of tracked detections

	// Wayfinder → clients
	TypeAlert  MessageType = "alert"  // Spoken alert decision
	TypeDanger MessageType = "danger" // Imminent-danger transition
	TypeStatus MessageType = "status" // Engine status snapshot
	TypeError  MessageType = "error"  // Rejected input

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Detector → Wayfinder Message Types
// =============================================================================

// DetectionFrame carries one frame of detections from a remote tracker.
type DetectionFrame struct {
	Sequence   uint64          `json:"seq"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Timestamp  int64           `json:"ts,omitempty"` // Unix milliseconds, capture time
	Detections []DetectionData `json:"detections"`
}

// DetectionData is one tracked box.
type DetectionData struct {
	ID         int64   `json:"id"` // Track ID, stable across frames
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class"`
	Confidence float64 `json:"conf"`
	Box        [4]int  `json:"box"` // x1, y1, x2, y2 pixels
}

// =============================================================================
// Wayfinder → Client Message Types
// =============================================================================

// AlertData is one alert decision.
type AlertData struct {
	Sequence   uint64   `json:"seq"`
	ObjectID   int64    `json:"object_id"`
	Text       string   `json:"text"`
	IsDanger   bool     `json:"is_danger"`
	ClassName  string   `json:"class"`
	DistanceCM *float64 `json:"distance_cm"` // nil when unmeasurable
	Zone       string   `json:"zone"`
	Kind       string   `json:"kind"` // "far", "near"
}

// DangerData reports a change of the imminent-danger signal.
type DangerData struct {
	Danger   bool   `json:"danger"`
	Sequence uint64 `json:"seq"`
}

// StatusData is a point-in-time view of the engine.
type StatusData struct {
	Session         string  `json:"session"`
	Source          string  `json:"source"` // "camera", "ingest"
	UptimeSec       float64 `json:"uptime_sec"`
	FramesProcessed uint64  `json:"frames_processed"`
	Danger          bool    `json:"danger"`
	TrackedObjects  int     `json:"tracked_objects"` // Alert store size
	Speaking        bool    `json:"speaking"`
	SpeechQueue     int     `json:"speech_queue"`
}

// ErrorData explains why an inbound message was rejected.
type ErrorData struct {
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"` // Offending message type
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
