package proximity

import (
	"fmt"
	"math"
)

// AlertKind distinguishes one-shot notices from near-object warnings.
type AlertKind int

const (
	KindFar  AlertKind = iota // Informational, announced once per object
	KindNear                  // Warning, re-announced when distance changes
)

// String returns "far" or "near".
func (k AlertKind) String() string {
	if k == KindNear {
		return "near"
	}
	return "far"
}

// MarshalText encodes the kind by name.
func (k AlertKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AlertMessage is one announcement for the speech collaborator.
type AlertMessage struct {
	Text     string `json:"text"`
	IsDanger bool   `json:"is_danger"` // Near-object warning

	ObjectID  ObjectID  `json:"object_id"`
	ClassName string    `json:"class_name"`
	Distance  Distance  `json:"distance_cm"`
	Zone      Zone      `json:"zone"`
	Kind      AlertKind `json:"kind"`
}

// Guidance strings, chosen so that an object on one side steers the user
// toward the other. They are spoken sentences, capitalized and punctuated
// for TTS prosody; match them case-insensitively ("move right").
const (
	GuidanceMoveRight = "Move right."
	GuidanceMoveLeft  = "Move left."
	GuidanceStop      = "Stop, adjust left or right."
)

// Policy decides whether a detection deserves an announcement. It reads and
// writes its AlertStore and has no other side effects.
type Policy struct {
	cfg   Config
	store *AlertStore
}

// NewPolicy creates a policy over store.
func NewPolicy(cfg Config, store *AlertStore) *Policy {
	return &Policy{cfg: cfg, store: store}
}

// Guidance returns the directional hint for a near object, or "" when the
// object is not close enough to need one.
func (p *Policy) Guidance(distance Distance, zone Zone) string {
	if !distance.Measurable() || float64(distance) >= p.cfg.GuidanceThresholdCM {
		return ""
	}
	switch zone {
	case ZoneLeft:
		return GuidanceMoveRight
	case ZoneRight:
		return GuidanceMoveLeft
	default:
		return GuidanceStop
	}
}

// Decide returns the alert for an object at distance in zone, if any, and
// records it in the store.
//
// Far objects (beyond FarThresholdCM) are announced once per id and never
// again while the id is known. Nearer objects are announced on first sight
// and afterwards only when the distance moved by more than DebounceDeltaCM
// since the last announcement. Unmeasurable distances never alert.
func (p *Policy) Decide(id ObjectID, distance Distance, className string, zone Zone) (AlertMessage, bool) {
	if !distance.Measurable() {
		return AlertMessage{}, false
	}

	msg := AlertMessage{
		ObjectID:  id,
		ClassName: className,
		Distance:  distance,
		Zone:      zone,
	}

	if float64(distance) > p.cfg.FarThresholdCM {
		emitted := p.store.update(id, distance, func(_ AlertRecord, seen bool) bool {
			return !seen
		})
		if !emitted {
			return AlertMessage{}, false
		}
		msg.Kind = KindFar
		msg.Text = fmt.Sprintf("%s detected at %s cm, %s.", className, distance, zone)
		return msg, true
	}

	emitted := p.store.update(id, distance, func(prev AlertRecord, seen bool) bool {
		if !seen {
			return true
		}
		return math.Abs(float64(distance-prev.LastAnnounced)) > p.cfg.DebounceDeltaCM
	})
	if !emitted {
		return AlertMessage{}, false
	}

	msg.Kind = KindNear
	msg.IsDanger = true
	msg.Text = fmt.Sprintf("Warning! %s at %s cm, %s.", className, distance, zone)
	if guidance := p.Guidance(distance, zone); guidance != "" {
		msg.Text += " " + guidance
	}
	return msg, true
}
