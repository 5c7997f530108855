// Package tracking assigns stable object ids to per-frame detections.
package tracking

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/teslashibe/go-wayfinder/pkg/proximity"
	"github.com/teslashibe/go-wayfinder/pkg/tracking/detection"
)

// Tracker turns detector output into identified proximity detections.
type Tracker struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	tracks []*Track
	nextID proximity.ObjectID
}

// New creates a tracker. The config must be valid.
func New(config Config, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		config: config,
		logger: logger.With("component", "tracker"),
		nextID: 1,
	}
}

// Update assigns ids to dets and returns them in the same order.
func (t *Tracker) Update(dets []detection.Detection) []proximity.Detection {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.Mode == ModeIndex {
		return byIndex(dets)
	}

	ids := t.match(dets)

	out := make([]proximity.Detection, len(dets))
	for i, d := range dets {
		out[i] = proximity.Detection{
			ID:         ids[i],
			ClassID:    d.ClassID,
			ClassName:  d.ClassName,
			Confidence: d.Confidence,
			Box:        d.Box,
		}
	}
	return out
}

// Tracks returns copies of the live tracks ordered by id.
func (t *Tracker) Tracks() []Track {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Track, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = *tr
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reset drops all tracks and restarts id assignment.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = nil
	t.nextID = 1
}

type pair struct {
	track, det int
	iou        float64
}

// match greedily pairs detections with tracks by descending overlap, ages
// unmatched tracks and opens tracks for unmatched detections.
func (t *Tracker) match(dets []detection.Detection) []proximity.ObjectID {
	var pairs []pair
	for ti, tr := range t.tracks {
		for di, d := range dets {
			if t.config.MatchClass && tr.ClassID != d.ClassID {
				continue
			}
			if iou := IoU(tr.Box, d.Box); iou >= t.config.IoUThreshold {
				pairs = append(pairs, pair{track: ti, det: di, iou: iou})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].iou > pairs[j].iou })

	ids := make([]proximity.ObjectID, len(dets))
	trackUsed := make([]bool, len(t.tracks))
	detUsed := make([]bool, len(dets))

	for _, p := range pairs {
		if trackUsed[p.track] || detUsed[p.det] {
			continue
		}
		trackUsed[p.track] = true
		detUsed[p.det] = true

		tr := t.tracks[p.track]
		tr.Box = dets[p.det].Box
		tr.Hits++
		tr.Misses = 0
		ids[p.det] = tr.ID
	}

	kept := t.tracks[:0]
	for ti, tr := range t.tracks {
		if !trackUsed[ti] {
			tr.Misses++
			if tr.Misses > t.config.MaxMisses {
				t.logger.Debug("track lost", "object_id", tr.ID, "hits", tr.Hits)
				continue
			}
		}
		kept = append(kept, tr)
	}
	t.tracks = kept

	for di, d := range dets {
		if detUsed[di] {
			continue
		}
		tr := &Track{ID: t.nextID, ClassID: d.ClassID, Box: d.Box, Hits: 1}
		t.nextID++
		t.tracks = append(t.tracks, tr)
		ids[di] = tr.ID
		t.logger.Debug("track started", "object_id", tr.ID, "class", d.ClassName)
	}

	return ids
}

// byIndex uses each detection's position in the frame as its id.
func byIndex(dets []detection.Detection) []proximity.Detection {
	out := make([]proximity.Detection, len(dets))
	for i, d := range dets {
		out[i] = proximity.Detection{
			ID:         proximity.ObjectID(i),
			ClassID:    d.ClassID,
			ClassName:  d.ClassName,
			Confidence: d.Confidence,
			Box:        d.Box,
		}
	}
	return out
}
