package proximity

import (
	"sort"
	"sync"
	"time"
)

// AlertRecord remembers the distance at which an object was last announced.
type AlertRecord struct {
	ObjectID      ObjectID  `json:"object_id"`
	LastAnnounced Distance  `json:"last_announced_cm"`
	AnnouncedAt   time.Time `json:"announced_at"`
	LastSeenFrame uint64    `json:"last_seen_frame"`
}

// AlertStore maps object identity to its last announcement. One store
// belongs to one session; create it at session start and Clear it at the
// end. A single mutex guards the map so snapshots may be taken from other
// goroutines while the frame loop runs.
type AlertStore struct {
	mu      sync.Mutex
	records map[ObjectID]*AlertRecord
	frame   uint64
	now     func() time.Time
}

// NewAlertStore creates an empty store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		records: make(map[ObjectID]*AlertRecord),
		now:     time.Now,
	}
}

// Advance sets the current frame number used to stamp records.
func (s *AlertStore) Advance(frame uint64) {
	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
}

// Lookup returns a copy of the record for id.
func (s *AlertStore) Lookup(id ObjectID) (AlertRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return AlertRecord{}, false
	}
	return *rec, true
}

// Record creates or overwrites the record for id.
func (s *AlertStore) Record(id ObjectID, d Distance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(id, d)
}

func (s *AlertStore) recordLocked(id ObjectID, d Distance) {
	rec, ok := s.records[id]
	if !ok {
		rec = &AlertRecord{ObjectID: id}
		s.records[id] = rec
	}
	rec.LastAnnounced = d
	rec.AnnouncedAt = s.now()
	rec.LastSeenFrame = s.frame
}

// update runs fn against the current record under the lock and records d
// when fn returns true. It keeps the read-decide-write of the alert policy
// atomic.
func (s *AlertStore) update(id ObjectID, d Distance, fn func(prev AlertRecord, seen bool) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev AlertRecord
	rec, seen := s.records[id]
	if seen {
		prev = *rec
	}
	if !fn(prev, seen) {
		return false
	}
	s.recordLocked(id, d)
	return true
}

// Touch marks id as seen in the current frame. Unknown ids are ignored.
func (s *AlertStore) Touch(id ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.LastSeenFrame = s.frame
	}
}

// Evict removes records not seen for more than ttlFrames frames and returns
// how many were removed. A zero ttl removes nothing.
func (s *AlertStore) Evict(ttlFrames uint64) int {
	if ttlFrames == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if s.frame > rec.LastSeenFrame && s.frame-rec.LastSeenFrame > ttlFrames {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of records.
func (s *AlertStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Clear removes all records.
func (s *AlertStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[ObjectID]*AlertRecord)
}

// Snapshot returns copies of all records ordered by object id.
func (s *AlertStore) Snapshot() []AlertRecord {
	s.mu.Lock()
	out := make([]AlertRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ObjectID < out[j].ObjectID })
	return out
}
