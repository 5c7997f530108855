// Package speech speaks alert messages without holding up the frame loop.
//
// All speech goes through one Announcer: queue, synthesize, play, one
// message at a time. Higher priority messages are spoken first, and a newer
// message about an object replaces any older one still waiting.
package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/proximity"
	"github.com/teslashibe/go-wayfinder/pkg/tts"
)

// Synthesizer turns text into PCM. tts.Provider satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.AudioResult, error)
}

// Speaker plays mono PCM16. audio.Player satisfies it. Play must return
// promptly once ctx is done.
type Speaker interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// Stats counts what happened to announcements.
type Stats struct {
	Queued      int64 `json:"queued"`
	Spoken      int64 `json:"spoken"`
	Superseded  int64 `json:"superseded"`
	Dropped     int64 `json:"dropped"` // Overflow and stale
	Interrupted int64 `json:"interrupted"`
	Failed      int64 `json:"failed"`
}

// Announcer is the single speech dispatcher.
type Announcer struct {
	cfg     Config
	synth   Synthesizer
	speaker Speaker
	logger  *slog.Logger
	now     func() time.Time

	// OnSpoken, if set, is called after each message finishes playing.
	OnSpoken func(proximity.AlertMessage)

	mu           sync.Mutex
	queue        []Request
	notify       chan struct{}
	speaking     *Request
	cancelSpeech context.CancelFunc
	stats        Stats
}

// NewAnnouncer creates an announcer. Call Start before announcing.
func NewAnnouncer(cfg Config, synth Synthesizer, speaker Speaker, logger *slog.Logger) *Announcer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Announcer{
		cfg:     cfg,
		synth:   synth,
		speaker: speaker,
		logger:  logger.With("component", "speech"),
		now:     time.Now,
		notify:  make(chan struct{}, 1),
	}
}

// Announce queues msg. It never blocks.
func (a *Announcer) Announce(msg proximity.AlertMessage) {
	req := Request{
		Alert:    msg,
		Priority: a.cfg.PriorityOf(msg),
		QueuedAt: a.now(),
	}

	a.mu.Lock()
	a.supersedeLocked(msg.ObjectID)
	a.queue = append(a.queue, req)
	a.stats.Queued++
	if len(a.queue) > a.cfg.QueueSize {
		a.dropLowestLocked()
	}
	interrupt := a.cfg.Interrupt && req.Priority == PriorityCritical &&
		a.speaking != nil && a.speaking.Priority < PriorityCritical
	if interrupt {
		a.stats.Interrupted++
		a.cancelSpeech()
	}
	qLen := len(a.queue)
	a.mu.Unlock()

	a.logger.Debug("queued",
		"object_id", msg.ObjectID,
		"priority", req.Priority,
		"queue_len", qLen,
		"interrupt", interrupt,
	)

	select {
	case a.notify <- struct{}{}:
	default: // already signaled
	}
}

// supersedeLocked removes queued requests for id. Must be called with
// a.mu held.
func (a *Announcer) supersedeLocked(id proximity.ObjectID) {
	n := 0
	for _, r := range a.queue {
		if r.Alert.ObjectID != id {
			a.queue[n] = r
			n++
		}
	}
	a.stats.Superseded += int64(len(a.queue) - n)
	a.queue = a.queue[:n]
}

// dropLowestLocked removes the oldest request of the lowest priority.
// Must be called with a.mu held.
func (a *Announcer) dropLowestLocked() {
	idx := 0
	for i, r := range a.queue {
		if r.Priority < a.queue[idx].Priority {
			idx = i
		}
	}
	dropped := a.queue[idx]
	a.queue = append(a.queue[:idx], a.queue[idx+1:]...)
	a.stats.Dropped++
	a.logger.Debug("queue full, dropped", "object_id", dropped.Alert.ObjectID, "priority", dropped.Priority)
}

// Start runs the speech loop in a goroutine until ctx is done.
func (a *Announcer) Start(ctx context.Context) {
	go a.Run(ctx)
}

// Run processes announcements until ctx is done.
func (a *Announcer) Run(ctx context.Context) {
	a.logger.Info("announcer started", "queue_size", a.cfg.QueueSize)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("announcer stopped")
			return
		case <-a.notify:
			a.drain(ctx)
		}
	}
}

// drain speaks queued requests, highest priority first.
func (a *Announcer) drain(ctx context.Context) {
	for ctx.Err() == nil {
		req, ok := a.dequeue()
		if !ok {
			return
		}
		a.speak(ctx, req)
	}
}

// dequeue removes and returns the highest priority request, oldest first
// within a priority. Stale far-object notices are discarded. Warnings are
// always spoken: the engine will not repeat them while the object holds
// still.
func (a *Announcer) dequeue() (Request, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for len(a.queue) > 0 {
		best := 0
		for i, r := range a.queue {
			if r.Priority > a.queue[best].Priority {
				best = i
			}
		}
		req := a.queue[best]
		a.queue = append(a.queue[:best], a.queue[best+1:]...)

		if req.Priority == PriorityInfo && a.cfg.MaxAge > 0 && a.now().Sub(req.QueuedAt) > a.cfg.MaxAge {
			a.stats.Dropped++
			a.logger.Debug("dropped stale", "object_id", req.Alert.ObjectID, "age", a.now().Sub(req.QueuedAt))
			continue
		}
		return req, true
	}
	return Request{}, false
}

func (a *Announcer) speak(ctx context.Context, req Request) {
	speechCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.speaking = &req
	a.cancelSpeech = cancel
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.speaking = nil
		a.cancelSpeech = nil
		a.mu.Unlock()
	}()

	text := req.Alert.Text
	res, err := a.synth.Synthesize(speechCtx, text)
	if err == nil {
		err = a.speaker.Play(speechCtx, res.Audio, res.SampleRate)
	}

	switch {
	case err == nil:
		a.mu.Lock()
		a.stats.Spoken++
		a.mu.Unlock()
		a.logger.Debug("spoken", "object_id", req.Alert.ObjectID, "priority", req.Priority)
		if a.OnSpoken != nil {
			a.OnSpoken(req.Alert)
		}
	case speechCtx.Err() != nil && ctx.Err() == nil:
		a.logger.Debug("interrupted", "object_id", req.Alert.ObjectID)
	case ctx.Err() != nil:
	default:
		a.mu.Lock()
		a.stats.Failed++
		a.mu.Unlock()
		a.logger.Error("speech failed", "object_id", req.Alert.ObjectID, "error", err)
	}
}

// Speaking reports whether a message is being synthesized or played.
func (a *Announcer) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speaking != nil
}

// QueueLen returns the number of pending announcements.
func (a *Announcer) QueueLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// Stats returns a snapshot of the counters.
func (a *Announcer) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Clear drops everything queued and stops the current message.
func (a *Announcer) Clear() {
	a.mu.Lock()
	a.stats.Dropped += int64(len(a.queue))
	a.queue = a.queue[:0]
	if a.cancelSpeech != nil {
		a.cancelSpeech()
	}
	a.mu.Unlock()
}
