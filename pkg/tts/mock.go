package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// SynthesizeFunc overrides Synthesize. If nil, silent audio of about
	// 20ms per character is returned.
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)

	// HealthFunc overrides Health. If nil, the mock is healthy.
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

var _ Provider = (*Mock)(nil)

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// NewMock creates a mock that returns silence.
func NewMock() *Mock {
	return &Mock{}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string) (*AudioResult, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

// Synthesize records the call and returns SynthesizeFunc's result.
func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.record("Synthesize", text)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 20ms per character at 24kHz PCM16
	silence := make([]byte, len(text)*960)
	return &AudioResult{
		Audio:      silence,
		SampleRate: SampleRateOpenAI,
		Duration:   pcmDuration(len(silence), SampleRateOpenAI),
		CharCount:  len(text),
		Provider:   "mock",
	}, nil
}

// Health records the call and returns HealthFunc's result.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.record("Close", "")
	return nil
}

func (m *Mock) record(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Time: time.Now()})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Texts returns the text of every Synthesize call in order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.Method == "Synthesize" {
			out = append(out, c.Text)
		}
	}
	return out
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
