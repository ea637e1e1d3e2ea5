package hardware

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"
)

// MockSettings configures the mock reader.
type MockSettings struct {
	// EventBuffer bounds how many presented tags may queue up before
	// PresentTag starts dropping.
	EventBuffer int `mapstructure:"event_buffer" default:"16" validate:"gte=1,lte=256"`
}

// mockEvent is a queued presentation or removal.
type mockEvent struct {
	uid     string
	removed bool
}

// MockAdapter is an in-process reader used for development and tests.
// Tags are presented programmatically via PresentTag; the dispatch
// loop plays the role of the reader's polling goroutine.
type MockAdapter struct {
	mu        sync.Mutex
	detecting bool
	onTag     func(uid string)
	onRemoved func()

	events chan mockEvent
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMockAdapter creates a mock reader.
func NewMockAdapter(settings MockSettings) *MockAdapter {
	if settings.EventBuffer <= 0 {
		settings.EventBuffer = 16
	}
	return &MockAdapter{
		events: make(chan mockEvent, settings.EventBuffer),
	}
}

// StartDetection starts the dispatch loop. Idempotent.
func (m *MockAdapter) StartDetection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.detecting {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.detecting = true

	go m.dispatchLoop(loopCtx, m.done)
	zlog.Debug().Msg("mock reader: detection started")
	return nil
}

// StopDetection stops the dispatch loop. Idempotent.
func (m *MockAdapter) StopDetection(ctx context.Context) error {
	m.mu.Lock()
	if !m.detecting {
		m.mu.Unlock()
		return nil
	}
	m.detecting = false
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	zlog.Debug().Msg("mock reader: detection stopped")
	return nil
}

// SetTagDetectedCallback registers the detection callback.
func (m *MockAdapter) SetTagDetectedCallback(fn func(uid string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTag = fn
}

// SetTagRemovedCallback registers the removal callback.
func (m *MockAdapter) SetTagRemovedCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRemoved = fn
}

// Status reports the mock reader state.
func (m *MockAdapter) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Available: true,
		Detecting: m.detecting,
		Driver:    "mock",
	}
}

// IsDetecting reports whether detection is running.
func (m *MockAdapter) IsDetecting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detecting
}

// PresentTag simulates a tag being placed on the reader. Events
// presented while detection is stopped, or past the buffer, are
// dropped the way a real reader would miss them.
func (m *MockAdapter) PresentTag(uid string) {
	if !m.IsDetecting() {
		return
	}
	select {
	case m.events <- mockEvent{uid: uid}:
	default:
		zlog.Warn().Msgf("mock reader: event buffer full, dropping tag %s", uid)
	}
}

// RemoveTag simulates the tag leaving the field.
func (m *MockAdapter) RemoveTag() {
	if !m.IsDetecting() {
		return
	}
	select {
	case m.events <- mockEvent{removed: true}:
	default:
	}
}

// dispatchLoop delivers queued events to the registered callbacks,
// one at a time and in order, like a reader's polling loop would.
func (m *MockAdapter) dispatchLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.events:
			m.mu.Lock()
			onTag := m.onTag
			onRemoved := m.onRemoved
			m.mu.Unlock()

			if ev.removed {
				if onRemoved != nil {
					onRemoved()
				}
				continue
			}
			if onTag != nil {
				onTag(ev.uid)
			}
		}
	}
}

var _ Adapter = (*MockAdapter)(nil)
