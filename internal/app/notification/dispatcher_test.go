package notification

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klangbox/klangbox/internal/app/association"
)

// recordingStream collects received events.
type recordingStream struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingStream) Send(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingStream) received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "session_started", EventSessionStarted.String())
	assert.Equal(t, "session_stopped", EventSessionStopped.String())
	assert.Equal(t, "tag_detected", EventTagDetected.String())
	assert.Equal(t, "unknown", EventType(42).String())
}

func TestDispatcher_Broadcast(t *testing.T) {
	d := NewDispatcher()
	a := &recordingStream{}
	b := &recordingStream{}

	d.Subscribe(a)
	d.Subscribe(b)
	assert.Equal(t, 2, d.SubscriberCount())

	d.Broadcast(Event{Type: EventSessionStarted, SessionID: "s1", PlaylistID: "p1"})
	d.Broadcast(Event{
		Type:   EventTagDetected,
		Result: &association.DetectionResult{Action: association.ActionSuccess, TagID: "abcd1234"},
	})

	for _, stream := range []*recordingStream{a, b} {
		events := stream.received()
		require.Len(t, events, 2)
		assert.Equal(t, EventSessionStarted, events[0].Type)
		assert.Equal(t, "s1", events[0].SessionID)
		assert.Equal(t, uint64(1), events[0].SequenceNo)
		assert.Equal(t, EventTagDetected, events[1].Type)
		assert.Equal(t, uint64(2), events[1].SequenceNo)
		require.NotNil(t, events[1].Result)
		assert.Equal(t, "abcd1234", events[1].Result.TagID)
	}
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher()
	stream := &recordingStream{}

	id := d.Subscribe(stream)
	d.Broadcast(Event{Type: EventSessionStarted})

	d.Unsubscribe(id)
	d.Broadcast(Event{Type: EventSessionStopped})

	events := stream.received()
	require.Len(t, events, 1)
	assert.Equal(t, EventSessionStarted, events[0].Type)
	assert.Zero(t, d.SubscriberCount())
}

func TestDispatcher_Close(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(&recordingStream{})
	d.Subscribe(&recordingStream{})

	d.Close()
	assert.Zero(t, d.SubscriberCount())
}
