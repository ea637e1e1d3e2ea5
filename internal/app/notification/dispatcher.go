// Package notification provides the event dispatcher for broadcasting
// association events to subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/klangbox/klangbox/internal/app/association"
)

// EventType identifies the kind of broadcast event.
type EventType int

const (
	EventSessionStarted EventType = iota // a new association session is listening
	EventSessionStopped                  // a session was cancelled
	EventTagDetected                     // a detection was processed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSessionStarted:
		return "session_started"
	case EventSessionStopped:
		return "session_stopped"
	case EventTagDetected:
		return "tag_detected"
	default:
		return "unknown"
	}
}

// Event is a broadcast association event. Result is set for
// EventTagDetected only.
type Event struct {
	Type       EventType
	SequenceNo uint64
	SessionID  string
	PlaylistID string
	Result     *association.DetectionResult
}

// Stream receives broadcast events for one subscriber.
type Stream interface {
	Send(Event) error
}

// subscription pairs a subscriber id with its stream.
type subscription struct {
	id     string
	stream Stream
}

// Dispatcher fans association events out to subscribers. It is
// constructed explicitly and injected into the control manager; there
// is no process-wide instance.
type Dispatcher struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64

	sendTimeout time.Duration
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   500 * time.Millisecond,
	}
}

// Subscribe adds a stream and returns its subscription id.
func (d *Dispatcher) Subscribe(stream Stream) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.New().String()
	d.subscriptions[id] = &subscription{id: id, stream: stream}
	return id
}

// Unsubscribe removes a subscription.
func (d *Dispatcher) Unsubscribe(subscriptionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subscriptions, subscriptionID)
}

// Broadcast stamps the event with the next sequence number and sends
// it to every subscriber. Each send runs in its own goroutine with a
// timeout so one slow subscriber cannot stall the rest.
func (d *Dispatcher) Broadcast(event Event) {
	d.mu.Lock()
	d.sequenceNo++
	event.SequenceNo = d.sequenceNo
	subs := make([]*subscription, 0, len(d.subscriptions))
	for _, sub := range d.subscriptions {
		subs = append(subs, sub)
	}
	d.mu.Unlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(event)
			}()

			select {
			case <-done:
				// Send errors are not fatal; a broken subscriber is
				// expected to unsubscribe itself.
			case <-ctx.Done():
			}
		}(sub)
	}
	wg.Wait()
}

// SubscriberCount returns the number of active subscriptions.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscriptions)
}

// Close removes all subscriptions.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscriptions = make(map[string]*subscription)
}
