// Package sse implements the in-memory fan-out of confirmation lifecycle
// events to open Server-Sent-Events streams.
//
// Delivery is best-effort and at-most-once: events reach the sinks that are
// open at publish time and nothing else. There is no persistence and no
// replay. A gateway scaled past one instance needs the Redis relay so
// publishes on one instance reach streams held by another.
package sse

import (
	"encoding/json"
	"sync"

	"quest-gateway/internal/common/logging"
	"quest-gateway/internal/models"
)

// Event types written to the stream.
const (
	EventConnected            = "connected"
	EventNewConfirmation      = "new_confirmation"
	EventConfirmationResolved = "confirmation_resolved"
)

// HeartbeatFrame is the periodic keep-alive comment frame. Comments carry no
// event type or data and are ignored by EventSource clients.
const HeartbeatFrame = ": heartbeat\n\n"

// EventSink is a write target for one outgoing event frame on an open stream.
// Implementations must tolerate being called after the underlying connection
// has closed; a failed send is absorbed, not surfaced.
type EventSink interface {
	Send(frame string) error
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(frame string) error

// Send calls f(frame).
func (f SinkFunc) Send(frame string) error {
	return f(frame)
}

// Broadcaster maintains, per user, the set of open event sinks and fans
// confirmation events out to them. The zero value is not usable; construct
// instances with NewBroadcaster and inject them where needed so tests can run
// against isolated instances.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}

	// forward, when set, receives every published frame so a relay can
	// propagate it to other gateway instances.
	forward func(userID, frame string)
}

// sinkQueueDepth bounds how many frames may be pending per sink. A sink that
// falls this far behind is cut loose rather than allowed to hold frames for
// the user's other sinks.
const sinkQueueDepth = 32

type subscription struct {
	sink  EventSink
	queue chan string

	// closed guards against double-closing queue; it is written only while
	// holding the broadcaster mutex.
	closed bool
}

// drain writes queued frames to the sink, one at a time and in queue order,
// until the subscription is closed.
func (s *subscription) drain() {
	for frame := range s.queue {
		send(s.sink, frame)
	}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]map[*subscription]struct{}),
	}
}

// SetForwarder installs a hook invoked with every published frame, after
// local delivery. Used by the Redis relay; nil disables forwarding.
func (b *Broadcaster) SetForwarder(forward func(userID, frame string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forward = forward
}

// Subscribe registers sink under userID and returns the matching unsubscribe
// function. Calling the returned function removes exactly this sink; once the
// user's set is empty the user's entry is dropped entirely. Calling it more
// than once is a no-op after the first call.
func (b *Broadcaster) Subscribe(userID string, sink EventSink) func() {
	sub := &subscription{
		sink:  sink,
		queue: make(chan string, sinkQueueDepth),
	}
	go sub.drain()

	b.mu.Lock()
	set, ok := b.subs[userID]
	if !ok {
		set = make(map[*subscription]struct{})
		b.subs[userID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.removeLocked(userID, sub)
		})
	}
}

// removeLocked unlinks sub and stops its writer goroutine, which still
// delivers any frames already queued. Callers hold b.mu.
func (b *Broadcaster) removeLocked(userID string, sub *subscription) {
	if set, ok := b.subs[userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, userID)
		}
	}
	if !sub.closed {
		sub.closed = true
		close(sub.queue)
	}
}

// SubscriberCount returns the number of open sinks for userID.
func (b *Broadcaster) SubscriberCount(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}

// PublishCreated fans a new_confirmation event carrying the full confirmation
// record out to every open sink for the target user. A user with no open
// streams is a silent no-op; publishing never fails.
func (b *Broadcaster) PublishCreated(userID string, confirmation *models.Confirmation) {
	payload, err := json.Marshal(confirmation)
	if err != nil {
		logging.Error("failed to encode confirmation event", err,
			logging.String("confirmation_id", confirmation.ID))
		return
	}
	b.publish(userID, FormatEvent(EventNewConfirmation, payload))
}

// PublishResolved fans a confirmation_resolved event carrying just the
// confirmation identifier out to every open sink for the target user.
func (b *Broadcaster) PublishResolved(userID, confirmationID string) {
	payload, _ := json.Marshal(map[string]string{"id": confirmationID})
	b.publish(userID, FormatEvent(EventConfirmationResolved, payload))
}

// Deliver writes a pre-formatted frame to every open sink for userID without
// forwarding it again. The relay uses this for frames that originated on
// another instance.
func (b *Broadcaster) Deliver(userID, frame string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliverLocked(userID, frame)
}

func (b *Broadcaster) publish(userID, frame string) {
	b.mu.Lock()
	forward := b.forward
	b.deliverLocked(userID, frame)
	b.mu.Unlock()

	if forward != nil {
		forward(userID, frame)
	}
}

// deliverLocked enqueues the frame for every sink of userID while holding
// the mutex. Enqueueing under the mutex serializes publishes, and each
// sink's writer goroutine consumes its queue in order, so per-sink delivery
// follows publish order. The sink write itself happens off the mutex: a slow
// or dead sink delays only its own queue, and one that stalls past its queue
// depth is dropped so frames keep flowing to the user's other sinks.
func (b *Broadcaster) deliverLocked(userID, frame string) {
	for sub := range b.subs[userID] {
		select {
		case sub.queue <- frame:
		default:
			logging.Warn("dropping stalled event sink",
				logging.String("user_id", userID))
			b.removeLocked(userID, sub)
		}
	}
}

func send(sink EventSink, frame string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("event sink panicked", logging.Any("panic", r))
		}
	}()
	// A dead sink means the client went away mid-publish. That is the normal
	// terminal state of a stream, not an error.
	_ = sink.Send(frame)
}

// FormatEvent renders one SSE frame with an event-type tag and a data payload.
func FormatEvent(event string, data []byte) string {
	return "event: " + event + "\ndata: " + string(data) + "\n\n"
}
