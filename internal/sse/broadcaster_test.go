package sse

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quest-gateway/internal/models"
)

// collectSink records every frame it receives. Delivery happens on the
// subscription's writer goroutine, so access is locked and tests wait with
// waitFrames.
type collectSink struct {
	mu     sync.Mutex
	frames []string
}

func (c *collectSink) Send(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *collectSink) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func waitFrames(t *testing.T, sink *collectSink, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= n
	}, time.Second, 5*time.Millisecond)
	return sink.snapshot()
}

// blockSink holds every Send until released.
type blockSink struct {
	release chan struct{}
}

func (s *blockSink) Send(string) error {
	<-s.release
	return nil
}

func TestSubscribe_RemovesUserEntryWhenEmpty(t *testing.T) {
	b := NewBroadcaster()

	unsubA := b.Subscribe("u1", &collectSink{})
	unsubB := b.Subscribe("u1", &collectSink{})
	assert.Equal(t, 2, b.SubscriberCount("u1"))

	unsubA()
	assert.Equal(t, 1, b.SubscriberCount("u1"))

	unsubB()
	assert.Equal(t, 0, b.SubscriberCount("u1"))

	// The key itself is gone, not just empty.
	b.mu.Lock()
	_, present := b.subs["u1"]
	b.mu.Unlock()
	assert.False(t, present)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b := NewBroadcaster()

	unsubA := b.Subscribe("u1", &collectSink{})
	b.Subscribe("u1", &collectSink{})

	unsubA()
	unsubA()
	unsubA()

	// The second sink is untouched.
	assert.Equal(t, 1, b.SubscriberCount("u1"))
}

func TestPublish_NoSubscribersIsNoOp(t *testing.T) {
	b := NewBroadcaster()

	assert.NotPanics(t, func() {
		b.PublishCreated("nobody", &models.Confirmation{ID: "c1"})
		b.PublishResolved("nobody", "c1")
	})
}

func TestPublishCreated_ReachesAllSinks(t *testing.T) {
	b := NewBroadcaster()

	sinkA := &collectSink{}
	sinkB := &collectSink{}
	b.Subscribe("u1", sinkA)
	b.Subscribe("u1", sinkB)

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.PublishCreated("u1", &models.Confirmation{
		ID:        "c1",
		UserID:    "u1",
		FactType:  "destination",
		NewValue:  "Spain",
		Status:    models.StatusPending,
		CreatedAt: created,
	})

	framesA := waitFrames(t, sinkA, 1)
	framesB := waitFrames(t, sinkB, 1)
	assert.Equal(t, framesA[0], framesB[0])

	frame := framesA[0]
	assert.Contains(t, frame, "event: new_confirmation\ndata: ")
	assert.Contains(t, frame, `"id":"c1"`)
	assert.Contains(t, frame, `"fact_type":"destination"`)
	assert.Contains(t, frame, `"new_value":"Spain"`)
	assert.Contains(t, frame, `"status":"pending"`)
	assert.True(t, frame[len(frame)-2:] == "\n\n")
}

func TestPublishResolved_CarriesOnlyID(t *testing.T) {
	b := NewBroadcaster()

	sink := &collectSink{}
	b.Subscribe("u1", sink)

	b.PublishResolved("u1", "c9")

	frames := waitFrames(t, sink, 1)
	assert.Equal(t, "event: confirmation_resolved\ndata: {\"id\":\"c9\"}\n\n", frames[0])
}

func TestPublish_UserIsolation(t *testing.T) {
	b := NewBroadcaster()

	sinkU1 := &collectSink{}
	sinkU2 := &collectSink{}
	b.Subscribe("u1", sinkU1)
	b.Subscribe("u2", sinkU2)

	b.PublishResolved("u1", "c1")

	waitFrames(t, sinkU1, 1)
	assert.Empty(t, sinkU2.snapshot())
}

func TestPublish_PanickingSinkDoesNotSuppressOthers(t *testing.T) {
	b := NewBroadcaster()

	good1 := &collectSink{}
	good2 := &collectSink{}
	b.Subscribe("u1", good1)
	b.Subscribe("u1", SinkFunc(func(string) error {
		panic("connection reset")
	}))
	b.Subscribe("u1", good2)

	assert.NotPanics(t, func() {
		b.PublishResolved("u1", "c1")
	})

	waitFrames(t, good1, 1)
	waitFrames(t, good2, 1)
}

func TestPublish_FailingSinkIsIgnored(t *testing.T) {
	b := NewBroadcaster()

	good := &collectSink{}
	b.Subscribe("u1", SinkFunc(func(string) error {
		return fmt.Errorf("client disconnected")
	}))
	b.Subscribe("u1", good)

	b.PublishResolved("u1", "c1")

	waitFrames(t, good, 1)
}

func TestPublish_SlowSinkDoesNotBlockSiblings(t *testing.T) {
	b := NewBroadcaster()

	slow := &blockSink{release: make(chan struct{})}
	fast := &collectSink{}
	b.Subscribe("u1", slow)
	b.Subscribe("u1", fast)

	b.PublishResolved("u1", "c1")
	b.PublishResolved("u1", "c2")

	// The fast sink gets both frames while the slow one is still wedged on
	// its first write.
	frames := waitFrames(t, fast, 2)
	assert.Contains(t, frames[0], `"id":"c1"`)
	assert.Contains(t, frames[1], `"id":"c2"`)

	close(slow.release)
}

func TestPublish_StalledSinkIsDropped(t *testing.T) {
	b := NewBroadcaster()

	stalled := &blockSink{release: make(chan struct{})}
	fast := &collectSink{}
	b.Subscribe("u1", stalled)
	b.Subscribe("u1", fast)

	// One frame wedges the stalled sink's writer, sinkQueueDepth more fill
	// its queue, and the next overflows it.
	total := sinkQueueDepth + 10
	for i := 0; i < total; i++ {
		b.PublishResolved("u1", fmt.Sprintf("c%d", i))
	}

	assert.Equal(t, 1, b.SubscriberCount("u1"))
	waitFrames(t, fast, total)

	close(stalled.release)
}

func TestPublish_PerSinkOrdering(t *testing.T) {
	b := NewBroadcaster()

	sink := &collectSink{}
	b.Subscribe("u1", sink)

	b.PublishCreated("u1", &models.Confirmation{ID: "c1", UserID: "u1", Status: models.StatusPending})
	b.PublishResolved("u1", "c1")
	b.PublishCreated("u1", &models.Confirmation{ID: "c2", UserID: "u1", Status: models.StatusPending})

	frames := waitFrames(t, sink, 3)
	assert.Contains(t, frames[0], "new_confirmation")
	assert.Contains(t, frames[0], `"id":"c1"`)
	assert.Contains(t, frames[1], "confirmation_resolved")
	assert.Contains(t, frames[2], `"id":"c2"`)
}

func TestSetForwarder_ReceivesPublishedFrames(t *testing.T) {
	b := NewBroadcaster()

	var forwarded []string
	b.SetForwarder(func(userID, frame string) {
		forwarded = append(forwarded, userID+"|"+frame)
	})

	b.PublishResolved("u1", "c1")

	require.Len(t, forwarded, 1)
	assert.Contains(t, forwarded[0], "u1|event: confirmation_resolved")
}

func TestDeliver_DoesNotForward(t *testing.T) {
	b := NewBroadcaster()

	sink := &collectSink{}
	b.Subscribe("u1", sink)

	forwarded := 0
	b.SetForwarder(func(string, string) { forwarded++ })

	b.Deliver("u1", FormatEvent(EventConnected, []byte(`{"userId":"u1"}`)))

	waitFrames(t, sink, 1)
	assert.Zero(t, forwarded)
}
