package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e := <-sub.C:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	id := uuid.New()

	a := hub.Subscribe(id)
	b := hub.Subscribe(id)
	defer a.Close()
	defer b.Close()

	assert.Equal(t, 2, hub.SubscriberCount(id))

	event := Start(id, 2)
	hub.Publish(event)

	assert.Equal(t, event.Kind, recv(t, a).Kind)
	assert.Equal(t, event.Kind, recv(t, b).Kind)
}

func TestHubRoutesByRecording(t *testing.T) {
	hub := NewHub()
	mine := uuid.New()
	other := uuid.New()

	sub := hub.Subscribe(mine)
	defer sub.Close()

	hub.Publish(Start(other, 1))
	hub.Publish(Start(mine, 1))

	got := recv(t, sub)
	assert.Equal(t, mine, got.RecordingID)

	select {
	case e := <-sub.C:
		t.Fatalf("unexpected second event for %s", e.RecordingID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	id := uuid.New()

	sub := hub.Subscribe(id)
	require.Equal(t, 1, hub.SubscriberCount(id))

	sub.Close()
	assert.Equal(t, 0, hub.SubscriberCount(id))

	// Publishing after close must not block or panic.
	hub.Publish(Start(id, 1))

	// Close is idempotent.
	sub.Close()
}

func TestHubSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()
	id := uuid.New()

	sub := hub.Subscribe(id)
	defer sub.Close()

	// Overflow the subscription buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.Publish(ChunkComplete(id, i+1, 500, ""))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHubTerminalEventSurvivesFullBuffer(t *testing.T) {
	hub := NewHub()
	id := uuid.New()

	sub := hub.Subscribe(id)
	defer sub.Close()

	// Fill the buffer well past capacity without reading, then publish
	// the terminal event. It must evict a buffered chunk event rather
	// than vanish, otherwise the stream would never end.
	for i := 0; i < 200; i++ {
		hub.Publish(ChunkComplete(id, i+1, 500, ""))
	}
	hub.Publish(Complete(id, Metrics{SegmentCount: 1, WordCount: 2}))

	var sawTerminal bool
	for !sawTerminal {
		select {
		case e := <-sub.C:
			if e.Terminal() {
				assert.Equal(t, KindComplete, e.Kind)
				sawTerminal = true
			}
		case <-time.After(time.Second):
			t.Fatal("terminal event was dropped")
		}
	}
}
