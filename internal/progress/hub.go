package progress

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is one gateway client's view of a recording's event
// stream. C is closed when the subscriber is removed from the hub.
type Subscription struct {
	C <-chan Event

	hub         *Hub
	recordingID uuid.UUID
	ch          chan Event
	once        sync.Once
}

// Close detaches the subscription from the hub. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub fans events out to every in-process subscriber of a recording.
// Subscribers are independent: a slow one drops events rather than
// blocking the publisher or its peers.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber for one recording.
func (h *Hub) Subscribe(recordingID uuid.UUID) *Subscription {
	ch := make(chan Event, 64)
	sub := &Subscription{C: ch, hub: h, recordingID: recordingID, ch: ch}

	h.mu.Lock()
	set, ok := h.subs[recordingID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[recordingID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	if set, ok := h.subs[sub.recordingID]; ok {
		if _, present := set[sub]; present {
			delete(set, sub)
			close(sub.ch)
		}
		if len(set) == 0 {
			delete(h.subs, sub.recordingID)
		}
	}
	h.mu.Unlock()
}

// Publish delivers the event to every subscriber of its recording.
// A full subscriber buffer drops non-terminal events, but a terminal
// event always lands so the stream is guaranteed to end.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	for sub := range h.subs[event.RecordingID] {
		deliver(sub.ch, event)
	}
	h.mu.RUnlock()
}

func deliver(ch chan Event, event Event) {
	for {
		select {
		case ch <- event:
			return
		default:
		}
		if !event.Terminal() {
			// Subscriber buffer full, event dropped
			return
		}
		// Discard the oldest buffered event to make room.
		select {
		case <-ch:
		default:
		}
	}
}

// SubscriberCount returns the number of subscribers for a recording.
func (h *Hub) SubscriberCount(recordingID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[recordingID])
}
