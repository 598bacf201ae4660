// Package realtime fans agent messages out to data channel subscribers.
package realtime

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/umiteyigun/santral-ai/internal/metrics"
	"github.com/umiteyigun/santral-ai/internal/models"
)

const defaultQueueSize = 64

// Broker publishes frames to the subscribers of a room.
type Broker interface {
	Publish(ctx context.Context, frame models.Frame) error
	Subscribe(room string) *Subscription
}

// Hub is the in-process broker. Each room owns a set of subscriptions;
// publishing never blocks on a slow subscriber, whose frame is dropped instead.
type Hub struct {
	log       zerolog.Logger
	queueSize int

	mu    sync.RWMutex
	rooms map[string]map[*Subscription]struct{}
}

// NewHub constructs a Hub. queueSize bounds each subscriber's pending frames.
func NewHub(log zerolog.Logger, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		log:       log,
		queueSize: queueSize,
		rooms:     make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscription for room.
func (h *Hub) Subscribe(room string) *Subscription {
	sub := newSubscription(room, h.queueSize, h.remove)

	h.mu.Lock()
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.rooms[room] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	metrics.RealtimeSubscribers.Inc()
	return sub
}

// Publish delivers frame to every current subscriber of frame.Room.
func (h *Hub) Publish(ctx context.Context, frame models.Frame) error {
	if frame.ID == "" {
		frame.ID = ulid.Make().String()
	}
	h.deliver(frame)
	return nil
}

// Subscribers returns the number of subscriptions for room.
func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) deliver(frame models.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	metrics.FramesPublished.WithLabelValues(frame.Topic).Inc()
	for sub := range h.rooms[frame.Room] {
		if !sub.offer(frame) {
			metrics.FramesDropped.Inc()
			h.log.Warn().
				Str("room", frame.Room).
				Str("frame_id", frame.ID).
				Msg("subscriber queue full, frame dropped")
		}
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.rooms[sub.Room]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.rooms, sub.Room)
	}
	metrics.RealtimeSubscribers.Dec()
}
