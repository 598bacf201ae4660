package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/umiteyigun/santral-ai/internal/models"
)

const channelPrefix = "realtime:"

// channelName returns the pub/sub channel carrying a room's frames.
func channelName(room string) string {
	return fmt.Sprintf("%s%s", channelPrefix, room)
}

// RedisHub relays frames between server processes over Redis pub/sub.
// Publishes go to Redis only; Run feeds every received frame into the local
// Hub, so subscribers on any process see frames published on any other.
type RedisHub struct {
	client *redis.Client
	local  *Hub
	log    zerolog.Logger
}

// NewRedisHub wraps local with a Redis relay.
func NewRedisHub(client *redis.Client, local *Hub, log zerolog.Logger) *RedisHub {
	return &RedisHub{client: client, local: local, log: log}
}

// Subscribe registers a subscription on the local hub.
func (h *RedisHub) Subscribe(room string) *Subscription {
	return h.local.Subscribe(room)
}

// Publish sends frame to every process subscribed to the room's channel.
func (h *RedisHub) Publish(ctx context.Context, frame models.Frame) error {
	if frame.ID == "" {
		frame.ID = ulid.Make().String()
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if err := h.client.Publish(ctx, channelName(frame.Room), data).Err(); err != nil {
		return fmt.Errorf("publish frame: %w", err)
	}
	return nil
}

// Run relays frames from Redis into the local hub until ctx is cancelled.
// ready, when non-nil, is closed once the pattern subscription is confirmed.
func (h *RedisHub) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := h.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", channelPrefix, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var frame models.Frame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				h.log.Warn().Err(err).Str("channel", msg.Channel).Msg("discarding malformed frame")
				continue
			}
			if frame.Room == "" {
				frame.Room = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			h.local.deliver(frame)
		}
	}
}
