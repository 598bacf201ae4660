package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/umiteyigun/santral-ai/internal/metrics"
	"github.com/umiteyigun/santral-ai/internal/models"
)

const defaultMailboxTTL = 24 * time.Hour

// RedisStore is a mailbox shared by every server process pointed at the same Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a new Redis store.
// Abandoned mailboxes expire after ttl; zero selects 24h.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewRedisStoreFromClient(client, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultMailboxTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

// Client exposes the underlying connection for rate limiting and pub/sub.
func (s *RedisStore) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// mailboxKey returns the key for a room's message list.
func mailboxKey(room string) string {
	return fmt.Sprintf("mailbox:%s", room)
}

// Append pushes the stamped message onto the room's list.
func (s *RedisStore) Append(ctx context.Context, room string, msg models.Message) (models.Message, error) {
	if room == "" {
		return models.Message{}, ErrEmptyRoom
	}

	msg.Stamp(s.now())

	data, err := json.Marshal(msg)
	if err != nil {
		return models.Message{}, err
	}

	key := mailboxKey(room)
	start := time.Now()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return models.Message{}, fmt.Errorf("append to %s: %w", key, err)
	}

	return msg, nil
}

// Drain reads and deletes the room's list in one MULTI/EXEC so a concurrent
// append lands either in this result or in the next drain.
func (s *RedisStore) Drain(ctx context.Context, room string) ([]models.Message, error) {
	if room == "" {
		return nil, ErrEmptyRoom
	}

	key := mailboxKey(room)
	var entries *redis.StringSliceCmd

	start := time.Now()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		entries = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("drain %s: %w", key, err)
	}

	results := entries.Val()
	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Len returns the queue depth for room.
func (s *RedisStore) Len(ctx context.Context, room string) (int, error) {
	n, err := s.client.LLen(ctx, mailboxKey(room)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
