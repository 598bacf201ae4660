package store

import (
	"context"
	"sync"
	"time"

	"github.com/umiteyigun/santral-ai/internal/models"
)

// MemoryStore is the process-wide in-memory mailbox.
// Queues are created on first append and removed when drained; nothing
// survives a restart.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string][]models.Message
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory mailbox.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string][]models.Message),
		now:   time.Now,
	}
}

// Append queues msg for room.
func (s *MemoryStore) Append(ctx context.Context, room string, msg models.Message) (models.Message, error) {
	if room == "" {
		return models.Message{}, ErrEmptyRoom
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stamp under the lock so timestamps never go backwards within a queue.
	msg.Stamp(s.now())
	s.rooms[room] = append(s.rooms[room], msg)
	return msg, nil
}

// Drain returns and removes the room's queue.
func (s *MemoryStore) Drain(ctx context.Context, room string) ([]models.Message, error) {
	if room == "" {
		return nil, ErrEmptyRoom
	}

	s.mu.Lock()
	queued, ok := s.rooms[room]
	if ok {
		delete(s.rooms, room)
	}
	s.mu.Unlock()

	if len(queued) == 0 {
		return []models.Message{}, nil
	}
	return queued, nil
}

// Len returns the queue depth for room.
func (s *MemoryStore) Len(ctx context.Context, room string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[room]), nil
}

// Rooms returns the number of rooms with queued messages.
func (s *MemoryStore) Rooms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
