package store

import (
	"context"
	"errors"

	"github.com/umiteyigun/santral-ai/internal/models"
)

// ErrEmptyRoom is returned when an operation is called without a room name.
var ErrEmptyRoom = errors.New("room name is required")

// Mailbox holds undelivered agent messages per room.
// Both MemoryStore and RedisStore implement this interface.
type Mailbox interface {
	// Append stamps msg with a server timestamp and queues it for room.
	// The stored copy is returned.
	Append(ctx context.Context, room string, msg models.Message) (models.Message, error)

	// Drain returns every queued message for room in append order and
	// removes the room's queue. A room with nothing queued yields an empty slice.
	Drain(ctx context.Context, room string) ([]models.Message, error)

	// Len returns the number of queued messages for room.
	Len(ctx context.Context, room string) (int, error)

	Ping(ctx context.Context) error
}
