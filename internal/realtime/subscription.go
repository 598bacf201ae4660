package realtime

import (
	"sync"

	"github.com/umiteyigun/santral-ai/internal/models"
)

// Subscription is one consumer of a room's data channel.
//
// Frames is never closed by publishers; Done is closed when the subscription ends.
type Subscription struct {
	Room   string
	Frames chan models.Frame

	done      chan struct{}
	closeOnce sync.Once
	onClose   func(*Subscription)
}

func newSubscription(room string, queueSize int, onClose func(*Subscription)) *Subscription {
	return &Subscription{
		Room:    room,
		Frames:  make(chan models.Frame, queueSize),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// Done returns a channel that is closed once the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unregisters the subscription (idempotent).
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose(s)
		}
		close(s.done)
	})
}

// offer enqueues frame without blocking and reports whether it was accepted.
func (s *Subscription) offer(frame models.Frame) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.Frames <- frame:
		return true
	default:
		return false
	}
}
