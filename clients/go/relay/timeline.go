package relay

import (
	"sync"

	"github.com/umiteyigun/santral-ai/internal/models"
)

// Timeline is the ordered list of agent messages a client has seen. Both the
// poller and the data channel listener merge into it, so a reply delivered on
// both paths is shown once.
type Timeline struct {
	mu       sync.Mutex
	messages []models.Message
	updates  chan struct{}
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{updates: make(chan struct{}, 1)}
}

// Merge appends each message that is not already present, in order, and
// returns the ones it added.
func (t *Timeline) Merge(msgs ...models.Message) []models.Message {
	t.mu.Lock()
	var added []models.Message
	for _, msg := range msgs {
		if t.containsLocked(msg) {
			continue
		}
		t.messages = append(t.messages, msg)
		added = append(added, msg)
	}
	t.mu.Unlock()

	if len(added) > 0 {
		select {
		case t.updates <- struct{}{}:
		default:
		}
	}
	return added
}

func (t *Timeline) containsLocked(msg models.Message) bool {
	for _, existing := range t.messages {
		if existing.SameDelivery(msg) {
			return true
		}
	}
	return false
}

// Messages returns a copy of the timeline in arrival order.
func (t *Timeline) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// At returns the message at index i.
func (t *Timeline) At(i int) (models.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.messages) {
		return models.Message{}, false
	}
	return t.messages[i], true
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Updates signals after a merge added messages. Signals coalesce.
func (t *Timeline) Updates() <-chan struct{} {
	return t.updates
}
