package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/umiteyigun/santral-ai/internal/models"
)

// DefaultPollInterval is how often an active room's mailbox is drained.
const DefaultPollInterval = 500 * time.Millisecond

// State is the poller's lifecycle state.
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Consumer drains a room's mailbox.
type Consumer interface {
	Consume(ctx context.Context, room string) ([]models.Message, error)
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPollerLogger sets the logger used for failed polls.
func WithPollerLogger(log zerolog.Logger) PollerOption {
	return func(p *Poller) { p.log = log }
}

// Poller drains the active room's mailbox on a fixed interval and merges the
// results into a Timeline. It polls at most one room at a time.
type Poller struct {
	consumer Consumer
	timeline *Timeline
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	room   string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates an idle poller.
func NewPoller(consumer Consumer, timeline *Timeline, opts ...PollerOption) *Poller {
	p := &Poller{
		consumer: consumer,
		timeline: timeline,
		interval: DefaultPollInterval,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetRoom starts polling room, replacing any previous room. An empty room
// stops polling.
func (p *Poller) SetRoom(room string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if room == p.room && p.cancel != nil {
		return
	}
	p.stopLocked()
	if room == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.room = room
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, room, p.done)

	p.log.Debug().Str("room", room).Dur("interval", p.interval).Msg("polling started")
}

// Stop returns the poller to Idle. When it returns no further results from
// the previous room reach the timeline.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.log.Debug().Str("room", p.room).Msg("polling stopped")
	p.room = ""
	p.cancel = nil
	p.done = nil
}

// State reports whether the poller is active.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return Polling
	}
	return Idle
}

// Room returns the room being polled, or "" when idle.
func (p *Poller) Room() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.room
}

func (p *Poller) run(ctx context.Context, room string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, room)
		}
	}
}

func (p *Poller) poll(ctx context.Context, room string) {
	reqCtx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	msgs, err := p.consumer.Consume(reqCtx, room)
	if ctx.Err() != nil {
		// Stopped while the request was in flight.
		return
	}
	if err != nil {
		p.log.Warn().Err(err).Str("room", room).Msg("poll failed")
		return
	}
	if added := p.timeline.Merge(msgs...); len(added) > 0 {
		p.log.Debug().Str("room", room).Int("count", len(added)).Msg("received agent messages")
	}
}
