package rtc

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/rs/zerolog"

	"github.com/umiteyigun/santral-ai/internal/metrics"
)

const (
	DefaultSIPRoomPrefix   = "sip-call-"
	DefaultSIPScanInterval = 15 * time.Second
	DefaultSIPCacheTTL     = 2 * time.Minute
)

// RoomLister lists rooms and their participants on the media server.
type RoomLister interface {
	ListRooms(ctx context.Context, req *livekit.ListRoomsRequest) (*livekit.ListRoomsResponse, error)
	ListParticipants(ctx context.Context, req *livekit.ListParticipantsRequest) (*livekit.ListParticipantsResponse, error)
}

// Dispatcher sends the voice agent into a room.
type Dispatcher interface {
	DispatchAgent(ctx context.Context, room string) error
}

// SIPConfig configures a SIPWatcher.
type SIPConfig struct {
	RoomPrefix string
	AgentName  string
	Interval   time.Duration
	CacheTTL   time.Duration
}

// SIPWatcher dispatches the voice agent into rooms the media server creates
// for incoming phone calls. Each call room gets at most one dispatch while it
// exists; a room seen again within CacheTTL of its dispatch is not
// dispatched again.
type SIPWatcher struct {
	rooms      RoomLister
	dispatcher Dispatcher
	cfg        SIPConfig
	log        zerolog.Logger
	now        func() time.Time

	mu         sync.Mutex
	dispatched map[string]bool
	recent     map[string]time.Time
}

// NewSIPWatcher creates a watcher. Zero config fields take their defaults.
func NewSIPWatcher(cfg SIPConfig, rooms RoomLister, dispatcher Dispatcher, log zerolog.Logger) *SIPWatcher {
	if cfg.RoomPrefix == "" {
		cfg.RoomPrefix = DefaultSIPRoomPrefix
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSIPScanInterval
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultSIPCacheTTL
	}
	return &SIPWatcher{
		rooms:      rooms,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With().Str("component", "sip_watcher").Logger(),
		now:        time.Now,
		dispatched: make(map[string]bool),
		recent:     make(map[string]time.Time),
	}
}

// Run scans immediately and then on every interval until ctx is cancelled.
func (w *SIPWatcher) Run(ctx context.Context) {
	w.log.Info().
		Str("prefix", w.cfg.RoomPrefix).
		Dur("interval", w.cfg.Interval).
		Msg("watching for call rooms")

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		w.Scan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan makes one pass over the media server's rooms and returns the rooms
// the agent was dispatched to.
func (w *SIPWatcher) Scan(ctx context.Context) []string {
	start := time.Now()
	resp, err := w.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{})
	metrics.UpstreamLatency.WithLabelValues("livekit", "list_rooms").Observe(time.Since(start).Seconds())
	if err != nil {
		w.log.Warn().Err(err).Msg("listing rooms failed")
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(resp.GetRooms(), now)

	var dispatched []string
	for _, room := range resp.GetRooms() {
		name := room.GetName()
		if !strings.HasPrefix(name, w.cfg.RoomPrefix) || w.dispatched[name] {
			continue
		}
		if last, ok := w.recent[name]; ok && now.Sub(last) < w.cfg.CacheTTL {
			continue
		}

		present, err := w.agentPresent(ctx, name)
		if err != nil {
			w.log.Warn().Err(err).Str("room", name).Msg("listing participants failed")
			continue
		}
		if present {
			w.dispatched[name] = true
			w.recent[name] = now
			w.log.Debug().Str("room", name).Msg("agent already in call room")
			continue
		}

		if err := w.dispatcher.DispatchAgent(ctx, name); err != nil {
			metrics.SIPDispatches.WithLabelValues("error").Inc()
			w.log.Error().Err(err).Str("room", name).Msg("dispatching agent to call room failed")
			continue
		}
		metrics.SIPDispatches.WithLabelValues("dispatched").Inc()
		w.dispatched[name] = true
		w.recent[name] = now
		dispatched = append(dispatched, name)
		w.log.Info().Str("room", name).Msg("agent dispatched to call room")
	}
	return dispatched
}

// pruneLocked forgets rooms that have closed and cache entries older than
// twice the TTL.
func (w *SIPWatcher) pruneLocked(rooms []*livekit.Room, now time.Time) {
	open := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		open[room.GetName()] = true
	}
	for name := range w.dispatched {
		if !open[name] {
			delete(w.dispatched, name)
		}
	}
	for name, at := range w.recent {
		if now.Sub(at) > 2*w.cfg.CacheTTL {
			delete(w.recent, name)
		}
	}
}

func (w *SIPWatcher) agentPresent(ctx context.Context, room string) (bool, error) {
	start := time.Now()
	resp, err := w.rooms.ListParticipants(ctx, &livekit.ListParticipantsRequest{Room: room})
	metrics.UpstreamLatency.WithLabelValues("livekit", "list_participants").Observe(time.Since(start).Seconds())
	if err != nil {
		return false, err
	}
	for _, p := range resp.GetParticipants() {
		if w.isAgent(p) {
			return true, nil
		}
	}
	return false, nil
}

func (w *SIPWatcher) isAgent(p *livekit.ParticipantInfo) bool {
	if p.GetKind() == livekit.ParticipantInfo_AGENT {
		return true
	}
	identity := p.GetIdentity()
	if strings.HasPrefix(identity, "agent-") {
		return true
	}
	return w.cfg.AgentName != "" &&
		(strings.HasPrefix(identity, w.cfg.AgentName) || p.GetName() == w.cfg.AgentName)
}
