package rtc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	mu           sync.Mutex
	rooms        []string
	participants map[string][]*livekit.ParticipantInfo
	listErr      error
	partErr      error
}

func (f *fakeLister) setRooms(rooms ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = rooms
}

func (f *fakeLister) ListRooms(ctx context.Context, req *livekit.ListRoomsRequest) (*livekit.ListRoomsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	resp := &livekit.ListRoomsResponse{}
	for _, name := range f.rooms {
		resp.Rooms = append(resp.Rooms, &livekit.Room{Name: name})
	}
	return resp, nil
}

func (f *fakeLister) ListParticipants(ctx context.Context, req *livekit.ListParticipantsRequest) (*livekit.ListParticipantsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.partErr != nil {
		return nil, f.partErr
	}
	return &livekit.ListParticipantsResponse{Participants: f.participants[req.Room]}, nil
}

type fakeAgentDispatcher struct {
	mu    sync.Mutex
	rooms []string
	err   error
}

func (f *fakeAgentDispatcher) DispatchAgent(ctx context.Context, room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rooms = append(f.rooms, room)
	return nil
}

func (f *fakeAgentDispatcher) dispatched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rooms...)
}

type sipFixture struct {
	watcher    *SIPWatcher
	lister     *fakeLister
	dispatcher *fakeAgentDispatcher
	clock      time.Time
}

func newSIPFixture(rooms ...string) *sipFixture {
	f := &sipFixture{
		lister:     &fakeLister{rooms: rooms, participants: map[string][]*livekit.ParticipantInfo{}},
		dispatcher: &fakeAgentDispatcher{},
		clock:      time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}
	f.watcher = NewSIPWatcher(SIPConfig{AgentName: "voice-assistant"}, f.lister, f.dispatcher, zerolog.Nop())
	f.watcher.now = func() time.Time { return f.clock }
	return f
}

func TestSIPWatcher_DispatchesOnlyCallRooms(t *testing.T) {
	f := newSIPFixture("sip-call-_1001_abc", "sohbet-odasi", "sohbet-4f2a")

	got := f.watcher.Scan(context.Background())
	assert.Equal(t, []string{"sip-call-_1001_abc"}, got)
	assert.Equal(t, []string{"sip-call-_1001_abc"}, f.dispatcher.dispatched())
}

func TestSIPWatcher_DispatchesOncePerRoom(t *testing.T) {
	f := newSIPFixture("sip-call-a")

	f.watcher.Scan(context.Background())
	f.clock = f.clock.Add(10 * time.Minute)
	f.watcher.Scan(context.Background())
	f.watcher.Scan(context.Background())

	assert.Equal(t, []string{"sip-call-a"}, f.dispatcher.dispatched())
}

func TestSIPWatcher_CacheCoversRoomThatReappears(t *testing.T) {
	f := newSIPFixture("sip-call-a")
	ctx := context.Background()

	f.watcher.Scan(ctx)

	// The room drops out of the listing and comes back within the TTL.
	f.lister.setRooms()
	f.watcher.Scan(ctx)
	f.lister.setRooms("sip-call-a")
	f.clock = f.clock.Add(time.Minute)
	assert.Empty(t, f.watcher.Scan(ctx))

	// Past the TTL it is treated as a new call.
	f.lister.setRooms()
	f.watcher.Scan(ctx)
	f.lister.setRooms("sip-call-a")
	f.clock = f.clock.Add(2 * time.Minute)
	assert.Equal(t, []string{"sip-call-a"}, f.watcher.Scan(ctx))

	assert.Equal(t, []string{"sip-call-a", "sip-call-a"}, f.dispatcher.dispatched())
}

func TestSIPWatcher_SkipsRoomWithAgent(t *testing.T) {
	tests := []struct {
		name        string
		participant *livekit.ParticipantInfo
	}{
		{"agent identity", &livekit.ParticipantInfo{Identity: "agent-AJ_x8Kq2"}},
		{"agent name identity", &livekit.ParticipantInfo{Identity: "voice-assistant-1"}},
		{"agent display name", &livekit.ParticipantInfo{Identity: "p1", Name: "voice-assistant"}},
		{"agent kind", &livekit.ParticipantInfo{Identity: "worker", Kind: livekit.ParticipantInfo_AGENT}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSIPFixture("sip-call-a")
			f.lister.participants["sip-call-a"] = []*livekit.ParticipantInfo{
				{Identity: "sip_1001"},
				tt.participant,
			}

			assert.Empty(t, f.watcher.Scan(context.Background()))
			assert.Empty(t, f.dispatcher.dispatched())

			// Marked as served, so an agent leaving does not trigger a dispatch.
			f.lister.participants["sip-call-a"] = nil
			assert.Empty(t, f.watcher.Scan(context.Background()))
		})
	}
}

func TestSIPWatcher_CallerOnlyRoomGetsAgent(t *testing.T) {
	f := newSIPFixture("sip-call-a")
	f.lister.participants["sip-call-a"] = []*livekit.ParticipantInfo{{Identity: "sip_1001"}}

	assert.Equal(t, []string{"sip-call-a"}, f.watcher.Scan(context.Background()))
}

func TestSIPWatcher_RetriesFailedDispatch(t *testing.T) {
	f := newSIPFixture("sip-call-a")
	f.dispatcher.err = errors.New("no workers")

	assert.Empty(t, f.watcher.Scan(context.Background()))

	f.dispatcher.err = nil
	assert.Equal(t, []string{"sip-call-a"}, f.watcher.Scan(context.Background()))
}

func TestSIPWatcher_ListErrors(t *testing.T) {
	f := newSIPFixture("sip-call-a")

	f.lister.listErr = errors.New("media server down")
	assert.Empty(t, f.watcher.Scan(context.Background()))

	f.lister.listErr = nil
	f.lister.partErr = errors.New("timeout")
	assert.Empty(t, f.watcher.Scan(context.Background()))
	assert.Empty(t, f.dispatcher.dispatched())
}

func TestSIPWatcher_RunStopsOnCancel(t *testing.T) {
	lister := &fakeLister{rooms: []string{"sip-call-a"}}
	dispatcher := &fakeAgentDispatcher{}
	w := NewSIPWatcher(SIPConfig{Interval: 10 * time.Millisecond}, lister, dispatcher, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(dispatcher.dispatched()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{"sip-call-a"}, dispatcher.dispatched())
}

type fakeSIPAdmin struct {
	trunk *livekit.CreateSIPInboundTrunkRequest
	rule  *livekit.CreateSIPDispatchRuleRequest
	err   error
}

func (f *fakeSIPAdmin) CreateSIPInboundTrunk(ctx context.Context, req *livekit.CreateSIPInboundTrunkRequest) (*livekit.SIPInboundTrunkInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.trunk = req
	return &livekit.SIPInboundTrunkInfo{SipTrunkId: "ST_1"}, nil
}

func (f *fakeSIPAdmin) CreateSIPDispatchRule(ctx context.Context, req *livekit.CreateSIPDispatchRuleRequest) (*livekit.SIPDispatchRuleInfo, error) {
	f.rule = req
	return &livekit.SIPDispatchRuleInfo{SipDispatchRuleId: "SDR_1"}, nil
}

func TestSetupSIP(t *testing.T) {
	admin := &fakeSIPAdmin{}

	res, err := SetupSIP(context.Background(), admin, TrunkSetup{
		TrunkName:        "PBX 1001",
		Numbers:          []string{"1001"},
		AllowedAddresses: []string{"192.168.9.0/24"},
		RuleName:         "Per-Call Room",
	})
	require.NoError(t, err)
	assert.Equal(t, &SIPSetupResult{TrunkID: "ST_1", RuleID: "SDR_1"}, res)

	assert.Equal(t, []string{"1001"}, admin.trunk.GetTrunk().GetNumbers())
	assert.Equal(t, []string{"192.168.9.0/24"}, admin.trunk.GetTrunk().GetAllowedAddresses())
	assert.Equal(t, []string{"ST_1"}, admin.rule.GetTrunkIds())
	assert.Equal(t, DefaultSIPRoomPrefix, admin.rule.GetRule().GetDispatchRuleIndividual().GetRoomPrefix())
}

func TestSetupSIP_Errors(t *testing.T) {
	_, err := SetupSIP(context.Background(), &fakeSIPAdmin{}, TrunkSetup{TrunkName: "PBX"})
	assert.Error(t, err)

	cause := errors.New("sip disabled")
	_, err = SetupSIP(context.Background(), &fakeSIPAdmin{err: cause}, TrunkSetup{TrunkName: "PBX", Numbers: []string{"1001"}})
	assert.ErrorIs(t, err, cause)
}
