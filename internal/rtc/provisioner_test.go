package rtc

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRooms struct {
	created []string
	err     error
}

func (f *fakeRooms) CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req.Name)
	return &livekit.Room{Name: req.Name}, nil
}

type fakeDispatcher struct {
	rooms  []string
	agents []string
	err    error
}

func (f *fakeDispatcher) CreateDispatch(ctx context.Context, req *livekit.CreateAgentDispatchRequest) (*livekit.AgentDispatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rooms = append(f.rooms, req.Room)
	f.agents = append(f.agents, req.AgentName)
	return &livekit.AgentDispatch{Room: req.Room, AgentName: req.AgentName}, nil
}

func newTestProvisioner() (*Provisioner, *fakeRooms, *fakeDispatcher) {
	rooms, dispatcher := &fakeRooms{}, &fakeDispatcher{}
	p := NewProvisionerWithClients(Config{
		APIKey:    "devkey",
		APISecret: "secret-secret-secret-secret-secret",
		AgentName: "voice-assistant",
	}, rooms, dispatcher)
	return p, rooms, dispatcher
}

// tokenClaims decodes the JWT payload without verifying it.
func tokenClaims(t *testing.T, jwt string) map[string]any {
	t.Helper()
	parts := strings.Split(jwt, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(raw, &claims))
	return claims
}

func TestNewRoomName(t *testing.T) {
	a, b := NewRoomName(), NewRoomName()
	assert.True(t, strings.HasPrefix(a, "sohbet-"))
	assert.Len(t, a, len("sohbet-")+13)
	assert.NotEqual(t, a, b)
}

func TestToken_GrantsRoomJoin(t *testing.T) {
	p, _, _ := newTestProvisioner()

	jwt, err := p.Token("sohbet-1", "Kullanici")
	require.NoError(t, err)

	claims := tokenClaims(t, jwt)
	assert.Equal(t, "devkey", claims["iss"])
	assert.Equal(t, "Kullanici", claims["sub"])
	video, ok := claims["video"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, video["roomJoin"])
	assert.Equal(t, "sohbet-1", video["room"])
	assert.Equal(t, true, video["canPublish"])
	assert.Equal(t, true, video["canSubscribe"])
}

func TestToken_RequiresRoom(t *testing.T) {
	p, _, _ := newTestProvisioner()
	_, err := p.Token("", "x")
	assert.ErrorIs(t, err, ErrMissingRoom)
}

func TestStartChat(t *testing.T) {
	p, rooms, dispatcher := newTestProvisioner()

	session, err := p.StartChat(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultParticipant, session.Participant)
	assert.Equal(t, []string{session.RoomName}, rooms.created)
	assert.Equal(t, []string{session.RoomName}, dispatcher.rooms)
	assert.Equal(t, []string{"voice-assistant"}, dispatcher.agents)
	assert.NotEmpty(t, session.Token)
}

func TestStartChat_RoomFailureSkipsDispatch(t *testing.T) {
	p, rooms, dispatcher := newTestProvisioner()
	rooms.err = errors.New("media server down")

	_, err := p.StartChat(context.Background(), "Ayse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "media server down")
	assert.Empty(t, dispatcher.rooms)
}

func TestDispatchAgent_WrapsError(t *testing.T) {
	p, _, dispatcher := newTestProvisioner()
	cause := errors.New("no workers")
	dispatcher.err = cause

	err := p.DispatchAgent(context.Background(), "sohbet-1")
	assert.ErrorIs(t, err, cause)
}

func TestServerURL(t *testing.T) {
	r := httptest.NewRequest("GET", "http://chat.example/start-chat", nil)
	assert.Equal(t, "ws://chat.example/livekit", ServerURL("", r))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "wss://chat.example/livekit", ServerURL("", r))

	r = httptest.NewRequest("GET", "https://chat.example/start-chat", nil)
	r.TLS = &tls.ConnectionState{}
	assert.Equal(t, "wss://chat.example/livekit", ServerURL("", r))

	assert.Equal(t, "wss://media.example", ServerURL("wss://media.example", r))
}
