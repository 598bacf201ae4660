// Package rtc provisions voice chat sessions on the LiveKit media server:
// room creation, join tokens, and voice agent dispatch.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/umiteyigun/santral-ai/internal/metrics"
	"github.com/umiteyigun/santral-ai/internal/models"
)

const (
	roomPrefix         = "sohbet-"
	DefaultRoom        = "sohbet-odasi"
	DefaultParticipant = "Kullanici"
	defaultTokenTTL    = 6 * time.Hour
)

var ErrMissingRoom = errors.New("roomName is required")

// RoomCreator creates rooms on the media server.
type RoomCreator interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
}

// AgentDispatcher asks the media server to send an agent into a room.
type AgentDispatcher interface {
	CreateDispatch(ctx context.Context, req *livekit.CreateAgentDispatchRequest) (*livekit.AgentDispatch, error)
}

// Config configures a Provisioner.
type Config struct {
	URL       string
	APIKey    string
	APISecret string
	AgentName string
	TokenTTL  time.Duration
}

// Provisioner issues sessions against a LiveKit deployment.
type Provisioner struct {
	rooms      RoomCreator
	dispatcher AgentDispatcher
	apiKey     string
	apiSecret  string
	agentName  string
	tokenTTL   time.Duration
}

// NewProvisioner connects service clients for cfg.URL.
func NewProvisioner(cfg Config) *Provisioner {
	return NewProvisionerWithClients(cfg,
		lksdk.NewRoomServiceClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		lksdk.NewAgentDispatchServiceClient(cfg.URL, cfg.APIKey, cfg.APISecret),
	)
}

// NewProvisionerWithClients builds a Provisioner on explicit service clients.
func NewProvisionerWithClients(cfg Config, rooms RoomCreator, dispatcher AgentDispatcher) *Provisioner {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Provisioner{
		rooms:      rooms,
		dispatcher: dispatcher,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		agentName:  cfg.AgentName,
		tokenTTL:   ttl,
	}
}

// NewRoomName returns a fresh, unguessable room name.
func NewRoomName() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return roomPrefix + id[:13]
}

// GuestName returns a placeholder participant identity.
func GuestName() string {
	return fmt.Sprintf("Misafir-%d", rand.IntN(1000))
}

// Token issues a join token for identity in room.
func (p *Provisioner) Token(room, identity string) (string, error) {
	if room == "" {
		return "", ErrMissingRoom
	}
	grant := &auth.VideoGrant{RoomJoin: true, Room: room}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)

	at := auth.NewAccessToken(p.apiKey, p.apiSecret)
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(p.tokenTTL)

	jwt, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return jwt, nil
}

// DispatchAgent sends the voice agent into an existing room.
func (p *Provisioner) DispatchAgent(ctx context.Context, room string) error {
	if room == "" {
		return ErrMissingRoom
	}
	start := time.Now()
	_, err := p.dispatcher.CreateDispatch(ctx, &livekit.CreateAgentDispatchRequest{
		Room:      room,
		AgentName: p.agentName,
	})
	metrics.UpstreamLatency.WithLabelValues("livekit", "dispatch").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("dispatch %s to %s: %w", p.agentName, room, err)
	}
	return nil
}

// StartChat creates a new room, issues a token for participant, and
// dispatches the agent. ServerURL is left for the caller to fill in.
func (p *Provisioner) StartChat(ctx context.Context, participant string) (*models.Session, error) {
	if participant == "" {
		participant = DefaultParticipant
	}
	room := NewRoomName()

	start := time.Now()
	_, err := p.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{Name: room})
	metrics.UpstreamLatency.WithLabelValues("livekit", "create_room").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("create room %s: %w", room, err)
	}

	token, err := p.Token(room, participant)
	if err != nil {
		return nil, err
	}

	if err := p.DispatchAgent(ctx, room); err != nil {
		return nil, err
	}

	return &models.Session{
		RoomName:    room,
		Participant: participant,
		Token:       token,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
