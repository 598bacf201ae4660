package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/umiteyigun/santral-ai/internal/models"
	"github.com/umiteyigun/santral-ai/internal/realtime"
	"github.com/umiteyigun/santral-ai/internal/store"
)

// Room names are generated by the session provisioner or chosen by operators:
// alphanumeric, hyphens, underscores, 1-128 chars.
var roomNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// Provisioner issues media server sessions.
type Provisioner interface {
	StartChat(ctx context.Context, participant string) (*models.Session, error)
	Token(room, identity string) (string, error)
	DispatchAgent(ctx context.Context, room string) error
}

// VoiceService manages text-to-speech reference voices.
type VoiceService interface {
	List(ctx context.Context) (*models.VoiceList, error)
	Active(ctx context.Context) (*models.ActiveVoice, error)
	SetActive(ctx context.Context, filename string) (*models.SetActiveVoiceResult, error)
	Upload(ctx context.Context, contentType string, body io.Reader) (*models.UploadedVoice, error)
	CacheInfo(ctx context.Context) (*models.CacheInfo, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators shared by all HTTP handlers.
type Deps struct {
	Mailbox        store.Mailbox
	Broker         realtime.Broker
	Sessions       Provisioner
	Voices         VoiceService
	Logger         zerolog.Logger
	PublicMediaURL string
	OriginPatterns []string // websocket origin host patterns
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	mailbox        store.Mailbox
	broker         realtime.Broker
	sessions       Provisioner
	voices         VoiceService
	log            zerolog.Logger
	publicMediaURL string
	originPatterns []string
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		mailbox:        d.Mailbox,
		broker:         d.Broker,
		sessions:       d.Sessions,
		voices:         d.Voices,
		log:            d.Logger,
		publicMediaURL: d.PublicMediaURL,
		originPatterns: d.OriginPatterns,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// isValidRoomName reports whether room can be used as a mailbox key.
func isValidRoomName(room string) bool {
	return roomNameRegex.MatchString(room)
}
